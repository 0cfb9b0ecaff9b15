package remote

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// FileScriptProvider reads a job's tar.gz archive from "<Dir>/<name>.tar.gz",
// the layout an operator populates alongside the job definitions they
// register with the controller.
type FileScriptProvider struct {
	Dir string
}

// NewFileScriptProvider builds a FileScriptProvider rooted at dir.
func NewFileScriptProvider(dir string) *FileScriptProvider {
	return &FileScriptProvider{Dir: dir}
}

// Archive reads name's whole archive into memory and returns a reader
// over it; the file is not streamed from disk.
func (p *FileScriptProvider) Archive(name string) (*bytes.Reader, error) {
	path := filepath.Join(p.Dir, name+".tar.gz")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script archive for %s: %w", name, err)
	}
	return bytes.NewReader(data), nil
}
