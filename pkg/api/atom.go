package api

import "encoding/xml"

// Feed is a minimal Atom 1.0 feed (RFC 4287), enough to list job names or
// a job's recent records as application/atom+xml.
type Feed struct {
	XMLName xml.Name `xml:"http://www.w3.org/2005/Atom feed"`
	Title   string   `xml:"title"`
	ID      string   `xml:"id"`
	Updated string   `xml:"updated"`
	Links   []Link   `xml:"link"`
	Entries []Entry  `xml:"entry"`
}

// Link is an Atom <link> element.
type Link struct {
	Rel  string `xml:"rel,attr,omitempty"`
	Href string `xml:"href,attr"`
}

// Entry is a single Atom <entry>, identifying either a job name (with a
// link to its record feed) or a single JobRecord (inlined as content).
type Entry struct {
	Title   string  `xml:"title"`
	ID      string  `xml:"id"`
	Updated string  `xml:"updated"`
	Links   []Link  `xml:"link"`
	Content Content `xml:"content"`
}

// Content carries an Entry's body; for record feeds this is the record's
// JSON representation embedded as text, matching the teacher's "content
// carries the payload, links carry navigation" convention.
type Content struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

// NewJobNameFeed builds the Atom feed for GET /jobs: one entry per
// registered job name, linking to that job's record feed.
func NewJobNameFeed(selfHref string, names []string, updated string) *Feed {
	feed := &Feed{
		Title:   "jobplane jobs",
		ID:      selfHref,
		Updated: updated,
		Links:   []Link{{Rel: "self", Href: selfHref}},
	}
	for _, name := range names {
		feed.Entries = append(feed.Entries, Entry{
			Title:   name,
			ID:      selfHref + "/" + name,
			Updated: updated,
			Links:   []Link{{Rel: "alternate", Href: selfHref + "/" + name}},
		})
	}
	return feed
}

// NewRecordFeed builds the Atom feed for GET /jobs/{name}: the job's most
// recent records, each inlined as a JSON content blob.
func NewRecordFeed(selfHref string, records []JobRecord, encode func(JobRecord) string, updated string) *Feed {
	feed := &Feed{
		Title:   selfHref,
		ID:      selfHref,
		Updated: updated,
		Links:   []Link{{Rel: "self", Href: selfHref}},
	}
	for _, rec := range records {
		feed.Entries = append(feed.Entries, Entry{
			Title:   rec.ID,
			ID:      selfHref + "/" + rec.ID,
			Updated: rec.LastModifiedAt.Format("2006-01-02T15:04:05Z07:00"),
			Links:   []Link{{Rel: "alternate", Href: selfHref + "/" + rec.ID}},
			Content: Content{Type: "application/vnd.otto.jobs+json", Body: encode(rec)},
		})
	}
	return feed
}
