package scheduler

import (
	"context"
	"sort"
	"sync"

	"jobplane/internal/store"
)

// constraintSet is a copy-on-write set of running constraints: groups of
// job names that are not allowed to run at the same time. Membership is
// reflexive — a constraint group containing only "cleanup-job" still
// blocks "cleanup-job" from running while another instance of itself (or
// any other member) is RUNNING.
type constraintSet struct {
	mu          sync.Mutex
	constraints []map[string]struct{}
}

func newConstraintSet() *constraintSet {
	return &constraintSet{}
}

// Add registers names as a mutual-exclusion group, reporting false if an
// identical group is already present.
func (c *constraintSet) Add(names []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidate := make(map[string]struct{}, len(names))
	for _, n := range names {
		candidate[n] = struct{}{}
	}
	for _, existing := range c.constraints {
		if setsEqual(existing, candidate) {
			return false
		}
	}
	next := make([]map[string]struct{}, len(c.constraints)+1)
	copy(next, c.constraints)
	next[len(c.constraints)] = candidate
	c.constraints = next
	return true
}

// List returns every constraint group as a sorted slice of names, for
// diagnostics/API surfaces.
func (c *constraintSet) List() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]string, 0, len(c.constraints))
	for _, group := range c.constraints {
		names := make([]string, 0, len(group))
		for n := range group {
			names = append(names, n)
		}
		sort.Strings(names)
		out = append(out, names)
	}
	return out
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// violates reports whether name cannot run right now because some member
// of a constraint group it belongs to (possibly name itself) is currently
// RUNNING.
func (c *constraintSet) violates(ctx context.Context, records store.RecordStore, name string) (bool, error) {
	c.mu.Lock()
	groups := c.constraints
	c.mu.Unlock()

	for _, group := range groups {
		if _, inGroup := group[name]; !inGroup {
			continue
		}
		for member := range group {
			running, err := records.FindByNameAndState(ctx, member, store.RunningStateRunning)
			if err != nil {
				return false, err
			}
			if len(running) > 0 {
				return true, nil
			}
		}
	}
	return false, nil
}
