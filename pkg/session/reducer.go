package session

import (
	"slices"

	// Packages
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Snapshot is the state of a session at one point in time. Version increases
// by one with every transition.
type Snapshot struct {
	Version    uint64      `json:"version"`
	Candidates []Candidate `json:"candidates"`
}

// action is a state transition. reduce never modifies its argument.
type action interface {
	reduce([]Candidate) []Candidate
}

// addAction appends candidates
type addAction []Candidate

// updateAction applies fn to each listed candidate that is still present
type updateAction struct {
	ids []string
	fn  func(*Candidate)
}

// removeAction drops a candidate
type removeAction string

////////////////////////////////////////////////////////////////////////////////
// SNAPSHOT

// Get returns the candidate with the given id.
func (s Snapshot) Get(id string) (Candidate, bool) {
	if i := s.index(id); i >= 0 {
		return s.Candidates[i], true
	}
	return Candidate{}, false
}

// Count returns the number of candidates in the given state.
func (s Snapshot) Count(state State) int {
	var n int
	for _, c := range s.Candidates {
		if c.State == state {
			n++
		}
	}
	return n
}

// Totals returns the count and size of the candidates which were not
// rejected, used as the existing totals for batch limits.
func (s Snapshot) Totals() policy.Totals {
	var t policy.Totals
	for _, c := range s.Candidates {
		if c.counts() {
			t.Count++
			t.Bytes += c.Size
		}
	}
	return t
}

// Done reports whether no candidate is waiting for or in an upload.
func (s Snapshot) Done() bool {
	for _, c := range s.Candidates {
		switch c.State {
		case StateAdded, StateValidating, StateQueued, StateUploading:
			return false
		}
	}
	return true
}

func (s Snapshot) index(id string) int {
	return slices.IndexFunc(s.Candidates, func(c Candidate) bool {
		return c.ID == id
	})
}

////////////////////////////////////////////////////////////////////////////////
// ACTIONS

func (a addAction) reduce(c []Candidate) []Candidate {
	next := make([]Candidate, 0, len(c)+len(a))
	next = append(next, c...)
	return append(next, a...)
}

func (a updateAction) reduce(c []Candidate) []Candidate {
	next := slices.Clone(c)
	for _, id := range a.ids {
		if i := slices.IndexFunc(next, func(c Candidate) bool { return c.ID == id }); i >= 0 {
			a.fn(&next[i])
		}
	}
	return next
}

func (a removeAction) reduce(c []Candidate) []Candidate {
	return slices.DeleteFunc(slices.Clone(c), func(c Candidate) bool {
		return c.ID == string(a)
	})
}
