package batch

import (
	"sort"

	"github.com/banshee-data/topofingerprint/internal/persistence"
)

// Key identifies one diagram-round task: a sample, optionally restricted to a
// group selection. Group is "" for the whole cloud.
type Key struct {
	SampleID string
	Group    string
}

func (k Key) String() string {
	if k.Group == "" {
		return k.SampleID
	}
	return k.SampleID + "/" + k.Group
}

func keyLess(a, b Key) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.SampleID < b.SampleID
}

// DiagramStore holds computed diagrams keyed by sample and group. It is
// written only by the orchestrator's reducer; concurrent readers are safe
// once a round has returned.
type DiagramStore struct {
	diagrams map[Key]persistence.Diagram
}

// NewDiagramStore returns an empty store.
func NewDiagramStore() *DiagramStore {
	return &DiagramStore{diagrams: make(map[Key]persistence.Diagram)}
}

// Put stores a diagram in canonical order, replacing any earlier one.
func (s *DiagramStore) Put(k Key, d persistence.Diagram) {
	s.diagrams[k] = d.Sorted()
}

// Get returns the diagram for k.
func (s *DiagramStore) Get(k Key) (persistence.Diagram, bool) {
	d, ok := s.diagrams[k]
	return d, ok
}

// Len returns the number of stored diagrams.
func (s *DiagramStore) Len() int { return len(s.diagrams) }

// Keys returns every key sorted by group, then sample.
func (s *DiagramStore) Keys() []Key {
	out := make([]Key, 0, len(s.diagrams))
	for k := range s.diagrams {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i], out[j]) })
	return out
}

// SampleIDs returns the samples holding a diagram for group, sorted.
func (s *DiagramStore) SampleIDs(group string) []string {
	var out []string
	for k := range s.diagrams {
		if k.Group == group {
			out = append(out, k.SampleID)
		}
	}
	sort.Strings(out)
	return out
}

// Groups returns the distinct groups present, sorted.
func (s *DiagramStore) Groups() []string {
	seen := make(map[string]bool)
	var out []string
	for k := range s.diagrams {
		if !seen[k.Group] {
			seen[k.Group] = true
			out = append(out, k.Group)
		}
	}
	sort.Strings(out)
	return out
}
