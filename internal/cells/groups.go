package cells

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownGroup is returned when a group name is not in the table.
	// It is a configuration error and is never silently ignored.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrCombinationArity is returned when a combination names a number of
	// groups other than 2 or 3.
	ErrCombinationArity = errors.New("group combination must name 2 or 3 groups")

	// ErrInvalidGroupTable is returned for empty group names or label sets.
	ErrInvalidGroupTable = errors.New("invalid group table")
)

// CombinationSeparator joins group names in a combination selection,
// e.g. "tumor+lymphoid".
const CombinationSeparator = "+"

// AllPoints is the selection name for the unfiltered cloud.
const AllPoints = "all"

// GroupTable maps a group name to the phenotype labels it recognises.
type GroupTable map[string][]string

// DefaultGroupTable returns the four cell groups used by the tissue studies
// this pipeline was built for.
func DefaultGroupTable() GroupTable {
	return GroupTable{
		"tumor": {"tumor cells", "Ki67+ tumor cells"},
		"lymphoid": {
			"NK", "B cells", "effector CD8+ T cells", "memory CD8+ T cells",
			"CD4+ T cells", "regulatory T cells", "memory CD4+ T cells",
		},
		"myeloid": {
			"neutrophils", "other APCs", "dendritic cells",
			"M1/M0 macrophages", "M2 macrophages",
		},
		"non_tumor": {"endothelial cells", "stromal cells"},
	}
}

// LabelSet is a set of phenotype labels.
type LabelSet map[string]struct{}

// Contains reports whether label is in the set.
func (s LabelSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// Sorted returns the labels in lexical order.
func (s LabelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Selection restricts a cloud before complex construction. A nil label set
// selects every point.
type Selection struct {
	Name   string
	labels LabelSet
}

// All reports whether the selection keeps every point.
func (s Selection) All() bool { return s.labels == nil }

// Labels returns the selection's label set, or nil for the whole cloud.
func (s Selection) Labels() LabelSet { return s.labels }

// WholeCloud is the selection that keeps every point.
func WholeCloud() Selection { return Selection{Name: ""} }

// Apply filters the cloud by the selection. The returned cloud shares no
// backing array with the input.
func (s Selection) Apply(c Cloud) Cloud {
	out := Cloud{SampleID: c.SampleID}
	if s.labels == nil {
		out.Points = append([]Point(nil), c.Points...)
		return out
	}
	for _, p := range c.Points {
		if p.Label != "" && s.labels.Contains(p.Label) {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// Classifier subsets point clouds by group. It holds an immutable copy of its
// group table, so concurrent batches with different tables never interfere.
type Classifier struct {
	groups map[string]LabelSet
	names  []string
}

// NewClassifier validates table and returns a classifier over a private copy.
func NewClassifier(table GroupTable) (*Classifier, error) {
	c := &Classifier{groups: make(map[string]LabelSet, len(table))}
	for name, labels := range table {
		name = strings.TrimSpace(name)
		if name == "" || name == AllPoints || strings.Contains(name, CombinationSeparator) {
			return nil, fmt.Errorf("%w: group name %q is reserved or empty", ErrInvalidGroupTable, name)
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("%w: group %q has no labels", ErrInvalidGroupTable, name)
		}
		set := make(LabelSet, len(labels))
		for _, l := range labels {
			set[l] = struct{}{}
		}
		c.groups[name] = set
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Groups returns the configured group names in lexical order.
func (c *Classifier) Groups() []string {
	return append([]string(nil), c.names...)
}

// Labels returns the label set of a single group.
func (c *Classifier) Labels(group string) (LabelSet, error) {
	set, ok := c.groups[group]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	return set, nil
}

// Subset returns the sub-cloud whose labels belong to group. A result with
// fewer than MinPoints points is not an error; callers skip it.
func (c *Classifier) Subset(cloud Cloud, group string) (Cloud, error) {
	set, err := c.Labels(group)
	if err != nil {
		return Cloud{}, err
	}
	return Selection{Name: group, labels: set}.Apply(cloud), nil
}

// Combine returns the union of the label sets of 2 or 3 distinct groups.
func (c *Classifier) Combine(names ...string) (LabelSet, error) {
	uniq := make(map[string]struct{}, len(names))
	for _, n := range names {
		uniq[n] = struct{}{}
	}
	if len(uniq) < 2 || len(uniq) > 3 || len(uniq) != len(names) {
		return nil, fmt.Errorf("%w: got %v", ErrCombinationArity, names)
	}
	out := make(LabelSet)
	for _, n := range names {
		set, err := c.Labels(n)
		if err != nil {
			return nil, err
		}
		for l := range set {
			out[l] = struct{}{}
		}
	}
	return out, nil
}

// Selection parses a selection spec: "" or "all" for the whole cloud, a group
// name, or 2-3 group names joined by "+". Combination names are normalised to
// sorted order so "b+a" and "a+b" produce the same key.
func (c *Classifier) Selection(spec string) (Selection, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == AllPoints {
		return WholeCloud(), nil
	}
	if !strings.Contains(spec, CombinationSeparator) {
		set, err := c.Labels(spec)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Name: spec, labels: set}, nil
	}
	parts := strings.Split(spec, CombinationSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	sort.Strings(parts)
	set, err := c.Combine(parts...)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Name: strings.Join(parts, CombinationSeparator), labels: set}, nil
}

// EachGroup returns one selection per configured group.
func (c *Classifier) EachGroup() []Selection {
	out := make([]Selection, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, Selection{Name: n, labels: c.groups[n]})
	}
	return out
}

// Combinations returns every 2- and 3-group combination in lexical order.
func (c *Classifier) Combinations() []Selection {
	var out []Selection
	n := len(c.names)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s, _ := c.Selection(c.names[i] + CombinationSeparator + c.names[j])
			out = append(out, s)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				s, _ := c.Selection(c.names[i] + CombinationSeparator + c.names[j] + CombinationSeparator + c.names[k])
				out = append(out, s)
			}
		}
	}
	return out
}

// ParseSelections expands selection specs, accepting the keywords
// "all-groups" (every single group) and "combinations" (every 2- and
// 3-combination). Duplicates are dropped; order follows first appearance.
func (c *Classifier) ParseSelections(specs []string) ([]Selection, error) {
	if len(specs) == 0 {
		return []Selection{WholeCloud()}, nil
	}
	seen := make(map[string]bool)
	var out []Selection
	add := func(s Selection) {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	for _, spec := range specs {
		switch strings.TrimSpace(spec) {
		case "all-groups":
			for _, s := range c.EachGroup() {
				add(s)
			}
		case "combinations":
			for _, s := range c.Combinations() {
				add(s)
			}
		default:
			s, err := c.Selection(spec)
			if err != nil {
				return nil, err
			}
			add(s)
		}
	}
	return out, nil
}
