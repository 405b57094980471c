package domain

import (
	"iter"
	"slices"
	"strings"
)

// FilterField selects which link field a search runs against.
type FilterField string

const (
	FilterTitle    FilterField = "title"
	FilterURL      FilterField = "url"
	FilterCategory FilterField = "category"
)

// ParseFilterField maps user input to a FilterField. Empty input means title.
func ParseFilterField(s string) (FilterField, error) {
	switch FilterField(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterTitle:
		return FilterTitle, nil
	case FilterURL:
		return FilterURL, nil
	case FilterCategory:
		return FilterCategory, nil
	default:
		return "", &ValidationError{Field: "field", Code: InvalidField, Value: s}
	}
}

func (f FilterField) value(r LinkRecord) string {
	switch f {
	case FilterURL:
		return r.URL
	case FilterCategory:
		return string(r.Category)
	default:
		return r.Title
	}
}

// LinkCollection is the ordered list of links of one profile.
// It is not safe for concurrent use; callers Clone before mutating shared state.
type LinkCollection struct {
	links []LinkRecord
	newID IDGenerator
}

// NewLinkCollection hydrates a collection from stored records.
// The records are copied. gen may be nil.
func NewLinkCollection(records []LinkRecord, gen IDGenerator) *LinkCollection {
	if gen == nil {
		gen = NewLinkID
	}
	return &LinkCollection{
		links: slices.Clone(records),
		newID: gen,
	}
}

// Clone returns an independent copy sharing the id generator.
func (c *LinkCollection) Clone() *LinkCollection {
	return &LinkCollection{links: slices.Clone(c.links), newID: c.newID}
}

// Records returns a copy of the ordered links.
func (c *LinkCollection) Records() []LinkRecord {
	out := slices.Clone(c.links)
	if out == nil {
		out = []LinkRecord{}
	}
	return out
}

// Len returns the number of links.
func (c *LinkCollection) Len() int { return len(c.links) }

// Get returns the link with id.
func (c *LinkCollection) Get(id string) (LinkRecord, error) {
	i := c.indexOf(id)
	if i < 0 {
		return LinkRecord{}, ErrLinkNotFound
	}
	return c.links[i], nil
}

// Add validates d, appends it with a fresh id and returns the new ordered sequence.
// On error the collection is unchanged.
func (c *LinkCollection) Add(d LinkDraft) ([]LinkRecord, error) {
	r, err := NewLink(d, c.uniqueID)
	if err != nil {
		return nil, err
	}
	c.links = append(c.links, r)
	return c.Records(), nil
}

// Edit merges p into the link with id. Id and position are preserved.
func (c *LinkCollection) Edit(id string, p LinkPatch) error {
	i := c.indexOf(id)
	if i < 0 {
		return ErrLinkNotFound
	}
	merged := p.apply(c.links[i])
	if err := Validate(merged); err != nil {
		return err
	}
	c.links[i] = merged
	return nil
}

// Delete removes the link with id.
func (c *LinkCollection) Delete(id string) error {
	i := c.indexOf(id)
	if i < 0 {
		return ErrLinkNotFound
	}
	c.links = slices.Delete(c.links, i, i+1)
	return nil
}

// Reorder moves the link with id to target, shifting the others to make room.
func (c *LinkCollection) Reorder(id string, target int) error {
	from := c.indexOf(id)
	if from < 0 {
		return ErrLinkNotFound
	}
	if target < 0 || target >= len(c.links) {
		return ErrIndexOutOfRange
	}
	if from == target {
		return nil
	}
	r := c.links[from]
	c.links = slices.Delete(c.links, from, from+1)
	c.links = slices.Insert(c.links, target, r)
	return nil
}

// Filter returns a restartable view of the links whose field contains substr,
// ignoring case. Each iteration reads the collection as it is at that moment.
func (c *LinkCollection) Filter(field FilterField, substr string) iter.Seq[LinkRecord] {
	needle := strings.ToLower(substr)
	return func(yield func(LinkRecord) bool) {
		for _, r := range c.links {
			if needle != "" && !strings.Contains(strings.ToLower(field.value(r)), needle) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

func (c *LinkCollection) indexOf(id string) int {
	return slices.IndexFunc(c.links, func(r LinkRecord) bool { return r.ID == id })
}

// uniqueID draws from the generator until the id is unused in this collection.
func (c *LinkCollection) uniqueID() string {
	for {
		id := c.newID()
		if c.indexOf(id) < 0 {
			return id
		}
	}
}
