package seed

import (
	"fmt"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
)

// Profile is a validated seed entry ready to be created.
type Profile struct {
	Username string
	Owner    string
	Theme    domain.Theme
	Links    []domain.LinkRecord
}

// Mapper converts seed entries to validated profiles
type Mapper struct {
	newID domain.IDGenerator
}

// NewMapper creates a mapper. gen may be nil.
func NewMapper(gen domain.IDGenerator) *Mapper {
	return &Mapper{newID: gen}
}

// MapProfiles validates every entry. The whole file is rejected on the first
// invalid entry, so a typo never half-seeds a database.
func (m *Mapper) MapProfiles(file File) ([]Profile, error) {
	out := make([]Profile, 0, len(file))
	seen := make(map[string]int, len(file))

	for i, e := range file {
		p, err := m.mapEntry(e)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d (%q): %w", i, e.Username, err)
		}
		if prev, dup := seen[p.Username]; dup {
			return nil, fmt.Errorf("seed entry %d: username %q already listed at entry %d", i, p.Username, prev)
		}
		seen[p.Username] = i
		out = append(out, p)
	}
	return out, nil
}

func (m *Mapper) mapEntry(e Entry) (Profile, error) {
	username := domain.NormalizeUsername(e.Username)
	if err := domain.ValidateUsername(username); err != nil {
		return Profile{}, err
	}
	if e.Owner == "" {
		return Profile{}, fmt.Errorf("owner is required")
	}
	theme, err := domain.ParseTheme(e.Theme)
	if err != nil {
		return Profile{}, err
	}

	coll := domain.NewLinkCollection(nil, m.newID)
	for j, l := range e.Links {
		if _, err := coll.Add(domain.LinkDraft{
			Title:    l.Title,
			URL:      l.URL,
			Category: domain.Category(l.Category),
		}); err != nil {
			return Profile{}, fmt.Errorf("link %d: %w", j, err)
		}
	}

	return Profile{
		Username: username,
		Owner:    e.Owner,
		Theme:    theme,
		Links:    coll.Records(),
	}, nil
}
