package domain

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Category groups links on a profile. The empty category means unset.
type Category string

const (
	CategoryNone     Category = ""
	CategorySocial   Category = "social"
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryMedia    Category = "media"
	CategoryShop     Category = "shop"
	CategoryOther    Category = "other"
)

// Categories lists every non-empty category in display order.
var Categories = []Category{
	CategorySocial,
	CategoryWork,
	CategoryPersonal,
	CategoryMedia,
	CategoryShop,
	CategoryOther,
}

// Valid reports whether c is unset or one of Categories.
func (c Category) Valid() bool {
	if c == CategoryNone {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// LinkRecord is one titled, categorized URL on a profile.
type LinkRecord struct {
	// ID is assigned once on creation and never changes,
	// not by edits and not by reorders.
	ID string `json:"id" yaml:"id"`

	// Title is the visible label. Never blank.
	Title string `json:"title" yaml:"title"`

	// URL is an absolute URL (scheme and host required).
	URL string `json:"url" yaml:"url"`

	// Category is optional.
	Category Category `json:"category,omitempty" yaml:"category,omitempty"`
}

// LinkDraft holds user input for a link that does not have an id yet.
type LinkDraft struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Category Category `json:"category,omitempty"`
}

// LinkPatch holds the fields of an edit. Nil fields are left untouched.
type LinkPatch struct {
	Title    *string   `json:"title,omitempty"`
	URL      *string   `json:"url,omitempty"`
	Category *Category `json:"category,omitempty"`
}

// IDGenerator returns a fresh link id.
type IDGenerator func() string

// NewLinkID returns a time-ordered UUIDv7, falling back to a random UUIDv4.
func NewLinkID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Validate checks a link record. The id is not inspected.
func Validate(r LinkRecord) error {
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Code: EmptyTitle}
	}
	if !isAbsoluteURL(r.URL) {
		return &ValidationError{Field: "url", Code: InvalidURL, Value: r.URL}
	}
	if !r.Category.Valid() {
		return &ValidationError{Field: "category", Code: InvalidCategory, Value: string(r.Category)}
	}
	return nil
}

// NewLink validates a draft and assigns it an id from gen (NewLinkID when gen is nil).
func NewLink(d LinkDraft, gen IDGenerator) (LinkRecord, error) {
	r := LinkRecord{
		Title:    strings.TrimSpace(d.Title),
		URL:      strings.TrimSpace(d.URL),
		Category: d.Category,
	}
	if err := Validate(r); err != nil {
		return LinkRecord{}, err
	}
	if gen == nil {
		gen = NewLinkID
	}
	r.ID = gen()
	return r, nil
}

// apply returns r with the non-nil fields of p merged in.
func (p LinkPatch) apply(r LinkRecord) LinkRecord {
	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.URL != nil {
		r.URL = strings.TrimSpace(*p.URL)
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	return r
}

func isAbsoluteURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}
