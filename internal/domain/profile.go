package domain

import (
	"regexp"
	"strings"
	"time"
)

// Theme is a display preference of a profile. It has no effect on data.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeBlue  Theme = "blue"
	ThemeGreen Theme = "green"

	DefaultTheme = ThemeLight
)

// Themes lists every accepted theme.
var Themes = []Theme{ThemeLight, ThemeDark, ThemeBlue, ThemeGreen}

// ParseTheme validates s. Empty input yields DefaultTheme.
func ParseTheme(s string) (Theme, error) {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return DefaultTheme, nil
	}
	for _, known := range Themes {
		if t == known {
			return t, nil
		}
	}
	return "", &ValidationError{Field: "theme", Code: InvalidTheme, Value: s}
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9-]{3,30}$`)

// NormalizeUsername trims and lowercases a username. Uniqueness is case-insensitive.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername checks the normalized form of s against the username rules.
func ValidateUsername(s string) error {
	if !usernamePattern.MatchString(NormalizeUsername(s)) {
		return &ValidationError{Field: "username", Code: InvalidUsername, Value: s}
	}
	return nil
}

// Profile is the public page of one username and the row backing it.
type Profile struct {
	// Username is unique and immutable, stored normalized.
	Username string `json:"username"`

	// OwnerID is the identity that created the profile. Immutable.
	OwnerID string `json:"owner_id"`

	// Links keeps insertion and explicit order.
	Links []LinkRecord `json:"links"`

	Theme     Theme     `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
}
