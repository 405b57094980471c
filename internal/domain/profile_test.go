package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "alice"},
		{name: "digits and hyphen", input: "a-1-b"},
		{name: "mixed case", input: "Alice"},
		{name: "minimum length", input: "abc"},
		{name: "maximum length", input: strings.Repeat("a", 30)},
		{name: "too short", input: "ab", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 31), wantErr: true},
		{name: "underscore", input: "al_ice", wantErr: true},
		{name: "space", input: "al ice", wantErr: true},
		{name: "slash", input: "al/ice", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if tt.wantErr != (err != nil) {
				t.Fatalf("ValidateUsername(%q) = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("ValidateUsername() error should match ErrValidation")
			}
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  Alice "); got != "alice" {
		t.Errorf("NormalizeUsername() = %q, want alice", got)
	}
}

func TestParseTheme(t *testing.T) {
	tests := []struct {
		input   string
		want    Theme
		wantErr bool
	}{
		{input: "", want: ThemeLight},
		{input: "dark", want: ThemeDark},
		{input: "Blue", want: ThemeBlue},
		{input: "green", want: ThemeGreen},
		{input: "purple", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTheme(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ParseTheme(%q) error = %v, want ErrValidation", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseTheme(%q) = %v, %v, want %v", tt.input, got, err, tt.want)
		}
	}
}

func TestCanMutate(t *testing.T) {
	p := Profile{Username: "alice", OwnerID: "U1"}

	tests := []struct {
		name string
		id   Identity
		want bool
	}{
		{name: "owner", id: Identity{ID: "U1", SignedIn: true, Loaded: true}, want: true},
		{name: "other user", id: Identity{ID: "U2", SignedIn: true, Loaded: true}},
		{name: "anonymous", id: Anonymous},
		{name: "zero identity", id: Identity{}},
		{name: "owner id but not signed in", id: Identity{ID: "U1", Loaded: true}},
		{name: "signed in without id", id: Identity{SignedIn: true, Loaded: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanMutate(p, tt.id); got != tt.want {
				t.Errorf("CanMutate() = %v, want %v", got, tt.want)
			}
		})
	}

	if CanMutate(Profile{Username: "ghost"}, Identity{SignedIn: true, Loaded: true}) {
		t.Error("CanMutate() should be false when both ids are empty")
	}
}
