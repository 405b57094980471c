package controller

import (
	"time"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
)

// State is the lifecycle stage of a Controller.
//
//	Idle -> Loading -> Loaded | Absent | LoadError
//	Loaded -> Saving -> Loaded
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Absent
	LoadError
	Saving
)

var stateNames = [...]string{
	Idle:      "idle",
	Loading:   "loading",
	Loaded:    "loaded",
	Absent:    "absent",
	LoadError: "load_error",
	Saving:    "saving",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) hasProfile() bool { return s == Loaded || s == Saving }

// Snapshot is a point-in-time copy of the page state. Owned by the caller.
type Snapshot struct {
	Username  string
	OwnerID   string
	Theme     domain.Theme
	CreatedAt time.Time

	// Links is the filtered view. Total counts every link.
	Links []domain.LinkRecord
	Total int

	SearchField domain.FilterField
	SearchTerm  string

	CanMutate bool
	State     State
	Err       error
}
