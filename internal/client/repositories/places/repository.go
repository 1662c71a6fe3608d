// Package places stores the place lists a guest builds before signing in
// (favorites and want-to-visit) in the local SQLite database. Once the user
// signs in the lists are uploaded by the favorites migration service.
package places

import (
	"context"
	"errors"
)

// List names one of the locally kept place lists.
type List string

const (
	Favorites   List = "favorites"
	WantToVisit List = "want_to_visit"
)

func (l List) Valid() bool {
	return l == Favorites || l == WantToVisit
}

// ErrUnknownList is returned for list names other than Favorites and WantToVisit.
var ErrUnknownList = errors.New("unknown place list")

type Repository interface {
	// PlaceIDs returns the ids in the order they were added.
	PlaceIDs(ctx context.Context, list List) ([]string, error)
	// Add is a no-op when the place is already on the list.
	Add(ctx context.Context, list List, placeID string) error
	Remove(ctx context.Context, list List, placeID string) error
	// Toggle adds or removes the place and reports whether it is now listed.
	Toggle(ctx context.Context, list List, placeID string) (bool, error)
}
