// Package saved stores the signed-in user's place lists (favorites and
// want-to-visit) in PostgreSQL.
package saved

import (
	"context"
	"errors"
)

// Table names one of the saved-place tables.
type Table string

const (
	Favorites   Table = "favorites"
	WantToVisit Table = "want_to_visit"
)

var ErrUnknownTable = errors.New("unknown saved-place table")

type Repository interface {
	// Save inserts the pair and reports false when it was already there.
	Save(ctx context.Context, table Table, userID, placeID string) (bool, error)
	PlaceIDs(ctx context.Context, table Table, userID string) ([]string, error)
	Remove(ctx context.Context, table Table, userID, placeID string) error
}
