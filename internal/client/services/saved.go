package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cofind/internal/client/repositories/places"
	"github.com/dmitrijs2005/cofind/internal/datastore/saved"
	"github.com/dmitrijs2005/cofind/internal/logging"
)

// SavedPlacesService keeps the local lists current for guests and mirrors
// changes to the remote lists while someone is signed in.
type SavedPlacesService struct {
	local  places.Repository
	remote saved.Repository
	log    logging.Logger
}

func NewSavedPlacesService(local places.Repository, remote saved.Repository, log logging.Logger) *SavedPlacesService {
	if log == nil {
		log = logging.Nop()
	}
	return &SavedPlacesService{local: local, remote: remote, log: log}
}

func tableFor(list places.List) (saved.Table, error) {
	switch list {
	case places.Favorites:
		return saved.Favorites, nil
	case places.WantToVisit:
		return saved.WantToVisit, nil
	}
	return "", fmt.Errorf("%w: %q", places.ErrUnknownList, list)
}

// List returns the remote list for a signed-in user and the local one for
// guests. A failing remote read falls back to the local list.
func (s *SavedPlacesService) List(ctx context.Context, userID string, list places.List) ([]string, error) {
	table, err := tableFor(list)
	if err != nil {
		return nil, err
	}
	if userID == "" || s.remote == nil {
		return s.local.PlaceIDs(ctx, list)
	}
	ids, err := s.remote.PlaceIDs(ctx, table, userID)
	if err != nil {
		s.log.Warn(ctx, "remote list unavailable, using local", "list", string(list), "error", err)
		return s.local.PlaceIDs(ctx, list)
	}
	return ids, nil
}

// Toggle flips the place on the local list and, for a signed-in user, on the
// remote list too. It reports whether the place is now listed. Remote
// failures are logged; the local change stands.
func (s *SavedPlacesService) Toggle(ctx context.Context, userID string, list places.List, placeID string) (bool, error) {
	table, err := tableFor(list)
	if err != nil {
		return false, err
	}
	listed, err := s.local.Toggle(ctx, list, placeID)
	if err != nil {
		return false, err
	}
	if userID == "" || s.remote == nil {
		return listed, nil
	}

	if listed {
		_, err = s.remote.Save(ctx, table, userID, placeID)
	} else {
		err = s.remote.Remove(ctx, table, userID, placeID)
	}
	if err != nil {
		s.log.Warn(ctx, "remote toggle failed", "list", string(list), "place_id", placeID, "error", err)
	}
	return listed, nil
}
