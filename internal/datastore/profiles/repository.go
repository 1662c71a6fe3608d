// Package profiles stores application profiles in PostgreSQL.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/cofind/internal/client/models"
)

type Repository interface {
	// GetProfile returns (nil, nil) when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	// CreateProfile returns common.ErrAlreadyExists on a duplicate id or username.
	CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	// UpdateProfile returns common.ErrNotFound when the profile does not exist.
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.Profile, error)
}
