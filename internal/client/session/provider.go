package session

import (
	"context"

	"github.com/dmitrijs2005/cofind/internal/client/models"
)

// IdentityProvider is the authentication backend.
type IdentityProvider interface {
	// CurrentSession returns the live session or nil when signed out.
	CurrentSession(ctx context.Context) (*models.Session, error)
	// CurrentUser returns the authoritative user record for the live session.
	CurrentUser(ctx context.Context) (*models.User, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*models.AuthResponse, error)
	SignIn(ctx context.Context, email, password string) (*models.AuthResponse, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, password string) (*models.User, error)
}

// UserSource is the part of IdentityProvider the profile fetcher needs.
type UserSource interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// ProfileStore reads and creates profiles. GetProfile returns (nil, nil)
// when no profile exists; CreateProfile returns common.ErrAlreadyExists when
// one appeared in the meantime.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
}

// FavoritesMigrator uploads lists collected while signed out.
type FavoritesMigrator interface {
	Migrate(ctx context.Context, userID string) error
}

// ArtifactStore holds locally persisted session artifacts.
type ArtifactStore interface {
	DeleteByPrefix(ctx context.Context, prefixes ...string) (int64, error)
}
