package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/cofind/internal/client/client"
	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/datastore/profiles"
	"github.com/dmitrijs2005/cofind/internal/logging"
)

// MaxAvatarSize is the largest avatar accepted for upload.
const MaxAvatarSize = 2 << 20

var (
	ErrAvatarTooLarge = errors.New("avatar exceeds 2 MiB")
	ErrAvatarEmpty    = errors.New("avatar is empty")
	ErrInvalidField   = errors.New("invalid value")
)

// SessionSource is the part of the session coordinator the profile service
// needs: who is signed in, and a way to reload the cached profile.
type SessionSource interface {
	Session() *models.Session
	RefreshProfile(ctx context.Context)
}

// ProfileService edits the signed-in user's profile.
type ProfileService struct {
	profiles profiles.Repository
	avatars  AvatarStorage
	sessions SessionSource
	log      logging.Logger
	now      func() time.Time
}

func NewProfileService(repo profiles.Repository, avatars AvatarStorage, sessions SessionSource, log logging.Logger) *ProfileService {
	if log == nil {
		log = logging.Nop()
	}
	return &ProfileService{
		profiles: repo,
		avatars:  avatars,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

func (s *ProfileService) userID() (string, error) {
	sess := s.sessions.Session()
	if sess == nil || sess.User == nil {
		return "", client.ErrNoSession
	}
	return sess.User.ID, nil
}

// UpdateProfile writes the changed fields and makes the coordinator reload
// the profile it serves.
func (s *ProfileService) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error) {
	id, err := s.userID()
	if err != nil {
		return nil, err
	}
	if upd.Username != nil {
		trimmed := strings.TrimSpace(*upd.Username)
		if trimmed == "" {
			return nil, fmt.Errorf("username: %w", ErrInvalidField)
		}
		upd.Username = &trimmed
	}

	p, err := s.profiles.UpdateProfile(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.sessions.RefreshProfile(ctx)
	return p, nil
}

// AvatarKey names the object for an avatar uploaded at t.
func AvatarKey(userID, filename string, t time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("avatars/%s-%d.%s", userID, t.UnixMilli(), ext)
}

// UploadAvatar stores data as the user's avatar and points the profile at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, filename string, data []byte) (*models.Profile, error) {
	if len(data) == 0 {
		return nil, ErrAvatarEmpty
	}
	if len(data) > MaxAvatarSize {
		return nil, ErrAvatarTooLarge
	}
	if s.avatars == nil {
		return nil, ErrStorageNotConfigured
	}
	id, err := s.userID()
	if err != nil {
		return nil, err
	}

	key := AvatarKey(id, filename, s.now())
	contentType := mime.TypeByExtension(filepath.Ext(filename))

	url, err := s.avatars.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	s.log.Info(ctx, "avatar uploaded", "user_id", id, "key", key)

	return s.UpdateProfile(ctx, models.ProfileUpdate{AvatarURL: &url})
}
