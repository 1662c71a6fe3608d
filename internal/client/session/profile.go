package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/common"
	"github.com/dmitrijs2005/cofind/internal/logging"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

// ProfileFetcher loads the profile of a user, creating a minimal one when
// none exists yet. Overlapping fetches are allowed; only the most recently
// started one may apply its result.
type ProfileFetcher struct {
	profiles ProfileStore
	users    UserSource
	log      logging.Logger
	exec     *retryx.Executor
	policy   retryx.Policy

	seq atomic.Uint64
}

type FetcherOption func(*ProfileFetcher)

func FetcherWithLogger(l logging.Logger) FetcherOption {
	return func(f *ProfileFetcher) { f.log = l }
}

func FetcherWithExecutor(e *retryx.Executor, p retryx.Policy) FetcherOption {
	return func(f *ProfileFetcher) {
		f.exec = e
		f.policy = p
	}
}

func NewProfileFetcher(profiles ProfileStore, users UserSource, opts ...FetcherOption) *ProfileFetcher {
	f := &ProfileFetcher{
		profiles: profiles,
		users:    users,
		log:      logging.Nop(),
		policy:   retryx.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Invalidate makes every fetch in flight stale.
func (f *ProfileFetcher) Invalidate() { f.seq.Add(1) }

// Reset sets the sequence back to zero. Only call it once nothing may apply
// results any more.
func (f *ProfileFetcher) Reset() { f.seq.Store(0) }

// Current reports whether seq belongs to the most recently started fetch.
func (f *ProfileFetcher) Current(seq uint64) bool { return f.seq.Load() == seq }

// ApplyFunc stores the result of fetch seq. It must check Current(seq) and
// store p under the same lock that guards callers of Invalidate, and report
// whether p was stored.
type ApplyFunc func(seq uint64, p *models.Profile) bool

// Fetch returns the profile of userID and hands the result (nil when the
// profile could not be loaded) to apply. A stale result is still returned.
func (f *ProfileFetcher) Fetch(ctx context.Context, userID string, apply ApplyFunc) *models.Profile {
	mySeq := f.seq.Add(1)
	log := f.log.With("user_id", userID, "fetch_seq", mySeq)

	commit := func(p *models.Profile) *models.Profile {
		stored := f.Current(mySeq)
		if apply != nil {
			stored = apply(mySeq, p)
		}
		if !stored {
			log.Debug(ctx, "dropping stale profile result")
		}
		return p
	}

	p, err := f.get(ctx, userID)
	if err != nil {
		log.Error(ctx, "fetch profile", "error", err)
		return commit(nil)
	}
	if p != nil {
		return commit(p)
	}

	if !f.Current(mySeq) {
		log.Debug(ctx, "profile missing but fetch is stale, not creating")
		return nil
	}

	p, err = f.create(ctx, userID)
	if err != nil {
		log.Error(ctx, "create profile", "error", err)
		return commit(nil)
	}
	log.Info(ctx, "created profile", "username", p.Username)
	return commit(p)
}

func (f *ProfileFetcher) get(ctx context.Context, userID string) (*models.Profile, error) {
	res := retryx.Execute(ctx, f.exec, "get_profile", f.policy, func(ctx context.Context) (*models.Profile, error) {
		return f.profiles.GetProfile(ctx, userID)
	})
	return res.Value, res.Err
}

func (f *ProfileFetcher) create(ctx context.Context, userID string) (*models.Profile, error) {
	ures := retryx.Execute(ctx, f.exec, "get_user", f.policy, func(ctx context.Context) (*models.User, error) {
		return f.users.CurrentUser(ctx)
	})
	if ures.Err != nil {
		return nil, ures.Err
	}
	user := ures.Value
	if user == nil || user.ID != userID {
		return nil, common.ErrUnauthorized
	}

	minimal := MinimalProfile(userID, user)
	cres := retryx.Execute(ctx, f.exec, "create_profile", f.policy, func(ctx context.Context) (*models.Profile, error) {
		return f.profiles.CreateProfile(ctx, minimal)
	})
	if errors.Is(cres.Err, common.ErrAlreadyExists) {
		// lost a race with another client creating the same row
		return f.get(ctx, userID)
	}
	if cres.Err != nil {
		return nil, cres.Err
	}
	if cres.Value == nil {
		return minimal, nil
	}
	return cres.Value, nil
}

// MinimalProfile builds the profile created for a user that has none:
// username from metadata, else the local part of the email, else "user_"
// plus the first eight characters of the id; full name from metadata, else
// the username.
func MinimalProfile(userID string, u *models.User) *models.Profile {
	username := u.MetadataString("username")
	if username == "" && u != nil {
		username, _, _ = strings.Cut(u.Email, "@")
	}
	if username == "" {
		id := userID
		if len(id) > 8 {
			id = id[:8]
		}
		username = "user_" + id
	}

	fullName := u.MetadataString("full_name")
	if fullName == "" {
		fullName = username
	}

	return &models.Profile{
		ID:       userID,
		Username: username,
		FullName: fullName,
		Role:     models.RoleUser,
	}
}
