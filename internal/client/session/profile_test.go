package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/common"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

type applied struct {
	mu       sync.Mutex
	fetcher  *ProfileFetcher
	profiles []*models.Profile
}

func (a *applied) apply(seq uint64, p *models.Profile) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.fetcher.Current(seq) {
		return false
	}
	a.profiles = append(a.profiles, p)
	return true
}

func (a *applied) usernames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, p := range a.profiles {
		if p == nil {
			out = append(out, "<nil>")
			continue
		}
		out = append(out, p.Username)
	}
	return out
}

func newTestFetcher(store ProfileStore, users UserSource) *ProfileFetcher {
	exec := retryx.NewExecutor(retryx.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	return NewProfileFetcher(store, users, FetcherWithExecutor(exec, retryx.DefaultPolicy()))
}

func TestFetch_OnlyLatestIsApplied(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		&models.Profile{ID: "a", Username: "alpha"},
		&models.Profile{ID: "b", Username: "beta"},
	)
	f := newTestFetcher(store, &fakeProvider{})
	got := applied{fetcher: f}

	release := store.hold("a")
	resA := make(chan *models.Profile, 1)
	go func() { resA <- f.Fetch(ctx, "a", got.apply) }()
	waitEntered(t, store, "a")

	resB := f.Fetch(ctx, "b", got.apply)
	require.NotNil(t, resB)
	assert.Equal(t, "beta", resB.Username)

	release()
	stale := <-resA
	require.NotNil(t, stale, "stale result is still returned")
	assert.Equal(t, "alpha", stale.Username)

	assert.Equal(t, []string{"beta"}, got.usernames())
}

func TestFetch_StaleMissingProfileIsNotCreated(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(&models.Profile{ID: "b", Username: "beta"})
	f := newTestFetcher(store, &fakeProvider{User: &models.User{ID: "a", Email: "a@x.io"}})
	got := applied{fetcher: f}

	release := store.hold("a")
	resA := make(chan *models.Profile, 1)
	go func() { resA <- f.Fetch(ctx, "a", got.apply) }()
	waitEntered(t, store, "a")

	f.Fetch(ctx, "b", got.apply)
	release()

	assert.Nil(t, <-resA)
	assert.Empty(t, store.Creates)
	assert.Equal(t, []string{"beta"}, got.usernames())
}

func TestFetch_InvalidateDropsInFlight(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(&models.Profile{ID: "a", Username: "alpha"})
	f := newTestFetcher(store, &fakeProvider{})
	got := applied{fetcher: f}

	release := store.hold("a")
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Fetch(ctx, "a", got.apply)
	}()
	waitEntered(t, store, "a")

	f.Invalidate()
	release()
	<-done

	assert.Empty(t, got.usernames())
}

func TestFetch_CreatesMinimalProfile(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	user := &models.User{ID: "u1", Email: "bob@cofind.local", Metadata: map[string]any{"username": "bobby"}}
	f := newTestFetcher(store, &fakeProvider{User: user})
	got := applied{fetcher: f}

	p := f.Fetch(ctx, "u1", got.apply)
	require.NotNil(t, p)
	assert.Equal(t, "bobby", p.Username)
	assert.Equal(t, "bobby", p.FullName)
	assert.Equal(t, models.RoleUser, p.Role)
	assert.Equal(t, []string{"bobby"}, got.usernames())
}

// racingStore simulates another client creating the row first.
type racingStore struct {
	*fakeStore
}

func (r racingStore) CreateProfile(_ context.Context, p *models.Profile) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Creates = append(r.Creates, p)
	r.profiles[p.ID] = &models.Profile{ID: p.ID, Username: "winner", Role: models.RoleUser}
	return nil, common.ErrAlreadyExists
}

func TestFetch_CreateRaceRereads(t *testing.T) {
	ctx := context.Background()
	store := racingStore{newFakeStore()}
	f := newTestFetcher(store, &fakeProvider{User: &models.User{ID: "u1", Email: "x@y.z"}})

	p := f.Fetch(ctx, "u1", nil)
	require.NotNil(t, p)
	assert.Equal(t, "winner", p.Username)
	assert.Equal(t, []string{"u1", "u1"}, store.gets())
}

func TestFetch_UserMismatchAppliesNil(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	f := newTestFetcher(store, &fakeProvider{User: &models.User{ID: "someone-else"}})
	got := applied{fetcher: f}

	assert.Nil(t, f.Fetch(ctx, "u1", got.apply))
	assert.Empty(t, store.Creates)
	assert.Equal(t, []string{"<nil>"}, got.usernames())
}

func TestFetch_StoreErrorAppliesNil(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.GetErr = errors.New("permission denied for table profiles")
	f := newTestFetcher(store, &fakeProvider{})
	got := applied{fetcher: f}

	assert.Nil(t, f.Fetch(ctx, "u1", got.apply))
	assert.Equal(t, []string{"<nil>"}, got.usernames())
	assert.Len(t, store.gets(), 1, "non-transient errors are not retried")
}

func TestMinimalProfile(t *testing.T) {
	tests := []struct {
		name         string
		userID       string
		user         *models.User
		wantUsername string
		wantFullName string
	}{
		{
			name:         "metadata wins",
			userID:       "u1",
			user:         &models.User{Email: "a@b.c", Metadata: map[string]any{"username": "meta", "full_name": "Meta Name"}},
			wantUsername: "meta",
			wantFullName: "Meta Name",
		},
		{
			name:         "email local part",
			userID:       "u1",
			user:         &models.User{Email: "carol@cofind.local"},
			wantUsername: "carol",
			wantFullName: "carol",
		},
		{
			name:         "id prefix",
			userID:       "12345678-aaaa-bbbb",
			user:         &models.User{},
			wantUsername: "user_12345678",
			wantFullName: "user_12345678",
		},
		{
			name:         "short id",
			userID:       "abc",
			user:         nil,
			wantUsername: "user_abc",
			wantFullName: "user_abc",
		},
		{
			name:         "non-string metadata ignored",
			userID:       "u1",
			user:         &models.User{Email: "dave@x.io", Metadata: map[string]any{"username": 42}},
			wantUsername: "dave",
			wantFullName: "dave",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MinimalProfile(tt.userID, tt.user)
			assert.Equal(t, tt.userID, p.ID)
			assert.Equal(t, tt.wantUsername, p.Username)
			assert.Equal(t, tt.wantFullName, p.FullName)
			assert.Equal(t, models.RoleUser, p.Role)
		})
	}
}
