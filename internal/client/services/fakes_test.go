package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cofind/internal/client/client"
	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/datastore/saved"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

const testUserID = "3f6c1b7e-8d4a-4c1e-9a55-2b7d9e0f1a23"

func openLocal(t *testing.T) *client.Repositories {
	t.Helper()
	repos, err := client.OpenRepositories(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

func fastExecutor() *retryx.Executor {
	return retryx.NewExecutor(retryx.WithSleep(func(context.Context, time.Duration) error { return nil }))
}

func fastPolicy() retryx.Policy {
	return retryx.Policy{
		MaxRetries:          2,
		Timeout:             time.Second,
		BaseDelay:           time.Millisecond,
		MaxDelay:            time.Millisecond,
		RetryOnTimeout:      true,
		RetryOnNetworkError: true,
	}
}

type savedKey struct {
	table   saved.Table
	user    string
	placeID string
}

// fakeSaved is an in-memory saved.Repository. failFor makes Save fail for
// the listed place ids.
type fakeSaved struct {
	mu      sync.Mutex
	rows    map[savedKey]bool
	order   []savedKey
	failFor map[string]error
	listErr error
	Saves   int
	Removes int
}

func newFakeSaved() *fakeSaved {
	return &fakeSaved{rows: map[savedKey]bool{}, failFor: map[string]error{}}
}

func (f *fakeSaved) Save(_ context.Context, table saved.Table, userID, placeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Saves++
	if err := f.failFor[placeID]; err != nil {
		return false, err
	}
	k := savedKey{table, userID, placeID}
	if f.rows[k] {
		return false, nil
	}
	f.rows[k] = true
	f.order = append(f.order, k)
	return true, nil
}

func (f *fakeSaved) PlaceIDs(_ context.Context, table saved.Table, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for _, k := range f.order {
		if f.rows[k] && k.table == table && k.user == userID {
			ids = append(ids, k.placeID)
		}
	}
	return ids, nil
}

func (f *fakeSaved) Remove(_ context.Context, table saved.Table, userID, placeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removes++
	delete(f.rows, savedKey{table, userID, placeID})
	return nil
}

type fakeProfiles struct {
	LastUserID string
	LastUpdate models.ProfileUpdate
	Err        error
}

func (f *fakeProfiles) GetProfile(context.Context, string) (*models.Profile, error) {
	return nil, nil
}

func (f *fakeProfiles) CreateProfile(_ context.Context, p *models.Profile) (*models.Profile, error) {
	return p, nil
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, userID string, upd models.ProfileUpdate) (*models.Profile, error) {
	f.LastUserID = userID
	f.LastUpdate = upd
	if f.Err != nil {
		return nil, f.Err
	}
	p := &models.Profile{ID: userID, Username: "ana", Role: models.RoleUser}
	if upd.Username != nil {
		p.Username = *upd.Username
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	return p, nil
}

type fakeSessions struct {
	session   *models.Session
	Refreshes int
}

func (f *fakeSessions) Session() *models.Session { return f.session }

func (f *fakeSessions) RefreshProfile(context.Context) { f.Refreshes++ }

func signedIn() *fakeSessions {
	return &fakeSessions{session: &models.Session{AccessToken: "t", User: &models.User{ID: testUserID}}}
}

type fakeAvatars struct {
	LastKey         string
	LastContentType string
	LastData        []byte
	URL             string
	Err             error
}

func (f *fakeAvatars) Upload(_ context.Context, key, contentType string, data []byte) (string, error) {
	f.LastKey = key
	f.LastContentType = contentType
	f.LastData = data
	if f.Err != nil {
		return "", f.Err
	}
	return f.URL + key, nil
}

var errBoom = errors.New("boom")
