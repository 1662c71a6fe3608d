package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/client/repositories/places"
	"github.com/dmitrijs2005/cofind/internal/client/session"
)

type fakeSessions struct {
	state session.State

	LastID       string
	LastPassword string
	LastExtra    map[string]any
	SignOuts     int
	Refreshes    int
	SignUpResult *models.AuthResponse
	Err          error
}

func (f *fakeSessions) State() session.State { return f.state }
func (f *fakeSessions) SignUp(_ context.Context, id, pw string, extra map[string]any) (*models.AuthResponse, error) {
	f.LastID, f.LastPassword, f.LastExtra = id, pw, extra
	return f.SignUpResult, f.Err
}
func (f *fakeSessions) SignIn(_ context.Context, id, pw string) (*models.AuthResponse, error) {
	f.LastID, f.LastPassword = id, pw
	return &models.AuthResponse{}, f.Err
}
func (f *fakeSessions) SignOut(context.Context) error {
	f.SignOuts++
	f.state.User = nil
	return f.Err
}
func (f *fakeSessions) ResetPassword(_ context.Context, id string) error {
	f.LastID = id
	return f.Err
}
func (f *fakeSessions) UpdatePassword(_ context.Context, pw string) (*models.User, error) {
	f.LastPassword = pw
	return f.state.User, f.Err
}
func (f *fakeSessions) RefreshProfile(context.Context) { f.Refreshes++ }

type fakeProfiles struct {
	LastUpdate   models.ProfileUpdate
	LastFilename string
	LastData     []byte
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, upd models.ProfileUpdate) (*models.Profile, error) {
	f.LastUpdate = upd
	return &models.Profile{Username: "ana"}, nil
}
func (f *fakeProfiles) UploadAvatar(_ context.Context, name string, data []byte) (*models.Profile, error) {
	f.LastFilename, f.LastData = name, data
	return &models.Profile{AvatarURL: "https://cdn/" + name}, nil
}

type fakePlaces struct {
	LastUserID string
	LastList   places.List
	LastPlace  string
	ids        []string
}

func (f *fakePlaces) List(_ context.Context, userID string, list places.List) ([]string, error) {
	f.LastUserID, f.LastList = userID, list
	return f.ids, nil
}
func (f *fakePlaces) Toggle(_ context.Context, userID string, list places.List, placeID string) (bool, error) {
	f.LastUserID, f.LastList, f.LastPlace = userID, list, placeID
	return true, nil
}

type fakeResumer struct{ n int }

func (f *fakeResumer) Resume() { f.n++ }

func signedInState() session.State {
	return session.State{
		Initialized: true,
		User:        &models.User{ID: "u1", Email: "ana@cofind.local"},
		Profile:     &models.Profile{ID: "u1", Username: "ana", Role: models.RoleAdmin},
	}
}

// stubInputs answers text prompts in order and returns password for every
// password prompt.
func stubInputs(t *testing.T, answers []string, password string) {
	t.Helper()
	origPrompt, origSecret := prompt, promptSecret
	t.Cleanup(func() {
		prompt = origPrompt
		promptSecret = origSecret
	})
	prompt = func(_ *bufio.Reader, _ io.Writer, _ string) (string, error) {
		if len(answers) == 0 {
			return "", io.EOF
		}
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}
	promptSecret = func(_ io.Writer, _ string) ([]byte, error) { return []byte(password), nil }
}

func newTestApp(s *fakeSessions) (*App, *fakeProfiles, *fakePlaces, *fakeResumer) {
	p, pl, r := &fakeProfiles{}, &fakePlaces{}, &fakeResumer{}
	a := NewApp(s, p, pl, r)
	a.out = io.Discard
	return a, p, pl, r
}

func TestRegister(t *testing.T) {
	capturePrint(t)
	stubInputs(t, []string{"ana", "Ana Lima"}, "pw123456")
	s := &fakeSessions{state: session.State{Initialized: true}}
	a, _, _, _ := newTestApp(s)

	require.NoError(t, a.Register(context.Background()))
	assert.Equal(t, "ana", s.LastID)
	assert.Equal(t, "pw123456", s.LastPassword)
	assert.Equal(t, map[string]any{"full_name": "Ana Lima"}, s.LastExtra)
}

func TestRegister_RefusedWhenLoggedIn(t *testing.T) {
	a, _, _, _ := newTestApp(&fakeSessions{state: signedInState()})
	require.ErrorIs(t, a.Register(context.Background()), ErrAlreadyLoggedIn)
}

func TestLogin(t *testing.T) {
	capturePrint(t)
	stubInputs(t, []string{"ana"}, "pw")
	s := &fakeSessions{state: session.State{Initialized: true}}
	a, _, _, _ := newTestApp(s)

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "ana", s.LastID)

	s.Err = errors.New("invalid login credentials")
	stubInputs(t, []string{"ana"}, "bad")
	require.EqualError(t, a.Login(context.Background()), "invalid login credentials")
}

func TestLogout_ReturnsProviderErrorAfterClearing(t *testing.T) {
	capturePrint(t)
	s := &fakeSessions{state: signedInState(), Err: errors.New("offline")}
	a, _, _, _ := newTestApp(s)

	require.Error(t, a.Logout(context.Background()))
	assert.Equal(t, 1, s.SignOuts)
	assert.False(t, a.isLoggedIn())
}

func TestWhoAmI(t *testing.T) {
	lines := capturePrint(t)
	a, _, _, _ := newTestApp(&fakeSessions{state: signedInState()})

	require.NoError(t, a.WhoAmI(context.Background()))
	assert.Contains(t, *lines, "username: ana")
	assert.Contains(t, *lines, "role:     admin")
}

func TestGetStatus(t *testing.T) {
	s := &fakeSessions{}
	a, _, _, _ := newTestApp(s)
	assert.Equal(t, "(starting)", a.getStatus())

	s.state = session.State{Initialized: true}
	assert.Equal(t, "(guest)", a.getStatus())

	s.state = signedInState()
	assert.Equal(t, "(ana admin)", a.getStatus())
}

func TestProfile_OnlyChangedFields(t *testing.T) {
	capturePrint(t)
	stubInputs(t, []string{"", "Ana Lima"}, "")
	a, p, _, _ := newTestApp(&fakeSessions{state: signedInState()})

	require.NoError(t, a.Profile(context.Background()))
	assert.Nil(t, p.LastUpdate.Username)
	require.NotNil(t, p.LastUpdate.FullName)
	assert.Equal(t, "Ana Lima", *p.LastUpdate.FullName)
}

func TestAvatar_ReadsFile(t *testing.T) {
	capturePrint(t)
	orig := readFile
	t.Cleanup(func() { readFile = orig })
	readFile = func(name string) ([]byte, error) {
		assert.Equal(t, "/tmp/pics/me.png", name)
		return []byte{0x89, 'P', 'N', 'G'}, nil
	}
	a, p, _, _ := newTestApp(&fakeSessions{state: signedInState()})

	require.NoError(t, a.Avatar(context.Background(), "/tmp/pics/me.png"))
	assert.Equal(t, "me.png", p.LastFilename)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, p.LastData)
}

func TestSignedInOnlyCommands(t *testing.T) {
	a, _, _, _ := newTestApp(&fakeSessions{state: session.State{Initialized: true}})
	ctx := context.Background()

	require.ErrorIs(t, a.Passwd(ctx), ErrNotLoggedIn)
	require.ErrorIs(t, a.Profile(ctx), ErrNotLoggedIn)
	require.ErrorIs(t, a.Avatar(ctx, "x.png"), ErrNotLoggedIn)
	require.ErrorIs(t, a.Refresh(ctx), ErrNotLoggedIn)
}

func TestPasswdResetRefreshResume(t *testing.T) {
	capturePrint(t)
	s := &fakeSessions{state: signedInState()}
	a, _, _, r := newTestApp(s)
	ctx := context.Background()

	stubInputs(t, []string{"ana"}, "new-secret")
	require.NoError(t, a.Passwd(ctx))
	assert.Equal(t, "new-secret", s.LastPassword)

	require.NoError(t, a.Reset(ctx))
	assert.Equal(t, "ana", s.LastID)

	require.NoError(t, a.Refresh(ctx))
	assert.Equal(t, 1, s.Refreshes)

	require.NoError(t, a.Resume(ctx))
	assert.Equal(t, 1, r.n)
}

func TestSaved(t *testing.T) {
	lines := capturePrint(t)
	s := &fakeSessions{state: session.State{Initialized: true}}
	a, _, pl, _ := newTestApp(s)
	ctx := context.Background()

	pl.ids = []string{"p1", "p2"}
	require.NoError(t, a.Saved(ctx, "fav", ""))
	assert.Equal(t, places.Favorites, pl.LastList)
	assert.Empty(t, pl.LastUserID, "guests use local lists")
	assert.Contains(t, *lines, "p1\np2")

	s.state = signedInState()
	require.NoError(t, a.Saved(ctx, "want", "p9"))
	assert.Equal(t, places.WantToVisit, pl.LastList)
	assert.Equal(t, "u1", pl.LastUserID)
	assert.Equal(t, "p9", pl.LastPlace)
	assert.Contains(t, strings.Join(*lines, "\n"), "Added p9")

	require.ErrorIs(t, a.Saved(ctx, "wish", ""), places.ErrUnknownList)
}
