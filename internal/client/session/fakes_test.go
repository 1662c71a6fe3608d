package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/common"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

// ---- helpers ----

func newSession(userID, email string) *models.Session {
	return &models.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         &models.User{ID: userID, Email: email},
	}
}

// fastExecutor never sleeps between attempts.
func fastExecutor() Option {
	exec := retryx.NewExecutor(retryx.WithSleep(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
	return WithExecutor(exec, retryx.DefaultPolicy())
}

// ---- fake identity provider ----

type fakeProvider struct {
	mu sync.Mutex

	Session      *models.Session
	SessionErr   error
	SessionPanic bool
	SessionCalls int

	User    *models.User
	UserErr error

	SignUpRet *models.AuthResponse
	SignUpErr error
	SignInRet *models.AuthResponse
	SignInErr error

	SignOutErr   error
	SignOutCalls int

	ResetErr      error
	UpdatePwRet   *models.User
	UpdatePwErr   error
	UpdatePwPanic bool

	LastSignUpEmail    string
	LastSignUpMeta     map[string]any
	LastSignInEmail    string
	LastSignInPassword string
	LastResetEmail     string
	LastResetRedirect  string
	LastPassword       string
}

func (f *fakeProvider) CurrentSession(context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SessionCalls++
	if f.SessionPanic {
		panic("session storage corrupted")
	}
	return f.Session.Clone(), f.SessionErr
}

func (f *fakeProvider) CurrentUser(context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UserErr != nil {
		return nil, f.UserErr
	}
	if f.User != nil {
		return f.User, nil
	}
	if f.Session != nil {
		return f.Session.Clone().User, nil
	}
	return nil, common.ErrUnauthorized
}

func (f *fakeProvider) SignUp(_ context.Context, email, _ string, meta map[string]any) (*models.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastSignUpEmail = email
	f.LastSignUpMeta = meta
	return f.SignUpRet, f.SignUpErr
}

func (f *fakeProvider) SignIn(_ context.Context, email, password string) (*models.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastSignInEmail = email
	f.LastSignInPassword = password
	return f.SignInRet, f.SignInErr
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignOutCalls++
	return f.SignOutErr
}

func (f *fakeProvider) ResetPassword(_ context.Context, email, redirectTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastResetEmail = email
	f.LastResetRedirect = redirectTo
	return f.ResetErr
}

func (f *fakeProvider) UpdatePassword(_ context.Context, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastPassword = password
	if f.UpdatePwPanic {
		panic("nil user")
	}
	return f.UpdatePwRet, f.UpdatePwErr
}

// ---- fake profile store ----

// fakeStore holds profiles in memory. GetProfile for a user listed in holds
// signals entered and then blocks until the hold channel is closed.
type fakeStore struct {
	mu sync.Mutex

	profiles map[string]*models.Profile
	holds    map[string]chan struct{}
	entered  chan string

	GetErr    error
	GetErrs   map[string]error
	CreateErr error

	Gets    []string
	Creates []*models.Profile
}

func newFakeStore(profiles ...*models.Profile) *fakeStore {
	s := &fakeStore{
		profiles: map[string]*models.Profile{},
		holds:    map[string]chan struct{}{},
		entered:  make(chan string, 16),
	}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

// hold makes the next GetProfile for userID block until release is called.
func (s *fakeStore) hold(userID string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[userID] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (s *fakeStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	s.Gets = append(s.Gets, userID)
	ch, held := s.holds[userID]
	delete(s.holds, userID)
	s.mu.Unlock()

	if held {
		s.entered <- userID
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	if err := s.GetErrs[userID]; err != nil {
		return nil, err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (s *fakeStore) CreateProfile(_ context.Context, p *models.Profile) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Creates = append(s.Creates, p)
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	if _, ok := s.profiles[p.ID]; ok {
		return nil, common.ErrAlreadyExists
	}
	c := *p
	s.profiles[p.ID] = &c
	return p, nil
}

func (s *fakeStore) gets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Gets...)
}

// ---- fake collaborators ----

type fakeMigrator struct {
	mu    sync.Mutex
	Err   error
	Users []string
	done  chan struct{}
}

func (m *fakeMigrator) Migrate(_ context.Context, userID string) error {
	m.mu.Lock()
	m.Users = append(m.Users, userID)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.Err
}

type fakeArtifacts struct {
	Prefixes []string
	Calls    int
	Err      error
}

func (a *fakeArtifacts) DeleteByPrefix(_ context.Context, prefixes ...string) (int64, error) {
	a.Calls++
	a.Prefixes = prefixes
	return int64(len(prefixes)), a.Err
}
