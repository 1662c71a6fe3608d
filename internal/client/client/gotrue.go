package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/common"
	"github.com/dmitrijs2005/cofind/internal/logging"
)

// SessionStorage persists the raw session blob between runs.
type SessionStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// DefaultRefreshMargin is how long before expiry a session is refreshed.
const DefaultRefreshMargin = time.Minute

// GoTrueClient talks to a GoTrue-compatible identity service over HTTP. It
// keeps the current session in memory and in SessionStorage, and reports
// every change on the Events channel.
type GoTrueClient struct {
	authURL    string
	apiKey     string
	storageKey string

	httpc   *http.Client
	storage SessionStorage
	log     logging.Logger
	now     func() time.Time
	margin  time.Duration

	mu      sync.Mutex
	session *models.Session

	events    chan models.Event
	done      chan struct{}
	closeOnce sync.Once
}

type GoTrueOption func(*GoTrueClient)

func WithHTTPClient(c *http.Client) GoTrueOption {
	return func(g *GoTrueClient) { g.httpc = c }
}

func WithSessionStorage(s SessionStorage) GoTrueOption {
	return func(g *GoTrueClient) { g.storage = s }
}

func WithLogger(l logging.Logger) GoTrueOption {
	return func(g *GoTrueClient) { g.log = l }
}

func WithRefreshMargin(d time.Duration) GoTrueOption {
	return func(g *GoTrueClient) { g.margin = d }
}

func WithClock(now func() time.Time) GoTrueOption {
	return func(g *GoTrueClient) { g.now = now }
}

// NewGoTrueClient builds a client for the project at projectURL. The auth
// endpoints live under projectURL + "/auth/v1"; the project ref (first label
// of the host) names the persisted session key.
func NewGoTrueClient(projectURL, apiKey string, opts ...GoTrueOption) (*GoTrueClient, error) {
	u, err := url.Parse(strings.TrimRight(projectURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse auth url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("auth url %q: scheme and host required", projectURL)
	}
	ref, _, _ := strings.Cut(u.Hostname(), ".")

	g := &GoTrueClient{
		authURL:    u.String() + "/auth/v1",
		apiKey:     apiKey,
		storageKey: fmt.Sprintf(common.AuthTokenKeyFormat, ref),
		httpc:      &http.Client{Timeout: 30 * time.Second},
		log:        logging.Nop(),
		now:        time.Now,
		margin:     DefaultRefreshMargin,
		events:     make(chan models.Event, 16),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// StorageKey is the local storage key of the persisted session.
func (g *GoTrueClient) StorageKey() string { return g.storageKey }

// Events delivers authentication notifications. The channel stays open;
// after Close no further events are sent.
func (g *GoTrueClient) Events() <-chan models.Event { return g.events }

func (g *GoTrueClient) Close() error {
	g.closeOnce.Do(func() { close(g.done) })
	return nil
}

func (g *GoTrueClient) emit(ctx context.Context, kind models.EventKind, s *models.Session) {
	ev := models.NewEvent(kind, s)
	select {
	case g.events <- ev:
	case <-g.done:
	case <-ctx.Done():
		g.log.Warn(ctx, "auth event dropped", "event", kind, "error", ctx.Err())
	}
}

// Start restores the persisted session, refreshing it when it is about to
// expire, and emits INITIAL_SESSION with the result (nil when signed out).
func (g *GoTrueClient) Start(ctx context.Context) error {
	s, err := g.load(ctx)
	if err != nil {
		g.log.Warn(ctx, "discarding unreadable session", "error", err)
		g.forget(ctx)
		s = nil
	}
	if s != nil && s.ExpiresWithin(g.now(), g.margin) {
		s, err = g.refresh(ctx, s.RefreshToken)
		if err != nil {
			g.log.Warn(ctx, "restored session could not be refreshed", "error", err)
			if errors.Is(err, ErrUnauthorized) {
				g.forget(ctx)
			}
			s = nil
		}
	}
	g.setSession(s)
	g.emit(ctx, models.EventInitialSession, s)
	return nil
}

func (g *GoTrueClient) load(ctx context.Context) (*models.Session, error) {
	if g.storage == nil {
		return nil, nil
	}
	raw, err := g.storage.Get(ctx, g.storageKey)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeSession(raw, g.now())
}

func (g *GoTrueClient) persist(ctx context.Context, s *models.Session) {
	if g.storage == nil {
		return
	}
	raw, err := encodeSession(s)
	if err == nil {
		err = g.storage.Set(ctx, g.storageKey, raw)
	}
	if err != nil {
		g.log.Warn(ctx, "persist session", "error", err)
	}
}

func (g *GoTrueClient) forget(ctx context.Context) {
	if g.storage == nil {
		return
	}
	if err := g.storage.Delete(ctx, g.storageKey); err != nil {
		g.log.Warn(ctx, "forget session", "error", err)
	}
}

func (g *GoTrueClient) setSession(s *models.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = s.Clone()
}

func (g *GoTrueClient) current() *models.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.Clone()
}

// adopt stores, persists and announces a new session.
func (g *GoTrueClient) adopt(ctx context.Context, kind models.EventKind, s *models.Session) {
	g.setSession(s)
	g.persist(ctx, s)
	g.emit(ctx, kind, s)
}

// CurrentSession returns the live session, refreshing it first when it is
// about to expire. It returns (nil, nil) when signed out.
func (g *GoTrueClient) CurrentSession(ctx context.Context) (*models.Session, error) {
	s := g.current()
	if s == nil || !s.ExpiresWithin(g.now(), g.margin) {
		return s, nil
	}
	return g.Refresh(ctx)
}

// CurrentUser asks the service for the user behind the current access token.
func (g *GoTrueClient) CurrentUser(ctx context.Context) (*models.User, error) {
	s, err := g.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	var u userDTO
	if err := g.do(ctx, http.MethodGet, "/user", nil, s.AccessToken, nil, &u); err != nil {
		return nil, err
	}
	return u.model(), nil
}

func (g *GoTrueClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*models.AuthResponse, error) {
	req := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		req["data"] = metadata
	}
	var resp signupResponse
	if err := g.do(ctx, http.MethodPost, "/signup", nil, "", req, &resp); err != nil {
		return nil, err
	}

	if s := resp.tokenResponse.session(g.now()); s != nil {
		g.adopt(ctx, models.EventSignedIn, s)
		return &models.AuthResponse{User: s.User.Clone(), Session: s}, nil
	}
	// confirmation pending: no session yet
	return &models.AuthResponse{User: resp.userDTO.model()}, nil
}

func (g *GoTrueClient) SignIn(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	q := url.Values{"grant_type": {"password"}}
	var resp tokenResponse
	if err := g.do(ctx, http.MethodPost, "/token", q, "", map[string]string{"email": email, "password": password}, &resp); err != nil {
		return nil, err
	}
	s := resp.session(g.now())
	if s == nil {
		return nil, &APIError{Status: http.StatusOK, Message: "token response without access token"}
	}
	g.adopt(ctx, models.EventSignedIn, s)
	return &models.AuthResponse{User: s.User.Clone(), Session: s}, nil
}

// Refresh exchanges the refresh token for a new session and emits
// TOKEN_REFRESHED. A rejected refresh token signs the client out.
func (g *GoTrueClient) Refresh(ctx context.Context) (*models.Session, error) {
	s := g.current()
	if s == nil || s.RefreshToken == "" {
		return nil, ErrNoSession
	}
	next, err := g.refresh(ctx, s.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			g.setSession(nil)
			g.forget(ctx)
			g.emit(ctx, models.EventSignedOut, nil)
		}
		return nil, err
	}
	g.adopt(ctx, models.EventTokenRefreshed, next)
	return next, nil
}

func (g *GoTrueClient) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	q := url.Values{"grant_type": {"refresh_token"}}
	var resp tokenResponse
	if err := g.do(ctx, http.MethodPost, "/token", q, "", map[string]string{"refresh_token": refreshToken}, &resp); err != nil {
		return nil, err
	}
	s := resp.session(g.now())
	if s == nil {
		return nil, &APIError{Status: http.StatusOK, Message: "refresh response without access token", kind: ErrUnauthorized}
	}
	return s, nil
}

// SignOut ends the session on the service and locally. The local session is
// dropped even when the service call fails; an already invalid token is not
// an error.
func (g *GoTrueClient) SignOut(ctx context.Context) error {
	s := g.current()
	g.setSession(nil)
	g.forget(ctx)
	defer g.emit(ctx, models.EventSignedOut, nil)

	if s == nil {
		return nil
	}
	err := g.do(ctx, http.MethodPost, "/logout", nil, s.AccessToken, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound) {
		return nil
	}
	return err
}

func (g *GoTrueClient) ResetPassword(ctx context.Context, email, redirectTo string) error {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	return g.do(ctx, http.MethodPost, "/recover", q, "", map[string]string{"email": email}, nil)
}

// UpdatePassword changes the password of the signed-in user and emits
// USER_UPDATED.
func (g *GoTrueClient) UpdatePassword(ctx context.Context, password string) (*models.User, error) {
	s, err := g.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	var u userDTO
	if err := g.do(ctx, http.MethodPut, "/user", nil, s.AccessToken, map[string]string{"password": password}, &u); err != nil {
		return nil, err
	}
	user := u.model()
	if user != nil {
		s.User = user
	}
	g.adopt(ctx, models.EventUserUpdated, s)
	return user.Clone(), nil
}

// Ping reports whether the identity service answers its health endpoint.
func (g *GoTrueClient) Ping(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, "/health", nil, "", nil, nil)
}

// AutoRefresh refreshes the session whenever it gets within the refresh
// margin of expiry, checking every interval, until ctx is done.
func (g *GoTrueClient) AutoRefresh(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.done:
			return nil
		case <-t.C:
			s := g.current()
			if s == nil || !s.ExpiresWithin(g.now(), g.margin) {
				continue
			}
			if _, err := g.Refresh(ctx); err != nil {
				g.log.Warn(ctx, "auto refresh", "error", err)
			}
		}
	}
}

func (g *GoTrueClient) do(ctx context.Context, method, path string, query url.Values, bearer string, in, out any) error {
	endpoint := g.authURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set(common.APIKeyHeaderName, g.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = g.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := g.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
