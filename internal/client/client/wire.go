package client

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/cofind/internal/client/models"
)

type userDTO struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (u *userDTO) model() *models.User {
	if u == nil || u.ID == "" {
		return nil
	}
	return &models.User{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata, CreatedAt: u.CreatedAt}
}

func userToDTO(u *models.User) *userDTO {
	if u == nil {
		return nil
	}
	return &userDTO{ID: u.ID, Email: u.Email, UserMetadata: u.Metadata, CreatedAt: u.CreatedAt}
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type,omitempty"`
	ExpiresIn    int64    `json:"expires_in,omitempty"`
	ExpiresAt    int64    `json:"expires_at,omitempty"`
	RefreshToken string   `json:"refresh_token"`
	User         *userDTO `json:"user,omitempty"`
}

// signupResponse is either a token response (auto-confirmed accounts) or a
// bare user (confirmation pending).
type signupResponse struct {
	tokenResponse
	userDTO
}

// accessClaims are the access-token claims the client relies on.
type accessClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// parseClaims decodes the access token without verifying it. The token is
// only ever sent back to the service that issued it; the client just needs
// the subject and expiry.
func parseClaims(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// session builds a models.Session from a token response, filling gaps from
// the access-token claims.
func (t *tokenResponse) session(now time.Time) *models.Session {
	if t.AccessToken == "" {
		return nil
	}
	s := &models.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         t.User.model(),
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	if s.User != nil && !s.ExpiresAt.IsZero() {
		return s
	}
	claims, err := parseClaims(t.AccessToken)
	if err != nil {
		return s
	}
	if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	if s.User == nil && claims.Subject != "" {
		s.User = &models.User{ID: claims.Subject, Email: claims.Email, Metadata: claims.UserMetadata}
	}
	return s
}

// storedSession is what the client keeps in local storage.
type storedSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	User         *userDTO `json:"user"`
}

func encodeSession(s *models.Session) ([]byte, error) {
	st := storedSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         userToDTO(s.User),
	}
	if !s.ExpiresAt.IsZero() {
		st.ExpiresAt = s.ExpiresAt.Unix()
	}
	return json.Marshal(st)
}

func decodeSession(b []byte, now time.Time) (*models.Session, error) {
	var st storedSession
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	t := tokenResponse{AccessToken: st.AccessToken, RefreshToken: st.RefreshToken, ExpiresAt: st.ExpiresAt, User: st.User}
	return t.session(now), nil
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// decodeAPIError turns a non-2xx response into an *APIError.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	apiErr := &APIError{Status: resp.StatusCode}
	apiErr.Code = firstNonEmpty(eb.ErrorCode, eb.Error)
	apiErr.Message = firstNonEmpty(eb.ErrorDescription, eb.Msg, eb.Message, strings.TrimSpace(string(body)), http.StatusText(resp.StatusCode))

	lower := strings.ToLower(apiErr.Code + " " + apiErr.Message)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
		apiErr.Code == "invalid_grant", apiErr.Code == "invalid_credentials":
		apiErr.kind = ErrUnauthorized
	case apiErr.Code == "user_already_exists", strings.Contains(lower, "already registered"):
		apiErr.kind = ErrUserExists
	case resp.StatusCode == http.StatusBadGateway, resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		apiErr.kind = ErrUnavailable
	}
	return apiErr
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
