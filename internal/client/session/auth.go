package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

// DefaultEmailDomain is appended to bare usernames to form the login email.
const DefaultEmailDomain = "cofind.local"

// NormalizeUsername lowercases a username and drops all whitespace in it.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.Join(strings.Fields(username), ""))
}

// ToEmail maps a username onto the internal email address the identity
// provider knows. Identifiers that already contain "@" are used as is.
func ToEmail(usernameOrEmail, domain string) (string, error) {
	id := strings.TrimSpace(usernameOrEmail)
	if id == "" {
		return "", ErrInvalidUsername
	}
	if strings.Contains(id, "@") {
		return id, nil
	}
	if domain == "" {
		domain = DefaultEmailDomain
	}
	return NormalizeUsername(id) + "@" + domain, nil
}

// passThrough runs one identity-provider call with loading set for its
// duration. Timeouts and transport failures are retried by the coordinator's
// policy; a panic comes back as an error wrapping ErrProviderPanic.
func passThrough[T any](ctx context.Context, c *Coordinator, op string, fn func(ctx context.Context, p IdentityProvider) (T, error)) (value T, err error) {
	if c.provider == nil {
		return value, ErrNotConfigured
	}
	c.update(func() { c.loading = true })
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(ctx, "identity provider panicked", "operation", op, "panic", fmt.Sprint(r))
			err = fmt.Errorf("%s: %w: %v", op, ErrProviderPanic, r)
		}
		c.update(func() { c.loading = false })
	}()

	res := retryx.Execute(ctx, c.exec, op, c.policy, func(ctx context.Context) (T, error) {
		return fn(ctx, c.provider)
	})
	if errors.Is(res.Err, retryx.ErrPanic) {
		c.log.Error(ctx, "identity provider panicked", "operation", op, "error", res.Err)
		return res.Value, fmt.Errorf("%s: %w: %w", op, ErrProviderPanic, res.Err)
	}
	return res.Value, res.Err
}

// SignUp registers a new account. A bare username is mapped to an internal
// email and stored, normalized, in the user metadata; extra entries
// override it.
func (c *Coordinator) SignUp(ctx context.Context, usernameOrEmail, password string, extra map[string]any) (*models.AuthResponse, error) {
	email, err := ToEmail(usernameOrEmail, c.emailDomain)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{}
	if !strings.Contains(usernameOrEmail, "@") {
		meta["username"] = NormalizeUsername(usernameOrEmail)
	}
	maps.Copy(meta, extra)

	return passThrough(ctx, c, "sign_up", func(ctx context.Context, p IdentityProvider) (*models.AuthResponse, error) {
		return p.SignUp(ctx, email, password, meta)
	})
}

// SignIn authenticates with a username or email. The resulting session
// reaches the coordinator through the SignedIn notification.
func (c *Coordinator) SignIn(ctx context.Context, usernameOrEmail, password string) (*models.AuthResponse, error) {
	email, err := ToEmail(usernameOrEmail, c.emailDomain)
	if err != nil {
		return nil, err
	}
	return passThrough(ctx, c, "sign_in", func(ctx context.Context, p IdentityProvider) (*models.AuthResponse, error) {
		return p.SignIn(ctx, email, password)
	})
}

// ResetPassword asks the provider to send a recovery link.
func (c *Coordinator) ResetPassword(ctx context.Context, usernameOrEmail string) error {
	email, err := ToEmail(usernameOrEmail, c.emailDomain)
	if err != nil {
		return err
	}
	_, err = passThrough(ctx, c, "reset_password", func(ctx context.Context, p IdentityProvider) (struct{}, error) {
		return struct{}{}, p.ResetPassword(ctx, email, c.resetRedirect)
	})
	return err
}

func (c *Coordinator) UpdatePassword(ctx context.Context, password string) (*models.User, error) {
	return passThrough(ctx, c, "update_password", func(ctx context.Context, p IdentityProvider) (*models.User, error) {
		return p.UpdatePassword(ctx, password)
	})
}

// SignOut clears the state before asking the provider to end the session,
// then purges local artifacts. The state is cleared even when the provider
// fails; its error is returned.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.update(c.clearLocked)
	defer c.update(c.clearLocked)

	_, err := passThrough(ctx, c, "sign_out", func(ctx context.Context, p IdentityProvider) (struct{}, error) {
		return struct{}{}, p.SignOut(ctx)
	})
	if err != nil {
		c.log.Warn(ctx, "provider sign out", "error", err)
	}
	c.purge(ctx)
	return err
}

func (c *Coordinator) purge(ctx context.Context) {
	if c.artifacts == nil || len(c.prefixes) == 0 {
		return
	}
	n, err := c.artifacts.DeleteByPrefix(ctx, c.prefixes...)
	if err != nil {
		c.log.Warn(ctx, "purge local artifacts", "error", err)
		return
	}
	c.log.Debug(ctx, "purged local artifacts", "count", n)
}
