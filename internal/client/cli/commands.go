package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/client/repositories/places"
	"github.com/dmitrijs2005/cofind/internal/common"
)

// Input and file reads go through these so tests can script them.
var (
	prompt       = Prompt
	promptSecret = PromptSecret
	readFile     = os.ReadFile
)

var (
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrAlreadyLoggedIn = errors.New("already logged in, logout first")
)

func (a *App) credentials() (string, []byte, error) {
	id, err := prompt(a.reader, a.out, "Enter username or email")
	if err != nil {
		return "", nil, err
	}
	pw, err := promptSecret(a.out, "Password")
	if err != nil {
		return "", nil, err
	}
	return id, pw, nil
}

// Register creates an account. A bare username is mapped to an internal
// email by the coordinator.
func (a *App) Register(ctx context.Context) error {
	if a.isLoggedIn() {
		return ErrAlreadyLoggedIn
	}
	id, pw, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	fullName, err := prompt(a.reader, a.out, "Full name (optional)")
	if err != nil {
		return err
	}
	var extra map[string]any
	if fullName != "" {
		extra = map[string]any{"full_name": fullName}
	}

	res, err := a.sessions.SignUp(ctx, id, string(pw), extra)
	if err != nil {
		return err
	}
	if res != nil && res.Session == nil {
		printlnFn("Account created, confirm your email before logging in.")
		return nil
	}
	printlnFn("Account created.")
	return nil
}

// Login signs in. The prompt updates once the coordinator has adopted the
// new session.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		return ErrAlreadyLoggedIn
	}
	id, pw, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if _, err := a.sessions.SignIn(ctx, id, string(pw)); err != nil {
		return err
	}
	printlnFn("Login successful.")
	return nil
}

// Logout signs out and purges local artifacts. The local state is cleared
// even when the identity service cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	err := a.sessions.SignOut(ctx)
	printlnFn("Logged out.")
	return err
}

func (a *App) WhoAmI(ctx context.Context) error {
	st := a.sessions.State()
	if !st.IsAuthenticated() {
		printlnFn("guest")
		return nil
	}
	printlnFn("id:      ", st.User.ID)
	printlnFn("email:   ", st.User.Email)
	if st.Profile == nil {
		printlnFn("profile: (loading)")
		return nil
	}
	printlnFn("username:", st.Profile.Username)
	if st.Profile.FullName != "" {
		printlnFn("name:    ", st.Profile.FullName)
	}
	if st.Profile.AvatarURL != "" {
		printlnFn("avatar:  ", st.Profile.AvatarURL)
	}
	printlnFn("role:    ", st.Profile.Role)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	a.sessions.RefreshProfile(ctx)
	return a.WhoAmI(ctx)
}

func (a *App) Reset(ctx context.Context) error {
	id, err := prompt(a.reader, a.out, "Enter username or email")
	if err != nil {
		return err
	}
	if err := a.sessions.ResetPassword(ctx, id); err != nil {
		return err
	}
	printlnFn("If the account exists, a reset link is on its way.")
	return nil
}

func (a *App) Passwd(ctx context.Context) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	pw, err := promptSecret(a.out, "New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if _, err := a.sessions.UpdatePassword(ctx, string(pw)); err != nil {
		return err
	}
	printlnFn("Password updated.")
	return nil
}

func (a *App) Resume(ctx context.Context) error {
	if a.resumer != nil {
		a.resumer.Resume()
	}
	return nil
}

// Profile prompts for the editable fields. An empty answer keeps the
// current value.
func (a *App) Profile(ctx context.Context) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	var upd models.ProfileUpdate

	username, err := prompt(a.reader, a.out, "Username (empty keeps current)")
	if err != nil {
		return err
	}
	if username != "" {
		upd.Username = &username
	}
	fullName, err := prompt(a.reader, a.out, "Full name (empty keeps current)")
	if err != nil {
		return err
	}
	if fullName != "" {
		upd.FullName = &fullName
	}
	if upd.Empty() {
		printlnFn("Nothing to change.")
		return nil
	}

	p, err := a.profiles.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	printlnFn("Profile saved:", p.Username)
	return nil
}

func (a *App) Avatar(ctx context.Context, path string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	data, err := readFile(path)
	if err != nil {
		return err
	}
	p, err := a.profiles.UploadAvatar(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}
	printlnFn("Avatar uploaded:", p.AvatarURL)
	return nil
}

func listFor(cmd string) (places.List, error) {
	switch cmd {
	case "fav":
		return places.Favorites, nil
	case "want":
		return places.WantToVisit, nil
	}
	return "", fmt.Errorf("%w: %q", places.ErrUnknownList, cmd)
}

// Saved lists a place list, or toggles placeID on it. Guests work on the
// local lists only.
func (a *App) Saved(ctx context.Context, cmd string, placeID string) error {
	list, err := listFor(cmd)
	if err != nil {
		return err
	}
	userID := ""
	if a.isLoggedIn() {
		userID = a.userID()
	}

	if placeID == "" {
		ids, err := a.places.List(ctx, userID, list)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			printlnFn("(empty)")
			return nil
		}
		printlnFn(strings.Join(ids, "\n"))
		return nil
	}

	listed, err := a.places.Toggle(ctx, userID, list, placeID)
	if err != nil {
		return err
	}
	if listed {
		printlnFn("Added", placeID)
	} else {
		printlnFn("Removed", placeID)
	}
	return nil
}
