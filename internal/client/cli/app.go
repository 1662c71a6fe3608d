package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/client/repositories/places"
	"github.com/dmitrijs2005/cofind/internal/client/session"
)

// Sessions is the coordinator surface the CLI drives.
type Sessions interface {
	State() session.State
	SignUp(ctx context.Context, usernameOrEmail, password string, extra map[string]any) (*models.AuthResponse, error)
	SignIn(ctx context.Context, usernameOrEmail, password string) (*models.AuthResponse, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, usernameOrEmail string) error
	UpdatePassword(ctx context.Context, password string) (*models.User, error)
	RefreshProfile(ctx context.Context)
}

type Profiles interface {
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error)
	UploadAvatar(ctx context.Context, filename string, data []byte) (*models.Profile, error)
}

type Places interface {
	List(ctx context.Context, userID string, list places.List) ([]string, error)
	Toggle(ctx context.Context, userID string, list places.List, placeID string) (bool, error)
}

// Resumer is told when the user comes back to the terminal.
type Resumer interface {
	Resume()
}

type App struct {
	sessions Sessions
	profiles Profiles
	places   Places
	resumer  Resumer
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(s Sessions, p Profiles, pl Places, r Resumer) *App {
	return &App{
		sessions: s,
		profiles: p,
		places:   pl,
		resumer:  r,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
}

func (a *App) isLoggedIn() bool {
	return a.sessions.State().IsAuthenticated()
}

func (a *App) userID() string {
	return a.sessions.State().User.ID
}

// getStatus renders the prompt status from the coordinator state.
func (a *App) getStatus() string {
	st := a.sessions.State()
	switch {
	case !st.Initialized:
		return "(starting)"
	case !st.IsAuthenticated():
		return "(guest)"
	}
	name := st.User.Email
	if st.Profile != nil && st.Profile.Username != "" {
		name = st.Profile.Username
	}
	if st.IsAdmin() {
		name += " admin"
	}
	if st.Loading {
		name += " …"
	}
	return fmt.Sprintf("(%s)", name)
}

// Run blocks in the REPL until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to cofind (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}
