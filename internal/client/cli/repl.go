package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Refresh(ctx context.Context) error
	Reset(ctx context.Context) error
	Passwd(ctx context.Context) error
	Resume(ctx context.Context) error
	Profile(ctx context.Context) error
	Avatar(ctx context.Context, path string) error
	Saved(ctx context.Context, list string, placeID string) error
}

// runREPL starts a simple read–eval–print loop for the cofind CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Handler errors are printed and the loop
// goes on. The loop exits on EOF or when the user types "exit" or "quit".
//
//	Always:
//	  - help             show available commands
//	  - whoami           print the session state
//	  - fav [place]      list favorites, or toggle one place
//	  - want [place]     list want-to-visit, or toggle one place
//	  - resume           resynchronize the session now
//	  - exit | quit      leave the program
//
//	Guest:
//	  - register, login, reset
//
//	Signed in:
//	  - logout, refresh, passwd, profile, avatar <file>
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("cofind %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, fav [id], want [id], profile, avatar <file>, passwd, refresh, resume, logout, exit")
			} else {
				printlnFn("Available commands: register, login, reset, whoami, fav [id], want [id], resume, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "refresh":
			cmdErr = a.Refresh(ctx)

		case "reset":
			cmdErr = a.Reset(ctx)

		case "passwd":
			cmdErr = a.Passwd(ctx)

		case "resume":
			cmdErr = a.Resume(ctx)

		case "profile":
			cmdErr = a.Profile(ctx)

		case "avatar":
			if arg == "" {
				printlnFn("Usage: avatar <file>")
				continue
			}
			cmdErr = a.Avatar(ctx, arg)

		case "fav", "want":
			cmdErr = a.Saved(ctx, cmd, arg)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
