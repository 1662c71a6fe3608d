// Package cli provides the interactive cofind command-line client.
//
// The App is a thin shell over the session coordinator: it reads commands,
// prompts for credentials and prints the state the coordinator publishes.
// Connectivity watching, token refresh and the health endpoint run next to
// it in the binary.
//
// Commands: register, login, logout, whoami, refresh, reset, passwd, resume,
// profile, avatar, fav, want, help, exit.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
