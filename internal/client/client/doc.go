// Package client contains the cofind client's adapters to the outside world.
//
// # Overview
//
//  1. GoTrueClient speaks the GoTrue REST dialect of the identity service:
//     sign-up, password and refresh-token grants, logout, password recovery
//     and the user endpoint. It keeps the session in memory and in a local
//     SessionStorage, refreshes it before expiry and reports every change as
//     a models.Event on its Events channel. It satisfies
//     session.IdentityProvider.
//  2. Local persistence bootstrap (InitDatabase, RunMigrations,
//     OpenRepositories) for the CLI: a SQLite database with embedded goose
//     migrations.
//
// # Error Handling
//
// Non-2xx answers come back as *APIError, which unwraps to ErrUnauthorized,
// ErrUserExists or ErrUnavailable when recognised. Transport failures are
// returned wrapped so that retryx can classify them.
package client
