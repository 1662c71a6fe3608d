// Package session keeps the single authoritative "current user + profile"
// state of the cofind client.
//
// # Overview
//
// Authentication notifications (sign-in, sign-out, token refresh, user
// update, initial session) arrive from the identity provider concurrently
// and possibly out of order. Each may trigger a profile fetch that races
// against newer notifications. The package provides:
//
//  1. Coordinator: the only writer of {session, profile, loading,
//     initialized}. Notifications go through HandleEvent, which runs at most
//     one event body at a time and buffers only the most recent arrival.
//  2. ProfileFetcher: fetch-or-create of a profile by user id, guarded by a
//     monotonic sequence so that only the most recently started fetch can
//     ever be applied.
//  3. VisibilitySync: re-reads the live session when the host resumes (or
//     the backend becomes reachable again) and adopts it directly.
//
// Network legs go through retryx.Execute.
//
// # Cancellation
//
// There is no preemption. Every state write first checks that the
// coordinator is still alive and that the writer's sequence token (init
// attempt, fetch sequence) is still current; stale work is dropped silently.
package session
