package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/common"
	"github.com/dmitrijs2005/cofind/internal/logging"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

// Coordinator is the single writer of the session state. Readers take
// snapshots through State or Subscribe.
type Coordinator struct {
	provider  IdentityProvider
	fetcher   *ProfileFetcher
	migrator  FavoritesMigrator
	artifacts ArtifactStore
	prefixes  []string

	log           logging.Logger
	exec          *retryx.Executor
	policy        retryx.Policy
	inst          *Instruments
	emailDomain   string
	resetRedirect string

	mu          sync.Mutex
	session     *models.Session
	profile     *models.Profile
	loading     bool
	initialized bool
	alive       bool
	processing  bool
	pending     *models.Event
	attempt     uint64
	subs        []chan State

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

type Option func(*Coordinator)

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithExecutor sets the retry executor and policy used for every network leg,
// including the profile fetcher's.
func WithExecutor(e *retryx.Executor, p retryx.Policy) Option {
	return func(c *Coordinator) {
		c.exec = e
		c.policy = p
	}
}

func WithInstruments(i *Instruments) Option {
	return func(c *Coordinator) { c.inst = i }
}

// WithEmailDomain sets the domain appended to bare usernames.
func WithEmailDomain(domain string) Option {
	return func(c *Coordinator) { c.emailDomain = domain }
}

func WithResetRedirect(url string) Option {
	return func(c *Coordinator) { c.resetRedirect = url }
}

// WithArtifacts makes SignOut delete local artifacts whose keys start with
// one of prefixes.
func WithArtifacts(store ArtifactStore, prefixes []string) Option {
	return func(c *Coordinator) {
		c.artifacts = store
		c.prefixes = prefixes
	}
}

func WithMigrator(m FavoritesMigrator) Option {
	return func(c *Coordinator) { c.migrator = m }
}

// NewCoordinator builds a coordinator in the loading, uninitialized state.
// provider may be nil, in which case Initialize settles into the signed-out
// state and the auth calls return ErrNotConfigured.
func NewCoordinator(provider IdentityProvider, profiles ProfileStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider:    provider,
		log:         logging.Nop(),
		policy:      retryx.DefaultPolicy(),
		inst:        NopInstruments(),
		emailDomain: DefaultEmailDomain,
		prefixes:    common.DefaultArtifactPrefixes,
		loading:     true,
		alive:       true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bgCtx, c.bgCancel = context.WithCancel(context.Background())

	var users UserSource
	if provider != nil {
		users = provider
	}
	c.fetcher = NewProfileFetcher(profiles, users,
		FetcherWithLogger(c.log.With("component", "profile_fetcher")),
		FetcherWithExecutor(c.exec, c.policy),
	)
	return c
}

// State returns a snapshot of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() State {
	var user *models.User
	if c.session != nil {
		user = c.session.Clone().User
	}
	return State{
		User:        user,
		Profile:     cloneProfile(c.profile),
		Loading:     c.loading,
		Initialized: c.initialized,
	}
}

// Session returns a copy of the adopted session, or nil.
func (c *Coordinator) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Subscribe returns a channel that receives a snapshot after every state
// change. Only the latest snapshot is kept for slow readers. The channel is
// closed by Close.
func (c *Coordinator) Subscribe() <-chan State {
	ch := make(chan State, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		close(ch)
		return ch
	}
	c.subs = append(c.subs, ch)
	ch <- c.snapshotLocked()
	return ch
}

func (c *Coordinator) publishLocked() {
	s := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// update applies fn under the lock when the coordinator is still alive and
// publishes the result.
func (c *Coordinator) update(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return false
	}
	fn()
	c.publishLocked()
	return true
}

// updateAttempt is update restricted to the current initialization attempt.
func (c *Coordinator) updateAttempt(attempt uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive || c.attempt != attempt {
		return false
	}
	fn()
	c.publishLocked()
	return true
}

func (c *Coordinator) adoptLocked(s *models.Session) {
	c.session = s.Clone()
}

func (c *Coordinator) clearLocked() {
	c.session = nil
	c.profile = nil
	c.fetcher.Invalidate()
}

// applyProfile stores the result of fetch seq unless a newer fetch started
// or the state was cleared since; both happen under c.mu.
func (c *Coordinator) applyProfile(seq uint64, p *models.Profile) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive || !c.fetcher.Current(seq) {
		return false
	}
	c.profile = cloneProfile(p)
	c.publishLocked()
	return true
}

func (c *Coordinator) refetch(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	c.fetcher.Fetch(ctx, userID, c.applyProfile)
}

// Initialize reads the live session from the provider and adopts it. It
// always ends with loading=false and initialized=true unless a newer
// Initialize call or Close took over in the meantime.
func (c *Coordinator) Initialize(ctx context.Context) {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.attempt++
	attempt := c.attempt
	c.loading = true
	c.publishLocked()
	c.mu.Unlock()

	log := c.log.With("init_attempt", attempt)
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "initialization panicked", "panic", fmt.Sprint(r))
			c.updateAttempt(attempt, c.clearLocked)
		}
		c.updateAttempt(attempt, func() {
			c.loading = false
			c.initialized = true
		})
	}()

	if c.provider == nil {
		log.Warn(ctx, "initialization skipped", "error", ErrNotConfigured)
		c.updateAttempt(attempt, c.clearLocked)
		return
	}

	res := retryx.Execute(ctx, c.exec, "get_session", c.policy, c.provider.CurrentSession)
	if res.Err != nil {
		log.Error(ctx, "get session", "error", res.Err, "attempts", res.Attempts)
		c.updateAttempt(attempt, c.clearLocked)
		return
	}
	s := res.Value
	if s == nil || s.User == nil {
		log.Debug(ctx, "no live session")
		c.updateAttempt(attempt, c.clearLocked)
		return
	}
	if !c.updateAttempt(attempt, func() { c.adoptLocked(s) }) {
		log.Debug(ctx, "initialization superseded")
		return
	}
	log.Info(ctx, "session restored", "user_id", s.UserID())
	c.refetch(ctx, s.UserID())
}

// HandleEvent processes an authentication notification. While another
// event is being processed the new one replaces whatever is buffered and
// HandleEvent returns immediately; the buffered event is processed by the
// call that is already running.
func (c *Coordinator) HandleEvent(ctx context.Context, ev models.Event) {
	if c.claim(ctx, ev) {
		c.drain(ctx, ev)
	}
}

// Run feeds events into the coordinator until the channel is closed or ctx
// is done. Events that arrive while one is processed are coalesced.
func (c *Coordinator) Run(ctx context.Context, events <-chan models.Event) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if c.claim(ctx, ev) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					c.drain(ctx, ev)
				}()
			}
		}
	}
}

// claim reports whether the caller now owns processing. Otherwise ev has
// been parked in the pending slot.
func (c *Coordinator) claim(ctx context.Context, ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return false
	}
	if c.processing {
		if c.pending != nil {
			c.inst.recordCoalesced(ctx, c.pending.Kind)
			c.log.Debug(ctx, "event replaced before processing", "dropped", c.pending.Kind, "event", ev.Kind)
		}
		c.pending = &ev
		return false
	}
	c.processing = true
	return true
}

// drain processes ev and then whatever is in the pending slot, clearing the
// processing flag only once the slot is empty.
func (c *Coordinator) drain(ctx context.Context, ev models.Event) {
	for {
		c.process(ctx, ev)

		c.mu.Lock()
		if c.pending == nil || !c.alive {
			c.pending = nil
			c.processing = false
			c.mu.Unlock()
			return
		}
		ev = *c.pending
		c.pending = nil
		c.mu.Unlock()
	}
}

func (c *Coordinator) process(ctx context.Context, ev models.Event) {
	log := c.log.With("event", ev.Kind, "user_id", ev.Session.UserID())
	c.inst.recordEvent(ctx, ev.Kind)
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "event handler panicked", "panic", fmt.Sprint(r))
		}
		c.update(func() {
			c.loading = false
			c.initialized = true
		})
	}()

	s := ev.Session
	switch ev.Kind {
	case models.EventSignedIn, models.EventInitialSession:
		if s == nil || s.User == nil {
			return
		}
		if !c.update(func() { c.adoptLocked(s) }) {
			return
		}
		log.Info(ctx, "session adopted")
		c.refetch(ctx, s.UserID())
		c.migrate(ctx, s.UserID())

	case models.EventSignedOut:
		c.update(c.clearLocked)
		log.Info(ctx, "session cleared")

	case models.EventTokenRefreshed:
		if s == nil || s.User == nil {
			return
		}
		c.update(func() {
			if c.session.UserID() != s.UserID() {
				c.adoptLocked(s)
			}
		})
		c.refetch(ctx, s.UserID())

	case models.EventUserUpdated:
		if s == nil || s.User == nil {
			return
		}
		if !c.update(func() { c.adoptLocked(s) }) {
			return
		}
		c.refetch(ctx, s.UserID())

	default:
		log.Debug(ctx, "ignoring unknown event")
	}
}

// migrate uploads favorites collected while signed out. It runs detached
// from the event and is cancelled by Close.
func (c *Coordinator) migrate(ctx context.Context, userID string) {
	if c.migrator == nil {
		return
	}
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.bg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error(ctx, "favorites migration panicked", "user_id", userID, "panic", fmt.Sprint(r))
			}
		}()
		if err := c.migrator.Migrate(c.bgCtx, userID); err != nil {
			c.log.Error(ctx, "favorites migration", "user_id", userID, "error", err)
		}
	}()
}

// RefreshProfile refetches the profile of the adopted user. It does nothing
// without a session.
func (c *Coordinator) RefreshProfile(ctx context.Context) {
	c.refetch(ctx, c.Session().UserID())
}

// Close stops the coordinator. Later state writes are skipped, counters and
// the pending slot are reset, background work is cancelled and waited for,
// and subscriber channels are closed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.alive = false
	c.pending = nil
	c.attempt = 0
	c.fetcher.Reset()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	c.bgCancel()
	c.bg.Wait()
	for _, ch := range subs {
		close(ch)
	}
}
