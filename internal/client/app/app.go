// Package app wires the cofind client: local and remote storage, the
// identity client, the session coordinator and everything that runs next
// to it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/cofind/internal/client/cli"
	"github.com/dmitrijs2005/cofind/internal/client/client"
	"github.com/dmitrijs2005/cofind/internal/client/config"
	"github.com/dmitrijs2005/cofind/internal/client/services"
	"github.com/dmitrijs2005/cofind/internal/client/session"
	"github.com/dmitrijs2005/cofind/internal/datastore/repomanager"
	"github.com/dmitrijs2005/cofind/internal/diagnostics"
	"github.com/dmitrijs2005/cofind/internal/logging"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

const meterName = "github.com/dmitrijs2005/cofind"

type App struct {
	config *config.Config
	logger logging.Logger

	local  *client.Repositories
	remote *sql.DB

	identity    *client.GoTrueClient
	coordinator *session.Coordinator
	visibility  *session.VisibilitySync
	health      *diagnostics.Server
	cli         *cli.App
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stderr, c.LogLevel)

	meter := otel.Meter(meterName)
	retryInst, err := retryx.NewInstruments(meter)
	if err != nil {
		return nil, fmt.Errorf("retry instruments: %w", err)
	}
	sessionInst, err := session.NewInstruments(meter)
	if err != nil {
		return nil, fmt.Errorf("session instruments: %w", err)
	}
	exec := retryx.NewExecutor(retryx.WithLogger(logger), retryx.WithInstruments(retryInst))
	policy := c.RetryPolicy()

	local, err := client.OpenRepositories(ctx, c.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("local db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	remote, err := repomanager.Open(ctx, c.DatabaseDSN, rm)
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	profiles := rm.Profiles(remote)
	saved := rm.Saved(remote)

	identity, err := client.NewGoTrueClient(c.AuthURL, c.AnonKey,
		client.WithSessionStorage(local.Metadata),
		client.WithLogger(logger.With("module", "gotrue")),
	)
	if err != nil {
		_ = remote.Close()
		_ = local.Close()
		return nil, err
	}

	migrator := services.NewFavoritesMigrationService(local.Places, saved, local.Metadata,
		services.MigrationWithLogger(logger.With("module", "migration")),
		services.MigrationWithExecutor(exec, policy),
	)

	coordinator := session.NewCoordinator(identity, profiles,
		session.WithLogger(logger.With("module", "session")),
		session.WithExecutor(exec, policy),
		session.WithInstruments(sessionInst),
		session.WithEmailDomain(c.EmailDomain),
		session.WithResetRedirect(c.ResetRedirectURL),
		session.WithArtifacts(local.Metadata, c.ArtifactPrefixes),
		session.WithMigrator(migrator),
	)

	avatars := services.NewS3AvatarStorage(services.S3Config{
		Region:        c.S3Region,
		AccessKey:     c.S3AccessKey,
		SecretKey:     c.S3SecretKey,
		BaseEndpoint:  c.S3BaseEndpoint,
		Bucket:        c.S3Bucket,
		PublicBaseURL: c.S3PublicBaseURL,
		URLTTL:        c.AvatarURLTTL,
	}, nil)

	profileSvc := services.NewProfileService(profiles, avatars, coordinator, logger.With("module", "profile"))
	placesSvc := services.NewSavedPlacesService(local.Places, saved, logger.With("module", "places"))
	visibility := session.NewVisibilitySync(coordinator)

	return &App{
		config:      c,
		logger:      logger,
		local:       local,
		remote:      remote,
		identity:    identity,
		coordinator: coordinator,
		visibility:  visibility,
		health:      diagnostics.NewServer(c.HealthAddr, coordinator, logger),
		cli:         cli.NewApp(coordinator, profileSvc, placesSvc, visibility),
	}, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Run starts the background loops, restores the session and hands the
// terminal to the REPL. It returns when the REPL exits or a signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.close()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(app.coordinator.Run(gctx, app.identity.Events()))
	})
	g.Go(func() error {
		return app.identity.AutoRefresh(gctx, app.config.RefreshInterval)
	})
	g.Go(func() error {
		app.visibility.Watch(gctx, app.identity.Ping, app.config.OnlineCheckInterval)
		return nil
	})
	g.Go(func() error {
		return app.health.Run(gctx)
	})

	if err := app.identity.Start(gctx); err != nil {
		app.logger.Warn(ctx, "identity start", "error", err)
	}
	app.coordinator.Initialize(gctx)

	repl := make(chan struct{})
	go func() {
		defer close(repl)
		app.cli.Run(gctx)
	}()

	g.Go(func() error {
		select {
		case <-repl:
			stop()
		case <-gctx.Done():
		}
		return nil
	})

	err := ignoreCanceled(g.Wait())
	app.logger.Info(ctx, "Stopped")
	return err
}

func (app *App) close() {
	app.coordinator.Close()
	_ = app.identity.Close()
	if err := app.remote.Close(); err != nil {
		app.logger.Warn(context.Background(), "close remote db", "error", err)
	}
	if err := app.local.Close(); err != nil {
		app.logger.Warn(context.Background(), "close local db", "error", err)
	}
}
