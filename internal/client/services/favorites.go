package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cofind/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cofind/internal/client/repositories/places"
	"github.com/dmitrijs2005/cofind/internal/common"
	"github.com/dmitrijs2005/cofind/internal/datastore/saved"
	"github.com/dmitrijs2005/cofind/internal/logging"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

var ErrNoUser = errors.New("user id is required")

// ListResult counts what happened to one list during a migration.
type ListResult struct {
	Migrated int
	Skipped  int
	Errors   int
}

// MigrationResult is the outcome of MigrateLists. AlreadyMigrated means the
// per-user marker was present and nothing was read.
type MigrationResult struct {
	AlreadyMigrated bool
	Favorites       ListResult
	WantToVisit     ListResult
}

var listTables = []struct {
	list  places.List
	table saved.Table
}{
	{places.Favorites, saved.Favorites},
	{places.WantToVisit, saved.WantToVisit},
}

// FavoritesMigrationService copies the guest place lists kept in the local
// database into the signed-in user's remote lists, once per user.
type FavoritesMigrationService struct {
	local   places.Repository
	remote  saved.Repository
	markers metadata.Repository
	log     logging.Logger
	exec    *retryx.Executor
	policy  retryx.Policy
	now     func() time.Time
}

type MigrationOption func(*FavoritesMigrationService)

func MigrationWithLogger(l logging.Logger) MigrationOption {
	return func(s *FavoritesMigrationService) { s.log = l }
}

func MigrationWithExecutor(e *retryx.Executor, p retryx.Policy) MigrationOption {
	return func(s *FavoritesMigrationService) {
		s.exec = e
		s.policy = p
	}
}

func NewFavoritesMigrationService(local places.Repository, remote saved.Repository, markers metadata.Repository, opts ...MigrationOption) *FavoritesMigrationService {
	s := &FavoritesMigrationService{
		local:   local,
		remote:  remote,
		markers: markers,
		log:     logging.Nop(),
		policy:  retryx.DefaultPolicy(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.exec == nil {
		s.exec = retryx.NewExecutor(retryx.WithLogger(s.log))
	}
	return s
}

func markerKey(userID string) string {
	return common.MigratedMarkerPrefix + userID
}

// Migrated reports whether the lists were already moved for userID.
func (s *FavoritesMigrationService) Migrated(ctx context.Context, userID string) (bool, error) {
	v, err := s.markers.Get(ctx, markerKey(userID))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Migrate satisfies the session coordinator's migrator hook.
func (s *FavoritesMigrationService) Migrate(ctx context.Context, userID string) error {
	_, err := s.MigrateLists(ctx, userID)
	return err
}

// MigrateLists saves every locally listed place for userID. Pairs already
// present remotely are counted as skipped; failed saves are counted and
// logged without stopping the run. The marker is written once both lists
// were read, so a partially failed run is not repeated.
func (s *FavoritesMigrationService) MigrateLists(ctx context.Context, userID string) (MigrationResult, error) {
	var res MigrationResult
	if userID == "" {
		return res, ErrNoUser
	}

	done, err := s.Migrated(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("read migration marker: %w", err)
	}
	if done {
		s.log.Debug(ctx, "favorites already migrated", "user_id", userID)
		res.AlreadyMigrated = true
		return res, nil
	}

	for _, lt := range listTables {
		ids, err := s.local.PlaceIDs(ctx, lt.list)
		if err != nil {
			return res, fmt.Errorf("read local %s: %w", lt.list, err)
		}
		counts := &res.Favorites
		if lt.list == places.WantToVisit {
			counts = &res.WantToVisit
		}
		s.migrateList(ctx, userID, lt.table, ids, counts)
	}

	stamp := s.now().UTC().Format(time.RFC3339)
	if err := s.markers.Set(ctx, markerKey(userID), []byte(stamp)); err != nil {
		return res, fmt.Errorf("write migration marker: %w", err)
	}

	s.log.Info(ctx, "favorites migrated",
		"user_id", userID,
		"favorites", res.Favorites.Migrated,
		"want_to_visit", res.WantToVisit.Migrated,
		"skipped", res.Favorites.Skipped+res.WantToVisit.Skipped,
		"errors", res.Favorites.Errors+res.WantToVisit.Errors,
	)
	return res, nil
}

func (s *FavoritesMigrationService) migrateList(ctx context.Context, userID string, table saved.Table, ids []string, counts *ListResult) {
	for _, id := range ids {
		r := retryx.Execute(ctx, s.exec, "save_"+string(table), s.policy, func(ctx context.Context) (bool, error) {
			return s.remote.Save(ctx, table, userID, id)
		})
		switch {
		case r.Err != nil:
			counts.Errors++
			s.log.Warn(ctx, "place not migrated", "table", string(table), "place_id", id, "error", r.Err)
		case r.Value:
			counts.Migrated++
		default:
			counts.Skipped++
		}
	}
}
