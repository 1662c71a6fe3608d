package places

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cofind/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) PlaceIDs(ctx context.Context, list List) ([]string, error) {
	if !list.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT place_id FROM saved_places WHERE list = ? ORDER BY added_at, rowid`, string(list))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", list, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", list, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", list, err)
	}
	return ids, nil
}

func (r *SQLiteRepository) Add(ctx context.Context, list List, placeID string) error {
	if !list.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saved_places (list, place_id) VALUES (?, ?)
		ON CONFLICT(list, place_id) DO NOTHING
	`, string(list), placeID)
	if err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", placeID, list, err)
	}
	return nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, list List, placeID string) error {
	if !list.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM saved_places WHERE list = ? AND place_id = ?`, string(list), placeID)
	if err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", placeID, list, err)
	}
	return nil
}

// Toggle runs its lookup and write in one transaction, joining the caller's
// when the repository was built on a *sql.Tx.
func (r *SQLiteRepository) Toggle(ctx context.Context, list List, placeID string) (bool, error) {
	if !list.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}

	var listed bool
	toggle := func(ctx context.Context, tx dbx.DBTX) error {
		inner := NewSQLiteRepository(tx)
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM saved_places WHERE list = ? AND place_id = ?`, string(list), placeID).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			listed = true
			return inner.Add(ctx, list, placeID)
		case err != nil:
			return fmt.Errorf("failed to look up %s in %s: %w", placeID, list, err)
		default:
			listed = false
			return inner.Remove(ctx, list, placeID)
		}
	}

	if err := dbx.InTx(ctx, r.db, nil, toggle); err != nil {
		return false, err
	}
	return listed, nil
}
