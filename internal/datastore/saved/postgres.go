package saved

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cofind/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// table returns the identifier to splice into a query. Only the two known
// tables are accepted.
func table(t Table) (string, error) {
	switch t {
	case Favorites, WantToVisit:
		return string(t), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTable, t)
}

func (r *PostgresRepository) Save(ctx context.Context, t Table, userID, placeID string) (bool, error) {
	name, err := table(t)
	if err != nil {
		return false, err
	}
	query := `INSERT INTO ` + name + ` (user_id, place_id) VALUES ($1, $2)
		ON CONFLICT (user_id, place_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, userID, placeID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) PlaceIDs(ctx context.Context, t Table, userID string) ([]string, error) {
	name, err := table(t)
	if err != nil {
		return nil, err
	}
	query := `SELECT place_id FROM ` + name + ` WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", name, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, t Table, userID, placeID string) error {
	name, err := table(t)
	if err != nil {
		return err
	}
	query := `DELETE FROM ` + name + ` WHERE user_id = $1 AND place_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, placeID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
