package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/cofind/internal/client/models"
	"github.com/dmitrijs2005/cofind/internal/common"
	"github.com/dmitrijs2005/cofind/internal/dbx"
)

// ErrInvalidUserID is returned for ids that are not UUIDs.
var ErrInvalidUserID = errors.New("invalid user id")

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func checkID(userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return nil
}

func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if err := checkID(userID); err != nil {
		return nil, err
	}
	query := `SELECT id, username, full_name, avatar_url, role FROM profiles WHERE id = $1`

	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarURL, &p.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	if err := checkID(p.ID); err != nil {
		return nil, err
	}
	role := p.Role
	if role == "" {
		role = models.RoleUser
	}
	query := `
		INSERT INTO profiles (id, username, full_name, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, full_name, avatar_url, role`

	out := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Username, p.FullName, p.AvatarURL, role).
		Scan(&out.ID, &out.Username, &out.FullName, &out.AvatarURL, &out.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("profile %s: %w", p.ID, common.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.Profile, error) {
	if err := checkID(userID); err != nil {
		return nil, err
	}
	if upd.Empty() {
		p, err := r.GetProfile(ctx, userID)
		if err == nil && p == nil {
			err = common.ErrNotFound
		}
		return p, err
	}

	var sets []string
	args := []any{userID}
	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("username", upd.Username)
	add("full_name", upd.FullName)
	add("avatar_url", upd.AvatarURL)

	query := `UPDATE profiles SET ` + strings.Join(sets, ", ") + `, updated_at = now()
		WHERE id = $1
		RETURNING id, username, full_name, avatar_url, role`

	out := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&out.ID, &out.Username, &out.FullName, &out.AvatarURL, &out.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("username taken: %w", common.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
