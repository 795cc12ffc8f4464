package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkuzmenko/authd/internal/common"
	"github.com/dkuzmenko/authd/internal/dbx"
	"github.com/dkuzmenko/authd/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// PostgresRepository implements the ledger over dbx.DBTX (satisfied by both
// *sql.DB and *sql.Tx). The revoke CAS relies on the conditional UPDATE's
// row count, so it is safe without explicit row locks.
type PostgresRepository struct {
	db    dbx.DBTX
	sqlDB *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, sqlDB: db}
}

func (r *PostgresRepository) Record(ctx context.Context, session *models.RefreshSession) error {
	query := `
		INSERT INTO refresh_sessions (id, user_id, revoked, expires_at)
		VALUES ($1, $2, FALSE, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, session.ID, session.UserID, session.ExpiresAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.RefreshSession, error) {
	query := `
		SELECT id, user_id, revoked, expires_at, COALESCE(successor_id, ''), created_at
		FROM refresh_sessions
		WHERE id = $1
	`
	s := &models.RefreshSession{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.UserID, &s.Revoked, &s.ExpiresAt, &s.SuccessorID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string, successorID string) error {
	query := `
		UPDATE refresh_sessions
		SET revoked = TRUE, successor_id = NULLIF($2, '')
		WHERE id = $1 AND NOT revoked
	`
	res, err := r.db.ExecContext(ctx, query, id, successorID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Nothing updated: either the entry is gone or someone revoked it first.
	var revoked bool
	err = r.db.QueryRowContext(ctx, `SELECT revoked FROM refresh_sessions WHERE id = $1`, id).Scan(&revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return common.ErrAlreadyRevoked
}

// Rotate revokes the old entry and records its successor in one transaction,
// so a crash between the two steps cannot strand the lineage.
func (r *PostgresRepository) Rotate(ctx context.Context, oldID string, next *models.RefreshSession) error {
	return dbx.WithTx(ctx, r.sqlDB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		inner := &PostgresRepository{db: tx}
		if err := inner.Revoke(ctx, oldID, next.ID); err != nil {
			return err
		}
		return inner.Record(ctx, next)
	})
}
