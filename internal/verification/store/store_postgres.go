package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	vmetrics "keohams/internal/verification/metrics"
	"keohams/internal/verification/models"
	txcontext "keohams/pkg/platform/tx"
	"keohams/pkg/requestcontext"
)

// PostgresStore persists verification state in the user_verification_state
// table.
type PostgresStore struct {
	db      *sql.DB
	metrics *vmetrics.Metrics
}

func NewPostgresStore(db *sql.DB, metrics *vmetrics.Metrics) *PostgresStore {
	return &PostgresStore{db: db, metrics: metrics}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const stateColumns = `user_id, status, risk_score, risk_level, manual_lock, locked_from, version,
	created_at, updated_at, basic_verified_at, kyc_submitted_at, kyc_verified_at, rejected_at, locked_at`

func (s *PostgresStore) Ensure(ctx context.Context, userID uuid.UUID) (*models.State, error) {
	now := requestcontext.Now(ctx)
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO user_verification_state (user_id, status, risk_score, risk_level, manual_lock, version, created_at, updated_at)
		VALUES ($1, $2, 0, $3, FALSE, 1, $4, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, models.StatusUnverified, models.RiskLow, now)
	if err != nil {
		return nil, fmt.Errorf("ensure verification state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Lost the insert race (or the row already existed); the fetch below
		// returns the winner's row.
		s.metrics.RecordEnsureConflict()
	}
	return s.Get(ctx, userID)
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*models.State, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+stateColumns+`
		FROM user_verification_state
		WHERE user_id = $1
	`, userID)
	return scanState(row)
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.State, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+stateColumns+`
		FROM user_verification_state
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	return scanState(row)
}

func (s *PostgresStore) Update(ctx context.Context, state *models.State) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE user_verification_state
		SET status = $2,
		    risk_score = $3,
		    risk_level = $4,
		    manual_lock = $5,
		    locked_from = $6,
		    version = version + 1,
		    updated_at = $7,
		    basic_verified_at = $8,
		    kyc_submitted_at = $9,
		    kyc_verified_at = $10,
		    rejected_at = $11,
		    locked_at = $12
		WHERE user_id = $1 AND version = $13
	`,
		state.UserID,
		state.Status,
		state.RiskScore,
		state.RiskLevel,
		state.ManualLock,
		lockedFromValue(state.LockedFrom),
		requestcontext.Now(ctx),
		state.BasicVerifiedAt,
		state.KYCSubmittedAt,
		state.KYCVerifiedAt,
		state.RejectedAt,
		state.LockedAt,
		state.Version,
	)
	if err != nil {
		return fmt.Errorf("update verification state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification state: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	state.Version++
	return nil
}

func lockedFromValue(s *models.Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func scanState(row *sql.Row) (*models.State, error) {
	var (
		state      models.State
		lockedFrom sql.NullString
	)
	err := row.Scan(
		&state.UserID,
		&state.Status,
		&state.RiskScore,
		&state.RiskLevel,
		&state.ManualLock,
		&lockedFrom,
		&state.Version,
		&state.CreatedAt,
		&state.UpdatedAt,
		&state.BasicVerifiedAt,
		&state.KYCSubmittedAt,
		&state.KYCVerifiedAt,
		&state.RejectedAt,
		&state.LockedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan verification state: %w", err)
	}
	if lockedFrom.Valid {
		prev := models.Status(lockedFrom.String)
		state.LockedFrom = &prev
	}
	return &state, nil
}
