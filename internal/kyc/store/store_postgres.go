package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"keohams/internal/kyc/models"
	txcontext "keohams/pkg/platform/tx"
)

// PostgresStore persists submissions in the kyc_submissions table. The
// document bundle is stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const submissionColumns = `id, user_id, status, documents, notes, reviewer_id, review_notes, submitted_at, reviewed_at`

func (s *PostgresStore) Insert(ctx context.Context, submission *models.Submission) error {
	docs, err := json.Marshal(submission.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO kyc_submissions (id, user_id, status, documents, notes, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		submission.ID,
		submission.UserID,
		submission.Status,
		docs,
		submission.Notes,
		submission.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM kyc_submissions
		WHERE id = $1
	`, id)
	return scanSubmission(row)
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM kyc_submissions
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSubmission(row)
}

func (s *PostgresStore) LatestByUser(ctx context.Context, userID uuid.UUID) (*models.Submission, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM kyc_submissions
		WHERE user_id = $1
		ORDER BY submitted_at DESC, id DESC
		LIMIT 1
	`, userID)
	return scanSubmission(row)
}

func (s *PostgresStore) List(ctx context.Context, status models.SubmissionStatus, page, pageSize int) ([]*models.Submission, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM kyc_submissions
		WHERE ($1 = '' OR status = $1)
	`, string(status)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM kyc_submissions
		WHERE ($1 = '' OR status = $1)
		ORDER BY submitted_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, string(status), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*models.Submission
	for rows.Next() {
		submission, err := scanSubmissionRows(rows)
		if err != nil {
			return nil, 0, err
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate submissions: %w", err)
	}
	return submissions, total, nil
}

func (s *PostgresStore) UpdateReview(ctx context.Context, submission *models.Submission) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE kyc_submissions
		SET status = $2, reviewer_id = $3, review_notes = $4, reviewed_at = $5
		WHERE id = $1
	`,
		submission.ID,
		submission.Status,
		submission.ReviewerID,
		submission.ReviewNotes,
		submission.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submission review: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row *sql.Row) (*models.Submission, error) {
	submission, err := scanFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return submission, err
}

func scanSubmissionRows(rows *sql.Rows) (*models.Submission, error) {
	return scanFrom(rows)
}

func scanFrom(scanner rowScanner) (*models.Submission, error) {
	var (
		submission models.Submission
		docs       []byte
		reviewerID uuid.NullUUID
		notes      sql.NullString
		revNotes   sql.NullString
	)
	err := scanner.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.Status,
		&docs,
		&notes,
		&reviewerID,
		&revNotes,
		&submission.SubmittedAt,
		&submission.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(docs, &submission.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if reviewerID.Valid {
		id := reviewerID.UUID
		submission.ReviewerID = &id
	}
	submission.Notes = notes.String
	submission.ReviewNotes = revNotes.String
	return &submission, nil
}
