package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

// OtpTokensRepository handles one-time code persistence.
type OtpTokensRepository struct {
	db *sql.DB
}

// NewOtpTokensRepository creates a new OTP tokens repository.
func NewOtpTokensRepository(db *sql.DB) *OtpTokensRepository {
	return &OtpTokensRepository{db: db}
}

// CreateReplacingActive marks all active tokens for (user, purpose) as
// used and inserts the new token, in one transaction. Together with the
// partial unique index on (user_id, purpose) WHERE NOT used, this keeps
// at most one active token per (user, purpose) even under concurrent
// issuance.
func (r *OtpTokensRepository) CreateReplacingActive(ctx context.Context, token *domain.OtpToken) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.invalidateActiveTx(ctx, tx, token.UserID, token.Purpose); err != nil {
			return err
		}
		return r.createTx(ctx, tx, token)
	})
}

func (r *OtpTokensRepository) invalidateActiveTx(ctx context.Context, q Querier, userID uuid.UUID, purpose domain.OtpPurpose) error {
	query := `
		UPDATE otp_tokens
		SET used = true
		WHERE user_id = $1 AND purpose = $2 AND NOT used
	`
	_, err := q.ExecContext(ctx, query, userID, purpose)
	return err
}

func (r *OtpTokensRepository) createTx(ctx context.Context, q Querier, token *domain.OtpToken) error {
	query := `
		INSERT INTO otp_tokens (id, user_id, code, email, phone, purpose, expires_at,
		                        attempt_count, max_attempts, used, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := q.ExecContext(ctx, query,
		token.ID, token.UserID, token.Code, token.Email, token.Phone, token.Purpose,
		token.ExpiresAt, token.AttemptCount, token.MaxAttempts, token.Used,
		token.IP, token.UserAgent, token.CreatedAt,
	)
	return err
}

// GetLatestUnused retrieves the most recent unused token for
// (email, purpose), regardless of expiry or attempt count; the service
// layer distinguishes expired and exhausted tokens.
func (r *OtpTokensRepository) GetLatestUnused(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.OtpToken, error) {
	query := `
		SELECT id, user_id, code, email, phone, purpose, expires_at,
		       attempt_count, max_attempts, used, ip, user_agent, created_at
		FROM otp_tokens
		WHERE email = $1 AND purpose = $2 AND NOT used
		ORDER BY created_at DESC
		LIMIT 1
	`
	token := &domain.OtpToken{}
	err := r.db.QueryRowContext(ctx, query, email, purpose).Scan(
		&token.ID, &token.UserID, &token.Code, &token.Email, &token.Phone,
		&token.Purpose, &token.ExpiresAt, &token.AttemptCount, &token.MaxAttempts,
		&token.Used, &token.IP, &token.UserAgent, &token.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOtpNotFound
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// IncrementAttempts bumps the attempt counter and returns the new count.
// The count persists regardless of the comparison outcome, so wrong
// guesses consume the budget.
func (r *OtpTokensRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE otp_tokens
		SET attempt_count = attempt_count + 1
		WHERE id = $1
		RETURNING attempt_count
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrOtpNotFound
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkUsed marks a token as used. Used is terminal and sticky.
func (r *OtpTokensRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE otp_tokens
		SET used = true
		WHERE id = $1 AND NOT used
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrOtpNotFound
	}
	return nil
}

// DeleteExpired removes tokens that expired more than olderThan ago.
func (r *OtpTokensRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM otp_tokens WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
