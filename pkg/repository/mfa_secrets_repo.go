package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

// MFASecretsRepository persists encrypted TOTP secrets.
type MFASecretsRepository struct {
	db *sql.DB
}

// NewMFASecretsRepository creates a new MFA secrets repository.
func NewMFASecretsRepository(db *sql.DB) *MFASecretsRepository {
	return &MFASecretsRepository{db: db}
}

// Upsert inserts or replaces a user's TOTP secret. Replacing resets the
// confirmed flag; the user must confirm the new secret.
func (r *MFASecretsRepository) Upsert(ctx context.Context, secret *domain.MFASecret) error {
	query := `
		INSERT INTO mfa_secrets (user_id, encrypted_secret, confirmed, created_at)
		VALUES ($1, $2, false, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET encrypted_secret = EXCLUDED.encrypted_secret,
		    confirmed = false,
		    confirmed_at = NULL,
		    created_at = EXCLUDED.created_at
	`
	_, err := r.db.ExecContext(ctx, query, secret.UserID, secret.EncryptedSecret, secret.CreatedAt)
	return err
}

// GetByUserID retrieves a user's TOTP secret.
func (r *MFASecretsRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.MFASecret, error) {
	query := `
		SELECT user_id, encrypted_secret, confirmed, created_at, confirmed_at
		FROM mfa_secrets
		WHERE user_id = $1
	`
	secret := &domain.MFASecret{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&secret.UserID, &secret.EncryptedSecret, &secret.Confirmed,
		&secret.CreatedAt, &secret.ConfirmedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMFANotEnabled
	}
	if err != nil {
		return nil, err
	}
	return secret, nil
}

// Confirm marks a secret as confirmed.
func (r *MFASecretsRepository) Confirm(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE mfa_secrets
		SET confirmed = true, confirmed_at = NOW()
		WHERE user_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMFANotEnabled
	}
	return nil
}

// Delete removes a user's TOTP secret.
func (r *MFASecretsRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM mfa_secrets WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
