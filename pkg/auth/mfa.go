package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/urbanserve/identity/pkg/domain"
)

const (
	totpPeriod = 30
	totpSkew   = 1 // allow one period of clock drift
)

// MFAConfig contains configuration for the TOTP service.
type MFAConfig struct {
	Issuer        string
	EncryptionKey []byte // 32 bytes for AES-256
}

// MFAService manages authenticator-app TOTP enrollment and verification.
// Secrets are AES-GCM encrypted at rest.
type MFAService struct {
	config  MFAConfig
	secrets MFASecretStore
	users   UserStore
}

// NewMFAService creates a new MFA service.
func NewMFAService(config MFAConfig, secrets MFASecretStore, users UserStore) (*MFAService, error) {
	if len(config.EncryptionKey) != 32 {
		return nil, fmt.Errorf("mfa encryption key must be 32 bytes, got %d", len(config.EncryptionKey))
	}
	return &MFAService{config: config, secrets: secrets, users: users}, nil
}

// Setup generates a TOTP secret for the user and returns the otpauth URL
// and a QR code data URI. The secret stays unconfirmed until the user
// proves possession via Confirm.
func (s *MFAService) Setup(ctx context.Context, userID uuid.UUID) (*domain.MFASetupResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, domain.ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: user.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	encrypted, err := s.encryptSecret(key.Secret())
	if err != nil {
		return nil, err
	}
	if err := s.secrets.Upsert(ctx, &domain.MFASecret{
		UserID:          userID,
		EncryptedSecret: encrypted,
		CreatedAt:       time.Now(),
	}); err != nil {
		return nil, err
	}

	var qrBuf bytes.Buffer
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code image: %w", err)
	}
	if err := png.Encode(&qrBuf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &domain.MFASetupResponse{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
		QRCode:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrBuf.Bytes()),
	}, nil
}

// Confirm validates the first code from the authenticator and enables MFA.
func (s *MFAService) Confirm(ctx context.Context, userID uuid.UUID, code string) error {
	secret, err := s.secrets.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.validateCode(secret, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidMFACode
	}

	if err := s.secrets.Confirm(ctx, userID); err != nil {
		return err
	}
	return s.users.SetMFAEnabled(ctx, userID, true)
}

// Verify checks a TOTP code for a user with MFA enabled.
func (s *MFAService) Verify(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return domain.ErrMFANotEnabled
	}

	secret, err := s.secrets.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !secret.Confirmed {
		return domain.ErrMFANotEnabled
	}

	ok, err := s.validateCode(secret, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidMFACode
	}
	return nil
}

// Disable removes the TOTP secret and turns MFA off for the user.
func (s *MFAService) Disable(ctx context.Context, userID uuid.UUID) error {
	if err := s.secrets.Delete(ctx, userID); err != nil {
		return err
	}
	return s.users.SetMFAEnabled(ctx, userID, false)
}

func (s *MFAService) validateCode(secret *domain.MFASecret, code string) (bool, error) {
	plain, err := s.decryptSecret(secret.EncryptedSecret)
	if err != nil {
		return false, err
	}
	return totp.ValidateCustom(code, plain, time.Now(), totp.ValidateOpts{
		Period: totpPeriod,
		Skew:   totpSkew,
		Digits: otp.DigitsSix,
	})
}

func (s *MFAService) encryptSecret(secret string) ([]byte, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, []byte(secret), nil), nil
}

func (s *MFAService) decryptSecret(data []byte) (string, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("encrypted secret too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
