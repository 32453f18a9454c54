package notification

import (
	"log/slog"
	"time"

	"github.com/urbanserve/identity/pkg/domain"
)

// LogService is a Notifier for environments without SMTP configured.
// It logs instead of delivering, which keeps local development working
// without a mail server.
type LogService struct {
	logger *slog.Logger
}

// NewLogService creates a notifier that only logs.
func NewLogService(logger *slog.Logger) *LogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogService{logger: logger}
}

func (s *LogService) SendOtp(email, username, code string, purpose domain.OtpPurpose) error {
	s.logger.Info("otp email suppressed (SMTP not configured)", "to", email, "purpose", purpose)
	return nil
}

func (s *LogService) SendPasswordReset(email, username, token, link string) error {
	s.logger.Info("password reset email suppressed (SMTP not configured)", "to", email)
	return nil
}

func (s *LogService) SendWelcome(email, username string) error {
	s.logger.Info("welcome email suppressed (SMTP not configured)", "to", email)
	return nil
}

func (s *LogService) SendLockoutNotice(email, username string, until time.Time) error {
	s.logger.Info("lockout notice suppressed (SMTP not configured)", "to", email, "until", until)
	return nil
}

func (s *LogService) SendPasswordChangedNotice(email, username string) error {
	s.logger.Info("password changed notice suppressed (SMTP not configured)", "to", email)
	return nil
}
