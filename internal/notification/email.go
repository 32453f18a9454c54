package notification

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/urbanserve/identity/pkg/domain"
)

// EmailConfig holds SMTP configuration.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// EmailService delivers auth-related emails over SMTP. It implements
// auth.Notifier.
type EmailService struct {
	config EmailConfig
}

// NewEmailService creates a new email service.
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

var otpSubjects = map[domain.OtpPurpose]string{
	domain.OtpPurposeLogin:             "Your UrbanServe login code",
	domain.OtpPurposePasswordReset:     "Your UrbanServe password reset code",
	domain.OtpPurposeEmailVerification: "Verify your UrbanServe email address",
	domain.OtpPurposeTwoFactorAuth:     "Your UrbanServe verification code",
}

// SendOtp delivers a one-time code for the given purpose.
func (s *EmailService) SendOtp(email, username, code string, purpose domain.OtpPurpose) error {
	subject, ok := otpSubjects[purpose]
	if !ok {
		subject = "Your UrbanServe verification code"
	}
	body := fmt.Sprintf(`<html><body>
		<p>Hi %s,</p>
		<p>Your one-time code is:</p>
		<h2>%s</h2>
		<p>Enter this code to continue. If you did not request it, you can ignore this email.</p>
	</body></html>`, username, code)
	return s.sendEmail(email, subject, body)
}

// SendPasswordReset delivers a password reset link.
func (s *EmailService) SendPasswordReset(email, username, token, link string) error {
	subject := "Reset your UrbanServe password"
	body := fmt.Sprintf(`<html><body>
		<p>Hi %s,</p>
		<p>A password reset has been requested for your account.</p>
		<p><a href="%s">Click here to reset your password</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>If you did not request this, please ignore this email.</p>
	</body></html>`, username, link, link)
	return s.sendEmail(email, subject, body)
}

// SendWelcome delivers the registration welcome email.
func (s *EmailService) SendWelcome(email, username string) error {
	subject := "Welcome to UrbanServe"
	body := fmt.Sprintf(`<html><body>
		<p>Hi %s,</p>
		<p>Welcome to UrbanServe! Your account has been created.</p>
		<p>Please verify your email address with the code we sent separately.</p>
	</body></html>`, username)
	return s.sendEmail(email, subject, body)
}

// SendLockoutNotice tells the user their account is temporarily locked.
func (s *EmailService) SendLockoutNotice(email, username string, until time.Time) error {
	subject := "Your UrbanServe account is temporarily locked"
	body := fmt.Sprintf(`<html><body>
		<p>Hi %s,</p>
		<p>Your account has been locked after too many failed sign-in attempts.</p>
		<p>You can try again after %s.</p>
		<p>If this was not you, we recommend resetting your password.</p>
	</body></html>`, username, until.Format(time.RFC1123))
	return s.sendEmail(email, subject, body)
}

// SendPasswordChangedNotice tells the user their password was changed.
func (s *EmailService) SendPasswordChangedNotice(email, username string) error {
	subject := "Your UrbanServe password was changed"
	body := fmt.Sprintf(`<html><body>
		<p>Hi %s,</p>
		<p>Your password was just changed.</p>
		<p>If this was not you, please reset your password immediately.</p>
	</body></html>`, username)
	return s.sendEmail(email, subject, body)
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}
