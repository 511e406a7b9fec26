package mailer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dcastillo/authcore-backend/pkg/config"
	"github.com/dcastillo/authcore-backend/pkg/logger"
	"gopkg.in/gomail.v2"
)

// dialer abstracts the SMTP transport so tests can capture outgoing messages.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends transactional account emails over SMTP.
type Mailer struct {
	dialer      dialer
	from        string
	frontendURL string
	logg        *logger.Logger
}

// New builds a Mailer from SMTP settings. The frontend URL is the base for
// the links embedded in verification and reset emails.
func New(cfg config.SMTPConfig, frontendURL string, logg *logger.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	return &Mailer{
		dialer:      gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:        cfg.From,
		frontendURL: frontendURL,
		logg:        logg,
	}, nil
}

// SendVerificationEmail delivers the account activation link.
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	verifyURL := m.frontendLink("/verify-email", url.Values{"token": {token}})
	body, err := renderTemplate("verification", verificationData{VerifyURL: verifyURL})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Verify your email address", body)
}

// SendPasswordResetEmail delivers the short-lived reset code plus a direct
// link to the reset page.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, code string) error {
	resetURL := m.frontendLink("/reset-password", url.Values{"token": {code}})
	body, err := renderTemplate("reset", resetData{Code: code, ResetURL: resetURL})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Your password reset code", body)
}

// SendPasswordChangedEmail notifies the account owner after a password
// change. Callers treat delivery as best effort.
func (m *Mailer) SendPasswordChangedEmail(ctx context.Context, to string) error {
	body, err := renderTemplate("changed", nil)
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Your password was changed", body)
}

// Ping verifies the SMTP server is reachable. Used by the readiness probe.
func (m *Mailer) Ping(ctx context.Context) error {
	d, ok := m.dialer.(*gomail.Dialer)
	if !ok {
		return nil
	}
	closer, err := d.Dial()
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	return closer.Close()
}

func (m *Mailer) send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.logg.Info(m.logg.WithField(ctx, "subject", subject), "email sent")
	return nil
}

func (m *Mailer) frontendLink(path string, query url.Values) string {
	base, err := url.Parse(m.frontendURL)
	if err != nil || base.Host == "" {
		// Fall back to naive concatenation for malformed base URLs.
		return m.frontendURL + path + "?" + query.Encode()
	}
	base.Path = path
	base.RawQuery = query.Encode()
	return base.String()
}
