package service

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/writewave/user-service/internal/config"
	"github.com/writewave/user-service/internal/logger"
)

// Mailer sends the transactional emails the auth flows produce. All sends
// are best-effort: the service logs failures but never fails the request
// over them.
type Mailer interface {
	SendWelcome(ctx context.Context, to, name, verificationToken string) error
	SendVerification(ctx context.Context, to, name, verificationToken string) error
	SendPasswordReset(ctx context.Context, to, name, resetToken string) error
	SendPasswordChanged(ctx context.Context, to, name string) error
}

// SMTPMailer delivers mail over plain SMTP with optional AUTH. When Host is
// empty the mailer is disabled and every send is a logged no-op, so local
// development works without a mail server.
type SMTPMailer struct {
	cfg         config.SMTPConfig
	frontendURL string
}

func NewSMTPMailer(cfg config.SMTPConfig, frontendURL string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, to, name, verificationToken string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.frontendURL, verificationToken)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nWelcome to WriteWave! Please confirm your email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires in 24 hours.\r\n",
		name, link)
	return m.send(ctx, to, "Welcome to WriteWave", body)
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, name, verificationToken string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.frontendURL, verificationToken)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nPlease confirm your email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires in 24 hours.\r\n",
		name, link)
	return m.send(ctx, to, "Verify your email", body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, resetToken string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, resetToken)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nWe received a request to reset your password. Open the link below to choose a new one:\r\n\r\n%s\r\n\r\nThe link expires in 1 hour. If you did not request this, you can ignore this email.\r\n",
		name, link)
	return m.send(ctx, to, "Reset your password", body)
}

func (m *SMTPMailer) SendPasswordChanged(ctx context.Context, to, name string) error {
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nYour WriteWave password was just changed and all devices were signed out. If this wasn't you, reset your password immediately.\r\n",
		name)
	return m.send(ctx, to, "Your password was changed", body)
}

func (m *SMTPMailer) send(_ context.Context, to, subject, body string) error {
	if m.cfg.Host == "" {
		logger.Debug().Str("to", to).Str("subject", subject).Msg("mailer disabled, skipping send")
		return nil
	}

	from := m.cfg.From
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", m.cfg.FromName, from),
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg)); err != nil {
		logger.Error().Err(err).Str("to", to).Str("subject", subject).Msg("smtp send failed")
		return err
	}
	logger.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
