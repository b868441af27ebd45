package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/config"
	"vpn-subscription-bot/internal/domain/ports/adapter"
)

var _ adapter.MailSender = (*SMTPSender)(nil)

type SMTPSender struct {
	cfg *config.MailConfig
	log *zerolog.Logger
}

func NewSMTPSender(cfg *config.MailConfig, logger *zerolog.Logger) *SMTPSender {
	l := logger.With().Str("component", "smtp").Logger()
	return &SMTPSender{cfg: cfg, log: &l}
}

func (s *SMTPSender) SendPasswordResetCode(ctx context.Context, email, code string) error {
	body := fmt.Sprintf("Your password reset code: %s\r\n\r\n"+
		"The code is valid for %d minutes. If you did not ask for a reset, ignore this email.",
		code, int(s.cfg.ResetCodeTTL/time.Minute))
	return s.send(ctx, email, "Password reset", body)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	msg := buildMessage(s.cfg.From, to, subject, body)

	client, err := s.connect(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("smtp connect failed")
		return err
	}
	defer client.Close()

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	if err := client.Quit(); err != nil {
		s.log.Warn().Err(err).Msg("smtp quit failed after delivery")
	}
	s.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

func (s *SMTPSender) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	d := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(s.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if !s.cfg.InsecureNoTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return nil, fmt.Errorf("smtp server %s does not support STARTTLS", addr)
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	return client, nil
}

func buildMessage(from, to, subject, body string) string {
	return strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")
}

var _ adapter.MailSender = (*NoopMailSender)(nil)

// NoopMailSender drops mail when no SMTP relay is configured.
type NoopMailSender struct {
	log *zerolog.Logger
}

func NewNoopMailSender(logger *zerolog.Logger) *NoopMailSender {
	return &NoopMailSender{log: logger}
}

func (n *NoopMailSender) SendPasswordResetCode(ctx context.Context, email, code string) error {
	n.log.Warn().Str("to", email).Msg("mail is not configured, reset code was not delivered")
	return nil
}
