package email

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/telehealth-admin/internal/config"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
)

type Service interface {
	SendCustom(ctx context.Context, to []string, subject string, content string) error
}

// Dialer is the part of gomail.Dialer the SMTP service uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer Dialer
	from   string
}

// NewSMTPService sends plain text mail through cfg's server.
func NewSMTPService(cfg config.SMTPConfig) Service {
	return NewService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From)
}

func NewService(dialer Dialer, from string) Service {
	return &smtpService{dialer: dialer, from: from}
}

func (s *smtpService) SendCustom(ctx context.Context, to []string, subject string, content string) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type logService struct {
	logger *logger.Logger
}

// NewLogService only logs outgoing mail. It is used when no SMTP host is
// configured.
func NewLogService(l *logger.Logger) Service {
	return &logService{logger: l}
}

func (s *logService) SendCustom(_ context.Context, to []string, subject string, _ string) error {
	s.logger.Info("email not sent, smtp disabled", "to", to, "subject", subject)
	return nil
}
