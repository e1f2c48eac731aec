package alert

import (
	"context"
	"fmt"
	"time"

	gomail "gopkg.in/mail.v2"

	"stock-news/pkg/domain"
)

// EmailConfig holds SMTP configuration for sending emails.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
}

// EmailSender delivers alerts via SMTP.
type EmailSender struct {
	cfg  EmailConfig
	send func(m *gomail.Message) error
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	s := &EmailSender{cfg: cfg}
	s.send = s.dialAndSend
	return s
}

func (s *EmailSender) Name() string { return "email" }

// Compose builds the plain-text alert email.
func (s *EmailSender) Compose(record *domain.NewsRecord) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", s.cfg.ToEmail)
	m.SetHeader("Subject", Subject(record))
	m.SetBody("text/plain", Message(record))
	return m
}

// Send composes and delivers the alert. gomail has no context support, so
// ctx is only checked before dialing.
func (s *EmailSender) Send(ctx context.Context, record *domain.NewsRecord) error {
	if s.cfg.SMTPServer == "" || s.cfg.ToEmail == "" {
		return fmt.Errorf("smtp server and recipient are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(s.Compose(record)); err != nil {
		return fmt.Errorf("send email to %s: %w", s.cfg.ToEmail, err)
	}
	return nil
}

func (s *EmailSender) dialAndSend(m *gomail.Message) error {
	dialer := gomail.NewDialer(s.cfg.SMTPServer, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
	dialer.Timeout = 10 * time.Second
	return dialer.DialAndSend(m)
}
