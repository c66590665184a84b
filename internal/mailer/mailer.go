package mailer

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"luna/internal/config"
)

// Mailer delivers transactional email.
type Mailer interface {
	SendOTP(to, code string) error
}

// SMTPMailer sends mail through a plain SMTP relay with AUTH.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

func (m *SMTPMailer) SendOTP(to, code string) error {
	subject := "Your Luna verification code"
	body := fmt.Sprintf(
		"Your verification code is %s.\r\n\r\nIt expires in 10 minutes. If you did not request this, ignore this email.\r\n",
		code,
	)

	var msg strings.Builder
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := m.host + ":" + m.port
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	log.Printf("[Mailer] SendOTP OK: to=%s", to)
	return nil
}

// LogMailer logs codes instead of sending them. Used for local development
// when no SMTP relay is configured.
type LogMailer struct{}

func (LogMailer) SendOTP(to, code string) error {
	log.Printf("[Mailer] DEV SendOTP: to=%s code=%s", to, code)
	return nil
}

// FromConfig picks the SMTP mailer when a host is configured, otherwise
// falls back to logging.
func FromConfig(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		log.Println("[Mailer] SMTP_HOST not set, using log-only mailer")
		return LogMailer{}
	}
	return NewSMTPMailer(cfg)
}
