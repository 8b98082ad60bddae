package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/example/brickaria/internal/config"
)

// Mailer sends plain-text notification mail. Failures are surfaced as
// errors for the caller to translate into a user-facing message.
type Mailer interface {
	Send(to, subject, body string) error
}

// NewMailer picks an SMTP client when a host is configured and otherwise
// falls back to logging mail to stdout, mirroring a console mail backend
// in development.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		return &ConsoleMailer{}
	}
	return &SMTPMailer{
		addr:     cfg.SMTPHost + ":" + cfg.SMTPPort,
		host:     cfg.SMTPHost,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
	}
}

// SMTPMailer delivers mail over authenticated SMTP.
type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	var msg strings.Builder
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := smtp.SendMail(m.addr, auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// ConsoleMailer writes mail to the process log instead of delivering it.
type ConsoleMailer struct{}

func (m *ConsoleMailer) Send(to, subject, body string) error {
	log.Printf("[mail] to=%s subject=%q\n%s", to, subject, body)
	return nil
}
