package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"time"

	"github.com/google/uuid"

	"github.com/insurancepro/marketing/internal/pkg/logger"
)

// Transport delivers one rendered email to one recipient.
// Implementations report success/failure only; the specific error stays at
// the transport layer.
type Transport interface {
	Deliver(ctx context.Context, to, subject, htmlBody, textBody string) bool
}

// SMTPConfig holds the outbound mail relay credentials.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMTPTransport sends mail through an authenticated SMTP relay with STARTTLS.
// Exactly one attempt per Deliver call, no retry.
type SMTPTransport struct {
	cfg    SMTPConfig
	dialer *net.Dialer
}

// NewSMTPTransport creates a transport from the given relay config.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		cfg:    cfg,
		dialer: &net.Dialer{Timeout: 30 * time.Second},
	}
}

// Configured reports whether relay credentials are present.
func (t *SMTPTransport) Configured() bool {
	return t.cfg.Username != "" && t.cfg.Password != ""
}

// Deliver sends a multipart message (optional plain part, mandatory HTML part)
// to a single recipient. Missing credentials fail fast without a connection
// attempt. Any transport error is logged and returned as false.
func (t *SMTPTransport) Deliver(ctx context.Context, to, subject, htmlBody, textBody string) bool {
	if !t.Configured() {
		log.Printf("[mailer] SMTP credentials not configured, dropping send to %s", logger.RedactEmail(to))
		return false
	}

	msg := t.buildMessage(to, subject, htmlBody, textBody)
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	if err := t.send(ctx, addr, to, msg); err != nil {
		log.Printf("[mailer] send to %s failed: %v", logger.RedactEmail(to), err)
		return false
	}
	return true
}

func (t *SMTPTransport) buildMessage(to, subject, htmlBody, textBody string) []byte {
	boundary := fmt.Sprintf("=_%s", uuid.New().String()[:16])

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", t.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Message-ID: <%s@insurancepro>\r\n", uuid.New().String())
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	buf.WriteString("\r\n")

	if textBody != "" {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(textBody)
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	buf.WriteString(htmlBody)
	buf.WriteString("\r\n")
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}

// send performs the raw SMTP transaction: connect, STARTTLS, AUTH, one
// MAIL/RCPT/DATA exchange, QUIT.
func (t *SMTPTransport) send(ctx context.Context, addr, to string, msg []byte) error {
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	c, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := c.Mail(t.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}

	return c.Quit()
}
