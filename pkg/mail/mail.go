// Package mail builds and delivers email over SMTP.
//
//	m := mail.NewMailer(mail.Config{Host: "smtp.example.com", Port: "587", From: "shop@example.com"})
//	err := m.Send(ctx, mail.To("user@example.com").
//	    Subject("Seu pedido foi confirmado").
//	    Text("Pedido #12"))
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("mail: smtp host not configured")

// Config holds SMTP credentials.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Message is a fluent builder for an email.
type Message struct {
	to      []string
	cc      []string
	bcc     []string
	subject string
	body    string
	isHTML  bool
}

// To starts a plain-text message to addresses.
func To(addresses ...string) *Message {
	return &Message{to: addresses}
}

// CC adds CC recipients.
func (m *Message) CC(addresses ...string) *Message {
	m.cc = append(m.cc, addresses...)
	return m
}

// BCC adds BCC recipients. They never appear in the headers.
func (m *Message) BCC(addresses ...string) *Message {
	m.bcc = append(m.bcc, addresses...)
	return m
}

func (m *Message) Subject(s string) *Message {
	m.subject = s
	return m
}

// HTML sets an HTML body.
func (m *Message) HTML(body string) *Message {
	m.body = body
	m.isHTML = true
	return m
}

// Text sets a plain-text body.
func (m *Message) Text(body string) *Message {
	m.body = body
	m.isHTML = false
	return m
}

// Recipients returns every envelope recipient.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.to)+len(m.cc)+len(m.bcc))
	out = append(out, m.to...)
	out = append(out, m.cc...)
	return append(out, m.bcc...)
}

// Bytes renders the RFC 5322 message with CRLF line endings.
func (m *Message) Bytes(from string, now time.Time) []byte {
	contentType := "text/plain"
	if m.isHTML {
		contentType = "text/html"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(m.to, ", ") + "\r\n")
	if len(m.cc) > 0 {
		b.WriteString("Cc: " + strings.Join(m.cc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", m.subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

// Mailer sends messages through one SMTP server. Port 465 uses implicit
// TLS; other ports upgrade with STARTTLS when the server offers it.
type Mailer struct {
	cfg Config
}

// NewMailer returns a Mailer for cfg. Timeout defaults to 10s.
func NewMailer(cfg Config) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	return &Mailer{cfg: cfg}
}

func (ml *Mailer) from() string {
	if ml.cfg.FromName == "" {
		return ml.cfg.From
	}
	return (&mail.Address{Name: ml.cfg.FromName, Address: ml.cfg.From}).String()
}

// Send delivers msg, honouring ctx for the dial and the whole exchange.
func (ml *Mailer) Send(ctx context.Context, msg *Message) error {
	if ml.cfg.Host == "" {
		return ErrNotConfigured
	}
	rcpts := msg.Recipients()
	if len(rcpts) == 0 {
		return errors.New("mail: no recipients")
	}

	ctx, cancel := context.WithTimeout(ctx, ml.cfg.Timeout)
	defer cancel()

	conn, err := ml.dial(ctx)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, ml.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer client.Close()

	if ml.cfg.Port != "465" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: ml.cfg.Host}); err != nil {
				return fmt.Errorf("mail: starttls: %w", err)
			}
		}
	}

	if ml.cfg.Username != "" {
		auth := smtp.PlainAuth("", ml.cfg.Username, ml.cfg.Password, ml.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}

	if err := client.Mail(ml.cfg.From); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	for _, addr := range rcpts {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("mail: RCPT TO %s: %w", addr, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}
	if _, err := w.Write(msg.Bytes(ml.from(), time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("mail: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: DATA close: %w", err)
	}
	return client.Quit()
}

func (ml *Mailer) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(ml.cfg.Host, ml.cfg.Port)

	if ml.cfg.Port == "465" {
		d := &tls.Dialer{Config: &tls.Config{ServerName: ml.cfg.Host}}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("mail: tls dial: %w", err)
		}
		return conn, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mail: dial: %w", err)
	}
	return conn, nil
}
