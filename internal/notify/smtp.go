package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPConfig holds relay settings for SMTPNotifier.
type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	From     string
	// ImplicitTLS dials with TLS from the first byte; otherwise STARTTLS is used when offered.
	ImplicitTLS bool
}

// SMTPNotifier sends mail through an SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	now  func() time.Time
	send func(addr string, a sasl.Client, from string, to []string, msg []byte) error
}

// NewSMTPNotifier returns a notifier for cfg. Authentication uses PLAIN when Username is set.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	n := &SMTPNotifier{cfg: cfg, now: time.Now}
	n.send = func(addr string, a sasl.Client, from string, to []string, msg []byte) error {
		if cfg.ImplicitTLS {
			return smtp.SendMailTLS(addr, a, from, to, bytes.NewReader(msg))
		}
		return smtp.SendMail(addr, a, from, to, bytes.NewReader(msg))
	}
	return n
}

// Send delivers a text/plain message to to.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if n.cfg.Addr == "" || n.cfg.From == "" {
		return ErrNotConfigured
	}
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("notify: invalid recipient %q", to)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth sasl.Client
	if n.cfg.Username != "" {
		auth = sasl.NewPlainClient("", n.cfg.Username, n.cfg.Password)
	}
	msg := buildMessage(n.cfg.From, to, subject, body, n.now())
	if err := n.send(n.cfg.Addr, auth, n.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}
