package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// EmailChannel delivers notifications over SMTP
type EmailChannel struct {
	host     string
	port     string
	from     string
	to       []string
	username string
	password string

	// sendMail is swappable for tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates an unconfigured email channel
func NewEmailChannel() *EmailChannel {
	return &EmailChannel{sendMail: smtp.SendMail}
}

// Configure expects "host", "port", "from" and "to" (comma-separated);
// "username"/"password" enable PLAIN auth
func (e *EmailChannel) Configure(settings map[string]string) error {
	e.host = settings["host"]
	e.port = settings["port"]
	e.from = settings["from"]
	e.username = settings["username"]
	e.password = settings["password"]

	if e.host == "" {
		return errors.New("notify: email host is required")
	}
	if e.port == "" {
		e.port = "587"
	}
	if e.from == "" {
		return errors.New("notify: email from address is required")
	}

	e.to = nil
	for _, addr := range strings.Split(settings["to"], ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			e.to = append(e.to, addr)
		}
	}
	if len(e.to) == 0 {
		return errors.New("notify: at least one email recipient is required")
	}
	return nil
}

// Send delivers one notification
func (e *EmailChannel) Send(_ context.Context, n Notification) error {
	if e.host == "" {
		return errors.New("notify: email channel not configured")
	}

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(n.Severity), n.Subject)
	var msg strings.Builder
	msg.WriteString("From: " + e.from + "\r\n")
	msg.WriteString("To: " + strings.Join(e.to, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(n.Body)
	if n.Service != "" {
		msg.WriteString("\r\n\r\nService: " + n.Service)
	}
	for k, v := range n.Details {
		msg.WriteString("\r\n" + k + ": " + v)
	}

	addr := net.JoinHostPort(e.host, e.port)
	if err := e.sendMail(addr, auth, e.from, e.to, []byte(msg.String())); err != nil {
		return fmt.Errorf("notify: email delivery: %w", err)
	}
	return nil
}

// TestConnection verifies the SMTP endpoint accepts connections
func (e *EmailChannel) TestConnection(ctx context.Context) error {
	if e.host == "" {
		return errors.New("notify: email channel not configured")
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(e.host, e.port))
	if err != nil {
		return fmt.Errorf("notify: smtp connect: %w", err)
	}
	return conn.Close()
}
