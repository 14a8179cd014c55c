package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// SMTPConfig holds the server-wide SMTP settings. Recipients come from
// each rule's channel configuration.
type SMTPConfig struct {
	Host     string // SMTP server host
	Port     int    // SMTP server port
	Username string // SMTP username (optional)
	Password string // SMTP password (optional)
	From     string // From address
}

// Validate validates the SMTP configuration.
func (c *SMTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if c.From == "" {
		return fmt.Errorf("from address is required")
	}
	return nil
}

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	config  SMTPConfig
	timeout time.Duration
}

// NewEmailNotifier creates a new email notifier.
func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}
	return &EmailNotifier{
		config:  config,
		timeout: 10 * time.Second,
	}, nil
}

// Type returns "email".
func (e *EmailNotifier) Type() models.ChannelType {
	return models.ChannelEmail
}

// Send delivers the alert to the channel's recipients.
func (e *EmailNotifier) Send(ctx context.Context, channel models.Channel, alert *models.Alert) error {
	if channel.Email == nil || len(channel.Email.Recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	msg := e.buildMessage(channel.Email.Recipients, alert)
	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))

	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	}

	// net/smtp has no context support; run the send on its own goroutine
	// and honor cancellation from the caller.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.config.From, channel.Email.Recipients, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}

// Close is a no-op for email notifier.
func (e *EmailNotifier) Close() error {
	return nil
}

// buildMessage renders a plain-text alert email.
func (e *EmailNotifier) buildMessage(recipients []string, alert *models.Alert) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", e.config.From))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	sb.WriteString(fmt.Sprintf("Subject: [%s] BuildPulse alert: %s\r\n",
		strings.ToUpper(string(alert.Severity)), alert.RuleName))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")

	sb.WriteString(fmt.Sprintf("Rule:     %s\r\n", alert.RuleName))
	sb.WriteString(fmt.Sprintf("Severity: %s\r\n", alert.Severity))
	sb.WriteString(fmt.Sprintf("Project:  %s\r\n", alert.Project))
	sb.WriteString(fmt.Sprintf("Build:    #%d (%s)\r\n", alert.BuildNumber, alert.BuildID))
	sb.WriteString(fmt.Sprintf("Fired:    %s\r\n", alert.FiredAt.Format(time.RFC1123)))
	sb.WriteString("\r\n")
	sb.WriteString(alert.Message)
	sb.WriteString("\r\n")

	if len(alert.Metadata) > 0 {
		sb.WriteString("\r\n")
		for _, key := range []string{"branch", "environment", "status", "commit", "source"} {
			if v, ok := alert.Metadata[key]; ok && v != "" {
				sb.WriteString(fmt.Sprintf("%s: %s\r\n", key, v))
			}
		}
	}

	return []byte(sb.String())
}
