// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package safety

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/cursus/internal/config"
	"github.com/tomtom215/cursus/internal/logging"
)

// EmailNotifier delivers alert notifications over SMTP. Unconfigured (no
// host, sender, or recipients) it degrades to a silent no-op: the alert is
// still recorded, only the email is skipped. A token bucket throttles
// delivery so an alert storm cannot flood the mail server.
type EmailNotifier struct {
	cfg     config.SMTPConfig
	limiter *rate.Limiter
	timeout time.Duration
}

// NewEmailNotifier creates the notifier from SMTP configuration.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	return &EmailNotifier{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		timeout: 30 * time.Second,
	}
}

// Enabled reports whether the notifier has enough configuration to deliver.
func (n *EmailNotifier) Enabled() bool {
	return n.cfg.Enabled()
}

// Notify sends one alert email. Missing configuration and throttled sends
// return nil after logging; the caller treats every outcome as best-effort.
func (n *EmailNotifier) Notify(ctx context.Context, alert *AlertRecord) error {
	if !n.Enabled() {
		logging.Debug().Str("alert_id", alert.ID).Msg("SMTP not configured, notification skipped")
		return nil
	}
	if !n.limiter.Allow() {
		logging.Warn().Str("alert_id", alert.ID).Msg("Notification rate limit exceeded, email skipped")
		return nil
	}

	msg := n.buildMessage(alert)
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("failed to deliver alert email: %w", err)
	}
	logging.Info().Str("alert_id", alert.ID).Int("recipients", len(n.cfg.To)).
		Msg("Alert notification delivered")
	return nil
}

// buildMessage constructs the plain-text email with headers.
func (n *EmailNotifier) buildMessage(alert *AlertRecord) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: Cursus Safety <%s>\r\n", n.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(n.cfg.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: [Cursus] Trigger word alert: %s\r\n", strings.Join(alert.Matches, ", ")))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(fmt.Sprintf("Alert ID:     %s\r\n", alert.ID))
	msg.WriteString(fmt.Sprintf("Statement:    %s\r\n", alert.StatementID))
	msg.WriteString(fmt.Sprintf("Actor:        %s\r\n", alert.ActorID))
	msg.WriteString(fmt.Sprintf("Matched:      %s\r\n", strings.Join(alert.Matches, ", ")))
	msg.WriteString(fmt.Sprintf("Detected:     %s\r\n", alert.DetectedAt.Format(time.RFC3339)))
	msg.WriteString(fmt.Sprintf("Source/scope: %s/%s\r\n", alert.Source, alert.Scope))
	if alert.Excerpt != "" {
		msg.WriteString("\r\n")
		msg.WriteString(alert.Excerpt)
		msg.WriteString("\r\n")
	}
	return msg.String()
}

// send performs the SMTP transaction.
func (n *EmailNotifier) send(ctx context.Context, msg string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	dialer := &net.Dialer{Timeout: n.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if n.cfg.Username != "" && n.cfg.Password != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range n.cfg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", to, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// Quit errors after a successful DATA are ignored; the message is sent.
	_ = client.Quit()
	return nil
}
