// Copyright (c) 2026 SimpleIdentity. All rights reserved.

/*
Package mailer provides outbound email delivery for account notifications.

It offers two implementations behind one interface: a pooled SMTP sender for
deployed environments and a log-only sender for development, where reset
links land in the structured log instead of an inbox.
*/
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"time"

	"github.com/knadh/smtppool"

	"github.com/kant2002/SimpleIdentity/internal/platform/config"
)

// Sender delivers a plain-text message to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New selects the sender implementation from configuration.
// An empty SMTP host selects the log-only sender.
func New(cfg *config.Config, logger *slog.Logger) (Sender, error) {
	if cfg.SMTPHost == "" {
		logger.Info("mailer_using_log_sender")
		return &LogSender{logger: logger}, nil
	}

	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return nil, fmt.Errorf("mailer_invalid_smtp_port: %w", err)
	}

	// Authentication only when a username is configured.
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}

	pool, err := smtppool.New(smtppool.Opt{
		Host:            cfg.SMTPHost,
		Port:            port,
		MaxConns:        4,
		IdleTimeout:     15 * time.Second,
		PoolWaitTimeout: 15 * time.Second,
		Auth:            auth,
		TLSConfig: &tls.Config{
			ServerName: cfg.SMTPHost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mailer_pool_setup_failed: %w", err)
	}

	return &SMTPSender{pool: pool, from: cfg.SMTPFrom}, nil
}

// SMTPSender delivers mail through a pooled SMTP relay connection.
type SMTPSender struct {
	pool *smtppool.Pool
	from string
}

// Send submits the message through the connection pool.
func (sender *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	err := sender.pool.Send(smtppool.Email{
		From:    sender.from,
		To:      []string{to},
		Subject: subject,
		Text:    []byte(body),
	})
	if err != nil {
		return fmt.Errorf("mailer_smtp_send_failed: %w", err)
	}

	return nil
}

// LogSender writes messages to the structured log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// Send logs the message. Never fails.
func (sender *LogSender) Send(ctx context.Context, to, subject, body string) error {
	sender.logger.InfoContext(ctx, "outbound_email",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
