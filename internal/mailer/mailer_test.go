// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package mailer

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kant2002/SimpleIdentity/internal/platform/config"
)

/*
TestNew_LogSenderWithoutHost verifies that an empty SMTP host selects the
log-only sender, which never fails.
*/
func TestNew_LogSenderWithoutHost(t *testing.T) {
	cfg := &config.Config{}
	sender, err := New(cfg, slog.Default())

	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)
	assert.NoError(t, sender.Send(context.Background(), "jsmith@example.com", "subject", "body"))
}

/*
TestNew_PooledSenderWithHost verifies that a configured host selects the
pooled SMTP sender.
*/
func TestNew_PooledSenderWithHost(t *testing.T) {
	cfg := &config.Config{
		SMTPHost: "smtp.example.com",
		SMTPPort: "587",
		SMTPFrom: "no-reply@example.com",
	}
	sender, err := New(cfg, slog.Default())

	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, sender)
}

/*
TestNew_InvalidPort verifies that a non-numeric port fails construction
instead of failing on first delivery.
*/
func TestNew_InvalidPort(t *testing.T) {
	cfg := &config.Config{
		SMTPHost: "smtp.example.com",
		SMTPPort: "not-a-port",
	}
	_, err := New(cfg, slog.Default())

	require.Error(t, err)
}
