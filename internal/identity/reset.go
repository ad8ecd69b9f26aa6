// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/kant2002/SimpleIdentity/internal/platform/apperr"
	"github.com/kant2002/SimpleIdentity/internal/platform/ctxutil"
)

// ResetService implements the forgot-password and reset-password use cases.
//
// # Token Model
//
// Exactly one reset token is outstanding per account. Issuing a new token
// replaces the previous one; consuming a token (or changing the password by
// any other means) clears the stored slot so the token is single-use.
type ResetService struct {
	directory Directory
	provider  ResetTokenProvider
	notifier  Notifier

	tokenTTL     time.Duration
	resetURLBase string
}

// NewResetService constructs a new [ResetService] with necessary dependencies.
func NewResetService(
	directory Directory,
	provider ResetTokenProvider,
	notifier Notifier,
	tokenTTL time.Duration,
	resetURLBase string,
) *ResetService {
	return &ResetService{
		directory:    directory,
		provider:     provider,
		notifier:     notifier,
		tokenTTL:     tokenTTL,
		resetURLBase: resetURLBase,
	}
}

// IssueToken mints a reset token for the account and emails a reset link.
//
// # Enumeration Safety
//
// An unknown login is NOT an error: the operation silently succeeds without
// minting anything, so the endpoint's response never reveals whether a login
// exists.
func (service *ResetService) IssueToken(ctx context.Context, login string) error {
	logger := ctxutil.GetLogger(ctx)

	account, err := service.directory.FindByLogin(ctx, NormalizeLogin(login))
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			logger.Info("reset_token_skipped_unknown_login")
			return nil
		}
		return fmt.Errorf("identity_reset_lookup_failed: %w", err)
	}

	// ── 1. Mint & Store ───────────────────────────────────────────────────

	token, err := service.provider.Generate(account, service.tokenTTL)
	if err != nil {
		return fmt.Errorf("identity_reset_generate_failed: %w", err)
	}

	// The stored copy is the second verification layer: a token that is
	// cryptographically valid but no longer stored must be rejected.
	if err := service.directory.SetResetToken(ctx, account.ID, token); err != nil {
		return fmt.Errorf("identity_reset_store_failed: %w", err)
	}

	// ── 2. Delivery ───────────────────────────────────────────────────────

	service.sendResetLink(ctx, account, token)

	logger.Info("reset_token_issued", slog.Int64("user_id", account.ID))
	return nil
}

// ConsumeInput holds one reset-password attempt.
type ConsumeInput struct {
	Login       string
	Token       string
	NewPassword string
}

// ConsumeToken verifies a reset token and, if valid, sets the new password.
//
// # Two-Layer Verification
//
// The token must pass the cryptographic check ([ResetTokenProvider.Verify])
// AND match the stored token for the account. Either layer failing answers
// with the same [apperr.InvalidToken], so a caller cannot tell which layer
// rejected it.
//
// # Enumeration Safety
//
// An unknown login is silently ignored: the operation succeeds without
// touching anything, so the response never reveals whether a login exists.
//
// # Returns
//   - [apperr.InvalidToken] for any token problem.
//   - [apperr.PolicyRejected] when the new password fails the policy.
//   - [apperr.StorageFailure] when persisting the change fails.
func (service *ResetService) ConsumeToken(ctx context.Context, input ConsumeInput) error {
	account, err := service.directory.FindByLogin(ctx, NormalizeLogin(input.Login))
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			ctxutil.GetLogger(ctx).Info("reset_skipped_unknown_login")
			return nil
		}
		return fmt.Errorf("identity_reset_lookup_failed: %w", err)
	}

	// ── 1. Layer One: Cryptographic Verification ──────────────────────────

	if err := service.provider.Verify(input.Token, account); err != nil {
		return apperr.InvalidToken()
	}

	// ── 2. Layer Two: Stored Token Equality ───────────────────────────────

	matches, err := service.directory.CheckResetToken(ctx, account.ID, input.Token)
	if err != nil {
		return fmt.Errorf("identity_reset_check_failed: %w", err)
	}
	if !matches {
		return apperr.InvalidToken()
	}

	// ── 3. Policy Check ───────────────────────────────────────────────────

	// Runs only after the token is accepted, so policy probing requires a
	// valid token.
	policyMessage, err := service.directory.ValidatePassword(ctx, account.ID, input.NewPassword)
	if err != nil {
		return fmt.Errorf("identity_reset_policy_check_failed: %w", err)
	}
	if policyMessage != "" {
		return apperr.PolicyRejected(policyMessage)
	}

	// ── 4. Persistence ────────────────────────────────────────────────────

	// Update and token clearing share one failure mode toward the client.
	if err := service.directory.UpdatePassword(ctx, account.ID, input.NewPassword); err != nil {
		return apperr.StorageFailure(err)
	}

	if err := service.directory.ClearResetToken(ctx, account.ID); err != nil {
		return apperr.StorageFailure(err)
	}

	// ── 5. Notification ───────────────────────────────────────────────────

	service.sendResetNotice(ctx, account)

	ctxutil.GetLogger(ctx).Info("reset_token_consumed", slog.Int64("user_id", account.ID))
	return nil
}

// sendResetLink emails the reset link. Best-effort delivery.
func (service *ResetService) sendResetLink(ctx context.Context, account *Identity, token string) {
	if service.notifier == nil || account.Email == "" {
		return
	}

	logger := ctxutil.GetLogger(ctx)
	detachedCtx := context.WithoutCancel(ctx)
	resetLink := fmt.Sprintf("%s?login=%s&token=%s",
		service.resetURLBase,
		url.QueryEscape(account.Login),
		url.QueryEscape(token),
	)

	go func() {
		body := fmt.Sprintf(
			"Hello %s,\n\nA password reset was requested for your account %q. "+
				"Open the link below to choose a new password:\n\n%s\n\n"+
				"If you did not request this, you can ignore this message.\n",
			account.DisplayName(), account.Login, resetLink,
		)
		if err := service.notifier.Send(detachedCtx, account.Email, "Password reset requested", body); err != nil {
			logger.Error("reset_link_delivery_failed",
				slog.Int64("user_id", account.ID),
				slog.Any("error", err),
			)
		}
	}()
}

// sendResetNotice emails a confirmation after a completed reset. Best-effort.
func (service *ResetService) sendResetNotice(ctx context.Context, account *Identity) {
	if service.notifier == nil || account.Email == "" {
		return
	}

	logger := ctxutil.GetLogger(ctx)
	detachedCtx := context.WithoutCancel(ctx)

	go func() {
		body := fmt.Sprintf(
			"Hello %s,\n\nThe password for your account %q was reset. "+
				"If you did not do this, contact support immediately.\n",
			account.DisplayName(), account.Login,
		)
		if err := service.notifier.Send(detachedCtx, account.Email, "Your password was reset", body); err != nil {
			logger.Error("reset_notice_delivery_failed",
				slog.Int64("user_id", account.ID),
				slog.Any("error", err),
			)
		}
	}()
}
