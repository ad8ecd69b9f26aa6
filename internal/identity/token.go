// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// resetTokenPurpose is the fixed 'prp' claim. A token minted for any other
// purpose must never pass reset verification.
const resetTokenPurpose = "password-reset"

// ResetTokenProvider defines the cryptographic layer of reset-token handling.
//
// # Two-Layer Verification
//
// A reset token is only honored when BOTH layers accept it: the provider
// verifies signature, purpose, expiry, and security stamp; the directory
// additionally checks equality with the single stored token. The provider
// layer alone is not sufficient.
type ResetTokenProvider interface {
	// Generate mints a signed reset token bound to the account and its
	// current security stamp.
	Generate(identity *Identity, timeToLive time.Duration) (string, error)

	// Verify checks the token's signature, purpose, expiry, subject, and
	// security stamp against the given account. Any mismatch is an error.
	Verify(token string, identity *Identity) error
}

// resetClaims is the JWT payload of a password-reset token.
type resetClaims struct {
	jwt.RegisteredClaims

	Purpose       string `json:"prp"`
	SecurityStamp string `json:"stm"`
}

// JWTResetTokenProvider implements [ResetTokenProvider] with HS256 JWTs.
//
// # Why HS256 here and RS256 for access tokens?
//
// Reset tokens are minted and verified by the same service, so a shared
// secret suffices. Access tokens may be verified by other services, which
// need the asymmetric public key.
type JWTResetTokenProvider struct {
	secret []byte
	issuer string
}

// NewResetTokenProvider constructs a provider signing with the given secret.
func NewResetTokenProvider(secret, issuer string) *JWTResetTokenProvider {
	return &JWTResetTokenProvider{secret: []byte(secret), issuer: issuer}
}

// Generate mints a signed reset token for the account.
func (provider *JWTResetTokenProvider) Generate(identity *Identity, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := resetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			Issuer:    provider.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		Purpose:       resetTokenPurpose,
		SecurityStamp: identity.SecurityStamp,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(provider.secret)
	if err != nil {
		return "", fmt.Errorf("identity_reset_token_sign_failed: %w", err)
	}

	return signedToken, nil
}

// Verify checks all claims of the presented token against the account.
func (provider *JWTResetTokenProvider) Verify(tokenString string, identity *Identity) error {
	token, err := jwt.ParseWithClaims(tokenString, &resetClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("identity: unexpected signing method: %v", token.Header["alg"])
		}
		return provider.secret, nil
	})

	if err != nil {
		return fmt.Errorf("identity_reset_token_parse_failed: %w", err)
	}

	claims, ok := token.Claims.(*resetClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("identity_reset_token_invalid_claims")
	}

	if claims.Purpose != resetTokenPurpose {
		return fmt.Errorf("identity_reset_token_wrong_purpose")
	}

	if claims.Subject != strconv.FormatInt(identity.ID, 10) {
		return fmt.Errorf("identity_reset_token_wrong_subject")
	}

	// A rotated security stamp invalidates every previously minted token,
	// even when its signature and expiry are still valid.
	if claims.SecurityStamp != identity.SecurityStamp {
		return fmt.Errorf("identity_reset_token_stale_stamp")
	}

	return nil
}
