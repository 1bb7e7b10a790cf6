// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytoolkit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// User is the identity handle this provider emits.
type User struct {
	uid           string
	email         string
	emailVerified bool
	expiresAt     time.Time
}

// UID implements session.Identity.
func (u *User) UID() string { return u.uid }

// Email returns the account's email address.
func (u *User) Email() string { return u.email }

// EmailVerified reports whether the address has been verified.
func (u *User) EmailVerified() bool { return u.emailVerified }

// ExpiresAt returns when the ID token the user was built from expires.
func (u *User) ExpiresAt() time.Time { return u.expiresAt }

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	UserID        string `json:"user_id"`
	jwt.RegisteredClaims
}

// userFromIDToken decodes the claims of an ID token without verifying its
// signature.
func userFromIDToken(idToken string) (*User, error) {
	var claims idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err != nil {
		return nil, oops.Code("IDENTITYTOOLKIT_BAD_ID_TOKEN").Wrap(err)
	}
	u := &User{
		uid:           claims.Subject,
		email:         claims.Email,
		emailVerified: claims.EmailVerified,
	}
	if u.uid == "" {
		u.uid = claims.UserID
	}
	if u.uid == "" {
		return nil, oops.Code("IDENTITYTOOLKIT_BAD_ID_TOKEN").Errorf("id token has no subject")
	}
	if claims.ExpiresAt != nil {
		u.expiresAt = claims.ExpiresAt.Time
	}
	return u, nil
}

// userFromTokens builds the identity for a token response, preferring the ID
// token's claims and falling back to the response fields.
func userFromTokens(t *Tokens, now time.Time) *User {
	if u, err := userFromIDToken(t.IDToken); err == nil {
		if u.email == "" {
			u.email = t.Email
		}
		return u
	}
	u := &User{uid: t.UID, email: t.Email}
	if t.ExpiresIn > 0 {
		u.expiresAt = now.Add(t.ExpiresIn)
	}
	return u
}
