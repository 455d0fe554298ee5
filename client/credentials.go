package craftlink

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoCredential is returned by providers that currently hold no token,
// and by consumers that require both a token and an identity.
var ErrNoCredential = errors.New("craftlink: no credential available")

// CredentialProvider supplies the bearer token and user identity used
// for both REST calls and the realtime auth handshake. Abstracting it
// keeps the connection layer free of any process-wide token store.
type CredentialProvider interface {
	// Token returns the current bearer token.
	Token() (string, error)
	// Identity returns the authenticated user this credential belongs to.
	Identity() (UserRef, error)
}

// StaticCredentials is a fixed token/identity pair.
type StaticCredentials struct {
	BearerToken string
	User        UserRef
}

func (s StaticCredentials) Token() (string, error) {
	if s.BearerToken == "" {
		return "", ErrNoCredential
	}
	return s.BearerToken, nil
}

func (s StaticCredentials) Identity() (UserRef, error) {
	if s.User.Zero() {
		return UserRef{}, ErrNoCredential
	}
	return s.User, nil
}

// TokenSourceCredentials adapts an oauth2.TokenSource. The source handles
// refresh; Identity is resolved from the access token's claims on each
// call so a rotated token keeps the identity current.
type TokenSourceCredentials struct {
	Source oauth2.TokenSource
}

func (t TokenSourceCredentials) Token() (string, error) {
	if t.Source == nil {
		return "", ErrNoCredential
	}
	tok, err := t.Source.Token()
	if err != nil {
		return "", fmt.Errorf("token source: %w", err)
	}
	if tok.AccessToken == "" {
		return "", ErrNoCredential
	}
	return tok.AccessToken, nil
}

func (t TokenSourceCredentials) Identity() (UserRef, error) {
	raw, err := t.Token()
	if err != nil {
		return UserRef{}, err
	}
	return IdentityFromToken(raw)
}

// IdentityFromToken extracts the user reference from the bearer token's
// JWT claims without verifying the signature. Verification happens on the
// backend; the client only needs the identity for the auth handshake.
func IdentityFromToken(raw string) (UserRef, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return UserRef{}, fmt.Errorf("parse bearer token: %w", err)
	}

	ref := UserRef{}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		if id, err := strconv.ParseInt(sub, 10, 64); err == nil {
			ref.ID = id
		} else {
			ref.Username = sub
		}
	}
	// Some backends put a numeric userId claim beside sub.
	if id, ok := claims["userId"].(float64); ok {
		ref.ID = int64(id)
	}
	if name, ok := claims["username"].(string); ok {
		ref.Username = name
	}

	if ref.Zero() {
		return UserRef{}, fmt.Errorf("bearer token carries no identity claims: %w", ErrNoCredential)
	}
	return ref, nil
}
