// Package auth verifies bearer credentials issued by the account service and
// turns them into a models.Principal.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"supportdesk/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no credential was presented.
	ErrMissingToken = errors.New("authentication token missing")
	// ErrInvalidToken is returned for expired, forged or malformed credentials.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Verifier turns a credential into a verified principal.
type Verifier interface {
	Verify(token string) (models.Principal, error)
}

// UserID is the id claim. The account service signs numeric ids; string ids
// are accepted too and both decode to their decimal text.
type UserID string

func (u *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or an integer: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id must be a string or an integer: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

// Claims mirrors the token layout of the account service: {id, role}.
type Claims struct {
	ID   UserID      `json:"id"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

var _ Verifier = (*JWTVerifier)(nil)

// Verify parses and validates token. The issuer is only checked when configured.
func (v *JWTVerifier) Verify(token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || !claims.Role.Valid() {
		return models.Principal{}, fmt.Errorf("%w: missing id or unknown role", ErrInvalidToken)
	}
	return models.Principal{ID: string(claims.ID), Role: claims.Role}, nil
}

// Issue signs a token for p. Used by the admin CLI and tests; production
// tokens come from the account service.
func (v *JWTVerifier) Issue(p models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:   UserID(p.ID),
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
