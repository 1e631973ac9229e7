// Package auth issues and verifies the signed tokens handed to members:
// short-lived access tokens and longer-lived refresh tokens, both HS256 JWTs
// signed with one configured secret.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/memberauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims are the registered JWT claims plus the member's email and the token
// type. Subject holds the member id; ID (jti) is unique per issuance.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Type  string `json:"typ"`
}

// MemberID returns the subject claim.
func (c *Claims) MemberID() string { return c.Subject }

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer signs and verifies tokens. It holds no per-token state, so any
// number of goroutines may share one.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer; an empty secret is rejected.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, common.ErrMissingSigningKey
	}
	return &Issuer{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}, nil
}

func (i *Issuer) IssueAccessToken(memberID, email string) (string, time.Time, error) {
	return i.issue(memberID, email, TypeAccess, i.accessTTL)
}

func (i *Issuer) IssueRefreshToken(memberID, email string) (string, time.Time, error) {
	return i.issue(memberID, email, TypeRefresh, i.refreshTTL)
}

// Pair issues a fresh access and refresh token for the member.
func (i *Issuer) Pair(memberID, email string) (*TokenPair, error) {
	access, accessExp, err := i.IssueAccessToken(memberID, email)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.IssueRefreshToken(memberID, email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) issue(memberID, email, typ string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
		Type:  typ,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry of any token issued by i.
// It returns common.ErrTokenExpired for expired tokens and
// common.ErrInvalidToken for everything else that fails.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// VerifyAccess is Verify restricted to access tokens.
func (i *Issuer) VerifyAccess(tokenString string) (*Claims, error) {
	return i.verifyType(tokenString, TypeAccess)
}

// VerifyRefresh is Verify restricted to refresh tokens.
func (i *Issuer) VerifyRefresh(tokenString string) (*Claims, error) {
	return i.verifyType(tokenString, TypeRefresh)
}

func (i *Issuer) verifyType(tokenString, typ string) (*Claims, error) {
	claims, err := i.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
