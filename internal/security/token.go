package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

var (
	// ErrTokenExpired means the signature checked out but the embedded
	// expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid means the token is malformed or its signature does
	// not verify under the expected kind's key.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrWrongTokenKind means a structurally valid token of the other kind
	// was presented.
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// SessionClaims is the signed assertion carried by both token kinds.
type SessionClaims struct {
	Email string `json:"email"`
	Kind  string `json:"knd"`
	jwt.RegisteredClaims
}

// TokenAuthority issues and verifies the two token kinds. The kinds are signed
// with materially different keys derived from one configured secret, so a
// refresh token can never pass verification as an access token.
type TokenAuthority struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
}

// DefaultAccessTTL applies when the authority is built with a non-positive TTL.
const DefaultAccessTTL = 30 * 24 * time.Hour

func NewTokenAuthority(secret string, accessTTL time.Duration) *TokenAuthority {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	return &TokenAuthority{
		accessKey:  []byte(secret + "-ACCESS-TOKEN"),
		refreshKey: []byte(secret + "-REFRESH-TOKEN"),
		accessTTL:  accessTTL,
	}
}

func (a *TokenAuthority) key(kind TokenKind) []byte {
	if kind == TokenKindRefresh {
		return a.refreshKey
	}
	return a.accessKey
}

// Issue signs a token of the given kind for the email. Access tokens embed the
// default expiry; refresh tokens carry none.
func (a *TokenAuthority) Issue(email string, kind TokenKind) (string, error) {
	if kind == TokenKindAccess {
		return a.IssueWithTTL(email, kind, a.accessTTL)
	}
	return a.IssueWithTTL(email, kind, 0)
}

// IssueWithTTL signs a token with an explicit lifetime. A zero ttl omits the
// expiry claim entirely; a negative ttl produces an already-expired token.
func (a *TokenAuthority) IssueWithTTL(email string, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: email,
		Kind:  string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(a.key(kind))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify validates signature and embedded claims under the key bound to kind.
// Expiry, signature failure and kind mismatch are reported distinctly.
func (a *TokenAuthority) Verify(token string, kind TokenKind) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.key(kind), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		// A signature failure may just be the other kind's key; surface
		// that case distinctly.
		if unverified, decodeErr := DecodeUnverified(token); decodeErr == nil && unverified.Kind != string(kind) {
			return nil, ErrWrongTokenKind
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != string(kind) {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

// DecodeUnverified decodes the claims WITHOUT checking the signature. The
// result is untrusted and suitable only for staleness heuristics, such as
// deciding whether a stored session token is due for rotation.
func DecodeUnverified(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Stale reports whether the claims carry an expiry that has already passed.
// Claims without expiry are never stale.
func (c *SessionClaims) Stale(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
