package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"paysession/internal/domain"
)

// ResultClaims bind a capability token to exactly one session's result.
// The token is the credential: a result page can be fetched with it alone,
// without the caller's login session.
type ResultClaims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	Category  string `json:"cat"`
	FormType  string `json:"form,omitempty"`
	Mode      string `json:"mode"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies short-lived HS256 result tokens. Tokens are
// never persisted; possession plus a valid signature is the whole grant.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

func (i *Issuer) Sign(claims ResultClaims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		Subject:   claims.SessionID,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

// Verify fails closed: any parse, signature, or expiry problem yields
// domain.ErrTokenInvalid with no claims.
func (i *Issuer) Verify(tokenString string) (*ResultClaims, error) {
	claims := &ResultClaims{}
	tkn, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenInvalid
		}
		return i.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, domain.ErrTokenInvalid
	}
	if claims.SessionID == "" || claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
