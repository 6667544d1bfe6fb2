package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrBadClass   = errors.New("jwtx: unexpected token class")
)

// Codec signs and verifies tokens with a process-wide symmetric key. The
// key and algorithm are fixed at construction, never per-request.
type Codec struct {
	key    []byte
	method jwt.SigningMethod
}

// NewCodec builds a Codec for the given HMAC algorithm (HS256, HS384,
// HS512). The key must not be empty; there is no safe default.
func NewCodec(key []byte, algorithm string) (*Codec, error) {
	if len(key) == 0 {
		return nil, errors.New("jwtx: signing key is required")
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("jwtx: unknown algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("jwtx: algorithm %q is not symmetric", algorithm)
	}

	return &Codec{key: key, method: method}, nil
}

// Sign encodes the claims into a compact signed token.
func (c *Codec) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(c.method, claims).SignedString(c.key)
}

// Verify parses and verifies a token, returning its claims.
//
// Expiry and signature failures surface as distinct errors because callers
// branch on them: ErrExpired means "please refresh", ErrInvalidSig means
// reject outright.
func (c *Codec) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, ErrInvalidSig
		}
		return c.key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSig):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	return claims, nil
}

// VerifyClass verifies the token and additionally enforces its class,
// rejecting e.g. a refresh token presented where an access token belongs.
func (c *Codec) VerifyClass(token, class string) (Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Class != class {
		return Claims{}, ErrBadClass
	}
	return claims, nil
}
