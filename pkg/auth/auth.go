// Package auth mints and verifies the HS256 bearer tokens that guard the defacing
// and job-history routes. It is a leaf package with no domain dependencies.
package auth

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every token.
const Issuer = "mri-defacing-platform"

// DefaultExpiry applies when NewSigner receives a non-positive expiry.
const DefaultExpiry = 24 * time.Hour

// MinSecretLength is the shortest accepted HMAC secret.
const MinSecretLength = 32

var (
	// ErrWeakSecret is returned for secrets shorter than MinSecretLength.
	ErrWeakSecret = errors.New("jwt secret too short")
	// ErrInvalidToken marks every parse or validation failure.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the registered claims; Subject identifies the caller.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer issues and verifies tokens with one shared secret.
type Signer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer. The secret must be at least MinSecretLength bytes.
func NewSigner(secret string, expiry time.Duration) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.Wrapf(ErrWeakSecret, "need at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Signer{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

// Generate signs a token for subject.
func (s *Signer) Generate(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Parse validates signature, algorithm, issuer and expiry and returns the claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.Wrap(ErrInvalidToken, "token is empty")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse token"), ErrInvalidToken)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, errors.Wrap(ErrInvalidToken, "missing subject")
	}
	return claims, nil
}
