package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// MinKeyLength is the shortest accepted HMAC signing key.
const MinKeyLength = 32

var (
	ErrInvalidSigningKey = errors.New("jwt signing key must be at least 32 bytes")
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrInvalidSignature  = errors.New("invalid token signature")
)

// StandardClaims are the registered RFC 7519 claims.
type StandardClaims = gojwt.RegisteredClaims

// Service signs and verifies HS256 tokens.
type Service struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer stamps iss on generated tokens and requires it when parsing.
func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

// WithLeeway tolerates clock skew on exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.leeway = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a service signing with key.
func New(key []byte, opts ...Option) (*Service, error) {
	if len(key) < MinKeyLength {
		return nil, ErrInvalidSigningKey
	}
	s := &Service{key: key, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromString is New with a string key.
func NewFromString(key string, opts ...Option) (*Service, error) {
	return New([]byte(key), opts...)
}

// Generate signs claims.
func (s *Service) Generate(claims gojwt.Claims) (string, error) {
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Issue signs standard claims for subject valid for ttl.
func (s *Service) Issue(subject string, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	return s.Generate(StandardClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	})
}

// Parse verifies token and decodes it into claims. Tokens must be HS256 and
// carry an expiry.
func (s *Service) Parse(token string, claims gojwt.Claims) error {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithLeeway(s.leeway),
		gojwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.issuer))
	}

	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gojwt.ErrTokenExpired):
		return errors.Join(ErrExpiredToken, err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return errors.Join(ErrInvalidSignature, err)
	default:
		return errors.Join(ErrInvalidToken, err)
	}
}
