package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

// DefaultAccessTokenTTL is the validity of a session token when none is configured.
const DefaultAccessTokenTTL = 7 * 24 * time.Hour

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims are the application claims carried by session tokens. Tier is a snapshot taken
// at issue time; services re-read the creator tier where it matters.
type Claims struct {
	UserID string          `json:"uid"`
	Email  string          `json:"email,omitempty"`
	Tier   models.PaidTier `json:"tier"`
	jwt.RegisteredClaims
}

// TokenSubject describes the account a token is issued for.
type TokenSubject struct {
	UserID string
	Email  string
	Tier   models.PaidTier
}

// SubjectFor builds the token subject of a user.
func SubjectFor(user *models.User) TokenSubject {
	if user == nil {
		return TokenSubject{}
	}
	return TokenSubject{UserID: user.ID, Email: user.Email, Tier: user.Tier}
}

// JWTService issues and validates HS256 session tokens.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a session token for the subject and returns it with its expiry.
func (s *JWTService) Issue(subject TokenSubject) (string, time.Time, error) {
	if subject.UserID == "" {
		return "", time.Time{}, errors.New("jwt: user id is required")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		UserID: subject.UserID,
		Email:  subject.Email,
		Tier:   models.ParsePaidTier(string(subject.Tier)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.UserID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a signed token and returns its claims.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}
	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}
	claims.Tier = models.ParsePaidTier(string(claims.Tier))

	return &claims, nil
}
