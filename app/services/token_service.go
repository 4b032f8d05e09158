package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService handles service-to-service JWT generation and validation.
// The trigger endpoints are called by the scheduler and by trusted backends,
// never by end users directly, so a symmetric key is enough.
type TokenService interface {
	GenerateServiceToken(subject string) (string, error)
	ValidateServiceToken(token string) (*ServiceTokenClaims, error)
}

// ServiceTokenClaims represents the claims in a service JWT
type ServiceTokenClaims struct {
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenID   string    `json:"jti"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	secretKey []byte
	tokenTTL  time.Duration
	issuer    string
	audience  string
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string, tokenTTL time.Duration, issuer, audience string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &TokenServiceImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		issuer:    issuer,
		audience:  audience,
	}, nil
}

// GenerateServiceToken creates a signed short-lived token for the subject
func (s *TokenServiceImpl) GenerateServiceToken(subject string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iss": s.issuer,
		"aud": s.audience,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
		"jti": uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateServiceToken parses and validates a service token
func (s *TokenServiceImpl) ValidateServiceToken(tokenString string) (*ServiceTokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	if sub == "" {
		return nil, ErrTokenInvalid
	}

	out := &ServiceTokenClaims{Subject: sub, TokenID: jti}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}
