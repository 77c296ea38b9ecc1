// Package auth validates and issues the bearer tokens that carry the acting
// user. Identity itself is managed elsewhere: a token only needs a subject
// and a role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "stockflow/internal/core/context"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "stockflow",
		AccessTokenTTL: time.Hour,
	}
}

// Claims are the token claims. The actor id is the registered subject.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

// JWTService signs and validates HS256 tokens.
type JWTService struct {
	config JWTConfig
	parser *jwt.Parser
}

func NewJWTService(config JWTConfig) *JWTService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	return &JWTService{config: config, parser: jwt.NewParser(opts...)}
}

// GenerateAccessToken issues a token for userID acting as role.
func (s *JWTService) GenerateAccessToken(userID, role, email string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:  role,
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a token and returns the user it carries.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}

	return &appctx.UserContext{
		UserID: claims.Subject,
		Role:   claims.Role,
		Email:  claims.Email,
	}, nil
}
