package jwtutil

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/suteetoe/tradeflow/pkg/config"
)

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	Email  string `json:"email"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTUtil is a utility for JWT token operations
type JWTUtil struct {
	config *config.JWTConfig
}

// NewJWTUtil creates a new JWT utility with the given configuration
func NewJWTUtil(config *config.JWTConfig) *JWTUtil {
	return &JWTUtil{
		config: config,
	}
}

// TTL is how long an issued token stays valid
func (j *JWTUtil) TTL() time.Duration {
	return time.Duration(j.config.ExpirationHours) * time.Hour
}

// GenerateToken creates a JWT token for a user. Every token carries a unique ID so it can be revoked.
func (j *JWTUtil) GenerateToken(email, userID, role string) (string, error) {
	if j.config == nil {
		return "", errors.New("JWT configuration not provided")
	}

	now := time.Now()
	claims := UserClaims{
		Email:  email,
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    j.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL())),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses the JWT token
func (j *JWTUtil) ValidateToken(tokenString string) (*UserClaims, error) {
	if j.config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(j.config.SigningKey), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		if claims.UserID == "" {
			return nil, errors.New("token has no subject")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
