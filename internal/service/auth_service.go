package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/jwtutil"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/pkg/tokenstore"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	gstinPattern = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
)

// RegisterInput is the sign-up payload
type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Name        string `json:"name" validate:"required,min=2"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone" validate:"required"`
	Role        string `json:"role" validate:"required,oneof=supplier forwarder buyer"`
	GSTIN       string `json:"gstin"`
	Country     string `json:"country" validate:"omitempty,len=2"`
}

// LoginResult is returned on successful login
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        *model.User `json:"user"`
}

// AuthService registers users and issues and revokes their tokens
type AuthService struct {
	db        *gorm.DB
	jwt       *jwtutil.JWTUtil
	blacklist tokenstore.Blacklist
}

func NewAuthService(db *gorm.DB, jwt *jwtutil.JWTUtil, blacklist tokenstore.Blacklist) *AuthService {
	return &AuthService{db: db, jwt: jwt, blacklist: blacklist}
}

// Register creates a user with a bcrypt-hashed password
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	log := logger.FromCtx(ctx)

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !phonePattern.MatchString(in.Phone) {
		return nil, Validation("phone must be in international format")
	}
	if in.GSTIN != "" && !gstinPattern.MatchString(in.GSTIN) {
		return nil, Validation("gstin is not a valid GSTIN")
	}
	if !model.ValidRole(in.Role) {
		return nil, Validation("role must be one of supplier, forwarder, buyer")
	}
	country := strings.ToUpper(in.Country)
	if country == "" {
		country = "IN"
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, Conflict("Email already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Email:       email,
		Password:    string(hashed),
		FullName:    in.Name,
		CompanyName: in.CompanyName,
		Phone:       in.Phone,
		Role:        in.Role,
		GSTIN:       in.GSTIN,
		Country:     country,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}

	log.Info("User registered", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// Login checks credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Unauthorized("Incorrect email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, Unauthorized("Incorrect email or password")
	}
	if !user.IsActive {
		return nil, Forbidden("Account is disabled")
	}

	token, err := s.jwt.GenerateToken(user.Email, user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.jwt.TTL().Seconds()),
		User:        &user,
	}, nil
}

// Profile returns the user behind a token
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the token until its natural expiry
func (s *AuthService) Logout(ctx context.Context, claims *jwtutil.UserClaims) error {
	if claims.ID == "" {
		return Validation("token cannot be revoked")
	}
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	return s.blacklist.Revoke(ctx, claims.ID, ttl)
}

// IsRevoked reports whether the token with jti was logged out
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	return s.blacklist.IsRevoked(ctx, jti)
}
