package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"staffdesk/internal/dto/req"
	"staffdesk/internal/dto/resp"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	RedisKeyPrefix = "staffdesk:auth:session:"
	Issuer         = "staffdesk-auth-service"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidResetCode   = errors.New("invalid or expired reset code")
)

// SignedKey should be loaded from env in production
var SignedKey = []byte("staffdesk-super-secret-key-2026")

// AuthUserStore is the slice of the user repository auth needs.
type AuthUserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Update(ctx context.Context, id int64, fields map[string]any) error
}

type AuthService struct {
	redis           *redis.Client
	users           AuthUserStore
	tokens          repository.ResetTokenInterface
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

type UserClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"sub"`
	Level  string `json:"level"`
	jwt.RegisteredClaims
}

func NewAuthService(rdb *redis.Client, users AuthUserStore, tokens repository.ResetTokenInterface, accessTokenTTL, refreshTokenTTL time.Duration) *AuthService {
	return &AuthService{
		redis:           rdb,
		users:           users,
		tokens:          tokens,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Login authenticates a user against the store and returns a token pair
func (s *AuthService) Login(ctx context.Context, r req.LoginReq) (*resp.TokenResp, error) {
	user, err := s.users.FindByEmail(ctx, r.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(r.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.generateTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	tokens.User = resp.UserInfo{
		ID:                  user.ID,
		Email:               user.Email,
		Level:               user.UserLevel,
		ForcePasswordChange: user.ForcePasswordChange,
	}
	return tokens, nil
}

// Refresh handles token rotation using the Refresh Token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*resp.TokenResp, error) {
	token, err := jwt.ParseWithClaims(refreshToken, &UserClaims{}, func(t *jwt.Token) (interface{}, error) {
		return SignedKey, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	key := fmt.Sprintf("%s%s", RedisKeyPrefix, claims.UserID)
	storedToken, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if storedToken != refreshToken {
		return nil, ErrTokenInvalid
	}

	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrSessionExpired
	}

	return s.generateTokens(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	key := fmt.Sprintf("%s%d", RedisKeyPrefix, userID)
	return s.redis.Del(ctx, key).Err()
}

// VerifyReset completes the password reset flow: the emailed code must match
// an unused, unexpired token for the account. The new hash also clears any
// forced-change flag.
func (s *AuthService) VerifyReset(ctx context.Context, r req.VerifyResetReq) error {
	user, err := s.users.FindByEmail(ctx, r.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidResetCode
	}

	token, err := s.tokens.FindValid(ctx, user.ID, r.Code)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrInvalidResetCode
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.NewPassword), bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, user.ID, map[string]any{
		"password_hash":         string(hash),
		"force_password_change": false,
	}); err != nil {
		return err
	}
	return s.tokens.MarkUsed(ctx, token.ID)
}

func (s *AuthService) generateTokens(ctx context.Context, user *model.User) (*resp.TokenResp, error) {
	now := time.Now()
	userID := strconv.FormatInt(user.ID, 10)

	atClaims := UserClaims{
		UserID: userID,
		Email:  user.Email,
		Level:  user.UserLevel,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, atClaims).SignedString(SignedKey)
	if err != nil {
		return nil, err
	}

	rtClaims := UserClaims{
		UserID: userID,
		Email:  user.Email,
		Level:  user.UserLevel,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			ID:        uuid.New().String(), // JTI
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rtClaims).SignedString(SignedKey)
	if err != nil {
		return nil, err
	}

	// Refresh token allow-list
	key := fmt.Sprintf("%s%s", RedisKeyPrefix, userID)
	if err := s.redis.Set(ctx, key, refreshToken, s.refreshTokenTTL).Err(); err != nil {
		return nil, err
	}

	return &resp.TokenResp{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}
