package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-agent/internal/model"
	"github.com/ashwinyue/next-agent/internal/repository"
)

var (
	// ErrEmailTaken 邮箱已注册
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials 邮箱或密码错误
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrPasswordTooLong 密码超过 bcrypt 的 72 字节上限
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrUserNotFound 令牌主体对应的用户不存在
	ErrUserNotFound = errors.New("user not found")
)

// Service 认证服务
type Service struct {
	users  repository.UserRepository
	tokens *TokenService
}

// NewService 创建认证服务
func NewService(users repository.UserRepository, tokens *TokenService) *Service {
	return &Service{users: users, tokens: tokens}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" binding:"required"`
}

// Register 注册用户
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	// 检查邮箱是否已存在
	if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if len(req.Password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hashed,
		Role:         model.RoleUser,
		IsActive:     true,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		// 并发注册同一邮箱时由唯一索引兜底
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login 校验凭证并签发令牌对
// 未知邮箱与错误密码返回同一错误
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*model.TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user.ID)
}

// Refresh 用刷新令牌换取新的令牌对
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	user, err := s.VerifyToken(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return s.issue(user.ID)
}

// VerifyToken 校验令牌并解析出用户
func (s *Service) VerifyToken(ctx context.Context, token string, expected TokenType) (*model.User, error) {
	userID, err := s.tokens.VerifyToken(token, expected)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

func (s *Service) issue(userID string) (*model.TokenPair, error) {
	access, refresh, err := s.tokens.CreatePair(userID)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}
