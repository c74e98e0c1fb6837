package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ashwinyue/next-agent/internal/config"
)

// TokenType 令牌类型
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrInvalidToken 签名错误、格式错误、缺少主体或类型
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken 令牌已过期
	ErrExpiredToken = errors.New("token expired")
	// ErrTokenType 令牌类型与期望不符
	ErrTokenType = errors.New("unexpected token type")
)

// Claims 令牌载荷 {sub, exp, type}
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenService 签发与校验 HS256 令牌
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService 创建令牌服务
// 未配置密钥时生成随机密钥
func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		secret = []byte(base64.StdEncoding.EncodeToString(buf))
		log.Printf("Warning: auth secret not configured, using a random secret; tokens will not survive restarts")
	}

	return &TokenService{
		secret:     secret,
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		now:        time.Now,
	}, nil
}

// CreateAccessToken 签发访问令牌，expiresIn 为 0 时使用默认有效期
func (s *TokenService) CreateAccessToken(subject string, expiresIn time.Duration) (string, error) {
	if expiresIn <= 0 {
		expiresIn = s.accessTTL
	}
	return s.sign(subject, TokenTypeAccess, expiresIn)
}

// CreateRefreshToken 签发刷新令牌
func (s *TokenService) CreateRefreshToken(subject string) (string, error) {
	return s.sign(subject, TokenTypeRefresh, s.refreshTTL)
}

// CreatePair 签发令牌对
func (s *TokenService) CreatePair(subject string) (accessToken, refreshToken string, err error) {
	accessToken, err = s.CreateAccessToken(subject, 0)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.CreateRefreshToken(subject)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// VerifyToken 校验令牌并返回主体（用户 ID）
// 类型字段必须与 expected 一致
func (s *TokenService) VerifyToken(tokenString string, expected TokenType) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.Type == "" {
		return "", ErrInvalidToken
	}
	if claims.Type != expected {
		return "", ErrTokenType
	}

	return claims.Subject, nil
}

func (s *TokenService) sign(subject string, typ TokenType, ttl time.Duration) (string, error) {
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// MaxPasswordBytes bcrypt 可处理的最大密码长度
const MaxPasswordBytes = 72

// HashPassword bcrypt 哈希
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword 校验明文与哈希是否匹配
func VerifyPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
