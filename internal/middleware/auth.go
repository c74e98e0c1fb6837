package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-agent/internal/model"
	"github.com/ashwinyue/next-agent/internal/service/auth"
)

// 上下文键
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
)

// TokenVerifier 校验令牌并返回用户
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string, expected auth.TokenType) (*model.User, error)
}

// RequireAuth 要求有效的访问令牌
// 令牌缺失、无效或用户不存在返回 401，用户已停用返回 400
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}

		user, err := verifier.VerifyToken(c.Request.Context(), token, auth.TokenTypeAccess)
		if err != nil {
			if !isAuthFailure(err) {
				_ = c.Error(err)
			}
			unauthorized(c)
			return
		}

		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Code: http.StatusBadRequest, Msg: "Inactive user"})
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Next()
	}
}

// isAuthFailure 令牌或用户本身无效，区别于存储等内部错误
func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, auth.ErrTokenType) ||
		errors.Is(err, auth.ErrUserNotFound)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
		Code: http.StatusUnauthorized,
		Msg:  "Could not validate credentials",
	})
}

// GetCurrentUser 从上下文获取当前用户
func GetCurrentUser(c *gin.Context) (*model.User, bool) {
	user, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// GetUserID 从上下文获取当前用户ID
func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserID)
	return id, id != ""
}
