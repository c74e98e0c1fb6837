package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ashwinyue/next-agent/internal/middleware"
	"github.com/ashwinyue/next-agent/internal/service/auth"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register 注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		UnprocessableEntity(c, err.Error())
		return
	}

	user, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			BadRequest(c, "Email already registered")
			return
		}
		if errors.Is(err, auth.ErrPasswordTooLong) {
			UnprocessableEntity(c, "Password must be at most 72 bytes")
			return
		}
		log.Printf("Failed to register user: %v", err)
		InternalServerError(c, "Failed to register user")
		return
	}

	Created(c, user.ToUserInfo())
}

// Login 登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		UnprocessableEntity(c, err.Error())
		return
	}

	pair, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			Unauthorized(c, "Incorrect email or password")
			return
		}
		log.Printf("Failed to log in: %v", err)
		InternalServerError(c, "Failed to log in")
		return
	}

	Success(c, pair)
}

// Refresh 刷新令牌
// POST /api/v1/auth/refresh，令牌可放在 JSON 体或 refresh_token 查询参数中
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if c.Request.ContentLength > 0 {
		// 只缺少 refresh_token 时回退到查询参数，无法解析的请求体直接拒绝
		if err := c.ShouldBindJSON(&req); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				UnprocessableEntity(c, err.Error())
				return
			}
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Query("refresh_token")
	}
	if req.RefreshToken == "" {
		Unauthorized(c, "Could not validate credentials")
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		log.Printf("Failed to refresh token: %v", err)
		Unauthorized(c, "Could not validate credentials")
		return
	}

	Success(c, pair)
}

// Me 当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "Could not validate credentials")
		return
	}
	Success(c, user.ToUserInfo())
}
