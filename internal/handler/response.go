package handler

import (
	"net/http"

	"github.com/ashwinyue/next-agent/internal/model"
	"github.com/gin-gonic/gin"
)

// Success 成功响应 (200)，直接返回数据本体
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, msg)
}

// Unauthorized 401 错误响应，附带 Bearer 认证质询
func Unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	abort(c, http.StatusUnauthorized, msg)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, msg string) {
	abort(c, http.StatusNotFound, msg)
}

// UnprocessableEntity 422 错误响应
func UnprocessableEntity(c *gin.Context, msg string) {
	abort(c, http.StatusUnprocessableEntity, msg)
}

// InternalServerError 500 错误响应
func InternalServerError(c *gin.Context, msg string) {
	abort(c, http.StatusInternalServerError, msg)
}

// ServiceUnavailable 503 错误响应
func ServiceUnavailable(c *gin.Context, msg string) {
	abort(c, http.StatusServiceUnavailable, msg)
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, model.ErrorResponse{Code: code, Msg: msg})
}
