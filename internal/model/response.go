package model

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
