// Package testutil 提供测试辅助工具
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// HTTPRoundTripper 重写 HTTP 请求到测试服务器
// 用于将真实 API 请求重定向到 mock 服务器
type HTTPRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

// NewHTTPRoundTripper 创建 HTTP 请求重定向器
func NewHTTPRoundTripper(baseURL string) *HTTPRoundTripper {
	u, _ := url.Parse(baseURL)
	return &HTTPRoundTripper{
		base: u,
		next: http.DefaultTransport,
	}
}

// RoundTrip 实现 http.RoundTripper 接口
func (t *HTTPRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.URL.Scheme = t.base.Scheme
	cloned.URL.Host = t.base.Host
	cloned.Host = t.base.Host
	return t.next.RoundTrip(cloned)
}

// NewTestClient 创建测试用 HTTP 客户端
// 所有请求都被重定向到测试服务器，无论原始主机是什么
func NewTestClient(ts *httptest.Server) *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: NewHTTPRoundTripper(ts.URL),
	}
}

// PerformRequest 对 gin 引擎发起请求
// body 非 nil 时按 JSON 编码；token 非空时附带 Bearer 头
func PerformRequest(t *testing.T, r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// DecodeJSON 解析响应体
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func init() {
	gin.SetMode(gin.TestMode)
}
