package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/zhouzirui/codetutor/backend/internal/model/api"
	"github.com/zhouzirui/codetutor/backend/internal/model/broker"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, api.ErrorResponse{Error: message})
}

// RespondFailure 按错误类型选择状态码并发送错误响应
func RespondFailure(w http.ResponseWriter, err error) {
	RespondError(w, StatusFromError(err), err.Error())
}

// StatusFromError 将 broker 错误映射为 HTTP 状态码。
// NotFound 沿用 400：未保存凭证的身份申请 token 属于请求错误。
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, broker.ErrInvalidArgument), errors.Is(err, broker.ErrNotFound):
		return http.StatusBadRequest
	case errors.Is(err, broker.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, broker.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON 解析请求体，失败时直接写回 400。
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
