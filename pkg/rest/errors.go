package rest

import (
	"fmt"
	"strings"
)

// HTTP 状态码（FOS API 常见返回）
const (
	StatusOK          = 200
	StatusNoContent   = 204
	StatusBadRequest  = 400
	StatusForbidden   = 403
	StatusNotFound    = 404
	StatusTimeout     = 408
	StatusConflict    = 409
	StatusServerError = 500
	StatusUnavailable = 503
)

// Error FOS API 错误响应
// 对应 errors.error[].error-message 载荷；同时用于本地构造的协议层错误
type Error struct {
	Status   int
	Reason   string
	Messages []string
}

// NewError 构造 API 错误
func NewError(status int, reason string, messages ...string) *Error {
	return &Error{Status: status, Reason: reason, Messages: messages}
}

func (e *Error) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Reason, strings.Join(e.Messages, "; "))
}

// FormattedMsg 多行错误文本，用于日志输出
func (e *Error) FormattedMsg() string {
	lines := []string{fmt.Sprintf("Status: %d, Reason: %s", e.Status, e.Reason)}
	lines = append(lines, e.Messages...)
	return strings.Join(lines, "\n")
}

// containsAny 任一子串命中即为 true
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// MaskIPAddr 遮蔽 IP 地址，保留最后一段
// 输出文件与日志默认不保存完整管理地址
func MaskIPAddr(ip string, keepLast bool) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	masked := []string{"xxx", "xxx", "xxx", "xxx"}
	if keepLast {
		masked[3] = parts[3]
	}
	return strings.Join(masked, ".")
}
