package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError 应用错误类型
// 用于统一管理业务错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "服务器内部错误"
}

// IsRetryable 存储层超时/不可用可以重试，其余错误不重试
func IsRetryable(err error) bool {
	return Is(err, ErrTransientStore)
}

// HTTPStatus 错误码对应的 HTTP 状态码
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeConversationNotFound, CodeUserNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case CodeInvalidParams, CodeEmptyBody, CodeCannotChatSelf, CodeInvalidTier:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodePaymentFailed:
		return http.StatusBadGateway
	case CodeTransientStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 认证相关 10000-10999
	CodeTokenInvalid = 10003
	CodeTokenExpired = 10004

	// 用户相关 11000-11999
	CodeUserNotFound  = 11001
	CodeInvalidParams = 11002

	// 会话相关 20000-20999
	CodeConversationNotFound = 20001
	CodeForbidden            = 20002
	CodeConflict             = 20003
	CodeEmptyBody            = 20004
	CodeCannotChatSelf       = 20005

	// 余额相关 30000-30999
	CodeInsufficientBalance = 30001
	CodeInvalidTier         = 30002
	CodePaymentFailed       = 30003

	// 系统错误 50000-50999
	CodeServerError    = 50001
	CodeTransientStore = 50002
	CodeConfiguration  = 50004
)

// ============== 预定义错误 ==============

// 认证相关
var (
	ErrTokenInvalid = NewError(CodeTokenInvalid, "Token 无效")
	ErrTokenExpired = NewError(CodeTokenExpired, "Token 已过期")
)

// 用户相关
var (
	ErrUserNotFound  = NewError(CodeUserNotFound, "用户不存在")
	ErrInvalidParams = NewError(CodeInvalidParams, "参数校验失败")
)

// 会话相关
var (
	ErrConversationNotFound = NewError(CodeConversationNotFound, "会话不存在")
	ErrForbidden            = NewError(CodeForbidden, "无权访问该会话")
	ErrConflict             = NewError(CodeConflict, "会话已存在")
	ErrEmptyBody            = NewError(CodeEmptyBody, "消息内容不能为空")
	ErrCannotChatSelf       = NewError(CodeCannotChatSelf, "不能和自己聊天")
)

// 余额相关
var (
	ErrInsufficientBalance = NewError(CodeInsufficientBalance, "余额不足，请先充值")
	ErrInvalidTier         = NewError(CodeInvalidTier, "充值档位不存在")
	ErrPaymentFailed       = NewError(CodePaymentFailed, "支付失败")
)

// 系统相关
var (
	ErrServerError    = NewError(CodeServerError, "服务器内部错误")
	ErrTransientStore = NewError(CodeTransientStore, "存储暂不可用，请稍后再试")
	ErrConfiguration  = NewError(CodeConfiguration, "系统账号未配置")
)
