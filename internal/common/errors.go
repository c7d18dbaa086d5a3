package common

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类别，决定重试与传播策略
type ErrorKind int

const (
	// KindInternal 未归类的内部错误
	KindInternal ErrorKind = iota

	// KindTransient 瞬时错误 (超时/5xx/限流)，按策略重试
	KindTransient

	// KindAuthorization 认证/授权错误，不重试，立即中止本次运行
	KindAuthorization

	// KindMalformed 响应格式错误，不重试；抓取阶段中止，分类阶段走启发式兜底
	KindMalformed

	// KindValidation 校验错误 (如分类不在集合内)，本地纠正，不向上传播为失败
	KindValidation
)

// AppError 应用级错误结构
type AppError struct {
	Code    string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code string, kind ErrorKind, message string, err error) error {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code string, kind ErrorKind, message string) error {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// KindOf 取出错误的类别，非 AppError 一律按内部错误处理
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsTransient 判断错误是否可以重试
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// 错误码常量
const (
	ErrCodeGitHubAPI    = "GITHUB_API_ERROR"
	ErrCodeRateLimit    = "RATE_LIMIT"
	ErrCodeAuth         = "AUTH_ERROR"
	ErrCodeMalformed    = "MALFORMED_RESPONSE"
	ErrCodeAIProcessing = "AI_PROCESSING_ERROR"
	ErrCodeStorage      = "STORAGE_ERROR"
	ErrCodeDatabase     = "DATABASE_ERROR"
	ErrCodeNotification = "NOTIFICATION_ERROR"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)
