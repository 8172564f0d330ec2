// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// 错误分类是对外 HTTP 状态码的唯一依据，接口层按这里的类别映射。
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderNotPending       = errors.New("order is not pending payment")
	ErrInvalidSignature      = errors.New("webhook signature verification failed")
	ErrOrderReferenceMissing = errors.New("order reference not found in webhook event")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidTransition     = errors.New("invalid order status transition")
)

// ValidationError 表示调用方输入不合法 (400)。
type ValidationError struct {
	Reason string
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IsValidation 判断 err 链上是否有输入校验错误。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PaymentProviderError 统一包装支付服务商侧的失败 (网络、非 2xx、响应不可解析)。
// 不把服务商 SDK/HTTP 细节泄漏给上层，订单保持原状态，可安全重试发起支付。
type PaymentProviderError struct {
	Provider Provider
	Message  string
	Err      error
}

func NewPaymentProviderError(provider Provider, message string, err error) *PaymentProviderError {
	return &PaymentProviderError{Provider: provider, Message: message, Err: err}
}

func (e *PaymentProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider error: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *PaymentProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError 判断 err 链上是否是服务商侧失败。
func IsProviderError(err error) bool {
	var pe *PaymentProviderError
	return errors.As(err, &pe)
}
