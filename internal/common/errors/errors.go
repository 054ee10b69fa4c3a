// Package errors 定义业务错误码和错误处理
package errors

import (
	"fmt"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is 按错误码比较
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Code == appErr.Code
	}
	return false
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, "未知错误")
	ErrInvalidParams   = New(1001, "参数错误")
	ErrNotFound        = New(1002, "资源不存在")
	ErrAlreadyExists   = New(1003, "资源已存在")
	ErrDatabaseError   = New(1004, "数据库错误")
	ErrCacheError      = New(1005, "缓存错误")
	ErrInternalError   = New(1006, "内部错误")
	ErrRateLimitExceed = New(1007, "请求过于频繁")
	ErrOperationFailed = New(1008, "操作失败")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, "未登录")
	ErrTokenExpired     = New(2001, "登录已过期")
	ErrTokenInvalid     = New(2002, "无效的令牌")
	ErrPermissionDenied = New(2003, "权限不足")
	ErrAccountDisabled  = New(2004, "账号已禁用")
)

// 用户与钱包错误码 (3000-3999)
var (
	ErrUserNotFound        = New(3000, "用户不存在")
	ErrAgentNotFound       = New(3001, "服务专员不存在")
	ErrInsufficientBalance = New(3002, "钱包余额不足")
	ErrWalletAmountInvalid = New(3003, "金额必须大于0")
)

// 层级错误码 (4000-4999)
var (
	ErrHierarchyCycle   = New(4000, "上级链存在循环引用")
	ErrHierarchyTooDeep = New(4001, "上级链超出最大层级")
)

// 佣金错误码 (5000-5999)
var (
	ErrCommissionConfigNotFound = New(5000, "佣金配置不存在")
	ErrDuplicateDistribution    = New(5001, "该交易已执行过分佣")
	ErrDistributionFailed       = New(5002, "分佣执行失败")
	ErrCommissionNotFound       = New(5003, "佣金记录不存在")
	ErrCommissionSettled        = New(5004, "佣金已结算")
)

// 工单错误码 (6000-6999)
var (
	ErrServiceRequestNotFound = New(6000, "服务工单不存在")
	ErrInvalidTransition      = New(6001, "非法的工单状态流转")
	ErrInvalidStakeholder     = New(6002, "无效的干系人角色")
	ErrServiceDataInvalid     = New(6003, "工单数据校验失败")
	ErrSRNumberGenerateFail   = New(6004, "工单号生成失败")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
