package service

import (
	"errors"
)

// 核心错误类别。单条操作返回带类别的错误，批量操作返回
// (成功数, errors[], warnings[]) 形式的结果结构。
var (
	ErrNotFound         = errors.New("记录不存在")
	ErrDuplicateKey     = errors.New("键值重复")
	ErrValidationFailed = errors.New("校验失败")
	ErrCycleDetected    = errors.New("存在循环引用")
	ErrParseFailed      = errors.New("文件解析失败")
	ErrMatchFailed      = errors.New("物料匹配失败")
	ErrIOFailed         = errors.New("存储访问失败")
)

// BatchResult 批量操作结果
type BatchResult struct {
	SuccessCount int      `json:"success_count"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}
