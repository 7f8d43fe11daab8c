package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-mps/internal/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Item       *ItemHandler
	BOM        *BOMHandler
	History    *HistoryHandler
	Planner    *PlannerHandler
	Scheduling *SchedulingHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Item:       NewItemHandler(svc.Item),
		BOM:        NewBOMHandler(svc.BOM, svc.Import, svc.Export),
		History:    NewHistoryHandler(svc.History),
		Planner:    NewPlannerHandler(svc.Planner),
		Scheduling: NewSchedulingHandler(svc.Scheduling),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 资源冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail 按错误类型映射响应码
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrDuplicateKey):
		Conflict(c, err.Error())
	case errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrCycleDetected),
		errors.Is(err, service.ErrParseFailed),
		errors.Is(err, service.ErrMatchFailed):
		BadRequest(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// actor 当前操作人，操作历史的User字段来源
func actor(c *gin.Context) string {
	if name := c.GetString("user_name"); name != "" {
		return name
	}
	if uid := c.GetString("user_id"); uid != "" {
		return uid
	}
	return "system"
}

// pathID 解析路径中的数字ID
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "无效的ID参数: "+c.Param(name))
		return 0, false
	}
	return id, true
}
