package handler

import (
	"time"

	"github.com/bitfantasy/nimo-mps/internal/service"
	"github.com/gin-gonic/gin"
)

type PlannerHandler struct {
	svc *service.PlannerService
}

func NewPlannerHandler(svc *service.PlannerService) *PlannerHandler {
	return &PlannerHandler{svc: svc}
}

type planRequest struct {
	OrderID      int64    `json:"order_id" binding:"required"`
	Start        string   `json:"start" binding:"required"` // 2006-01-02
	End          string   `json:"end" binding:"required"`
	IncludeTypes []string `json:"include_types"`
	Mode         string   `json:"mode"`
	Bucket       string   `json:"bucket"`
	Persist      bool     `json:"persist"`
}

// Calculate POST /mrp/plan
func (h *PlannerHandler) Calculate(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	start, err := time.ParseInLocation("2006-01-02", req.Start, time.Local)
	if err != nil {
		BadRequest(c, "无效的start日期: "+req.Start)
		return
	}
	end, err := time.ParseInLocation("2006-01-02", req.End, time.Local)
	if err != nil {
		BadRequest(c, "无效的end日期: "+req.End)
		return
	}
	if end.Before(start) {
		BadRequest(c, "end日期不能早于start日期")
		return
	}

	result, err := h.svc.Calculate(c.Request.Context(), service.PlanRequest{
		OrderID:      req.OrderID,
		Start:        start,
		End:          end,
		IncludeTypes: req.IncludeTypes,
		Mode:         req.Mode,
		Bucket:       req.Bucket,
		Persist:      req.Persist,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}
