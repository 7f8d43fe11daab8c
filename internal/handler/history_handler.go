package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/service"
	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	svc *service.HistoryService
}

func NewHistoryHandler(svc *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

// List GET /history?bom_id=1&limit=100
func (h *HistoryHandler) List(c *gin.Context) {
	if v := c.Query("bom_id"); v != "" {
		bomID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || bomID <= 0 {
			BadRequest(c, "无效的bom_id参数")
			return
		}
		records, err := h.svc.ListByBOM(c.Request.Context(), bomID)
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, records)
		return
	}

	limit := 200
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := h.svc.ListAll(c.Request.Context(), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, records)
}

// Export GET /history/export?bom_id=1
func (h *HistoryHandler) Export(c *gin.Context) {
	var bomID int64
	if v := c.Query("bom_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			BadRequest(c, "无效的bom_id参数")
			return
		}
		bomID = id
	}

	f, err := h.svc.Export(c.Request.Context(), bomID)
	if err != nil {
		Fail(c, err)
		return
	}
	defer f.Close()

	writeExcel(c, f, fmt.Sprintf("bom-history-%s.xlsx", time.Now().Format("20060102")))
}
