package handler

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type SchedulingHandler struct {
	svc *service.SchedulingService
}

func NewSchedulingHandler(svc *service.SchedulingService) *SchedulingHandler {
	return &SchedulingHandler{svc: svc}
}

type orderRequest struct {
	OrderName string `json:"order_name" binding:"required"`
	StartDate string `json:"start_date" binding:"required"` // 2006-01-02
	EndDate   string `json:"end_date" binding:"required"`
	Status    string `json:"status"`
	Remark    string `json:"remark"`
}

func (r *orderRequest) toEntity() (*entity.SchedulingOrder, error) {
	start, err := time.ParseInLocation("2006-01-02", r.StartDate, time.Local)
	if err != nil {
		return nil, err
	}
	end, err := time.ParseInLocation("2006-01-02", r.EndDate, time.Local)
	if err != nil {
		return nil, err
	}
	return &entity.SchedulingOrder{
		OrderName: r.OrderName,
		StartDate: start,
		EndDate:   end,
		Status:    r.Status,
		Remark:    r.Remark,
	}, nil
}

// ListOrders GET /scheduling/orders
func (h *SchedulingHandler) ListOrders(c *gin.Context) {
	orders, err := h.svc.ListOrders(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, orders)
}

// GetOrder GET /scheduling/orders/:id
func (h *SchedulingHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// CreateOrder POST /scheduling/orders
func (h *SchedulingHandler) CreateOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	order, err := req.toEntity()
	if err != nil {
		BadRequest(c, "无效的日期参数: "+err.Error())
		return
	}
	if err := h.svc.CreateOrder(c.Request.Context(), order); err != nil {
		Fail(c, err)
		return
	}
	Created(c, order)
}

// UpdateOrder PUT /scheduling/orders/:id
func (h *SchedulingHandler) UpdateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	order, err := req.toEntity()
	if err != nil {
		BadRequest(c, "无效的日期参数: "+err.Error())
		return
	}
	order.ID = id
	if err := h.svc.UpdateOrder(c.Request.Context(), order); err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// DeleteOrder DELETE /scheduling/orders/:id
func (h *SchedulingHandler) DeleteOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteOrder(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// AddProduct POST /scheduling/orders/:id/products
func (h *SchedulingHandler) AddProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ItemID int64 `json:"item_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if err := h.svc.AddProduct(c.Request.Context(), id, req.ItemID); err != nil {
		Fail(c, err)
		return
	}
	Created(c, nil)
}

// RemoveProduct DELETE /scheduling/orders/:id/products/:itemId
func (h *SchedulingHandler) RemoveProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	if err := h.svc.RemoveProduct(c.Request.Context(), id, itemID); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

type lineCell struct {
	ItemID         int64   `json:"item_id" binding:"required"`
	ProductionDate string  `json:"production_date" binding:"required"` // 2006-01-02
	PlannedQty     float64 `json:"planned_qty"`
}

// UpsertLines POST /scheduling/orders/:id/lines
func (h *SchedulingHandler) UpsertLines(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Cells []lineCell `json:"cells" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	cells := make([]service.LineUpsert, 0, len(req.Cells))
	for _, cell := range req.Cells {
		date, err := time.ParseInLocation("2006-01-02", cell.ProductionDate, time.Local)
		if err != nil {
			BadRequest(c, "无效的production_date: "+cell.ProductionDate)
			return
		}
		cells = append(cells, service.LineUpsert{
			ItemID:         cell.ItemID,
			ProductionDate: date,
			PlannedQty:     cell.PlannedQty,
		})
	}

	result, err := h.svc.BatchUpsertLines(c.Request.Context(), id, cells)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// Kanban GET /scheduling/orders/:id/kanban
func (h *SchedulingHandler) Kanban(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Kanban(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, view)
}

// Ingest POST /scheduling/orders/:id/ingest (multipart form, file字段，xlsx或csv)
func (h *SchedulingHandler) Ingest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件: "+err.Error())
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "打开上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	var result *service.BatchResult
	if strings.EqualFold(filepath.Ext(fileHeader.Filename), ".csv") {
		result, err = h.svc.IngestScheduleCSV(c.Request.Context(), id, src)
	} else {
		raw, readErr := io.ReadAll(src)
		if readErr != nil {
			InternalError(c, "读取上传文件失败: "+readErr.Error())
			return
		}
		f, openErr := excelize.OpenReader(bytes.NewReader(raw))
		if openErr != nil {
			BadRequest(c, "解析Excel文件失败: "+openErr.Error())
			return
		}
		defer f.Close()
		result, err = h.svc.IngestSchedule(c.Request.Context(), id, f)
	}
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}
