package handler

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type BOMHandler struct {
	svc       *service.BOMService
	importSvc *service.ImportService
	exportSvc *service.ExportService
}

func NewBOMHandler(svc *service.BOMService, importSvc *service.ImportService, exportSvc *service.ExportService) *BOMHandler {
	return &BOMHandler{svc: svc, importSvc: importSvc, exportSvc: exportSvc}
}

// List GET /boms
func (h *BOMHandler) List(c *gin.Context) {
	if filter := c.Query("component"); filter != "" {
		headers, err := h.svc.SearchByComponent(c.Request.Context(), filter)
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, headers)
		return
	}

	headers, err := h.svc.ListHeaders(c.Request.Context(), c.Query("search"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, headers)
}

// Get GET /boms/:id
func (h *BOMHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	header, err := h.svc.GetHeader(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, header)
}

// Create POST /boms
func (h *BOMHandler) Create(c *gin.Context) {
	var header entity.BOMHeader
	if err := c.ShouldBindJSON(&header); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if err := h.svc.CreateHeader(c.Request.Context(), &header, actor(c)); err != nil {
		Fail(c, err)
		return
	}
	Created(c, header)
}

// Update PUT /boms/:id
func (h *BOMHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var header entity.BOMHeader
	if err := c.ShouldBindJSON(&header); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	header.ID = id
	if err := h.svc.UpdateHeader(c.Request.Context(), &header, actor(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, header)
}

// Delete DELETE /boms/:id
func (h *BOMHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteHeader(c.Request.Context(), id, actor(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// AddLine POST /boms/:id/lines
func (h *BOMHandler) AddLine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var line entity.BOMLine
	if err := c.ShouldBindJSON(&line); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	line.BomID = id
	if err := h.svc.AddLine(c.Request.Context(), &line, actor(c)); err != nil {
		Fail(c, err)
		return
	}
	Created(c, line)
}

// UpdateLine PUT /boms/:id/lines/:lineId
func (h *BOMHandler) UpdateLine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(c, "lineId")
	if !ok {
		return
	}
	var line entity.BOMLine
	if err := c.ShouldBindJSON(&line); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	line.ID = lineID
	line.BomID = id
	if err := h.svc.UpdateLine(c.Request.Context(), &line, actor(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, line)
}

// DeleteLine DELETE /boms/:id/lines/:lineId
func (h *BOMHandler) DeleteLine(c *gin.Context) {
	lineID, ok := pathID(c, "lineId")
	if !ok {
		return
	}
	if err := h.svc.DeleteLine(c.Request.Context(), lineID, actor(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// Status GET /boms/:id/status
func (h *BOMHandler) Status(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if c.Query("detail") == "true" {
		detail, err := h.svc.GetBOMStatusDetail(c.Request.Context(), id)
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, detail)
		return
	}
	status, err := h.svc.GetBOMStatus(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"status": status})
}

// Validate GET /boms/:id/validate
func (h *BOMHandler) Validate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	problems, err := h.svc.ValidateStructure(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"valid": len(problems) == 0, "problems": problems})
}

// Expand GET /boms/expand?parent_item_id=1&qty=10&rev=A
func (h *BOMHandler) Expand(c *gin.Context) {
	parentItemID, err := strconv.ParseInt(c.Query("parent_item_id"), 10, 64)
	if err != nil || parentItemID <= 0 {
		BadRequest(c, "无效的parent_item_id参数")
		return
	}
	qty := 1.0
	if q := c.Query("qty"); q != "" {
		qty, err = strconv.ParseFloat(q, 64)
		if err != nil || qty <= 0 {
			BadRequest(c, "无效的qty参数")
			return
		}
	}

	lines, err := h.svc.Expand(c.Request.Context(), parentItemID, qty, c.Query("rev"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, lines)
}

// ImportMatrix POST /boms/import-matrix (multipart form, file字段)
func (h *BOMHandler) ImportMatrix(c *gin.Context) {
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

	raw, err := io.ReadAll(src)
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		BadRequest(c, "解析Excel文件失败: "+err.Error())
		return
	}
	defer f.Close()

	result, err := h.importSvc.ImportMatrix(c.Request.Context(), f, raw, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// ExportMatrix GET /boms/export-matrix
func (h *BOMHandler) ExportMatrix(c *gin.Context) {
	f, err := h.exportSvc.ExportMatrix(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	defer f.Close()

	writeExcel(c, f, fmt.Sprintf("bom-matrix-%s.xlsx", time.Now().Format("20060102")))
}

// writeExcel 以附件形式输出Excel文件
func writeExcel(c *gin.Context, f *excelize.File, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "写出Excel文件失败: "+err.Error())
	}
}
