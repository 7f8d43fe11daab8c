package handler

import (
	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/service"
	"github.com/gin-gonic/gin"
)

type ItemHandler struct {
	svc *service.ItemService
}

func NewItemHandler(svc *service.ItemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

// List GET /items
func (h *ItemHandler) List(c *gin.Context) {
	if text := c.Query("search"); text != "" {
		items, err := h.svc.Search(c.Request.Context(), text)
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, items)
		return
	}
	if kind := c.Query("type"); kind != "" {
		items, err := h.svc.ByType(c.Request.Context(), kind)
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, items)
		return
	}

	activeOnly := c.Query("all") != "true"
	items, err := h.svc.GetAll(c.Request.Context(), activeOnly)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

// Get GET /items/:id
func (h *ItemHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// Create POST /items
func (h *ItemHandler) Create(c *gin.Context) {
	var item entity.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if err := h.svc.Create(c.Request.Context(), &item); err != nil {
		Fail(c, err)
		return
	}
	Created(c, item)
}

// Update PUT /items/:id
func (h *ItemHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var item entity.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	item.ID = id
	if err := h.svc.Update(c.Request.Context(), &item); err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// Delete DELETE /items/:id
func (h *ItemHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.SoftDelete(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// ParentCandidates GET /items/:id/parent-candidates
func (h *ItemHandler) ParentCandidates(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.GetParentCandidates(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

// Children GET /items/:id/children
func (h *ItemHandler) Children(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.Children(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

// Hierarchy GET /items/:id/hierarchy
func (h *ItemHandler) Hierarchy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.Hierarchy(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}
