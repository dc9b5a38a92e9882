package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/internal/domain/audit"
	"tombstone/internal/domain/product"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by ErrorHandler (single source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID parses the :id path parameter.
func (h *BaseHandler) ParseID(c *gin.Context) (id.ID, bool) {
	parsed, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id").WithDetail("id", c.Param("id")))
		return id.Nil(), false
	}
	return parsed, true
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// --- Product ---

// CreateProductRequest is the payload for product creation.
type CreateProductRequest struct {
	Code  string `json:"code" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Price string `json:"price" binding:"required"`
}

// UpdateProductRequest is the payload for product updates.
type UpdateProductRequest struct {
	Name  string `json:"name" binding:"required"`
	Price string `json:"price" binding:"required"`
}

// ProductResponse is the outbound product representation.
type ProductResponse struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Price        string     `json:"price"`
	DeletionMark bool       `json:"deletionMark"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	Version      int        `json:"version"`
}

func toProductResponse(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID.String(),
		Code:         p.Code,
		Name:         p.Name,
		Price:        p.Price.String(),
		DeletionMark: p.DeletionMark,
		DeletedAt:    p.DeletedAt,
		Version:      p.Version,
	}
}

// ProductHandler serves the product catalog endpoints.
type ProductHandler struct {
	*BaseHandler
	service *product.Service
}

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, service: service}
}

// Create handles POST /products.
func (h *ProductHandler) Create(c *gin.Context) {
	var req CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid price").WithDetail("price", req.Price))
		return
	}

	p := product.New(req.Code, req.Name, price)
	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, toProductResponse(p))
}

// List handles GET /products. With ?include_deleted=true marked rows
// appear in the listing as well.
func (h *ProductHandler) List(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"

	items, err := h.service.List(c.Request.Context(), includeDeleted)
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]ProductResponse, 0, len(items))
	for i := range items {
		out = append(out, toProductResponse(&items[i]))
	}
	h.OK(c, out)
}

// Get handles GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c)
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, toProductResponse(p))
}

// Update handles PUT /products/:id.
func (h *ProductHandler) Update(c *gin.Context) {
	productID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid price").WithDetail("price", req.Price))
		return
	}

	p, err := h.service.Get(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	p.Name = req.Name
	p.Price = price

	if err := h.service.Update(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, toProductResponse(p))
}

// Delete handles DELETE /products/:id. The product is marked, not erased.
func (h *ProductHandler) Delete(c *gin.Context) {
	productID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), productID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Restore handles POST /products/:id/restore.
func (h *ProductHandler) Restore(c *gin.Context) {
	productID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Restore(c.Request.Context(), productID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// --- Audit ---

// RecordEventRequest is the payload for appending an audit event.
type RecordEventRequest struct {
	Action  string `json:"action" binding:"required"`
	Subject string `json:"subject" binding:"required"`
}

// AuditHandler serves the audit event endpoints.
type AuditHandler struct {
	*BaseHandler
	service *audit.Service
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(base *BaseHandler, service *audit.Service) *AuditHandler {
	return &AuditHandler{BaseHandler: base, service: service}
}

// Record handles POST /audit-events.
func (h *AuditHandler) Record(c *gin.Context) {
	var req RecordEventRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ev, err := h.service.Record(c.Request.Context(), req.Action, req.Subject)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, ev)
}

// List handles GET /audit-events.
func (h *AuditHandler) List(c *gin.Context) {
	events, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, events)
}

// Purge handles DELETE /audit-events/:id. Events carry no deletion mark,
// so the row is physically removed.
func (h *AuditHandler) Purge(c *gin.Context) {
	eventID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Purge(c.Request.Context(), eventID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
