package equipment

import (
	"errors"
	"net/http"
	"strconv"

	"equiplend/internal/domain"
	"equiplend/internal/pkg/response"
	"equiplend/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.GET("/equipment", h.List)
	public.GET("/equipment/:id", h.Get)
}

type listQuery struct {
	Category string `form:"category"`
	Status   string `form:"status" validate:"omitempty,oneof=available borrowed"`
	Search   string `form:"search" validate:"max=100"`
	Limit    int    `form:"limit" validate:"gte=0,lte=100"`
	Offset   int    `form:"offset" validate:"gte=0"`
}

// List GET /equipment?category=&status=&search=
func (h *Handler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	if errs := validator.Validate(q); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", errs)
		return
	}

	items, err := h.svc.ListEquipment(c.Request.Context(), ListFilter{
		Category: q.Category,
		Status:   domain.EquipmentStatus(q.Status),
		Search:   q.Search,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	response.List(c, http.StatusOK, items, response.Page{Limit: limit, Offset: q.Offset, Count: len(items)})
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid equipment ID")
		return
	}

	e, err := h.svc.GetEquipment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"equipment": e})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Equipment not found")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}
