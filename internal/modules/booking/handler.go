package booking

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"equiplend/internal/domain"
	"equiplend/internal/middleware"
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

// RegisterRoutes mounts the booking routes. createMW runs in front of
// POST /bookings only (rate limiting).
func (h *Handler) RegisterRoutes(public, protected, admin *gin.RouterGroup, createMW ...gin.HandlerFunc) {
	if public != nil {
		public.GET("/equipment/:id/availability", h.CheckAvailability)
	}

	if protected != nil {
		protected.GET("/equipment/:id/bookings", h.ListEquipmentBookings)
		protected.POST("/bookings", append(createMW, h.CreateBooking)...)
		protected.GET("/bookings/me", h.ListMyBookings)
		protected.GET("/bookings/:id", h.GetBooking)
		protected.PATCH("/bookings/:id/cancel", h.CancelBooking)
	}

	if admin != nil {
		admin.GET("/bookings", h.ListAllBookings)
	}
}

// CheckAvailability GET /equipment/:id/availability?start_datetime=&duration_hours=
func (h *Handler) CheckAvailability(c *gin.Context) {
	equipmentID, ok := pathID(c, "Invalid equipment ID")
	if !ok {
		return
	}

	var q AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	if errs := validator.Validate(q); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", errs)
		return
	}
	start, err := time.Parse(time.RFC3339, q.StartDatetime)
	if err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters",
			map[string]string{"start_datetime": "rfc3339"})
		return
	}

	av, err := h.svc.CheckAvailability(c.Request.Context(), equipmentID, start, q.DurationHours)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, av)
}

// CreateBooking POST /bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var body CreateBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(body); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	b, err := h.svc.CreateBooking(c.Request.Context(), p, CreateBookingRequest{
		EquipmentID:   body.EquipmentID,
		Start:         body.StartDatetime,
		DurationHours: body.DurationHours,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"booking": b})
}

// CancelBooking PATCH /bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Invalid booking ID")
	if !ok {
		return
	}

	b, err := h.svc.CancelBooking(c.Request.Context(), p, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) GetBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Invalid booking ID")
	if !ok {
		return
	}

	b, err := h.svc.GetBooking(c.Request.Context(), p, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) ListMyBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	q, ok := bindListQuery(c)
	if !ok {
		return
	}

	items, err := h.svc.ListMyBookings(c.Request.Context(), p, ListFilter{
		Status:      domain.BookingStatus(q.Status),
		EquipmentID: q.EquipmentID,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	limit, offset := normalizePage(q.Limit, q.Offset)
	response.List(c, http.StatusOK, items, response.Page{Limit: limit, Offset: offset, Count: len(items)})
}

// ListAllBookings GET /admin/bookings
func (h *Handler) ListAllBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	q, ok := bindListQuery(c)
	if !ok {
		return
	}

	items, err := h.svc.ListAllBookings(c.Request.Context(), p, ListFilter{
		Status:      domain.BookingStatus(q.Status),
		EquipmentID: q.EquipmentID,
		UserID:      q.UserID,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	limit, offset := normalizePage(q.Limit, q.Offset)
	response.List(c, http.StatusOK, items, response.Page{Limit: limit, Offset: offset, Count: len(items)})
}

// ListEquipmentBookings GET /equipment/:id/bookings?start_date=&end_date=
func (h *Handler) ListEquipmentBookings(c *gin.Context) {
	equipmentID, ok := pathID(c, "Invalid equipment ID")
	if !ok {
		return
	}

	var q EquipmentBookingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}

	loc := h.svc.policy.DayLocation
	from, err := parseBound(q.StartDate, loc)
	if err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters",
			map[string]string{"start_date": "date"})
		return
	}
	to, err := parseBound(q.EndDate, loc)
	if err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters",
			map[string]string{"end_date": "date"})
		return
	}
	// A bare end date includes that whole day.
	if !to.IsZero() && !strings.Contains(q.EndDate, "T") {
		to = to.AddDate(0, 0, 1)
	}

	items, err := h.svc.ListEquipmentBookings(c.Request.Context(), equipmentID, from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

func bindListQuery(c *gin.Context) (ListBookingsQuery, bool) {
	var q ListBookingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return q, false
	}
	if errs := validator.Validate(q); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", errs)
		return q, false
	}
	return q, true
}

func parseBound(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if strings.Contains(v, "T") {
		return time.Parse(time.RFC3339, v)
	}
	return time.ParseInLocation(domain.DayLayout, v, loc)
}

func principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return domain.Principal{}, false
	}
	return p, true
}

func pathID(c *gin.Context, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", msg)
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", msg)
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", msg)
	case errors.Is(err, ErrConflict):
		response.Error(c, http.StatusConflict, "BOOKING_CONFLICT", msg)
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", msg)
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}
