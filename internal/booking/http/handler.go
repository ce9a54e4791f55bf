package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/studyspace-booking/internal/auth"
	"github.com/nekogravitycat/studyspace-booking/internal/booking"
	"github.com/nekogravitycat/studyspace-booking/internal/pkg/request"
	"github.com/nekogravitycat/studyspace-booking/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

// SpaceSlots returns the slot grid of a single space.
func (h *Handler) SpaceSlots(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var req SlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	req.SpaceIDs = []string{uri.ID}

	h.slots(c, req)
}

// Slots returns the slot grid of every offerable space selected by the query.
func (h *Handler) Slots(c *gin.Context) {
	var req SlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	h.slots(c, req)
}

func (h *Handler) slots(c *gin.Context, req SlotsRequest) {
	date, err := parseDate(req.Date, h.service.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slots, err := h.service.GetAvailableSlots(c.Request.Context(), booking.SlotQuery{
		SpaceIDs:  req.SpaceIDs,
		Building:  req.Building,
		Campus:    req.Campus,
		Level:     req.Level,
		Date:      date,
		StudentID: auth.GetStudentID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SlotResponse, len(slots))
	for i, s := range slots {
		items[i] = NewSlotResponse(s)
	}
	c.JSON(http.StatusOK, response.NewItemsResponse(items))
}

func (h *Handler) Durations(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var req DurationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	date, err := parseDate(req.Date, h.service.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hour, minute, err := parseClock(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	durations, err := h.service.GetAvailableDurations(c.Request.Context(), uri.ID, date, hour, minute)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, DurationsResponse{Date: req.Date, Start: req.Start, Durations: durations})
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	studentID := auth.GetStudentID(c)
	if studentID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	candidate, err := req.ToDomain(studentID, h.service.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.service.Create(c.Request.Context(), candidate)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

// List returns the caller's ACTIVE bookings.
func (h *Handler) List(c *gin.Context) {
	bookings, err := h.service.ListActive(c.Request.Context(), auth.GetStudentID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	c.JSON(http.StatusOK, response.NewItemsResponse(items))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), req.ID, auth.GetStudentID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// Delete cancels a booking. Cancelling an already removed booking succeeds.
func (h *Handler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), req.ID, auth.GetStudentID(c)); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Sweep runs the lifecycle maintenance pass on demand.
func (h *Handler) Sweep(c *gin.Context) {
	ctx := c.Request.Context()

	completed, err := h.service.SweepCompleted(ctx, h.service.Now())
	if err != nil {
		response.Error(c, err)
		return
	}

	purged, err := h.service.PurgeTerminal(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, SweepResponse{Completed: completed, Purged: purged})
}
