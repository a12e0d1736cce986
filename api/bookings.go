package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/Domenick1991/hotelbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets a client retry POST /reservation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

type BookingHandler struct {
	service booking.BookingUseCase
}

type checkInRequest struct {
	ID string `json:"id" binding:"required"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.PUT("", h.checkIn)
	router.GET("", h.list)
	router.GET("/:id", h.get)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req domain.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		Request:        req,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, booking.ErrValidation) {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *BookingHandler) checkIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	result, err := h.service.ConfirmCheckIn(c.Request.Context(), req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.ListBookings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Message: err.Error()})
		return
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) get(c *gin.Context) {
	found, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, booking.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, errorResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, found)
}
