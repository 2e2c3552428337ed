package booking

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/service/booking"
	"github.com/mindease/mindease-api/pkg/httputil"
)

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id", h.UpdateStatus)
	}
}

type listQuery struct {
	Upcoming bool   `form:"upcoming"`
	Status   string `form:"status"`
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req model.CreateBookingRequest
	if !httputil.BindJSON(c, &req) {
		return
	}

	b, err := h.service.Create(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, b)
}

func (h *Handler) ListBookings(c *gin.Context) {
	var q listQuery
	if !httputil.BindQuery(c, &q) {
		return
	}

	bookings, err := h.service.List(c.Request.Context(), middleware.Actor(c), model.BookingFilter{
		Upcoming: q.Upcoming,
		Status:   model.BookingStatus(q.Status),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, bookings)
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req model.UpdateBookingStatusRequest
	if !httputil.BindJSON(c, &req) {
		return
	}

	b, err := h.service.UpdateStatus(c.Request.Context(), middleware.Actor(c), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, b)
}
