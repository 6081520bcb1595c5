package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type ReservationHandler struct {
	service reservation.UseCase
}

type passengerRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type createReservationRequest struct {
	TrainRunID  int64              `json:"train_run_id"`
	JourneyDate string             `json:"journey_date"`
	Passengers  []passengerRequest `json:"passengers"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type reservationResponse struct {
	PNR            string             `json:"pnr"`
	UserID         string             `json:"user_id"`
	TrainRunID     int64              `json:"train_run_id"`
	JourneyDate    string             `json:"journey_date"`
	PassengerCount int                `json:"passenger_count"`
	TotalFare      string             `json:"total_fare"`
	Status         string             `json:"status"`
	Passengers     []domain.Passenger `json:"passengers"`
	BookedAt       string             `json:"booked_at"`
	UpdatedAt      string             `json:"updated_at"`
}

type cancellationResponse struct {
	ID           string `json:"id"`
	PNR          string `json:"pnr"`
	Reason       string `json:"reason"`
	RefundAmount string `json:"refund_amount"`
	RefundStatus string `json:"refund_status"`
	CancelledBy  string `json:"cancelled_by"`
	CreatedAt    string `json:"created_at"`
}

func NewReservationHandler(service reservation.UseCase) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/:pnr", h.get)
	router.POST("/:pnr/cancel", h.cancel)
}

func (h *ReservationHandler) RegisterCancellations(router *gin.RouterGroup) {
	router.GET("", h.listCancellations)
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	journey, err := time.Parse(dateLayout, req.JourneyDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "journey_date must be YYYY-MM-DD", Field: "journey_date"})
		return
	}

	passengers := make([]domain.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = domain.Passenger{Name: p.Name, Age: p.Age, Gender: p.Gender}
	}

	res, err := h.service.Create(c.Request.Context(), reservation.CreateInput{
		UserID:      userID(c),
		TrainRunID:  req.TrainRunID,
		JourneyDate: journey,
		Passengers:  passengers,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) list(c *gin.Context) {
	list, err := h.service.ListByUser(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]reservationResponse, len(list))
	for i := range list {
		out[i] = toReservationResponse(&list[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *ReservationHandler) get(c *gin.Context) {
	res, err := h.service.GetByPNR(c.Request.Context(), c.Param("pnr"))
	if err != nil {
		writeError(c, err)
		return
	}
	if res.UserID != userID(c) {
		writeError(c, domain.ErrReservationNotFound)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}

	cancellation, err := h.service.Cancel(c.Request.Context(), c.Param("pnr"), req.Reason, reservation.ByUser(userID(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCancellationResponse(cancellation))
}

func (h *ReservationHandler) listCancellations(c *gin.Context) {
	list, err := h.service.ListCancellationsByUser(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]cancellationResponse, len(list))
	for i := range list {
		out[i] = toCancellationResponse(&list[i])
	}
	c.JSON(http.StatusOK, out)
}

func toReservationResponse(r *domain.Reservation) reservationResponse {
	return reservationResponse{
		PNR:            r.PNR,
		UserID:         r.UserID,
		TrainRunID:     r.TrainRunID,
		JourneyDate:    r.JourneyDate.Format(dateLayout),
		PassengerCount: r.PassengerCount,
		TotalFare:      r.TotalFare.String(),
		Status:         r.Status.String(),
		Passengers:     r.Passengers,
		BookedAt:       r.BookedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
}

func toCancellationResponse(c *domain.Cancellation) cancellationResponse {
	return cancellationResponse{
		ID:           c.ID,
		PNR:          c.PNR,
		Reason:       c.Reason,
		RefundAmount: c.RefundAmount.String(),
		RefundStatus: c.RefundStatus,
		CancelledBy:  string(c.CancelledBy),
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}
