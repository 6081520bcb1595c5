package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/service/payment"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service payment.UseCase
}

type payRequest struct {
	PNR        string `json:"pnr"`
	Method     string `json:"method"`
	CardNumber string `json:"card_number"`
	UPIID      string `json:"upi_id"`
	BankCode   string `json:"bank_code"`
}

type paymentResponse struct {
	ID            string  `json:"id"`
	PNR           string  `json:"pnr"`
	Amount        string  `json:"amount"`
	Method        string  `json:"method"`
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	FailureReason string  `json:"failure_reason,omitempty"`
	RetryCount    int     `json:"retry_count"`
	CardLast4     string  `json:"card_last4,omitempty"`
	UPIID         string  `json:"upi_id,omitempty"`
	BankName      string  `json:"bank_name,omitempty"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

type userPaymentResponse struct {
	paymentResponse
	JourneyDate string `json:"journey_date"`
}

type payResultResponse struct {
	Payment     paymentResponse     `json:"payment"`
	Reservation reservationResponse `json:"reservation"`
}

func NewPaymentHandler(service payment.UseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.pay)
	router.GET("/history", h.userHistory)
	router.GET("/:pnr", h.history)
}

// RegisterCallback mounts the gateway callback, which carries no user token.
func (h *PaymentHandler) RegisterCallback(router *gin.RouterGroup) {
	router.POST("/callback", h.callback)
}

func (h *PaymentHandler) pay(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := h.service.Pay(c.Request.Context(), payment.PayRequest{
		PNR:        req.PNR,
		UserID:     userID(c),
		Method:     domain.PaymentMethod(req.Method),
		CardNumber: req.CardNumber,
		UPIID:      req.UPIID,
		BankCode:   req.BankCode,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayResultResponse(result))
}

func (h *PaymentHandler) callback(c *gin.Context) {
	var cb payment.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	result, err := h.service.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayResultResponse(result))
}

func (h *PaymentHandler) history(c *gin.Context) {
	payments, err := h.service.History(c.Request.Context(), c.Param("pnr"), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]paymentResponse, len(payments))
	for i := range payments {
		out[i] = toPaymentResponse(&payments[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) userHistory(c *gin.Context) {
	payments, err := h.service.UserHistory(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]userPaymentResponse, len(payments))
	for i := range payments {
		out[i] = userPaymentResponse{
			paymentResponse: toPaymentResponse(&payments[i].Payment),
			JourneyDate:     payments[i].JourneyDate.Format(dateLayout),
		}
	}
	c.JSON(http.StatusOK, out)
}

func toPayResultResponse(r *payment.Result) payResultResponse {
	return payResultResponse{
		Payment:     toPaymentResponse(&r.Payment),
		Reservation: toReservationResponse(&r.Reservation),
	}
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	resp := paymentResponse{
		ID:            p.ID,
		PNR:           p.PNR,
		Amount:        p.Amount.String(),
		Method:        string(p.Method),
		TransactionID: p.TransactionID,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		RetryCount:    p.RetryCount,
		CardLast4:     p.CardLast4,
		UPIID:         p.UPIID,
		BankName:      p.BankName,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
	if p.CompletedAt != nil {
		s := p.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}
