package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	Reservations *ReservationHandler
	Payments     *PaymentHandler
	Trains       *TrainHandler
}

type RouterConfig struct {
	JWTSecret      string
	CallbackSecret string
}

func NewRouter(h Handlers, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), Logger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	h.Trains.Register(v1.Group("/trains"))
	h.Payments.RegisterCallback(v1.Group("/payments", CallbackToken(cfg.CallbackSecret)))

	authed := v1.Group("", JWTAuth(cfg.JWTSecret))
	h.Reservations.Register(authed.Group("/reservations"))
	h.Reservations.RegisterCancellations(authed.Group("/cancellations"))
	h.Payments.Register(authed.Group("/payments"))

	return router
}
