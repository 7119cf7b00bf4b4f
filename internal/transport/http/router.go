package http

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront-payments/internal/gateway"
	"storefront-payments/internal/qr"
	"storefront-payments/internal/service"
	"storefront-payments/internal/signature"
)

func NewRouter(
	orders service.OrderService,
	payments service.PaymentService,
	verifier *signature.Codec,
	qrBuilder *qr.Builder,
	gw gateway.Client,
	db *sql.DB,
	logger *slog.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors.Default())

	oh := &orderHandler{orders: orders}
	ph := &paymentHandler{
		payments: payments,
		verifier: verifier,
		qr:       qrBuilder,
		gateway:  gw,
		db:       db,
		logger:   logger,
	}

	r.POST("/orders", oh.create)
	r.POST("/orders/:orderId/fulfillment", oh.fulfillment)

	r.POST("/payments/init", ph.initiate)
	r.POST("/payments/result", ph.result)
	r.POST("/payments/check", ph.check)
	r.GET("/payments/status/:orderId", ph.status)
	r.GET("/payments/qr/:orderId", ph.qrPayload)
	r.GET("/payments/health", ph.health)

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
