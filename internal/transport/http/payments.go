package http

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-payments/internal/database"
	"storefront-payments/internal/domain"
	"storefront-payments/internal/gateway"
	"storefront-payments/internal/qr"
	"storefront-payments/internal/service"
	"storefront-payments/internal/signature"
)

type paymentHandler struct {
	payments service.PaymentService
	verifier *signature.Codec
	qr       *qr.Builder
	gateway  gateway.Client
	db       *sql.DB
	logger   *slog.Logger
}

type initRequest struct {
	OrderID     string           `json:"orderId"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
}

func (h *paymentHandler) initiate(c *gin.Context) {
	var req initRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid order id"})
		return
	}

	res, err := h.payments.InitiatePayment(c.Request.Context(), orderID)
	if err != nil {
		h.initiateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"paymentUrl": res.RedirectURL,
		"paymentId":  res.GatewayPaymentID,
	})
}

func (h *paymentHandler) initiateError(c *gin.Context, err error) {
	var gerr *gateway.Error
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, domain.ErrOrderProcessed):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
	case errors.As(err, &gerr):
		c.JSON(http.StatusBadGateway, gin.H{
			"success":   false,
			"message":   gerr.Description,
			"errorCode": gerr.Code,
		})
	case errors.Is(err, gateway.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "payment service unavailable, try again later"})
	default:
		h.logger.Error("initiate payment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
	}
}

// result is the gateway's asynchronous webhook. Field names are the
// gateway's fixed contract. An already-settled payment is acknowledged with
// the same OK the first delivery got, otherwise the gateway retries forever.
func (h *paymentHandler) result(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	fields := make(map[string]string, len(c.Request.PostForm))
	for k := range c.Request.PostForm {
		fields[k] = c.Request.PostForm.Get(k)
	}
	sig := fields[signature.SigField]
	delete(fields, signature.SigField)

	if !h.verifier.Verify(fields, sig) {
		h.logger.Warn("webhook signature rejected", "order_id", fields["order_id"])
		c.JSON(http.StatusForbidden, gin.H{"error": "INVALID_SIGNATURE"})
		return
	}

	orderID, err := uuid.Parse(fields["order_id"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"result": "REJECTED", "reason": "ORDER_NOT_FOUND"})
		return
	}
	amount, err := decimal.NewFromString(fields["amount"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"result": "REJECTED", "reason": "AMOUNT_MISMATCH"})
		return
	}
	success := fields["result"] == "1"

	outcome, err := h.payments.Apply(
		c.Request.Context(),
		orderID,
		fields["payment_id"],
		amount,
		fields["currency"],
		success,
	)
	if err != nil {
		h.logger.Error("applying webhook result", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	switch outcome {
	case domain.OutcomeApplied, domain.OutcomeAlreadyApplied:
		c.JSON(http.StatusOK, gin.H{"result": "OK"})
	case domain.OutcomeOrderNotFound:
		c.JSON(http.StatusOK, gin.H{"result": "REJECTED", "reason": "ORDER_NOT_FOUND"})
	case domain.OutcomeAmountMismatch:
		c.JSON(http.StatusOK, gin.H{"result": "REJECTED", "reason": "AMOUNT_MISMATCH"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type checkRequest struct {
	OrderID string          `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
}

// check is the gateway's read-only availability probe before committing a
// payment.
func (h *paymentHandler) check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"result": "REJECTED", "reason": "ORDER_NOT_FOUND"})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"result": "REJECTED", "reason": "ORDER_NOT_FOUND"})
		return
	}

	switch err := h.payments.Check(c.Request.Context(), orderID, req.Amount); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"result": "OK"})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusOK, gin.H{"result": "REJECTED", "reason": "ORDER_NOT_FOUND"})
	case errors.Is(err, domain.ErrOrderProcessed):
		c.JSON(http.StatusOK, gin.H{"result": "REJECTED", "reason": "ORDER_ALREADY_PROCESSED"})
	case errors.Is(err, domain.ErrAmountMismatch):
		c.JSON(http.StatusOK, gin.H{"result": "REJECTED", "reason": "AMOUNT_MISMATCH"})
	case errors.Is(err, gateway.ErrUnavailable):
		c.JSON(http.StatusOK, gin.H{"result": "REJECTED", "reason": "SERVICE_UNAVAILABLE"})
	default:
		h.logger.Error("payment check", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *paymentHandler) status(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	snap, err := h.payments.Status(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := gin.H{
		"order": gin.H{
			"id":        snap.Order.ID,
			"amount":    snap.Order.TotalAmount,
			"status":    snap.Order.Status,
			"createdAt": snap.Order.CreatedAt,
		},
		"transaction": nil,
	}
	if snap.Transaction != nil {
		resp["transaction"] = gin.H{
			"id":               snap.Transaction.ID,
			"gatewayPaymentId": snap.Transaction.GatewayPaymentID,
			"amount":           snap.Transaction.Amount,
			"status":           snap.Transaction.Status,
			"updatedAt":        snap.Transaction.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *paymentHandler) qrPayload(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	snap, err := h.payments.Status(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	variant := qr.Variant(c.Query("bank"))
	url, err := h.qr.BuildURL(snap.Order.TotalAmount, snap.Order.ID.String(), variant)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := h.qr.Build(snap.Order.TotalAmount, snap.Order.ID.String())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payload": payload,
		"url":     url,
	})
}

func (h *paymentHandler) health(c *gin.Context) {
	dbStats := database.Health(h.db)
	gatewayUp := h.gateway.HealthCheck(c.Request.Context())
	healthy := gatewayUp && dbStats["status"] == "up"

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"healthy":  healthy,
		"gateway":  gatewayUp,
		"database": dbStats,
	})
}
