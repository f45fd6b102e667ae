package handlers

import (
	"errors"
	"net/http"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/orders"
	"storefront-svc/payment"
	"storefront-svc/response"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	gateway    *payment.Gateway
	store      *orders.Store
	reconciler *orders.Reconciler
	logger     *zap.Logger
}

func NewPaymentHandler(
	gateway *payment.Gateway,
	store *orders.Store,
	reconciler *orders.Reconciler,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		gateway:    gateway,
		store:      store,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Initiate creates the gateway payment order for an existing order. The
// declared amount must equal the persisted total before any gateway traffic
// happens; a retry after a failed payment re-enters here against the same
// order.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "PaymentInitiate")
	defer span.End()

	var req models.PaymentInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	span.SetAttributes(attribute.String("order.id", req.OrderID))

	view, err := h.store.StatusView(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			response.NotFound(c, "Order not found")
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to load order", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if payment.Paise(req.Amount) != payment.Paise(view.Total) {
		span.SetAttributes(attribute.Bool("amount.mismatch", true))
		response.Error(c, http.StatusBadRequest, payment.ErrAmountMismatch.Error())
		return
	}

	remote, err := h.gateway.CreateOrder(ctx, req.OrderID, req.Amount)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Payment initiation failed",
			zap.String("order_id", req.OrderID), zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, "Payment gateway unavailable")
		return
	}

	if err := h.reconciler.MarkPending(ctx, req.OrderID); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to mark payment pending",
			zap.String("order_id", req.OrderID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"orderId":    req.OrderID,
		"razorOrder": remote,
		"key":        h.gateway.Key(),
	}, "")
}

// Verify checks the callback signature and reconciles order state. A failed
// check still persists paymentStatus=FAILED so polling clients see a
// definitive state, and never yields PAID.
func (h *PaymentHandler) Verify(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "PaymentVerify")
	defer span.End()

	var req models.PaymentVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	span.SetAttributes(attribute.String("order.id", req.OrderID))

	if !h.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		span.SetAttributes(attribute.Bool("signature.valid", false))
		if err := h.reconciler.MarkFailed(ctx, req.OrderID); err != nil {
			if errors.Is(err, orders.ErrOrderNotFound) {
				response.NotFound(c, "Order not found")
				return
			}
			span.RecordError(err)
			h.logger.Error("Failed to mark payment failed",
				zap.String("order_id", req.OrderID), zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		middleware.RecordPaymentProcessed("failed")
		h.logger.Warn("Payment signature verification failed",
			zap.String("order_id", req.OrderID),
			zap.String("gateway_order_id", req.RazorpayOrderID),
		)
		response.Error(c, http.StatusBadRequest, "Invalid signature verification")
		return
	}

	order, err := h.reconciler.MarkPaid(ctx, req.OrderID, req.RazorpayPaymentID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			response.NotFound(c, "Order not found")
		case errors.Is(err, orders.ErrPaymentConflict):
			response.Error(c, http.StatusConflict, err.Error())
		default:
			span.RecordError(err)
			h.logger.Error("Failed to mark payment paid",
				zap.String("order_id", req.OrderID), zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	middleware.RecordPaymentProcessed("success")
	response.Success(c, http.StatusOK, gin.H{
		"order":   order,
		"message": "Payment successful",
	}, "")
}

// Status is the reduced polling endpoint the checkout flow watches while the
// gateway callback is in flight.
func (h *PaymentHandler) Status(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "PaymentStatus")
	defer span.End()

	view, err := h.store.StatusView(ctx, c.Param("orderId"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			response.NotFound(c, "Order not found")
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get payment status", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, view, "")
}
