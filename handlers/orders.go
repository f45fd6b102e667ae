package handlers

import (
	"errors"
	"net/http"

	"storefront-svc/cache"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/orders"
	"storefront-svc/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderHandler struct {
	builder     *orders.Builder
	store       *orders.Store
	reconciler  *orders.Reconciler
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewOrderHandler(
	builder *orders.Builder,
	store *orders.Store,
	reconciler *orders.Reconciler,
	redisClient *redis.Client,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		builder:     builder,
		store:       store,
		reconciler:  reconciler,
		redisClient: redisClient,
		logger:      logger,
	}
}

// CreateOrder creates an order for the authenticated customer. The customer
// id always comes from the token, never from the body.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	customerID := middleware.UserID(c)
	req.CustomerID = &customerID
	req.GuestName, req.GuestEmail, req.GuestPhone = nil, nil, nil

	span.SetAttributes(
		attribute.String("customer.id", customerID),
		attribute.Int("items.count", len(req.Items)),
	)

	order, touched, err := h.builder.Create(ctx, &req)
	if err != nil {
		span.RecordError(err)
		h.respondBuildError(c, err)
		return
	}

	h.invalidateProducts(c, touched)
	middleware.RecordOrderCreated("customer")
	span.SetAttributes(attribute.String("order.id", order.ID))
	response.Success(c, http.StatusCreated, order, "Order created successfully")
}

// CreateGuestOrder creates an order without authentication; guest name and
// email are mandatory.
func (h *OrderHandler) CreateGuestOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "CreateGuestOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if req.GuestName == nil || *req.GuestName == "" || req.GuestEmail == nil || *req.GuestEmail == "" {
		response.Error(c, http.StatusBadRequest, "Guest name and email are required for guest orders")
		return
	}
	req.CustomerID = nil

	order, touched, err := h.builder.Create(ctx, &req)
	if err != nil {
		span.RecordError(err)
		h.respondBuildError(c, err)
		return
	}

	h.invalidateProducts(c, touched)
	middleware.RecordOrderCreated("guest")
	span.SetAttributes(attribute.String("order.id", order.ID))
	response.Success(c, http.StatusCreated, order, "Guest order created successfully")
}

// GetOrder returns one of the authenticated customer's own orders. Orders of
// other customers, and guest orders, answer 404.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))

	order, err := h.store.GetOwned(ctx, id, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			response.NotFound(c, "Order not found")
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, order, "")
}

// ListOrders returns the authenticated customer's orders, newest first.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "ListOrders")
	defer span.End()

	list, err := h.store.ListByCustomer(ctx, middleware.UserID(c))
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list orders", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, list, "")
}

// AdminListOrders returns every order.
func (h *OrderHandler) AdminListOrders(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "AdminListOrders")
	defer span.End()

	list, err := h.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list orders", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, list, "")
}

// AdminGetOrder returns any order by id, with items and relations.
func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "AdminGetOrder")
	defer span.End()

	order, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			response.NotFound(c, "Order not found")
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, order, "")
}

// AdminUpdateOrder applies a manual status/paymentStatus override. These are
// not gated by payment state; cancellation of an unpaid order releases its
// stock.
func (h *OrderHandler) AdminUpdateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "AdminUpdateOrder")
	defer span.End()

	var req models.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))

	order, err := h.reconciler.AdminUpdate(ctx, id, &req)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			response.NotFound(c, "Order not found")
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update order", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, order, "Order updated successfully")
}

func (h *OrderHandler) respondBuildError(c *gin.Context, err error) {
	var (
		notFound *orders.NotFoundError
		noStock  *orders.InsufficientStockError
	)
	switch {
	case errors.As(err, &notFound):
		response.NotFound(c, notFound.Error())
	case errors.As(err, &noStock):
		response.Error(c, http.StatusBadRequest, noStock.Error())
	case errors.Is(err, orders.ErrNoItems), errors.Is(err, orders.ErrGuestOrCustomer):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Failed to create order", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *OrderHandler) invalidateProducts(c *gin.Context, productIDs []string) {
	if h.redisClient == nil {
		return
	}
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if err := cache.DeleteProduct(c.Request.Context(), h.redisClient, id); err != nil {
			h.logger.Warn("Failed to invalidate product cache",
				zap.String("product_id", id), zap.Error(err))
		}
	}
}
