// Package payment integrates the Razorpay-style payment gateway: creating
// remote payment orders and verifying completion callbacks.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrAmountMismatch is returned when the client-declared payment amount
// disagrees with the persisted order total.
var ErrAmountMismatch = errors.New("order amount mismatch")

// Config holds the gateway credentials and endpoint, injected at construction
// so tests can point the adapter at a fake gateway.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// RemoteOrder is the gateway's payment-intent record. The front end renders
// the payment UI from its id plus the public key.
type RemoteOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Gateway struct {
	cfg     Config
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewGateway(cfg Config, logger *zap.Logger) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetRetryCount(0)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Gateway{cfg: cfg, client: client, breaker: breaker, logger: logger}
}

// Key returns the public key id the front end needs to render the payment UI.
func (g *Gateway) Key() string {
	return g.cfg.KeyID
}

// Paise converts a rupee amount to the gateway's integer minor unit.
func Paise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateOrder registers a payment order with the gateway for the given amount
// and returns the remote record. The internal order id travels as the receipt.
func (g *Gateway) CreateOrder(ctx context.Context, orderID string, amount float64) (*RemoteOrder, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		var remote RemoteOrder
		resp, err := g.client.R().
			SetContext(ctx).
			SetBody(map[string]any{
				"amount":   Paise(amount),
				"currency": "INR",
				"receipt":  orderID,
			}).
			SetResult(&remote).
			Post("/v1/orders")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("gateway returned %s", resp.Status())
		}
		return &remote, nil
	})
	if err != nil {
		g.logger.Error("Gateway order creation failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	remote := result.(*RemoteOrder)
	g.logger.Info("Gateway order created",
		zap.String("order_id", orderID),
		zap.String("gateway_order_id", remote.ID),
	)
	return remote, nil
}

// VerifySignature recomputes the callback signature, an HMAC-SHA256 over
// "gatewayOrderID|gatewayPaymentID" keyed with the secret, and compares it to
// the supplied one. Equality is required before any other callback field is
// trusted.
func (g *Gateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.cfg.KeySecret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
