package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type Order struct {
	ID            string        `json:"id"`
	CustomerID    *string       `json:"customerId,omitempty"`
	AddressID     *string       `json:"addressId,omitempty"`
	Total         float64       `json:"total"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentID     *string       `json:"paymentId,omitempty"`
	GuestName     *string       `json:"guestName,omitempty"`
	GuestEmail    *string       `json:"guestEmail,omitempty"`
	GuestPhone    *string       `json:"guestPhone,omitempty"`
	Items         []OrderItem   `json:"items,omitempty"`
	Address       *Address      `json:"address,omitempty"`
	Customer      *Customer     `json:"customer,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// OrderItem price is a snapshot of the unit price at order time.
type OrderItem struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"orderId"`
	ProductID *string `json:"productId,omitempty"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderItemRequest struct {
	ProductID *string `json:"productId"`
	VariantID *string `json:"variantId"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	// Price is informational only; the server resolves the authoritative price.
	Price float64 `json:"price"`
}

type CreateOrderRequest struct {
	CustomerID *string            `json:"customerId"`
	AddressID  *string            `json:"addressId"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	GuestName  *string            `json:"guestName"`
	GuestEmail *string            `json:"guestEmail" binding:"omitempty,email"`
	GuestPhone *string            `json:"guestPhone"`
}

type UpdateOrderRequest struct {
	Status        *OrderStatus   `json:"status" binding:"omitempty,oneof=PENDING CONFIRMED SHIPPED DELIVERED CANCELLED"`
	PaymentStatus *PaymentStatus `json:"paymentStatus" binding:"omitempty,oneof=PENDING PAID FAILED REFUNDED"`
}

type PaymentInitiateRequest struct {
	OrderID       string  `json:"orderId" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	CustomerName  string  `json:"customerName" binding:"required"`
	CustomerEmail string  `json:"customerEmail" binding:"required,email"`
	CustomerPhone string  `json:"customerPhone" binding:"required"`
}

type PaymentVerifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
	OrderID           string `json:"orderId" binding:"required"`
}

// PaymentStatusView is the reduced order projection returned by the status poll.
type PaymentStatusView struct {
	ID            string        `json:"id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentID     *string       `json:"paymentId"`
	Total         float64       `json:"total"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
