package models

import "time"

// Address belongs to a customer, or to nobody for guest checkout. At most one
// of a customer's addresses carries IsDefault at a time.
type Address struct {
	ID         string    `json:"id"`
	CustomerID *string   `json:"customerId,omitempty"`
	FullName   string    `json:"fullName"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateAddressRequest struct {
	FullName   string  `json:"fullName" binding:"required"`
	Phone      string  `json:"phone" binding:"required"`
	Line1      string  `json:"line1" binding:"required"`
	Line2      *string `json:"line2"`
	City       string  `json:"city" binding:"required"`
	State      string  `json:"state" binding:"required"`
	PostalCode string  `json:"postalCode" binding:"required"`
	Country    string  `json:"country" binding:"required"`
	IsDefault  bool    `json:"isDefault"`
}
