package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AddressHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAddressHandler(db *sql.DB, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{db: db, logger: logger}
}

const addressColumns = "id, customer_id, full_name, phone, line1, line2, city, state, postal_code, country, is_default, created_at"

func scanAddress(row interface{ Scan(...any) error }) (*models.Address, error) {
	var a models.Address
	err := row.Scan(&a.ID, &a.CustomerID, &a.FullName, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAddresses returns the customer's addresses, default first.
func (h *AddressHandler) ListAddresses(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+addressColumns+" FROM addresses WHERE customer_id = $1 ORDER BY is_default DESC, created_at DESC",
		middleware.UserID(c))
	if err != nil {
		h.logger.Error("Failed to list addresses", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer rows.Close()

	addresses := []models.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			h.logger.Error("Failed to scan address", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		addresses = append(addresses, *a)
	}

	response.Success(c, http.StatusOK, addresses, "")
}

// CreateAddress persists a shipping address. Anonymous requests create an
// unowned address for guest checkout. Setting a new default clears the flag
// on the customer's other addresses, so at most one default exists.
func (h *AddressHandler) CreateAddress(c *gin.Context) {
	var req models.CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	var customerID *string
	if id := middleware.UserID(c); id != "" {
		customerID = &id
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	if customerID != nil && req.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE addresses SET is_default = FALSE WHERE customer_id = $1", *customerID); err != nil {
			h.logger.Error("Failed to clear default addresses", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	address := models.Address{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		FullName:   req.FullName,
		Phone:      req.Phone,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		IsDefault:  req.IsDefault && customerID != nil,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO addresses (id, customer_id, full_name, phone, line1, line2, city, state, postal_code, country, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING created_at`,
		address.ID, address.CustomerID, address.FullName, address.Phone, address.Line1, address.Line2,
		address.City, address.State, address.PostalCode, address.Country, address.IsDefault,
	).Scan(&address.CreatedAt)
	if err != nil {
		h.logger.Error("Failed to create address", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := tx.Commit(); err != nil {
		h.logger.Error("Failed to commit address", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusCreated, address, "Address created successfully")
}

// UpdateAddress patches one of the customer's own addresses.
func (h *AddressHandler) UpdateAddress(c *gin.Context) {
	var req models.CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	customerID := middleware.UserID(c)
	id := c.Param("id")

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	if req.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE addresses SET is_default = FALSE WHERE customer_id = $1 AND id <> $2",
			customerID, id); err != nil {
			h.logger.Error("Failed to clear default addresses", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	address, err := scanAddress(tx.QueryRowContext(ctx,
		`UPDATE addresses SET full_name = $1, phone = $2, line1 = $3, line2 = $4,
			city = $5, state = $6, postal_code = $7, country = $8, is_default = $9
		 WHERE id = $10 AND customer_id = $11 RETURNING `+addressColumns,
		req.FullName, req.Phone, req.Line1, req.Line2, req.City, req.State,
		req.PostalCode, req.Country, req.IsDefault, id, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		response.NotFound(c, "Address not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to update address", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := tx.Commit(); err != nil {
		h.logger.Error("Failed to commit address", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, address, "Address updated successfully")
}

// DeleteAddress removes one of the customer's own addresses.
func (h *AddressHandler) DeleteAddress(c *gin.Context) {
	res, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM addresses WHERE id = $1 AND customer_id = $2",
		c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.logger.Error("Failed to delete address", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.NotFound(c, "Address not found")
		return
	}

	response.Success(c, http.StatusOK, nil, "Address deleted successfully")
}
