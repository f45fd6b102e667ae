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
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	db     *sql.DB
	auth   *middleware.Auth
	logger *zap.Logger
}

func NewAuthHandler(db *sql.DB, auth *middleware.Auth, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, auth: auth, logger: logger}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	// Check if customer already exists
	var existingID string
	err := h.db.QueryRow("SELECT id FROM customers WHERE email = $1", req.Email).Scan(&existingID)
	if err == nil {
		response.Error(c, http.StatusConflict, "Customer already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Database error", zap.String("trace_id", traceID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Failed to hash password", zap.String("trace_id", traceID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	var customer models.Customer
	err = h.db.QueryRow(
		`INSERT INTO customers (id, name, email, phone, password_hash)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, name, email, phone, created_at`,
		uuid.NewString(), req.Name, req.Email, req.Phone, string(hashedPassword),
	).Scan(&customer.ID, &customer.Name, &customer.Email, &customer.Phone, &customer.CreatedAt)
	if err != nil {
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Failed to create customer", zap.String("trace_id", traceID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Customer registered", zap.String("email", req.Email))
	response.Success(c, http.StatusCreated, customer, "Registered successfully")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	var customer models.Customer
	err := h.db.QueryRow(
		"SELECT id, name, email, phone, password_hash, created_at FROM customers WHERE email = $1",
		req.Email,
	).Scan(&customer.ID, &customer.Name, &customer.Email, &customer.Phone, &customer.PasswordHash, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Database error", zap.String("trace_id", traceID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(req.Password)); err != nil {
		response.Error(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.auth.GenerateToken(customer.ID, customer.Email, customer.Name, middleware.RoleCustomer)
	if err != nil {
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Failed to generate token", zap.String("trace_id", traceID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Customer logged in", zap.String("email", req.Email))
	response.Success(c, http.StatusOK, models.LoginResponse{
		Token:    token,
		Customer: customer,
	}, "")
}

// Me returns the authenticated customer's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	var customer models.Customer
	err := h.db.QueryRow(
		"SELECT id, name, email, phone, created_at FROM customers WHERE id = $1",
		middleware.UserID(c),
	).Scan(&customer.ID, &customer.Name, &customer.Email, &customer.Phone, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.NotFound(c, "Customer not found")
			return
		}
		h.logger.Error("Database error", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, customer, "")
}

// AdminLogin authenticates back-office users against the admins table.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	var admin models.Admin
	err := h.db.QueryRow(
		"SELECT id, name, email, password_hash, role, created_at FROM admins WHERE email = $1",
		req.Email,
	).Scan(&admin.ID, &admin.Name, &admin.Email, &admin.PasswordHash, &admin.Role, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("Database error", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		response.Error(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.auth.GenerateToken(admin.ID, admin.Email, admin.Name, middleware.RoleAdmin)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Admin logged in", zap.String("email", req.Email))
	response.Success(c, http.StatusOK, models.AdminLoginResponse{
		Token: token,
		Admin: admin,
	}, "")
}
