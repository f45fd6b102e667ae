package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/orders"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func strPtr(s string) *string { return &s }

func addressRow(id string, customerID any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "customer_id", "full_name", "phone", "line1", "line2",
		"city", "state", "postal_code", "country", "is_default", "created_at",
	}).AddRow(id, customerID, "Jane Guest", "9999999999", "12 Main St", nil,
		"Pune", "MH", "411001", "IN", false, time.Now())
}

func jsonBody(t *testing.T, body any) *bytes.Buffer {
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	return bytes.NewBuffer(data)
}

// setupOrderTest wires the order handler behind the same route layout main
// registers, with a stub auth middleware that plants a fixed customer id.
func setupOrderTest(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	handler := NewOrderHandler(
		orders.NewBuilder(db, logger),
		orders.NewStore(db),
		orders.NewReconciler(db, logger),
		nil, // no cache in tests
		logger,
	)

	asCustomer := func(c *gin.Context) {
		c.Set(middleware.CtxUserID, "cust-1")
		c.Set(middleware.CtxRole, middleware.RoleCustomer)
		c.Next()
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/orders/guest", handler.CreateGuestOrder)
	router.POST("/orders", asCustomer, handler.CreateOrder)
	router.GET("/orders/:id", asCustomer, handler.GetOrder)
	router.GET("/orders", asCustomer, handler.ListOrders)
	router.PUT("/admin/orders/:id", handler.AdminUpdateOrder)

	return mock, router
}

func TestOrderHandler_CreateGuestOrder_Success(t *testing.T) {
	mock, router := setupOrderTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price FROM products WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(199.99))
	mock.ExpectExec("UPDATE products SET stock = stock - \\$1").
		WithArgs(2, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), nil, "a1", 399.98,
			models.OrderStatusPending, models.PaymentStatusPending,
			"Jane Guest", "jane@example.com", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", nil, 2, 199.99).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM addresses WHERE id = \\$1").
		WithArgs("a1").
		WillReturnRows(addressRow("a1", nil))

	w := postJSON(t, router, "/orders/guest", models.CreateOrderRequest{
		AddressID: strPtr("a1"),
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("p1"), Quantity: 2, Price: 1.00},
		},
		GuestName:  strPtr("Jane Guest"),
		GuestEmail: strPtr("jane@example.com"),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	var envelope struct {
		Success bool         `json:"success"`
		Data    models.Order `json:"data"`
		Message string       `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if envelope.Data.Total != 399.98 {
		t.Errorf("Expected server-resolved total 399.98, got %v", envelope.Data.Total)
	}
	if envelope.Data.GuestName == nil || *envelope.Data.GuestName != "Jane Guest" {
		t.Errorf("Expected guest name to round-trip, got %+v", envelope.Data.GuestName)
	}
	if envelope.Data.Address == nil || envelope.Data.Address.ID != "a1" {
		t.Errorf("Expected embedded shipping address a1, got %+v", envelope.Data.Address)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_CreateGuestOrder_MissingGuestFields(t *testing.T) {
	_, router := setupOrderTest(t)

	w := postJSON(t, router, "/orders/guest", models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("p1"), Quantity: 1},
		},
		GuestName: strPtr("Jane Guest"),
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if envelope.Error != "Guest name and email are required for guest orders" {
		t.Errorf("Unexpected error message: %q", envelope.Error)
	}
}

func TestOrderHandler_CreateGuestOrder_InsufficientStock(t *testing.T) {
	mock, router := setupOrderTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price FROM products WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(199.99))
	mock.ExpectExec("UPDATE products SET stock = stock - \\$1").
		WithArgs(5, "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	w := postJSON(t, router, "/orders/guest", models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("p1"), Quantity: 5},
		},
		GuestName:  strPtr("Jane Guest"),
		GuestEmail: strPtr("jane@example.com"),
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
}

// The customer id always comes from the token; body-supplied identity and
// guest fields are discarded on the authenticated route.
func TestOrderHandler_CreateOrder_IdentityFromToken(t *testing.T) {
	mock, router := setupOrderTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price FROM products WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(199.99))
	mock.ExpectExec("UPDATE products SET stock = stock - \\$1").
		WithArgs(1, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), "cust-1", nil, 199.99,
			models.OrderStatusPending, models.PaymentStatusPending,
			nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", nil, 1, 199.99).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, name, email, phone, created_at FROM customers WHERE id = \\$1").
		WithArgs("cust-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "created_at"}).
			AddRow("cust-1", "Jane Doe", "jane@example.com", nil, time.Now()))

	w := postJSON(t, router, "/orders", models.CreateOrderRequest{
		CustomerID: strPtr("someone-else"),
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("p1"), Quantity: 1},
		},
		GuestName:  strPtr("Spoofed"),
		GuestEmail: strPtr("spoof@example.com"),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if envelope.Data.Customer == nil || envelope.Data.Customer.ID != "cust-1" {
		t.Errorf("Expected embedded customer cust-1, got %+v", envelope.Data.Customer)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_GetOrder_Owned(t *testing.T) {
	mock, router := setupOrderTest(t)

	mock.ExpectQuery("FROM orders WHERE id = \\$1 AND customer_id = \\$2").
		WithArgs("o1", "cust-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_id", "address_id", "total", "status", "payment_status",
			"payment_id", "guest_name", "guest_email", "guest_phone", "created_at", "updated_at",
		}).AddRow("o1", "cust-1", "a1", 399.98, models.OrderStatusConfirmed, models.PaymentStatusPaid,
			"pay_1", nil, nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT id, order_id, product_id, variant_id, quantity, price FROM order_items").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "variant_id", "quantity", "price"}).
			AddRow("i1", "o1", "p1", nil, 2, 199.99))
	mock.ExpectQuery("FROM addresses WHERE id = \\$1").
		WithArgs("a1").
		WillReturnRows(addressRow("a1", "cust-1"))
	mock.ExpectQuery("SELECT id, name, email, phone, created_at FROM customers WHERE id = \\$1").
		WithArgs("cust-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "created_at"}).
			AddRow("cust-1", "Jane Doe", "jane@example.com", nil, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/orders/o1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(envelope.Data.Items))
	}
	if envelope.Data.Address == nil || envelope.Data.Address.ID != "a1" {
		t.Errorf("Expected embedded address a1, got %+v", envelope.Data.Address)
	}
	if envelope.Data.Customer == nil || envelope.Data.Customer.ID != "cust-1" {
		t.Errorf("Expected embedded customer, got %+v", envelope.Data.Customer)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

// Another customer's order, or a guest order, answers 404 rather than 403 so
// the route does not confirm the order exists.
func TestOrderHandler_GetOrder_NotOwned(t *testing.T) {
	mock, router := setupOrderTest(t)

	mock.ExpectQuery("FROM orders WHERE id = \\$1 AND customer_id = \\$2").
		WithArgs("o1", "cust-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/orders/o1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestOrderHandler_AdminUpdateOrder_NotFound(t *testing.T) {
	mock, router := setupOrderTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, payment_status FROM orders WHERE id = \\$1 FOR UPDATE").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"status", "payment_status"}))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPut, "/admin/orders/missing",
		jsonBody(t, models.UpdateOrderRequest{Status: orderStatusPtr(models.OrderStatusShipped)}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func orderStatusPtr(s models.OrderStatus) *models.OrderStatus { return &s }
