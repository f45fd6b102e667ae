package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func strPtr(s string) *string { return &s }

func setupBuilderTest(t *testing.T) (*Builder, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	return NewBuilder(db, logger), mock
}

func TestBuilder_Create_ResolvesServerPrice(t *testing.T) {
	builder, mock := setupBuilderTest(t)

	// Client claims 999 per unit; the catalog says 199.99. The order total
	// must come from the catalog price.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price FROM products WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(199.99))
	mock.ExpectExec("UPDATE products SET stock = stock - \\$1").
		WithArgs(2, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), nil, nil, 399.98, models.OrderStatusPending,
			models.PaymentStatusPending, "Jane", "jane@x.com", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", nil, 2, 199.99).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, touched, err := builder.Create(context.Background(), &models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("p1"), Quantity: 2, Price: 999},
		},
		GuestName:  strPtr("Jane"),
		GuestEmail: strPtr("jane@x.com"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if order.Total != 399.98 {
		t.Errorf("Expected total 399.98, got %v", order.Total)
	}
	if len(order.Items) != 1 || order.Items[0].Price != 199.99 {
		t.Errorf("Expected snapshot price 199.99, got %+v", order.Items)
	}
	if order.Status != models.OrderStatusPending || order.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("Expected PENDING/PENDING, got %s/%s", order.Status, order.PaymentStatus)
	}
	if len(touched) != 1 || touched[0] != "p1" {
		t.Errorf("Expected touched [p1], got %v", touched)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestBuilder_Create_VariantPriceWins(t *testing.T) {
	builder, mock := setupBuilderTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price, product_id FROM product_variants WHERE id = \\$1").
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"price", "product_id"}).AddRow(49.50, "p1"))
	mock.ExpectExec("UPDATE product_variants SET stock = stock - \\$1").
		WithArgs(1, "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), "cust-1", nil, 49.50, models.OrderStatusPending,
			models.PaymentStatusPending, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", "v1", 1, 49.50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, name, email, phone, created_at FROM customers WHERE id = \\$1").
		WithArgs("cust-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "created_at"}).
			AddRow("cust-1", "Jane", "jane@x.com", nil, time.Now()))

	order, touched, err := builder.Create(context.Background(), &models.CreateOrderRequest{
		CustomerID: strPtr("cust-1"),
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("p1"), VariantID: strPtr("v1"), Quantity: 1, Price: 10},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if order.Total != 49.50 {
		t.Errorf("Expected variant price total 49.50, got %v", order.Total)
	}
	if len(touched) != 1 || touched[0] != "p1" {
		t.Errorf("Expected parent product in touched set, got %v", touched)
	}
	if order.Customer == nil || order.Customer.ID != "cust-1" {
		t.Errorf("Expected embedded customer cust-1, got %+v", order.Customer)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

// A line carrying both ids stores the variant's real parent product, not the
// client-sent product id.
func TestBuilder_Create_VariantParentOverridesProductID(t *testing.T) {
	builder, mock := setupBuilderTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price, product_id FROM product_variants WHERE id = \\$1").
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"price", "product_id"}).AddRow(49.50, "p1"))
	mock.ExpectExec("UPDATE product_variants SET stock = stock - \\$1").
		WithArgs(1, "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", "v1", 1, 49.50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, _, err := builder.Create(context.Background(), &models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("spoofed"), VariantID: strPtr("v1"), Quantity: 1},
		},
		GuestName:  strPtr("Jane"),
		GuestEmail: strPtr("jane@x.com"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if order.Items[0].ProductID == nil || *order.Items[0].ProductID != "p1" {
		t.Errorf("Expected item to carry parent product p1, got %+v", order.Items[0].ProductID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestBuilder_Create_InsufficientStock(t *testing.T) {
	builder, mock := setupBuilderTest(t)

	// Conditional decrement touches zero rows when stock is short; the whole
	// transaction rolls back with no order and no partial decrement.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price FROM products WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(199.99))
	mock.ExpectExec("UPDATE products SET stock = stock - \\$1").
		WithArgs(3, "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := builder.Create(context.Background(), &models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("p1"), Quantity: 3},
		},
		GuestName:  strPtr("Jane"),
		GuestEmail: strPtr("jane@x.com"),
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if stockErr.ID != "p1" || stockErr.Kind != "product" {
		t.Errorf("Expected error naming product p1, got %+v", stockErr)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestBuilder_Create_ProductNotFound(t *testing.T) {
	builder, mock := setupBuilderTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price FROM products WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"price"}))
	mock.ExpectRollback()

	_, _, err := builder.Create(context.Background(), &models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("missing"), Quantity: 1},
		},
		GuestName:  strPtr("Jane"),
		GuestEmail: strPtr("jane@x.com"),
	})

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if notFound.ID != "missing" {
		t.Errorf("Expected error naming the missing product, got %+v", notFound)
	}
}

func TestBuilder_Create_FailedItemInsertRollsBack(t *testing.T) {
	builder, mock := setupBuilderTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price FROM products WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(10.00))
	mock.ExpectExec("UPDATE products SET stock = stock - \\$1").
		WithArgs(1, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	_, _, err := builder.Create(context.Background(), &models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ProductID: strPtr("p1"), Quantity: 1},
		},
		GuestName:  strPtr("Jane"),
		GuestEmail: strPtr("jane@x.com"),
	})
	if err == nil {
		t.Fatal("Expected error from failed item insert")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestBuilder_Create_GuestCustomerExclusive(t *testing.T) {
	builder, _ := setupBuilderTest(t)

	items := []models.OrderItemRequest{{ProductID: strPtr("p1"), Quantity: 1}}

	// Both identities populated
	_, _, err := builder.Create(context.Background(), &models.CreateOrderRequest{
		CustomerID: strPtr("cust-1"),
		Items:      items,
		GuestName:  strPtr("Jane"),
		GuestEmail: strPtr("jane@x.com"),
	})
	if !errors.Is(err, ErrGuestOrCustomer) {
		t.Errorf("Expected ErrGuestOrCustomer for both identities, got %v", err)
	}

	// Neither identity populated
	_, _, err = builder.Create(context.Background(), &models.CreateOrderRequest{
		Items: items,
	})
	if !errors.Is(err, ErrGuestOrCustomer) {
		t.Errorf("Expected ErrGuestOrCustomer for neither identity, got %v", err)
	}
}

func TestBuilder_Create_NoItems(t *testing.T) {
	builder, _ := setupBuilderTest(t)

	_, _, err := builder.Create(context.Background(), &models.CreateOrderRequest{
		GuestName:  strPtr("Jane"),
		GuestEmail: strPtr("jane@x.com"),
	})
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("Expected ErrNoItems, got %v", err)
	}
}
