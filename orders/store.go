package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-svc/models"
)

// Store reads orders back the way the builder wrote them.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const orderColumns = `id, customer_id, address_id, total, status, payment_status, payment_id,
	guest_name, guest_email, guest_phone, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.AddressID, &o.Total, &o.Status, &o.PaymentStatus,
		&o.PaymentID, &o.GuestName, &o.GuestEmail, &o.GuestPhone,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Get loads an order with its items, and its address and customer when set.
func (s *Store) Get(ctx context.Context, id string) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, s.db, order); err != nil {
		return nil, err
	}
	return order, nil
}

// loadRelations attaches the address and customer rows an order references.
// A dangling reference is skipped rather than failing the read.
func loadRelations(ctx context.Context, db *sql.DB, order *models.Order) error {
	if order.AddressID != nil {
		var a models.Address
		err := db.QueryRowContext(ctx,
			`SELECT id, customer_id, full_name, phone, line1, line2, city, state, postal_code, country, is_default, created_at
			 FROM addresses WHERE id = $1`, *order.AddressID,
		).Scan(&a.ID, &a.CustomerID, &a.FullName, &a.Phone, &a.Line1, &a.Line2,
			&a.City, &a.State, &a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt)
		if err == nil {
			order.Address = &a
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to load order address: %w", err)
		}
	}

	if order.CustomerID != nil {
		var cust models.Customer
		err := db.QueryRowContext(ctx,
			"SELECT id, name, email, phone, created_at FROM customers WHERE id = $1",
			*order.CustomerID,
		).Scan(&cust.ID, &cust.Name, &cust.Email, &cust.Phone, &cust.CreatedAt)
		if err == nil {
			order.Customer = &cust
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to load order customer: %w", err)
		}
	}

	return nil
}

// GetOwned loads an order only if it belongs to the given customer. Guest
// orders have no owning customer, so an authenticated lookup never matches
// them.
func (s *Store) GetOwned(ctx context.Context, id, customerID string) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND customer_id = $2",
		id, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, s.db, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListByCustomer returns a customer's orders, newest first, items included.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.list(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY created_at DESC",
		customerID)
}

// ListAll returns every order for the admin view, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.list(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for i := range orders {
		if err := s.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// StatusView returns the reduced projection used by payment-status polling.
func (s *Store) StatusView(ctx context.Context, id string) (*models.PaymentStatusView, error) {
	var v models.PaymentStatusView
	err := s.db.QueryRowContext(ctx,
		"SELECT id, status, payment_status, payment_id, total, created_at, updated_at FROM orders WHERE id = $1",
		id,
	).Scan(&v.ID, &v.Status, &v.PaymentStatus, &v.PaymentID, &v.Total, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order status: %w", err)
	}
	return &v, nil
}

func (s *Store) loadItems(ctx context.Context, order *models.Order) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, variant_id, quantity, price FROM order_items WHERE order_id = $1",
		order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, it)
	}
	return rows.Err()
}
