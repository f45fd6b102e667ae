// Package orders implements the order-and-payment lifecycle: order creation
// with its stock ledger, order queries, and payment reconciliation.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-svc/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Builder creates orders. Price resolution, stock check-and-decrement and the
// order/item inserts all run inside one transaction, so a failure at any step
// leaves no partial order and no partial stock decrement.
type Builder struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewBuilder(db *sql.DB, logger *zap.Logger) *Builder {
	return &Builder{db: db, logger: logger}
}

// Create validates the request, resolves authoritative prices, decrements
// stock and persists the order with its items. It returns the persisted order
// with its referenced address and customer embedded, plus the ids of products
// whose stock changed (for cache invalidation).
//
// Client-supplied prices are discarded for any line that references a product
// or variant; only a free-form line (neither id set) keeps its client price.
func (b *Builder) Create(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, []string, error) {
	if len(req.Items) == 0 {
		return nil, nil, ErrNoItems
	}

	hasCustomer := req.CustomerID != nil && *req.CustomerID != ""
	hasGuest := req.GuestName != nil && *req.GuestName != "" &&
		req.GuestEmail != nil && *req.GuestEmail != ""
	if hasCustomer == hasGuest {
		return nil, nil, ErrGuestOrCustomer
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		total   float64
		items   []models.OrderItem
		touched []string
	)

	for _, item := range req.Items {
		price := item.Price

		switch {
		case item.VariantID != nil && *item.VariantID != "":
			var productID string
			err := tx.QueryRowContext(ctx,
				"SELECT price, product_id FROM product_variants WHERE id = $1",
				*item.VariantID,
			).Scan(&price, &productID)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, &NotFoundError{Kind: "variant", ID: *item.VariantID}
			}
			if err != nil {
				return nil, nil, fmt.Errorf("failed to resolve variant %s: %w", *item.VariantID, err)
			}

			if err := decrementStock(ctx, tx, "product_variants", *item.VariantID, item.Quantity); err != nil {
				return nil, nil, err
			}
			// The variant's real parent wins over whatever product id the
			// client sent alongside it.
			item.ProductID = &productID
			touched = append(touched, productID)

		case item.ProductID != nil && *item.ProductID != "":
			err := tx.QueryRowContext(ctx,
				"SELECT price FROM products WHERE id = $1",
				*item.ProductID,
			).Scan(&price)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, &NotFoundError{Kind: "product", ID: *item.ProductID}
			}
			if err != nil {
				return nil, nil, fmt.Errorf("failed to resolve product %s: %w", *item.ProductID, err)
			}

			if err := decrementStock(ctx, tx, "products", *item.ProductID, item.Quantity); err != nil {
				return nil, nil, err
			}
			touched = append(touched, *item.ProductID)
		}

		total += price * float64(item.Quantity)
		items = append(items, models.OrderItem{
			ID:        uuid.NewString(),
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}

	order := &models.Order{
		ID:            uuid.NewString(),
		CustomerID:    req.CustomerID,
		AddressID:     req.AddressID,
		Total:         total,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		GuestName:     req.GuestName,
		GuestEmail:    req.GuestEmail,
		GuestPhone:    req.GuestPhone,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, customer_id, address_id, total, status, payment_status, guest_name, guest_email, guest_phone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		order.ID, order.CustomerID, order.AddressID, order.Total,
		order.Status, order.PaymentStatus,
		order.GuestName, order.GuestEmail, order.GuestPhone,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			items[i].ID, items[i].OrderID, items[i].ProductID,
			items[i].VariantID, items[i].Quantity, items[i].Price,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit order: %w", err)
	}

	order.Items = items

	// The create response carries the same embedded relations a read does.
	// The order is already committed at this point, so a failed lookup only
	// costs the embedding, not the order.
	if err := loadRelations(ctx, b.db, order); err != nil {
		b.logger.Warn("Failed to load order relations",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	b.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Int("items", len(items)),
		zap.Float64("total", order.Total),
	)
	return order, touched, nil
}

// decrementStock is the stock ledger write: a conditional update that only
// succeeds while enough stock remains. Two racing transactions cannot both
// pass the WHERE clause once stock runs out, which keeps the counter
// non-negative without any in-process locking.
func decrementStock(ctx context.Context, tx *sql.Tx, table, id string, quantity int) error {
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET stock = stock - $1, updated_at = now() WHERE id = $2 AND stock >= $1", table),
		quantity, id,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		kind := "product"
		if table == "product_variants" {
			kind = "variant"
		}
		return &InsufficientStockError{Kind: kind, ID: id, Quantity: quantity}
	}
	return nil
}
