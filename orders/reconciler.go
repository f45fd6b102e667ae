package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-svc/models"

	"go.uber.org/zap"
)

// Reconciler moves an order's payment status and order status together,
// exactly once per gateway outcome.
//
// Transitions:
//   - MarkPending: payment initiated against the gateway.
//   - MarkPaid:    verified success callback; CONFIRMED + PAID + payment id.
//   - MarkFailed:  failed signature check; FAILED is persisted so polling
//     clients see a definitive state instead of PENDING forever.
type Reconciler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewReconciler(db *sql.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, logger: logger}
}

func (r *Reconciler) MarkPending(ctx context.Context, orderID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = now() WHERE id = $2",
		models.PaymentStatusPending, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order payment pending: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkPaid applies the verified-success transition. Replaying the same
// callback is a no-op success; a verified callback naming a different payment
// id against an already-paid order is rejected without a write.
func (r *Reconciler) MarkPaid(ctx context.Context, orderID, paymentID string) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`UPDATE orders
		 SET status = $1, payment_status = $2, payment_id = $3, updated_at = now()
		 WHERE id = $4 AND (payment_status <> $2 OR payment_id = $3)
		 RETURNING `+orderColumns,
		models.OrderStatusConfirmed, models.PaymentStatusPaid, paymentID, orderID))
	if err == nil {
		r.logger.Info("Order payment reconciled",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
		)
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	// No row updated: either the order is missing or it was paid under a
	// different payment id.
	var existing string
	err = r.db.QueryRowContext(ctx, "SELECT id FROM orders WHERE id = $1", orderID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check order: %w", err)
	}
	return nil, ErrPaymentConflict
}

// MarkFailed persists the failed outcome. A PAID order is never downgraded by
// a late or forged failure callback.
func (r *Reconciler) MarkFailed(ctx context.Context, orderID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = now()
		 WHERE id = $2 AND payment_status <> $3`,
		models.PaymentStatusFailed, orderID, models.PaymentStatusPaid)
	if err != nil {
		return fmt.Errorf("failed to mark order payment failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var existing string
		err = r.db.QueryRowContext(ctx, "SELECT id FROM orders WHERE id = $1", orderID).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check order: %w", err)
		}
		// Already paid; leave it alone.
	}
	return nil
}

// AdminUpdate applies a manual status override. Cancelling an order that was
// never paid restores each line's stock in the same transaction, which is the
// release path for stock held by abandoned orders.
func (r *Reconciler) AdminUpdate(ctx context.Context, orderID string, req *models.UpdateOrderRequest) (*models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		status        models.OrderStatus
		paymentStatus models.PaymentStatus
	)
	err = tx.QueryRowContext(ctx,
		"SELECT status, payment_status FROM orders WHERE id = $1 FOR UPDATE",
		orderID).Scan(&status, &paymentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	cancelling := req.Status != nil && *req.Status == models.OrderStatusCancelled &&
		status != models.OrderStatusCancelled && paymentStatus != models.PaymentStatusPaid
	if cancelling {
		if err := restock(ctx, tx, orderID); err != nil {
			return nil, err
		}
	}

	newStatus := status
	if req.Status != nil {
		newStatus = *req.Status
	}
	newPaymentStatus := paymentStatus
	if req.PaymentStatus != nil {
		newPaymentStatus = *req.PaymentStatus
	}

	order, err := scanOrder(tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, updated_at = now()
		 WHERE id = $3 RETURNING `+orderColumns,
		newStatus, newPaymentStatus, orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}

	r.logger.Info("Order updated",
		zap.String("order_id", orderID),
		zap.String("status", string(newStatus)),
		zap.String("payment_status", string(newPaymentStatus)),
		zap.Bool("restocked", cancelling),
	)
	return order, nil
}

func restock(ctx context.Context, tx *sql.Tx, orderID string) error {
	rows, err := tx.QueryContext(ctx,
		"SELECT product_id, variant_id, quantity FROM order_items WHERE order_id = $1",
		orderID)
	if err != nil {
		return fmt.Errorf("failed to load items for restock: %w", err)
	}
	defer rows.Close()

	type line struct {
		productID *string
		variantID *string
		quantity  int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.variantID, &l.quantity); err != nil {
			return fmt.Errorf("failed to scan item for restock: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate items for restock: %w", err)
	}

	for _, l := range lines {
		switch {
		case l.variantID != nil:
			_, err = tx.ExecContext(ctx,
				"UPDATE product_variants SET stock = stock + $1, updated_at = now() WHERE id = $2",
				l.quantity, *l.variantID)
		case l.productID != nil:
			_, err = tx.ExecContext(ctx,
				"UPDATE products SET stock = stock + $1, updated_at = now() WHERE id = $2",
				l.quantity, *l.productID)
		}
		if err != nil {
			return fmt.Errorf("failed to restock: %w", err)
		}
	}
	return nil
}
