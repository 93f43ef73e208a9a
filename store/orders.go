package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	models "storefront-checkout/model"
)

// CreateOrder writes a pending (unpaid) ledger entry for a checkout session.
func (s *PostgresStore) CreateOrder(ctx context.Context, o models.Order) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO orders (session_id, product_id, paid) VALUES ($1, $2, FALSE)`,
		o.SessionID, o.ProductID,
	)
	if isUniqueViolation(err) {
		return ErrOrderExists
	}
	if err != nil {
		return fmt.Errorf("create order %s: %w", o.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, sessionID string) (models.Order, error) {
	var (
		o                  models.Order
		customer, shipping []byte
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT session_id, product_id, customer_details, shipping_details, paid, created_at, updated_at
		FROM orders WHERE session_id = $1
	`, sessionID).Scan(&o.SessionID, &o.ProductID, &customer, &shipping, &o.Paid, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	o.CustomerDetails = customer
	o.ShippingDetails = shipping
	return o, nil
}

// MarkOrderPaid records the customer and shipping details and flags the
// order paid. Applying it twice with the same details leaves the same row.
func (s *PostgresStore) MarkOrderPaid(ctx context.Context, sessionID string, customer, shipping json.RawMessage) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE orders
		SET customer_details = $2, shipping_details = $3, paid = TRUE, updated_at = NOW()
		WHERE session_id = $1
	`, sessionID, nullJSON(customer), nullJSON(shipping))
	if err != nil {
		return fmt.Errorf("mark order %s paid: %w", sessionID, err)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) SaveOrderDetails(ctx context.Context, sessionID string, customer, shipping json.RawMessage) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE orders
		SET customer_details = $2, shipping_details = $3, updated_at = NOW()
		WHERE session_id = $1
	`, sessionID, nullJSON(customer), nullJSON(shipping))
	if err != nil {
		return fmt.Errorf("save order %s details: %w", sessionID, err)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ReleaseOrder returns the order's unit to stock and deletes the order in
// one transaction. A second call for the same session finds no order and
// changes nothing.
func (s *PostgresStore) ReleaseOrder(ctx context.Context, sessionID string) (string, error) {
	var productID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var paid bool
		err := tx.QueryRowContext(ctx,
			`SELECT product_id, paid FROM orders WHERE session_id = $1 FOR UPDATE`, sessionID,
		).Scan(&productID, &paid)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if paid {
			return ErrOrderPaid
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + 1, updated_at = NOW() WHERE id = $1`, productID)
		if err != nil {
			return err
		}
		if ra, _ := res.RowsAffected(); ra == 0 {
			return ErrProductNotFound
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM orders WHERE session_id = $1`, sessionID)
		return err
	})
	if err != nil {
		return "", err
	}
	return productID, nil
}

// nullJSON maps empty details to SQL NULL so jsonb columns never receive "".
func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
