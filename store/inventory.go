package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	models "storefront-checkout/model"
)

// UpsertProduct creates the product or replaces its price reference and
// stock (admin operation).
func (s *PostgresStore) UpsertProduct(ctx context.Context, p models.Product) error {
	if p.ID == "" || p.Stock < 0 {
		return ErrInvalidProduct
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO products (id, price_ref, stock) VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET price_ref = EXCLUDED.price_ref, stock = EXCLUDED.stock, updated_at = NOW()
	`, p.ID, p.PriceRef, p.Stock)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProduct removes a product (admin operation).
func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ReserveStock locks the product row, and when stock is left decrements it
// by one and returns the price reference.
func (s *PostgresStore) ReserveStock(ctx context.Context, productID string) (string, error) {
	var priceRef string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var stock int
		err := tx.QueryRowContext(ctx,
			`SELECT price_ref, stock FROM products WHERE id = $1 FOR UPDATE`, productID,
		).Scan(&priceRef, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		if stock <= 0 {
			return ErrOutOfStock
		}

		_, err = tx.ExecContext(ctx, `UPDATE products SET stock = stock - 1, updated_at = NOW() WHERE id = $1`, productID)
		return err
	})
	if err != nil {
		return "", err
	}
	return priceRef, nil
}
