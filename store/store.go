package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	models "storefront-checkout/model"
	"time"

	"github.com/lib/pq"
)

const (
	defaultTxAttempts = 3
	txRetryBackoff    = 10 * time.Millisecond
)

// PostgresStore is a Store backed by Postgres. Cross-row mutations run in
// transactions that lock the rows they read (SELECT ... FOR UPDATE).
type PostgresStore struct {
	DB *sql.DB

	// MaxTxAttempts bounds retries of transactions aborted by
	// serialization failures or deadlocks. Zero means defaultTxAttempts.
	MaxTxAttempts int
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

func (s *PostgresStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// withTx runs fn in a transaction, retrying when Postgres aborts it with a
// serialization failure or deadlock.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	attempts := s.MaxTxAttempts
	if attempts <= 0 {
		attempts = defaultTxAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(txRetryBackoff * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", attempts, err)
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// ensure rollback on early return
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		done = true
		return err
	}
	done = true
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, price_ref, stock FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.PriceRef, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	err := s.DB.QueryRowContext(ctx, `SELECT id, price_ref, stock FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.PriceRef, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrProductNotFound
	}
	return p, err
}
