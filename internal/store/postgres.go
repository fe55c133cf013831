package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"orderflow/internal/model"
)

const orderColumns = `id, customer_name, product, amount, status, payment_status, created_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertPending(ctx context.Context, o NewOrder) (model.Order, error) {
	order := model.Order{
		CustomerName:  o.CustomerName,
		Product:       o.Product,
		Amount:        o.Amount,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer_name, product, amount, status, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, o.CustomerName, o.Product, o.Amount.StringFixed(model.AmountScale), order.Status, order.PaymentStatus,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return model.Order{}, fmt.Errorf("insert order: %w", err)
	}
	order.CreatedAt = order.CreatedAt.UTC()

	return order, nil
}

// UpdateOutcome only touches rows that are still pending, so a terminal
// status is never overwritten.
func (s *PostgresStore) UpdateOutcome(ctx context.Context, id int64, ps model.PaymentStatus) (model.Order, error) {
	if err := checkTransition(ps); err != nil {
		return model.Order{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2
		WHERE id = $3 AND payment_status = $4
		RETURNING `+orderColumns,
		model.StatusFor(ps), ps, id, model.PaymentStatusPending,
	)
	order, err := scanOrder(row)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, fmt.Errorf("update order: %w", err)
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	return existing, ErrAlreadyFinal
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (model.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, ErrNotFound
		}
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return scanOrders(rows)
}

func (s *PostgresStore) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE payment_status = $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, model.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale orders: %w", err)
	}
	return scanOrders(rows)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		o             model.Order
		status        string
		paymentStatus string
		createdAt     sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.CustomerName, &o.Product, &o.Amount, &status, &paymentStatus, &createdAt); err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	if createdAt.Valid {
		o.CreatedAt = createdAt.Time.UTC()
	}
	return o, nil
}

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return orders, nil
}
