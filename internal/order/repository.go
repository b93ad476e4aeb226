package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when an order has no stored lines.
	ErrNotFound = errors.New("order: not found")
	// ErrAlreadyPersisted is returned when an order's taxes were committed before.
	ErrAlreadyPersisted = errors.New("order: taxes already persisted")
)

// Repository stores order lines and commits their final prices.
type Repository interface {
	SaveLines(ctx context.Context, orderID string, lines []Line) error
	Lines(ctx context.Context, orderID string) ([]Line, error)
	// ApplyPrices writes every update and marks the order persisted in one
	// transaction. It fails with ErrAlreadyPersisted on a second call.
	ApplyPrices(ctx context.Context, orderID string, updates []PriceUpdate) error
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgRepository implements Repository on Postgres.
type PgRepository struct {
	DB DB
}

// NewPgRepository returns a repository over db.
func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{DB: db}
}

const (
	insertOrderSQL = `INSERT INTO orders (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	upsertLineSQL = `INSERT INTO order_line_items (id, order_id, identifier, parent_id, type, position, quantity, payload, price)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  identifier = EXCLUDED.identifier,
  parent_id = EXCLUDED.parent_id,
  type = EXCLUDED.type,
  position = EXCLUDED.position,
  quantity = EXCLUDED.quantity,
  payload = EXCLUDED.payload,
  price = EXCLUDED.price,
  updated_at = now()
WHERE order_line_items.order_id = EXCLUDED.order_id`

	listLinesSQL = `SELECT id, identifier, COALESCE(parent_id, ''), type, quantity, payload, price
FROM order_line_items WHERE order_id = $1 ORDER BY position, id`

	updatePriceSQL = `UPDATE order_line_items SET price = $3, updated_at = now() WHERE order_id = $1 AND id = $2`

	markPersistedSQL = `UPDATE orders SET taxes_persisted_at = now() WHERE id = $1 AND taxes_persisted_at IS NULL`
)

// SaveLines upserts the lines of an order.
func (r *PgRepository) SaveLines(ctx context.Context, orderID string, lines []Line) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(insertOrderSQL, orderID)
		for i, l := range lines {
			payload, err := json.Marshal(l.Payload)
			if err != nil {
				return fmt.Errorf("encode payload %s: %w", l.ID, err)
			}
			price, err := json.Marshal(l.Price)
			if err != nil {
				return fmt.Errorf("encode price %s: %w", l.ID, err)
			}
			batch.Queue(upsertLineSQL, l.ID, orderID, l.Identifier, l.ParentID, l.Type, i, l.Quantity, payload, price)
		}
		return sendBatch(ctx, tx, batch)
	})
}

// Lines returns the stored lines of an order in submission order.
func (r *PgRepository) Lines(ctx context.Context, orderID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, listLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var (
			l              Line
			payload, price []byte
		)
		if err := rows.Scan(&l.ID, &l.Identifier, &l.ParentID, &l.Type, &l.Quantity, &payload, &price); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &l.Payload); err != nil {
				return nil, fmt.Errorf("decode payload %s: %w", l.ID, err)
			}
		}
		if err := json.Unmarshal(price, &l.Price); err != nil {
			return nil, fmt.Errorf("decode price %s: %w", l.ID, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// ApplyPrices implements Repository with one batch inside one transaction.
func (r *PgRepository) ApplyPrices(ctx context.Context, orderID string, updates []PriceUpdate) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, markPersistedSQL, orderID)
		if err != nil {
			return fmt.Errorf("mark order persisted: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyPersisted
		}
		if len(updates) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, u := range updates {
			price, err := json.Marshal(u.Price)
			if err != nil {
				return fmt.Errorf("encode price %s: %w", u.LineID, err)
			}
			batch.Queue(updatePriceSQL, orderID, u.LineID, price)
		}
		return sendBatch(ctx, tx, batch)
	})
}

func (r *PgRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return results.Close()
}
