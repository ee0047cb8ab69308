package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderlog/internal/domain/order"
)

const (
	tableName = "customer_orders"

	selectOrdersSQL = `SELECT order_id, order_timestamp, table_number, table_number_numeric,
	items, total, gst, grand_total, payment_method
	FROM customer_orders ORDER BY position`

	deleteOrdersSQL = `DELETE FROM customer_orders`

	// undefinedTable is the SQLSTATE returned before the schema exists.
	undefinedTable = "42P01"
)

var copyColumns = []string{
	"order_id", "order_timestamp", "table_number", "table_number_numeric",
	"items", "total", "gst", "grand_total", "payment_method",
}

var _ order.Store = (*Store)(nil)

// Store implements order.Store backed by PostgreSQL. Rows keep insertion
// order through an identity column; ReplaceAll swaps the whole table
// contents inside one transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadAll returns every order in insertion order. A database without the
// schema yet holds no orders.
func (s *Store) LoadAll(ctx context.Context) ([]order.Record, error) {
	rows, err := s.pool.Query(ctx, selectOrdersSQL)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return []order.Record{}, nil
		}
		return nil, &order.StoreReadError{Err: fmt.Errorf("querying orders: %w", err)}
	}
	defer rows.Close()

	records := make([]order.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &order.StoreReadError{Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return []order.Record{}, nil
		}
		return nil, &order.StoreReadError{Err: fmt.Errorf("reading orders: %w", err)}
	}
	return records, nil
}

func scanRecord(row pgx.Row) (order.Record, error) {
	var (
		rec     order.Record
		ts      time.Time
		table   *string
		numeric bool
		items   []byte
		total   decimal.Decimal
		gst     decimal.Decimal
		grand   decimal.Decimal
	)
	if err := row.Scan(&rec.OrderID, &ts, &table, &numeric, &items, &total, &gst, &grand, &rec.PaymentMethod); err != nil {
		return rec, fmt.Errorf("scanning order: %w", err)
	}

	lineItems, err := order.DecodeItems(items)
	if err != nil {
		return rec, fmt.Errorf("decoding items of order %q: %w", rec.OrderID, err)
	}

	rec.Timestamp = ts.UTC()
	if table != nil {
		if numeric {
			rec.TableNumber = order.NewNumericTableNumber(*table)
		} else {
			rec.TableNumber = order.NewTableNumber(*table)
		}
	}
	rec.Items = lineItems
	rec.Total = total
	rec.GST = gst
	rec.GrandTotal = grand
	return rec, nil
}

// ReplaceAll deletes every row and copies records in, in order, within a
// single transaction.
func (s *Store) ReplaceAll(ctx context.Context, records []order.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &order.StoreWriteError{Err: fmt.Errorf("beginning transaction: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, deleteOrdersSQL); err != nil {
		return &order.StoreWriteError{Err: fmt.Errorf("clearing orders: %w", err)}
	}

	src := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		r := records[i]
		var table *string
		if !r.TableNumber.IsZero() {
			v := r.TableNumber.String()
			table = &v
		}
		return []any{
			r.OrderID,
			r.Timestamp.UTC(),
			table,
			r.TableNumber.IsNumeric(),
			order.EncodeItems(r.Items),
			r.Total,
			r.GST,
			r.GrandTotal,
			r.PaymentMethod,
		}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tableName}, copyColumns, src); err != nil {
		return &order.StoreWriteError{Err: fmt.Errorf("copying orders: %w", err)}
	}

	if err := tx.Commit(ctx); err != nil {
		return &order.StoreWriteError{Err: fmt.Errorf("committing orders: %w", err)}
	}
	return nil
}

// EnsureInitialized applies the schema.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	if err := RunMigrations(ctx, s.pool); err != nil {
		return &order.StoreWriteError{Err: err}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
