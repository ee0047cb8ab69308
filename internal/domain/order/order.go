package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAtCounter is the payment method stamped on single-item orders.
const PaymentAtCounter = "Pay at Counter"

// Record is a canonical, persisted customer order. Records are created once
// by the Service and never modified afterwards.
type Record struct {
	OrderID       string
	Timestamp     time.Time
	TableNumber   TableNumber
	Items         []LineItem
	Total         decimal.Decimal
	GST           decimal.Decimal
	GrandTotal    decimal.Decimal
	PaymentMethod string
}

// Equal reports whether r and o hold the same order: identifier,
// timestamp, table, items, amounts and payment method. Amounts compare by
// value, so 2.5 equals 2.50.
func (r Record) Equal(o Record) bool {
	if r.OrderID != o.OrderID ||
		!r.Timestamp.Equal(o.Timestamp) ||
		r.TableNumber != o.TableNumber ||
		r.PaymentMethod != o.PaymentMethod ||
		!r.Total.Equal(o.Total) ||
		!r.GST.Equal(o.GST) ||
		!r.GrandTotal.Equal(o.GrandTotal) ||
		len(r.Items) != len(o.Items) {
		return false
	}
	for i := range r.Items {
		a, b := r.Items[i], o.Items[i]
		if a.Name != b.Name || a.Quantity != b.Quantity || !a.Price.Equal(b.Price) {
			return false
		}
	}
	return true
}

// LineItem is a single line within an order.
type LineItem struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// TableNumber identifies the table or location an order belongs to. It is
// opaque: the value is kept together with the JSON kind the caller used, so
// a table submitted as 5 is stored as 5 and "5" as "5".
type TableNumber struct {
	value   string
	numeric bool
}

// NewTableNumber returns a string table number.
func NewTableNumber(v string) TableNumber {
	return TableNumber{value: v}
}

// NewNumericTableNumber returns a table number that encodes as a JSON number.
// The caller is responsible for v being a valid JSON number literal.
func NewNumericTableNumber(v string) TableNumber {
	return TableNumber{value: v, numeric: true}
}

// String returns the table number as text.
func (t TableNumber) String() string { return t.value }

// IsNumeric reports whether the table number was given as a JSON number.
func (t TableNumber) IsNumeric() bool { return t.numeric }

// IsZero reports whether the table number is empty.
func (t TableNumber) IsZero() bool { return t.value == "" }

// Store is the durable whole-collection persistence of order records.
//
// Every write replaces the complete collection, so writes cost O(n) in the
// number of stored records. This is acceptable for a low-volume order log and
// is the known scaling ceiling of the design.
type Store interface {
	// LoadAll returns every persisted record in insertion order. A store that
	// does not exist yet yields an empty slice and no error.
	LoadAll(ctx context.Context) ([]Record, error)
	// ReplaceAll atomically overwrites the persisted collection.
	ReplaceAll(ctx context.Context, records []Record) error
	// EnsureInitialized creates an empty store if none exists. Idempotent.
	EnsureInitialized(ctx context.Context) error
}
