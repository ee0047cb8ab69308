package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags the inbound submission shape.
type Kind string

const (
	// KindFullCart is the multi-item checkout payload.
	KindFullCart Kind = "full_cart"
	// KindSingleItem is the quick-booking payload without price data.
	KindSingleItem Kind = "single_item"
)

// Submission is an inbound order in one of the known shapes. Each shape
// carries its own normalization into a Record.
type Submission interface {
	Kind() Kind
	Validate() error
	normalize(id string, at time.Time) Record
}

var (
	_ Submission = FullCart{}
	_ Submission = SingleItem{}
)

// FullCart is a checkout submission that already carries the canonical
// order fields. They are copied verbatim.
type FullCart struct {
	TableNumber   TableNumber
	Items         []LineItem
	Total         decimal.Decimal
	GST           decimal.Decimal
	GrandTotal    decimal.Decimal
	PaymentMethod string
}

// Kind implements Submission.
func (FullCart) Kind() Kind { return KindFullCart }

// Validate checks the fields that can be checked on a decoded value.
// Presence of the monetary fields is enforced by the decoder.
func (c FullCart) Validate() error {
	if c.TableNumber.IsZero() {
		return missingField("tableNumber")
	}
	if c.Items == nil {
		return missingField("items")
	}
	for i, it := range c.Items {
		if err := it.validate(fmt.Sprintf("items[%d]", i)); err != nil {
			return err
		}
	}
	if c.PaymentMethod == "" {
		return missingField("paymentMethod")
	}
	return nil
}

func (c FullCart) normalize(id string, at time.Time) Record {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Record{
		OrderID:       id,
		Timestamp:     at,
		TableNumber:   c.TableNumber,
		Items:         items,
		Total:         c.Total,
		GST:           c.GST,
		GrandTotal:    c.GrandTotal,
		PaymentMethod: c.PaymentMethod,
	}
}

// SingleItem is a quick-booking submission for one menu item. No price data
// is available at this entry point, so all monetary fields are zero.
type SingleItem struct {
	TableNo  TableNumber
	MenuItem string
	Quantity int
}

// Kind implements Submission.
func (SingleItem) Kind() Kind { return KindSingleItem }

// Validate implements Submission.
func (s SingleItem) Validate() error {
	if s.TableNo.IsZero() {
		return missingField("tableNo")
	}
	if strings.TrimSpace(s.MenuItem) == "" {
		return missingField("menuItem")
	}
	if s.Quantity < 0 {
		return malformedField("quantity", "must not be negative")
	}
	return nil
}

func (s SingleItem) normalize(id string, at time.Time) Record {
	return Record{
		OrderID:     id,
		Timestamp:   at,
		TableNumber: s.TableNo,
		Items: []LineItem{{
			Name:     s.MenuItem,
			Quantity: s.Quantity,
			Price:    decimal.Zero,
		}},
		Total:         decimal.Zero,
		GST:           decimal.Zero,
		GrandTotal:    decimal.Zero,
		PaymentMethod: PaymentAtCounter,
	}
}

func (it LineItem) validate(prefix string) error {
	if it.Name == "" {
		return missingField(prefix + ".name")
	}
	if it.Quantity < 0 {
		return malformedField(prefix+".quantity", "must not be negative")
	}
	return nil
}

// parseQuantity parses a textual quantity. Only base-10 integers are
// accepted; "2.5" and "2abc" are rejected rather than truncated.
func parseQuantity(field, s string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, malformedField(field, "must be an integer")
	}
	if q < 0 {
		return 0, malformedField(field, "must not be negative")
	}
	return q, nil
}
