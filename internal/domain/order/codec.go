package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// TimestampLayout is the ISO-8601 form used for persisted timestamps: UTC
// with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Encode writes the record as a JSON object.
func (r Record) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("tableNumber")
	r.TableNumber.Encode(e)
	e.FieldStart("items")
	encodeItems(e, r.Items)
	e.FieldStart("total")
	encodeDecimal(e, r.Total)
	e.FieldStart("gst")
	encodeDecimal(e, r.GST)
	e.FieldStart("grandTotal")
	encodeDecimal(e, r.GrandTotal)
	e.FieldStart("paymentMethod")
	e.Str(r.PaymentMethod)
	e.FieldStart("orderId")
	e.Str(r.OrderID)
	e.FieldStart("timestamp")
	e.Str(FormatTimestamp(r.Timestamp))
	e.ObjEnd()
}

// Decode reads a persisted record. Unknown fields are skipped and absent
// fields keep their zero value, except orderId which every stored record
// must carry. Earlier servers stored whatever clients sent, so a null or
// malformed value in any other field decodes as zero instead of failing the
// whole collection.
func (r *Record) Decode(d *jx.Decoder) error {
	var hasID bool
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "orderId")
			}
			r.OrderID, hasID = v, v != ""
		case "timestamp":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "timestamp")
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return errors.Wrap(err, "timestamp")
			}
			r.Timestamp = t
		case "tableNumber":
			r.TableNumber, err = storedTableNumber(d)
		case "items":
			r.Items, err = storedItems(d)
		case "total":
			r.Total, err = storedDecimal(d)
		case "gst":
			r.GST, err = storedDecimal(d)
		case "grandTotal":
			r.GrandTotal, err = storedDecimal(d)
		case "paymentMethod":
			r.PaymentMethod, err = storedString(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	}); err != nil {
		return err
	}
	if !hasID {
		return errors.New("orderId: missing")
	}
	return nil
}

// Encode writes the line item as a JSON object.
func (it LineItem) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("price")
	encodeDecimal(e, it.Price)
	e.ObjEnd()
}

// Encode writes the table number in the JSON kind it was received in. An
// empty table number is written as null.
func (t TableNumber) Encode(e *jx.Encoder) {
	switch {
	case t.value == "":
		e.Null()
	case t.numeric:
		e.Raw([]byte(t.value))
	default:
		e.Str(t.value)
	}
}

// EncodeRecords renders a whole collection as a JSON array. A positive
// indent pretty-prints with that many spaces per level.
func EncodeRecords(records []Record, indent int) []byte {
	e := &jx.Encoder{}
	if indent > 0 {
		e.SetIdent(indent)
	}
	e.ArrStart()
	for _, r := range records {
		r.Encode(e)
	}
	e.ArrEnd()
	return e.Bytes()
}

// DecodeRecords parses a JSON array of records.
func DecodeRecords(data []byte) ([]Record, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		return nil, errors.New("order collection must be a JSON array")
	}
	records := make([]Record, 0)
	if err := d.Arr(func(d *jx.Decoder) error {
		var r Record
		if err := r.Decode(d); err != nil {
			return errors.Wrapf(err, "record %d", len(records))
		}
		records = append(records, r)
		return nil
	}); err != nil {
		return nil, err
	}
	if d.Next() != jx.Invalid {
		return nil, errors.New("trailing data after order collection")
	}
	return records, nil
}

// EncodeItems renders line items as a JSON array.
func EncodeItems(items []LineItem) []byte {
	e := &jx.Encoder{}
	encodeItems(e, items)
	return e.Bytes()
}

// DecodeItems parses a JSON array of stored line items. Items missing
// fields or carrying malformed values keep zero values.
func DecodeItems(data []byte) ([]LineItem, error) {
	return storedItems(jx.DecodeBytes(data))
}

// DecodeSubmission parses payload as the submission shape named by kind.
// Any malformed input is reported as a *ValidationError.
func DecodeSubmission(kind Kind, payload []byte) (Submission, error) {
	if !jx.Valid(payload) {
		return nil, &ValidationError{Reason: "request body is not valid JSON"}
	}
	d := jx.DecodeBytes(payload)
	if d.Next() != jx.Object {
		return nil, &ValidationError{Reason: "request body must be a JSON object"}
	}

	var (
		sub Submission
		err error
	)
	switch kind {
	case KindFullCart:
		sub, err = decodeFullCart(d)
	case KindSingleItem:
		sub, err = decodeSingleItem(d)
	default:
		return nil, errors.Errorf("unknown submission kind %q", kind)
	}
	if err != nil {
		var v *ValidationError
		if errors.As(err, &v) {
			return nil, v
		}
		return nil, &ValidationError{Reason: err.Error()}
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}

func decodeFullCart(d *jx.Decoder) (Submission, error) {
	var (
		c    FullCart
		seen = make(map[string]bool, 6)
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tableNumber":
			t, err := decodeTableNumber(d)
			if err != nil {
				return malformedField(key, "must be a string or number")
			}
			c.TableNumber = t
		case "items":
			items, err := decodeItems(d, key)
			if err != nil {
				return err
			}
			c.Items = items
		case "total", "gst", "grandTotal":
			v, err := decodeDecimal(d)
			if err != nil {
				return malformedField(key, "must be a number")
			}
			switch key {
			case "total":
				c.Total = v
			case "gst":
				c.GST = v
			default:
				c.GrandTotal = v
			}
		case "paymentMethod":
			v, err := decodeString(d, key)
			if err != nil {
				return err
			}
			c.PaymentMethod = v
		default:
			// orderId and timestamp are assigned by the service; anything
			// else is not part of the canonical record.
			return d.Skip()
		}
		seen[key] = true
		return nil
	}); err != nil {
		return nil, err
	}
	for _, f := range []string{"tableNumber", "items", "total", "gst", "grandTotal", "paymentMethod"} {
		if !seen[f] {
			return nil, missingField(f)
		}
	}
	return c, nil
}

func decodeSingleItem(d *jx.Decoder) (Submission, error) {
	var (
		s    SingleItem
		seen = make(map[string]bool, 3)
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tableNo":
			t, err := decodeTableNumber(d)
			if err != nil {
				return malformedField(key, "must be a string or number")
			}
			s.TableNo = t
		case "menuItem":
			v, err := decodeString(d, key)
			if err != nil {
				return err
			}
			s.MenuItem = v
		case "quantity":
			q, err := decodeQuantity(d, key)
			if err != nil {
				return err
			}
			s.Quantity = q
		default:
			return d.Skip()
		}
		seen[key] = true
		return nil
	}); err != nil {
		return nil, err
	}
	for _, f := range []string{"tableNo", "menuItem", "quantity"} {
		if !seen[f] {
			return nil, missingField(f)
		}
	}
	return s, nil
}

// decodeItems reads a submitted items array. Every item must carry name,
// quantity and price.
func decodeItems(d *jx.Decoder, field string) ([]LineItem, error) {
	if d.Next() != jx.Array {
		return nil, malformedField(field, "must be an array")
	}
	items := make([]LineItem, 0)
	if err := d.Arr(func(d *jx.Decoder) error {
		it, err := decodeLineItem(d, fmt.Sprintf("%s[%d]", field, len(items)))
		if err != nil {
			return err
		}
		items = append(items, it)
		return nil
	}); err != nil {
		var v *ValidationError
		if errors.As(err, &v) {
			return nil, v
		}
		return nil, malformedField(field, err.Error())
	}
	return items, nil
}

func decodeLineItem(d *jx.Decoder, prefix string) (LineItem, error) {
	var (
		it   LineItem
		seen = make(map[string]bool, 3)
	)
	if d.Next() != jx.Object {
		return it, malformedField(prefix, "must be an object")
	}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		field := prefix + "." + key
		switch key {
		case "name":
			v, err := decodeString(d, field)
			if err != nil {
				return err
			}
			it.Name = v
		case "quantity":
			q, err := decodeQuantity(d, field)
			if err != nil {
				return err
			}
			it.Quantity = q
		case "price":
			v, err := decodeDecimal(d)
			if err != nil {
				return malformedField(field, "must be a number")
			}
			it.Price = v
		default:
			return d.Skip()
		}
		seen[key] = true
		return nil
	}); err != nil {
		var v *ValidationError
		if errors.As(err, &v) {
			return it, v
		}
		return it, malformedField(prefix, err.Error())
	}
	for _, f := range []string{"name", "quantity", "price"} {
		if !seen[f] {
			return it, missingField(prefix + "." + f)
		}
	}
	return it, nil
}

func decodeString(d *jx.Decoder, field string) (string, error) {
	if d.Next() != jx.String {
		return "", malformedField(field, "must be a string")
	}
	v, err := d.Str()
	if err != nil {
		return "", malformedField(field, "must be a string")
	}
	return v, nil
}

// decodeQuantity accepts an integer given either as a JSON number or as a
// numeric string, the form HTML forms submit.
func decodeQuantity(d *jx.Decoder, field string) (int, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return 0, malformedField(field, "must be an integer")
		}
		return parseQuantity(field, string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, malformedField(field, "must be an integer")
		}
		return parseQuantity(field, s)
	default:
		return 0, malformedField(field, "must be an integer")
	}
}

func decodeTableNumber(d *jx.Decoder) (TableNumber, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return TableNumber{}, err
		}
		return NewTableNumber(strings.TrimSpace(s)), nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return TableNumber{}, err
		}
		return NewNumericTableNumber(string(n)), nil
	case jx.Null:
		return TableNumber{}, d.Null()
	default:
		return TableNumber{}, errors.Errorf("unexpected %v", d.Next())
	}
}

// decodeDecimal reads a JSON number, or a string holding one, without
// going through float64.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	default:
		return decimal.Zero, errors.Errorf("unexpected %v", d.Next())
	}
}

// storedItems reads the items of a persisted record. A value that is not
// an array yields no items, and entries that are not objects are dropped.
func storedItems(d *jx.Decoder) ([]LineItem, error) {
	if d.Next() != jx.Array {
		return nil, d.Skip()
	}
	items := make([]LineItem, 0)
	if err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		var it LineItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "name":
				it.Name, err = storedString(d)
			case "quantity":
				it.Quantity, err = storedInt(d)
			case "price":
				it.Price, err = storedDecimal(d)
			default:
				return d.Skip()
			}
			return err
		}); err != nil {
			return errors.Wrapf(err, "item %d", len(items))
		}
		items = append(items, it)
		return nil
	}); err != nil {
		return nil, err
	}
	return items, nil
}

// storedString reads a string value. Any other JSON value decodes as "".
func storedString(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", d.Skip()
	}
	return d.Str()
}

// storedInt reads an integer given as a JSON number or numeric string.
// Null, fractional and non-numeric values decode as 0.
func storedInt(d *jx.Decoder) (int, error) {
	raw, err := d.Raw()
	if err != nil {
		return 0, err
	}
	v := jx.DecodeBytes(raw)
	var s string
	switch v.Next() {
	case jx.Number:
		n, err := v.Num()
		if err != nil {
			return 0, nil
		}
		s = string(n)
	case jx.String:
		if s, err = v.Str(); err != nil {
			return 0, nil
		}
	default:
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// storedDecimal reads a decimal given as a JSON number or numeric string.
// Null and non-numeric values decode as zero.
func storedDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	raw, err := d.Raw()
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decodeDecimal(jx.DecodeBytes(raw))
	if err != nil {
		return decimal.Zero, nil
	}
	return v, nil
}

// storedTableNumber keeps string and number table numbers. Any other value
// decodes as an empty table number.
func storedTableNumber(d *jx.Decoder) (TableNumber, error) {
	switch d.Next() {
	case jx.String, jx.Number:
		return decodeTableNumber(d)
	default:
		return TableNumber{}, d.Skip()
	}
}

func encodeItems(e *jx.Encoder, items []LineItem) {
	e.ArrStart()
	for _, it := range items {
		it.Encode(e)
	}
	e.ArrEnd()
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}
