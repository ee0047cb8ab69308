package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSubmission_SingleItem(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		table    string
		numeric  bool
		quantity int
	}{
		{"string quantity", `{"tableNo":"5","menuItem":"Latte","quantity":"2"}`, "5", false, 2},
		{"number quantity", `{"tableNo":"7","menuItem":"Latte","quantity":3}`, "7", false, 3},
		{"numeric table", `{"tableNo":9,"menuItem":"Latte","quantity":1}`, "9", true, 1},
		{"padded quantity", `{"tableNo":"A1","menuItem":"Latte","quantity":" 4 "}`, "A1", false, 4},
		{"zero quantity", `{"tableNo":"2","menuItem":"Latte","quantity":"0"}`, "2", false, 0},
		{"extra fields ignored", `{"tableNo":"2","menuItem":"Tea","quantity":1,"note":"hot"}`, "2", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := DecodeSubmission(KindSingleItem, []byte(tt.payload))
			require.NoError(t, err)

			s, ok := sub.(SingleItem)
			require.True(t, ok)
			assert.Equal(t, tt.table, s.TableNo.String())
			assert.Equal(t, tt.numeric, s.TableNo.IsNumeric())
			assert.Equal(t, tt.quantity, s.Quantity)
		})
	}
}

func TestDecodeSubmission_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		payload string
		field   string
	}{
		{"not json", KindSingleItem, `{"tableNo":`, ""},
		{"not an object", KindSingleItem, `[1,2]`, ""},
		{"missing tableNo", KindSingleItem, `{"menuItem":"Latte","quantity":1}`, "tableNo"},
		{"blank tableNo", KindSingleItem, `{"tableNo":"  ","menuItem":"Latte","quantity":1}`, "tableNo"},
		{"missing menuItem", KindSingleItem, `{"tableNo":"1","quantity":1}`, "menuItem"},
		{"blank menuItem", KindSingleItem, `{"tableNo":"1","menuItem":" ","quantity":1}`, "menuItem"},
		{"menuItem not a string", KindSingleItem, `{"tableNo":"1","menuItem":5,"quantity":1}`, "menuItem"},
		{"missing quantity", KindSingleItem, `{"tableNo":"1","menuItem":"Latte"}`, "quantity"},
		{"non numeric quantity", KindSingleItem, `{"tableNo":"1","menuItem":"Latte","quantity":"abc"}`, "quantity"},
		{"fractional quantity", KindSingleItem, `{"tableNo":"1","menuItem":"Latte","quantity":2.5}`, "quantity"},
		{"negative quantity", KindSingleItem, `{"tableNo":"1","menuItem":"Latte","quantity":-1}`, "quantity"},
		{"bool quantity", KindSingleItem, `{"tableNo":"1","menuItem":"Latte","quantity":true}`, "quantity"},
		{"cart missing items", KindFullCart, `{"tableNumber":"1","total":0,"gst":0,"grandTotal":0,"paymentMethod":"Card"}`, "items"},
		{"cart items not array", KindFullCart, `{"tableNumber":"1","items":{},"total":0,"gst":0,"grandTotal":0,"paymentMethod":"Card"}`, "items"},
		{"cart missing gst", KindFullCart, `{"tableNumber":"1","items":[],"total":0,"grandTotal":0,"paymentMethod":"Card"}`, "gst"},
		{"cart total not number", KindFullCart, `{"tableNumber":"1","items":[],"total":"ten","gst":0,"grandTotal":0,"paymentMethod":"Card"}`, "total"},
		{"cart missing payment", KindFullCart, `{"tableNumber":"1","items":[],"total":0,"gst":0,"grandTotal":0}`, "paymentMethod"},
		{"cart item missing price", KindFullCart, `{"tableNumber":"1","items":[{"name":"Tea","quantity":1}],"total":0,"gst":0,"grandTotal":0,"paymentMethod":"Card"}`, "items[0].price"},
		{"cart item bad quantity", KindFullCart, `{"tableNumber":"1","items":[{"name":"Tea","quantity":1,"price":1},{"name":"Tea","quantity":"x","price":1}],"total":0,"gst":0,"grandTotal":0,"paymentMethod":"Card"}`, "items[1].quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSubmission(tt.kind, []byte(tt.payload))

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestDecodeSubmission_UnknownKind(t *testing.T) {
	_, err := DecodeSubmission(Kind("bulk"), []byte(`{}`))
	require.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestEncodeRecords_FieldOrder(t *testing.T) {
	rec := Record{
		OrderID:       "ORD-1714559400000",
		Timestamp:     time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		TableNumber:   NewNumericTableNumber("12"),
		Items:         []LineItem{{Name: "Tea", Quantity: 2, Price: decimal.RequireFromString("2.50")}},
		Total:         decimal.RequireFromString("5.00"),
		GST:           decimal.RequireFromString("0.5"),
		GrandTotal:    decimal.RequireFromString("5.5"),
		PaymentMethod: "Card",
	}

	got := string(EncodeRecords([]Record{rec}, 0))
	want := `[{"tableNumber":12,"items":[{"name":"Tea","quantity":2,"price":2.5}],` +
		`"total":5,"gst":0.5,"grandTotal":5.5,"paymentMethod":"Card",` +
		`"orderId":"ORD-1714559400000","timestamp":"2024-05-01T10:30:00.000Z"}]`
	assert.Equal(t, want, got)
}

func TestEncodeRecords_Empty(t *testing.T) {
	assert.Equal(t, "[]", string(EncodeRecords(nil, 0)))
}

func TestRecordsRoundTrip(t *testing.T) {
	records := []Record{
		{
			OrderID:       "ORD-1",
			Timestamp:     time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC),
			TableNumber:   NewTableNumber("Patio 3"),
			Items:         []LineItem{{Name: "Scone", Quantity: 1, Price: decimal.RequireFromString("3.75")}},
			Total:         decimal.RequireFromString("3.75"),
			GST:           decimal.RequireFromString("0.38"),
			GrandTotal:    decimal.RequireFromString("4.13"),
			PaymentMethod: "Cash",
		},
		{
			OrderID:       "ORD-2",
			Timestamp:     time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC),
			TableNumber:   NewNumericTableNumber("4"),
			Items:         []LineItem{{Name: "Latte", Quantity: 3, Price: decimal.Zero}},
			Total:         decimal.Zero,
			GST:           decimal.Zero,
			GrandTotal:    decimal.Zero,
			PaymentMethod: PaymentAtCounter,
		},
	}

	decoded, err := DecodeRecords(EncodeRecords(records, 2))
	require.NoError(t, err)
	require.Len(t, decoded, len(records))

	for i := range records {
		want, got := records[i], decoded[i]
		assert.Equal(t, want.OrderID, got.OrderID)
		assert.True(t, want.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, want.TableNumber, got.TableNumber)
		assert.Equal(t, want.PaymentMethod, got.PaymentMethod)
		assert.True(t, want.Total.Equal(got.Total))
		assert.True(t, want.GST.Equal(got.GST))
		assert.True(t, want.GrandTotal.Equal(got.GrandTotal))
		require.Len(t, got.Items, len(want.Items))
		assert.Equal(t, want.Items[0].Name, got.Items[0].Name)
		assert.Equal(t, want.Items[0].Quantity, got.Items[0].Quantity)
		assert.True(t, want.Items[0].Price.Equal(got.Items[0].Price))
	}
}

func TestDecodeRecords_Lenient(t *testing.T) {
	data := []byte(`[{"orderId":"ORD-9","tableNumber":null,"legacy":true,"items":[{"name":"Tea"}]}]`)

	records, err := DecodeRecords(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ORD-9", records[0].OrderID)
	assert.True(t, records[0].TableNumber.IsZero())
	assert.True(t, records[0].Timestamp.IsZero())
	require.Len(t, records[0].Items, 1)
	assert.Equal(t, "Tea", records[0].Items[0].Name)
}

func TestDecodeRecords_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"object", `{"orderId":"ORD-1"}`},
		{"truncated", `[{"orderId":"ORD-1"`},
		{"missing id", `[{"tableNumber":"1"}]`},
		{"bad timestamp", `[{"orderId":"ORD-1","timestamp":"yesterday"}]`},
		{"trailing data", `[] []`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecords([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeRecords_MalformedLegacyValues(t *testing.T) {
	// Earlier servers wrote parseInt results unchecked, so NaN quantities
	// were persisted as null, and full-cart fields were stored as sent.
	data := []byte(`[
  {
    "tableNumber": true,
    "items": [
      {
        "name": "Latte",
        "quantity": null,
        "price": 0
      },
      {
        "name": null,
        "quantity": "2.5",
        "price": "free"
      },
      "stray",
      {
        "name": "Scone",
        "quantity": "3",
        "price": "4.20"
      }
    ],
    "total": null,
    "gst": "n/a",
    "grandTotal": {},
    "paymentMethod": null,
    "orderId": "ORD-1700000000000",
    "timestamp": "2023-11-14T22:13:20.000Z"
  },
  {
    "tableNumber": "2",
    "items": null,
    "total": 0,
    "gst": 0,
    "grandTotal": 0,
    "orderId": "ORD-1700000000001",
    "timestamp": "2023-11-14T22:13:20.001Z"
  }
]`)

	records, err := DecodeRecords(data)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.True(t, first.TableNumber.IsZero())
	require.Len(t, first.Items, 3)
	assert.Equal(t, "Latte", first.Items[0].Name)
	assert.Zero(t, first.Items[0].Quantity)
	assert.Empty(t, first.Items[1].Name)
	assert.Zero(t, first.Items[1].Quantity)
	assert.True(t, first.Items[1].Price.IsZero())
	assert.Equal(t, 3, first.Items[2].Quantity)
	assert.True(t, decimal.RequireFromString("4.2").Equal(first.Items[2].Price))
	assert.True(t, first.Total.IsZero())
	assert.True(t, first.GST.IsZero())
	assert.True(t, first.GrandTotal.IsZero())
	assert.Empty(t, first.PaymentMethod)

	assert.Equal(t, "2", records[1].TableNumber.String())
	assert.Empty(t, records[1].Items)

	// Rewriting the collection yields well-formed values.
	again, err := DecodeRecords(EncodeRecords(records, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].Items[0].Quantity)
}

func TestDecodeItems_Stored(t *testing.T) {
	items, err := DecodeItems([]byte(`[{"name":"Tea","quantity":null,"price":null}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tea", items[0].Name)
	assert.Zero(t, items[0].Quantity)

	_, err = DecodeItems([]byte(`[{"name":"Tea"`))
	assert.Error(t, err)
}
