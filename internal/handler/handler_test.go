package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/orderlog/internal/domain/order"
	"github.com/xenking/orderlog/internal/storage/file"
)

// --- Mock implementations ---

type stubService struct {
	records []order.Record
	err     error
}

func (s *stubService) List(_ context.Context) ([]order.Record, error) {
	return s.records, s.err
}

func (s *stubService) Accept(_ context.Context, _ order.Kind, _ []byte) (*order.Record, error) {
	return nil, s.err
}

// --- Helpers ---

type orderJSON struct {
	OrderID       string          `json:"orderId"`
	Timestamp     string          `json:"timestamp"`
	TableNumber   json.RawMessage `json:"tableNumber"`
	PaymentMethod string          `json:"paymentMethod"`
	Total         float64         `json:"total"`
	Items         []struct {
		Name     string  `json:"name"`
		Quantity int     `json:"quantity"`
		Price    float64 `json:"price"`
	} `json:"items"`
}

type placedJSON struct {
	Message string    `json:"message"`
	Order   orderJSON `json:"order"`
}

type problemJSON struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func newTestServer(t *testing.T, svc OrderService) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	NewHandler(HandlerConfig{MaxBodyBytes: 4 << 10}, svc).Register(mux, nil)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFileBackedServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "customer-orders.json")
	svc, err := order.NewService(file.NewStore(path), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	require.NoError(t, svc.Init(context.Background()))
	return newTestServer(t, svc), path
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// --- Tests ---

func TestListOrders_Empty(t *testing.T) {
	srv, _ := newFileBackedServer(t)

	resp, err := http.Get(srv.URL + "/api/customer-orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Empty(t, decode[[]orderJSON](t, resp))
}

func TestPlaceSingleOrder(t *testing.T) {
	srv, _ := newFileBackedServer(t)

	resp := post(t, srv.URL+"/api/single-order", `{"tableNo":"5","menuItem":"Latte","quantity":"2"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	placed := decode[placedJSON](t, resp)
	assert.Equal(t, "Order placed successfully!", placed.Message)
	assert.Regexp(t, `^ORD-\d+$`, placed.Order.OrderID)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, placed.Order.Timestamp)
	assert.JSONEq(t, `"5"`, string(placed.Order.TableNumber))
	assert.Equal(t, "Pay at Counter", placed.Order.PaymentMethod)
	require.Len(t, placed.Order.Items, 1)
	assert.Equal(t, "Latte", placed.Order.Items[0].Name)
	assert.Equal(t, 2, placed.Order.Items[0].Quantity)
	assert.Zero(t, placed.Order.Items[0].Price)

	list, err := http.Get(srv.URL + "/api/customer-orders")
	require.NoError(t, err)
	defer list.Body.Close()
	orders := decode[[]orderJSON](t, list)
	require.Len(t, orders, 1)
	assert.Equal(t, placed.Order.OrderID, orders[0].OrderID)
}

func TestPlaceOrder_FullCart(t *testing.T) {
	srv, _ := newFileBackedServer(t)

	body := `{"tableNumber":7,"items":[{"name":"Tea","quantity":2,"price":2.5}],` +
		`"total":5,"gst":0.5,"grandTotal":5.5,"paymentMethod":"Card","orderId":"ORD-1"}`
	resp := post(t, srv.URL+"/api/customer-orders", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	placed := decode[placedJSON](t, resp)
	assert.NotEqual(t, "ORD-1", placed.Order.OrderID)
	assert.JSONEq(t, `7`, string(placed.Order.TableNumber))
	assert.InDelta(t, 5.0, placed.Order.Total, 0.0001)
	assert.Equal(t, "Card", placed.Order.PaymentMethod)
}

func TestPlaceOrder_ValidationLeavesFileUntouched(t *testing.T) {
	srv, path := newFileBackedServer(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name  string
		path  string
		body  string
		field string
	}{
		{"bad quantity", "/api/single-order", `{"tableNo":"5","menuItem":"Latte","quantity":"abc"}`, "quantity"},
		{"missing menu item", "/api/single-order", `{"tableNo":"5","quantity":1}`, "menuItem"},
		{"missing items", "/api/customer-orders", `{"tableNumber":"1","total":0,"gst":0,"grandTotal":0,"paymentMethod":"Card"}`, "items"},
		{"malformed json", "/api/customer-orders", `{"tableNumber":`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			p := decode[problemJSON](t, resp)
			assert.Equal(t, http.StatusBadRequest, p.Code)
			assert.Equal(t, "validation_error", p.Type)
			assert.Equal(t, tt.field, p.Field)
			assert.NotEmpty(t, p.Message)
		})
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPlaceOrder_BodyTooLarge(t *testing.T) {
	srv, _ := newFileBackedServer(t)

	body := `{"tableNo":"5","menuItem":"` + strings.Repeat("x", 8<<10) + `","quantity":1}`
	resp := post(t, srv.URL+"/api/single-order", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestListOrders_CorruptStore(t *testing.T) {
	srv, path := newFileBackedServer(t)
	require.NoError(t, os.WriteFile(path, []byte(`[{"orderId":`), 0o644))

	resp, err := http.Get(srv.URL + "/api/customer-orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "store_read_error", decode[problemJSON](t, resp).Type)

	// Submissions must not overwrite an unreadable log.
	sub := post(t, srv.URL+"/api/single-order", `{"tableNo":"5","menuItem":"Latte","quantity":1}`)
	assert.Equal(t, http.StatusInternalServerError, sub.StatusCode)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"orderId":`, string(data))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"write error", &order.StoreWriteError{Err: errors.New("disk full")}, http.StatusInternalServerError, "store_write_error"},
		{"read error", &order.StoreReadError{Err: errors.New("bad json")}, http.StatusInternalServerError, "store_read_error"},
		{"validation", &order.ValidationError{Field: "quantity", Reason: "must be an integer"}, http.StatusBadRequest, "validation_error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubService{err: tt.err})

			resp := post(t, srv.URL+"/api/single-order", `{}`)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			p := decode[problemJSON](t, resp)
			assert.Equal(t, tt.wantCode, p.Code)
			assert.Equal(t, tt.wantType, p.Type)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/customer-orders", bytes.NewReader(nil))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
