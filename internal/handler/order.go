package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderlog/internal/domain/order"
)

const placedMessage = "Order placed successfully!"

// ListOrders returns the whole order log.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	records, err := h.orders.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, rec := range records {
			rec.Encode(e)
		}
		e.ArrEnd()
	})
}

// PlaceOrder accepts a full-cart checkout.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, order.KindFullCart)
}

// PlaceSingleOrder accepts a single-item quick booking.
func (h *Handler) PlaceSingleOrder(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, order.KindSingleItem)
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request, kind order.Kind) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, problemValidation, "request body too large", "")
			return
		}
		writeError(w, r, errors.Wrap(err, "read request body"))
		return
	}

	rec, err := h.orders.Accept(r.Context(), kind, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	zctx.From(r.Context()).Info("Order placed",
		zap.String("order_id", rec.OrderID),
		zap.String("kind", string(kind)),
		zap.Stringer("table", rec.TableNumber),
	)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(placedMessage)
		e.FieldStart("order")
		rec.Encode(e)
		e.ObjEnd()
	})
}
