package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderlog/internal/domain/order"
)

// Problem types reported in error bodies.
const (
	problemValidation = "validation_error"
	problemStoreRead  = "store_read_error"
	problemStoreWrite = "store_write_error"
	problemInternal   = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeProblem(w http.ResponseWriter, status int, typ, message, field string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("type")
		e.Str(typ)
		e.FieldStart("message")
		e.Str(message)
		if field != "" {
			e.FieldStart("field")
			e.Str(field)
		}
		e.ObjEnd()
	})
}

// writeError maps domain errors to HTTP responses. Store errors are checked
// first: they are server faults even when caused by bad data on disk.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	var (
		readErr  *order.StoreReadError
		writeErr *order.StoreWriteError
		valErr   *order.ValidationError
	)
	switch {
	case errors.As(err, &readErr):
		lg.Error("Order store unreadable", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, problemStoreRead, "order store could not be read", "")
	case errors.As(err, &writeErr):
		lg.Error("Order store unwritable", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, problemStoreWrite, "order could not be saved", "")
	case errors.As(err, &valErr):
		lg.Debug("Rejected order submission", zap.Error(err))
		writeProblem(w, http.StatusBadRequest, problemValidation, valErr.Error(), valErr.Field)
	default:
		lg.Error("Request failed", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, problemInternal, "internal server error", "")
	}
}
