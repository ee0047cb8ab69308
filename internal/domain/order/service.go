package order

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xenking/orderlog/internal/domain/order"

// Service normalizes submissions into records and appends them to the
// Store.
//
// The Store only offers whole-collection load and replace, so appending is a
// load-modify-write sequence. Service serializes those sequences with a
// single-writer mutex; concurrent submissions queue on it instead of
// failing, and none of them can overwrite another's record. The mutex only
// covers this process: one writer process per store is assumed.
type Service struct {
	store Store
	ids   IDAllocator
	now   func() time.Time

	// mu guards every Store access.
	mu sync.Mutex

	tracer   trace.Tracer
	accepted metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates a Service backed by store. Nil providers fall back to
// the global otel providers.
func NewService(store Store, tp trace.TracerProvider, mp metric.MeterProvider) (*Service, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	accepted, err := meter.Int64Counter("orders.submissions.accepted",
		metric.WithDescription("Order submissions persisted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "accepted counter")
	}
	rejected, err := meter.Int64Counter("orders.submissions.rejected",
		metric.WithDescription("Order submissions that were not persisted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	return &Service{
		store:    store,
		now:      time.Now,
		tracer:   tp.Tracer(instrumentationName),
		accepted: accepted,
		rejected: rejected,
	}, nil
}

// Init makes sure the underlying store exists.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.EnsureInitialized(ctx); err != nil {
		return asWriteError(err)
	}
	return nil
}

// List returns every persisted record in insertion order.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	ctx, span := s.tracer.Start(ctx, "order.List")
	defer span.End()

	s.mu.Lock()
	records, err := s.store.LoadAll(ctx)
	s.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load orders")
		return nil, asReadError(err)
	}
	span.SetAttributes(attribute.Int("orders.count", len(records)))
	return records, nil
}

// Accept decodes payload as the given submission shape and submits it.
func (s *Service) Accept(ctx context.Context, kind Kind, payload []byte) (*Record, error) {
	sub, err := DecodeSubmission(kind, payload)
	if err != nil {
		s.reject(ctx, kind, "validation")
		return nil, err
	}
	return s.Submit(ctx, sub)
}

// Submit validates sub, assigns it an identifier and timestamp, and appends
// the resulting record to the store. Exactly one record is persisted per
// successful call; on failure the store is left as it was.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "order.Submit",
		trace.WithAttributes(attribute.String("order.kind", string(sub.Kind()))),
	)
	defer span.End()

	if err := sub.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation")
		s.reject(ctx, sub.Kind(), "validation")
		return nil, err
	}

	rec, err := s.appendLocked(ctx, sub)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order")
		s.reject(ctx, sub.Kind(), "store")
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", rec.OrderID))
	s.accepted.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(sub.Kind()))))
	return rec, nil
}

func (s *Service) appendLocked(ctx context.Context, sub Submission) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, asReadError(err)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	rec := sub.normalize(s.ids.Next(now, records), now)

	next := make([]Record, len(records), len(records)+1)
	copy(next, records)
	next = append(next, rec)

	if err := s.store.ReplaceAll(ctx, next); err != nil {
		return nil, asWriteError(err)
	}
	return &rec, nil
}

func (s *Service) reject(ctx context.Context, kind Kind, reason string) {
	s.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("reason", reason),
	))
}
