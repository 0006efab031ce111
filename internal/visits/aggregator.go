// Package visits answers visit-history lookups for sets of pets with a single
// record store round trip.
package visits

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/petclinic/models"
)

// VisitFinder is the part of the record store the aggregator needs.
type VisitFinder interface {
	FindVisitsByPetIDs(ctx context.Context, petIDs []int) ([]models.VisitRecord, error)
	FindVisitsByPetID(ctx context.Context, petID int) ([]models.VisitRecord, error)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTracer sets the tracer used for spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Aggregator) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// Aggregator reads visits for one pet or a set of pets.
type Aggregator struct {
	store  VisitFinder
	tracer trace.Tracer
	logger *zap.Logger
}

// New creates an Aggregator over store.
func New(store VisitFinder, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		tracer: otel.Tracer("petclinic/visits"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Read returns the visits of a single pet.
func (a *Aggregator) Read(ctx context.Context, petID int) ([]models.VisitRecord, error) {
	ctx, span := a.tracer.Start(ctx, "VisitBatchAggregator.Read", trace.WithAttributes(attribute.Int("pet.id", petID)))
	defer span.End()

	records, err := a.store.FindVisitsByPetID(ctx, petID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]models.VisitRecord, 0, len(records))
	for _, r := range records {
		if r.PetID != petID {
			a.logger.Warn("Dropping visit of unrequested pet", zap.Int("visit", r.ID), zap.Int("pet", r.PetID))
			continue
		}
		out = append(out, r)
	}
	span.SetAttributes(attribute.Int("visit.count", len(out)))
	return out, nil
}

// ReadBatch returns every visit of the given pets in store order. Repeated ids
// are sent once; an empty set returns an empty slice without calling the store.
// A store failure fails the whole batch.
func (a *Aggregator) ReadBatch(ctx context.Context, petIDs []int) ([]models.VisitRecord, error) {
	ids, requested := dedupe(petIDs)
	if len(ids) == 0 {
		return []models.VisitRecord{}, nil
	}

	ctx, span := a.tracer.Start(ctx, "VisitBatchAggregator.ReadBatch", trace.WithAttributes(
		attribute.Int("pet.requested", len(petIDs)),
		attribute.Int("pet.distinct", len(ids)),
	))
	defer span.End()

	records, err := a.store.FindVisitsByPetIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]models.VisitRecord, 0, len(records))
	for _, r := range records {
		if _, ok := requested[r.PetID]; !ok {
			a.logger.Warn("Dropping visit of unrequested pet", zap.Int("visit", r.ID), zap.Int("pet", r.PetID))
			continue
		}
		out = append(out, r)
	}
	span.SetAttributes(attribute.Int("visit.count", len(out)))
	return out, nil
}

// dedupe keeps the first occurrence of every id.
func dedupe(petIDs []int) ([]int, map[int]struct{}) {
	seen := make(map[int]struct{}, len(petIDs))
	ids := make([]int, 0, len(petIDs))
	for _, id := range petIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, seen
}

// GroupByPet indexes records by PetID, keeping their relative order.
func GroupByPet(records []models.VisitRecord) map[int][]models.VisitRecord {
	grouped := make(map[int][]models.VisitRecord)
	for _, r := range records {
		grouped[r.PetID] = append(grouped[r.PetID], r)
	}
	return grouped
}
