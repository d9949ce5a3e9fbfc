// Package lookup runs a complete due-diligence lookup for one tax ID.
package lookup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"diligence/internal/evidence/registry/normalize"
	"diligence/internal/evidence/registry/orchestrator"
	"diligence/internal/evidence/registry/providers"
	"diligence/internal/narration"
	"diligence/internal/platform/metrics"
	"diligence/pkg/domain"
	"diligence/pkg/requestcontext"
)

const (
	outcomeNoResults       = "no_results"
	outcomeNarrated        = "narrated"
	outcomeNarrationFailed = "narration_failed"
)

// Aggregator fetches the four core registries.
type Aggregator interface {
	Aggregate(ctx context.Context, taxID domain.TaxID) (*orchestrator.Result, error)
}

// Narrator produces the compliance opinion.
type Narrator interface {
	Narrate(ctx context.Context, payloads narration.Payloads) (*narration.Narration, error)
}

// Result is everything one lookup produced. It is request-scoped and never stored.
type Result struct {
	TaxID        domain.TaxID
	Registries   *orchestrator.Result
	Records      []normalize.Record
	RecordErrors []normalize.ItemError
	// NoResults is set when every registry came back empty; the narrator is then skipped.
	NoResults bool
	Narration *narration.Narration
	// NarrationErr holds a narration failure. It never fails the lookup itself.
	NarrationErr error
	Timestamp    time.Time
	RequestID    string
}

// Service orchestrates validate, fetch, normalize and narrate.
type Service struct {
	aggregator Aggregator
	narrator   Narrator
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewService wires the lookup service.
func NewService(aggregator Aggregator, narrator Narrator, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		aggregator: aggregator,
		narrator:   narrator,
		logger:     logger,
		metrics:    m,
	}
}

// Lookup validates document and runs the full pipeline.
//
// Errors: a validation error for a malformed document and a configuration
// error when the registries cannot be called. Registry and narration failures
// are reported inside the Result instead.
func (s *Service) Lookup(ctx context.Context, document string) (*Result, error) {
	taxID, err := domain.ParseTaxID(document)
	if err != nil {
		return nil, err
	}

	registries, err := s.aggregator.Aggregate(ctx, taxID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		TaxID:      taxID,
		Registries: registries,
		Records:    []normalize.Record{},
		Timestamp:  requestcontext.Now(ctx),
		RequestID:  requestcontext.RequestID(ctx),
	}
	for _, source := range providers.CoreSources {
		records, itemErrs := normalize.Normalize(source, registries.Payload(source))
		result.Records = append(result.Records, records...)
		result.RecordErrors = append(result.RecordErrors, itemErrs...)
	}
	for _, ie := range result.RecordErrors {
		s.logger.Warn("registry item could not be normalized",
			zap.String("request_id", result.RequestID),
			zap.String("source", string(ie.Source)),
			zap.Int("index", ie.Index),
			zap.Error(ie.Err),
		)
	}

	kind := string(taxID.Kind())
	if registries.Empty() {
		result.NoResults = true
		s.metrics.IncrementLookup(kind, outcomeNoResults)
		return result, nil
	}

	result.Narration, result.NarrationErr = s.narrator.Narrate(ctx, narration.Payloads{
		CEIS:      registries.CEIS,
		CNEP:      registries.CNEP,
		CEPIM:     registries.CEPIM,
		Leniencia: registries.Leniencia,
	})
	if result.NarrationErr != nil {
		s.logger.Warn("lookup returned without narration",
			zap.String("request_id", result.RequestID),
			zap.String("document_kind", kind),
			zap.Error(result.NarrationErr),
		)
		s.metrics.IncrementLookup(kind, outcomeNarrationFailed)
		return result, nil
	}
	s.metrics.IncrementLookup(kind, outcomeNarrated)
	return result, nil
}
