package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"diligence/internal/evidence/registry/providers"
	"diligence/pkg/domain"
	dErrors "diligence/pkg/domain-errors"
)

const (
	outcomeOK      = "ok"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// Failure describes why a registry contributed an empty result.
type Failure struct {
	Category providers.ErrorCategory `json:"category"`
	Message  string                  `json:"message"`
}

// Result holds one payload per core registry. Every payload is a JSON array;
// a failed or skipped registry contributes providers.EmptyPayload.
type Result struct {
	CEIS      json.RawMessage
	CNEP      json.RawMessage
	CEPIM     json.RawMessage
	Leniencia json.RawMessage

	Failures  map[providers.Source]Failure
	Latencies map[providers.Source]time.Duration
}

// Payload returns the payload for a core source.
func (r *Result) Payload(s providers.Source) json.RawMessage {
	switch s {
	case providers.SourceCEIS:
		return r.CEIS
	case providers.SourceCNEP:
		return r.CNEP
	case providers.SourceCEPIM:
		return r.CEPIM
	case providers.SourceLeniencia:
		return r.Leniencia
	default:
		return providers.EmptyPayload
	}
}

func (r *Result) set(s providers.Source, payload json.RawMessage) {
	switch s {
	case providers.SourceCEIS:
		r.CEIS = payload
	case providers.SourceCNEP:
		r.CNEP = payload
	case providers.SourceCEPIM:
		r.CEPIM = payload
	case providers.SourceLeniencia:
		r.Leniencia = payload
	}
}

// Empty reports whether no core registry returned any item.
func (r *Result) Empty() bool {
	for _, s := range providers.CoreSources {
		if !IsEmptyPayload(r.Payload(s)) {
			return false
		}
	}
	return true
}

// IsEmptyPayload reports whether payload holds no items.
func IsEmptyPayload(payload json.RawMessage) bool {
	if len(payload) == 0 {
		return true
	}
	parsed := gjson.ParseBytes(payload)
	return !parsed.IsArray() || parsed.Get("#").Int() == 0
}

// OrchestratorConfig configures the registry orchestrator.
type OrchestratorConfig struct {
	Registry *providers.ProviderRegistry
	// Timeout bounds a whole aggregation; zero leaves it to the per-client timeouts.
	Timeout time.Duration
	Metrics *Metrics
	Logger  *zap.Logger
}

// Orchestrator fans a lookup out to every core registry.
type Orchestrator struct {
	registry *providers.ProviderRegistry
	timeout  time.Duration
	metrics  *Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewOrchestrator creates a new registry orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: cfg.Registry,
		timeout:  cfg.Timeout,
		metrics:  cfg.Metrics,
		logger:   logger,
		tracer:   otel.Tracer("diligence/registry"),
	}
}

// Aggregate queries the four core registries concurrently and waits for all of them.
//
// Invariants:
//   - no registry failure cancels or short-circuits the others
//   - nothing is retried
//   - each failed registry contributes an empty array and a Failure entry
//
// Errors: only a configuration error, returned before any outbound call.
func (o *Orchestrator) Aggregate(ctx context.Context, taxID domain.TaxID) (*Result, error) {
	if err := o.registry.Ready(); err != nil {
		return nil, err
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "registry.aggregate",
		trace.WithAttributes(attribute.String("document.kind", string(taxID.Kind()))))
	defer span.End()

	start := time.Now()
	type outcome struct {
		payload json.RawMessage
		err     error
		latency time.Duration
	}
	outcomes := make([]outcome, len(providers.CoreSources))

	// No errgroup.WithContext: a failing registry must not cancel its siblings.
	var g errgroup.Group
	for i, source := range providers.CoreSources {
		i, source := i, source
		g.Go(func() error {
			began := time.Now()
			payload, err := o.lookup(ctx, source, taxID)
			outcomes[i] = outcome{payload: payload, err: err, latency: time.Since(began)}
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		Failures:  make(map[providers.Source]Failure),
		Latencies: make(map[providers.Source]time.Duration, len(providers.CoreSources)),
	}
	for i, source := range providers.CoreSources {
		oc := outcomes[i]
		result.Latencies[source] = oc.latency
		if oc.err != nil {
			category := providers.GetCategory(oc.err)
			result.Failures[source] = Failure{Category: category, Message: oc.err.Error()}
			o.metrics.IncrementFailure(source, category)
			o.logger.Warn("registry lookup degraded to empty result",
				zap.String("source", string(source)),
				zap.String("category", string(category)),
				zap.Duration("latency", oc.latency),
				zap.Error(oc.err),
			)
		}
		if len(oc.payload) == 0 {
			oc.payload = providers.EmptyPayload
		}
		result.set(source, oc.payload)
	}

	o.metrics.ObserveAggregate(time.Since(start))
	span.SetAttributes(attribute.Int("registry.failures", len(result.Failures)))
	return result, nil
}

// Fetch queries a single registry. Unlike Aggregate it reports the registry's
// failure to the caller, alongside the empty payload.
func (o *Orchestrator) Fetch(ctx context.Context, source providers.Source, taxID domain.TaxID) (json.RawMessage, error) {
	if err := o.registry.Ready(); err != nil {
		return nil, err
	}
	p, ok := o.registry.Get(source)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown registry %q", source))
	}
	if !p.Supports(taxID.Kind()) {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("registry %s does not list %s documents", source, taxID.Kind()))
	}
	return o.lookup(ctx, source, taxID)
}

func (o *Orchestrator) lookup(ctx context.Context, source providers.Source, taxID domain.TaxID) (json.RawMessage, error) {
	p, ok := o.registry.Get(source)
	if !ok {
		return providers.EmptyPayload, providers.NewProviderError(providers.ErrorInternal, source, "no provider registered", nil)
	}
	if !p.Supports(taxID.Kind()) {
		o.metrics.ObserveRegistry(source, outcomeSkipped, 0)
		return providers.EmptyPayload, nil
	}

	start := time.Now()
	payload, err := p.Lookup(ctx, taxID)
	if err != nil {
		o.metrics.ObserveRegistry(source, outcomeFailed, time.Since(start))
		return providers.EmptyPayload, err
	}
	o.metrics.ObserveRegistry(source, outcomeOK, time.Since(start))
	return payload, nil
}
