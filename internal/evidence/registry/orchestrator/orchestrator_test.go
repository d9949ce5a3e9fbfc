package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"diligence/internal/evidence/registry/providers"
	"diligence/pkg/domain"
	dErrors "diligence/pkg/domain-errors"
)

type stubProvider struct {
	source   providers.Source
	kinds    []domain.DocumentKind
	payload  string
	err      error
	delay    time.Duration
	meet     *rendezvous
	calls    atomic.Int32
	canceled atomic.Bool
}

// rendezvous releases its callers only once all n of them are inside Lookup.
type rendezvous struct {
	arrived sync.WaitGroup
	all     chan struct{}
}

func newRendezvous(n int) *rendezvous {
	r := &rendezvous{all: make(chan struct{})}
	r.arrived.Add(n)
	go func() {
		r.arrived.Wait()
		close(r.all)
	}()
	return r
}

func (s *stubProvider) Source() providers.Source { return s.source }

func (s *stubProvider) Supports(kind domain.DocumentKind) bool {
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *stubProvider) Lookup(ctx context.Context, _ domain.TaxID) (json.RawMessage, error) {
	s.calls.Add(1)
	if s.meet != nil {
		s.meet.arrived.Done()
		select {
		case <-s.meet.all:
		case <-ctx.Done():
			s.canceled.Store(true)
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			s.canceled.Store(true)
		}
	}
	if s.err != nil {
		return providers.EmptyPayload, s.err
	}
	return json.RawMessage(s.payload), nil
}

var both = []domain.DocumentKind{domain.KindCPF, domain.KindCNPJ}
var entityOnly = []domain.DocumentKind{domain.KindCNPJ}

type OrchestratorSuite struct {
	suite.Suite
	ceis, cnep, cepim, leniencia *stubProvider
	metrics                      *Metrics
	orchestrator                 *Orchestrator
	cnpj, cpf                    domain.TaxID
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ceis = &stubProvider{source: providers.SourceCEIS, kinds: both, payload: `[]`}
	s.cnep = &stubProvider{source: providers.SourceCNEP, kinds: both, payload: `[]`}
	s.cepim = &stubProvider{source: providers.SourceCEPIM, kinds: entityOnly, payload: `[]`}
	s.leniencia = &stubProvider{source: providers.SourceLeniencia, kinds: entityOnly, payload: `[]`}

	registry := providers.NewProviderRegistry()
	for _, p := range []*stubProvider{s.ceis, s.cnep, s.cepim, s.leniencia} {
		s.Require().NoError(registry.Register(p))
	}

	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.orchestrator = NewOrchestrator(OrchestratorConfig{
		Registry: registry,
		Metrics:  s.metrics,
		Logger:   zaptest.NewLogger(s.T()),
	})

	var err error
	s.cnpj, err = domain.ParseTaxID("12.345.678/0001-95")
	s.Require().NoError(err)
	s.cpf, err = domain.ParseTaxID("123.456.789-09")
	s.Require().NoError(err)
}

func (s *OrchestratorSuite) TestAllRegistriesEmpty() {
	result, err := s.orchestrator.Aggregate(context.Background(), s.cnpj)
	s.Require().NoError(err)

	s.True(result.Empty())
	s.Empty(result.Failures)
	for _, p := range []*stubProvider{s.ceis, s.cnep, s.cepim, s.leniencia} {
		s.Equal(int32(1), p.calls.Load(), p.source)
	}
	s.Len(result.Latencies, 4)
}

func (s *OrchestratorSuite) TestOneFailureDoesNotAffectOthers() {
	s.ceis.payload = `[{"id": 1}]`
	s.cnep.err = providers.NewProviderError(providers.ErrorProviderOutage, providers.SourceCNEP, "status 500", nil)
	s.cepim.payload = `[{"id": 2}]`
	s.leniencia.payload = `[{"id": 3}]`

	result, err := s.orchestrator.Aggregate(context.Background(), s.cnpj)
	s.Require().NoError(err)

	s.JSONEq(`[{"id": 1}]`, string(result.CEIS))
	s.JSONEq(`[]`, string(result.CNEP))
	s.JSONEq(`[{"id": 2}]`, string(result.CEPIM))
	s.JSONEq(`[{"id": 3}]`, string(result.Leniencia))
	s.False(result.Empty())

	s.Require().Contains(result.Failures, providers.SourceCNEP)
	s.Equal(providers.ErrorProviderOutage, result.Failures[providers.SourceCNEP].Category)
	s.Len(result.Failures, 1)

	s.InDelta(1, testutil.ToFloat64(s.metrics.RegistryFailures.WithLabelValues("cnep", "provider_outage")), 0.0001)
}

func (s *OrchestratorSuite) TestAllFailuresYieldEmptyArrays() {
	for _, p := range []*stubProvider{s.ceis, s.cnep, s.cepim, s.leniencia} {
		p.err = providers.NewProviderError(providers.ErrorTimeout, p.source, "slow", nil)
	}

	result, err := s.orchestrator.Aggregate(context.Background(), s.cnpj)
	s.Require().NoError(err)

	s.True(result.Empty())
	s.Len(result.Failures, 4)
	for _, src := range providers.CoreSources {
		s.JSONEq(`[]`, string(result.Payload(src)))
	}
}

func (s *OrchestratorSuite) TestSlowFailureDoesNotCancelSiblings() {
	s.ceis.err = providers.NewProviderError(providers.ErrorProviderOutage, providers.SourceCEIS, "down", nil)
	s.cnep.delay = 50 * time.Millisecond
	s.cnep.payload = `[{"id": 9}]`

	result, err := s.orchestrator.Aggregate(context.Background(), s.cnpj)
	s.Require().NoError(err)

	s.False(s.cnep.canceled.Load())
	s.JSONEq(`[{"id": 9}]`, string(result.CNEP))
}

func (s *OrchestratorSuite) TestRegistriesAreQueriedConcurrently() {
	meet := newRendezvous(len(providers.CoreSources))
	for _, p := range []*stubProvider{s.ceis, s.cnep, s.cepim, s.leniencia} {
		p.meet = meet
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := s.orchestrator.Aggregate(ctx, s.cnpj)
	s.Require().NoError(err)

	for _, p := range []*stubProvider{s.ceis, s.cnep, s.cepim, s.leniencia} {
		s.False(p.canceled.Load(), "%s waited for siblings that never started", p.source)
	}
	s.Empty(result.Failures)
}

func (s *OrchestratorSuite) TestPersonSkipsEntityOnlyRegistries() {
	s.ceis.payload = `[{"id": 1}]`

	result, err := s.orchestrator.Aggregate(context.Background(), s.cpf)
	s.Require().NoError(err)

	s.Equal(int32(0), s.cepim.calls.Load())
	s.Equal(int32(0), s.leniencia.calls.Load())
	s.JSONEq(`[]`, string(result.CEPIM))
	s.JSONEq(`[]`, string(result.Leniencia))
	s.Empty(result.Failures)
	s.False(result.Empty())
}

func (s *OrchestratorSuite) TestFetchSingleRegistry() {
	s.cepim.payload = `[{"id": 4}]`

	payload, err := s.orchestrator.Fetch(context.Background(), providers.SourceCEPIM, s.cnpj)
	s.Require().NoError(err)
	s.JSONEq(`[{"id": 4}]`, string(payload))

	_, err = s.orchestrator.Fetch(context.Background(), providers.SourceCEPIM, s.cpf)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.orchestrator.Fetch(context.Background(), providers.SourceCEAF, s.cpf)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *OrchestratorSuite) TestFetchReportsFailure() {
	s.ceis.err = providers.NewProviderError(providers.ErrorAuthentication, providers.SourceCEIS, "status 401", nil)

	payload, err := s.orchestrator.Fetch(context.Background(), providers.SourceCEIS, s.cnpj)
	s.Require().Error(err)
	s.Equal(providers.ErrorAuthentication, providers.GetCategory(err))
	s.JSONEq(`[]`, string(payload))
}

func TestAggregate_MissingConfiguration(t *testing.T) {
	registry := providers.NewPortalRegistry(providers.Config{BaseURL: "http://portal.test", Timeout: time.Second}, nil)
	o := NewOrchestrator(OrchestratorConfig{Registry: registry})

	cnpj, err := domain.ParseTaxID("12345678000195")
	require.NoError(t, err)

	result, err := o.Aggregate(context.Background(), cnpj)
	assert.Nil(t, result)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestIsEmptyPayload(t *testing.T) {
	assert.True(t, IsEmptyPayload(nil))
	assert.True(t, IsEmptyPayload(json.RawMessage(`[]`)))
	assert.True(t, IsEmptyPayload(json.RawMessage(` [ ] `)))
	assert.True(t, IsEmptyPayload(json.RawMessage(`{"id": 1}`)))
	assert.False(t, IsEmptyPayload(json.RawMessage(`[{"id": 1}]`)))
}
