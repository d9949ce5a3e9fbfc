package providers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"diligence/internal/evidence/registry/providers"
	"diligence/internal/evidence/registry/providers/contract"
	"diligence/pkg/domain"
	dErrors "diligence/pkg/domain-errors"
	"diligence/pkg/platform/sentinel"
)

const (
	testCNPJ = "12345678000195"
	testCPF  = "12345678909"
)

type recordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

type fakePortal struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func newFakePortal(t *testing.T, handler http.HandlerFunc) (*fakePortal, *httptest.Server) {
	t.Helper()
	fp := &fakePortal{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.mu.Lock()
		fp.requests = append(fp.requests, recordedRequest{Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()})
		fp.mu.Unlock()
		fp.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return fp, srv
}

func (fp *fakePortal) Requests() []recordedRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]recordedRequest(nil), fp.requests...)
}

func jsonBody(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}
}

func mustTaxID(t *testing.T, raw string) domain.TaxID {
	t.Helper()
	id, err := domain.ParseTaxID(raw)
	require.NoError(t, err)
	return id
}

func newProvider(t *testing.T, source providers.Source, baseURL string) *providers.TransparencyProvider {
	t.Helper()
	endpoint, ok := providers.EndpointFor(source)
	require.True(t, ok)
	return providers.NewTransparencyProvider(endpoint, providers.Config{
		BaseURL: baseURL,
		APIKey:  "secret",
		Timeout: 2 * time.Second,
	}, nil)
}

func TestTransparencyProvider_RequestShape(t *testing.T) {
	tests := []struct {
		source    providers.Source
		document  string
		wantPath  string
		wantParam string
	}{
		{providers.SourceCEIS, testCNPJ, "/ceis", "codigoSancionado"},
		{providers.SourceCNEP, testCNPJ, "/cnep", "codigoSancionado"},
		{providers.SourceCEPIM, testCNPJ, "/cepim", "cnpjSancionado"},
		{providers.SourceLeniencia, testCNPJ, "/acordos-leniencia", "cnpjSancionado"},
		{providers.SourceCEIS, testCPF, "/ceis", "codigoSancionado"},
		{providers.SourceCNEP, testCPF, "/cnep", "codigoSancionado"},
		{providers.SourceCEAF, testCPF, "/ceaf", "cpfSancionado"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.source, tt.document), func(t *testing.T) {
			fp, srv := newFakePortal(t, jsonBody(http.StatusOK, `[]`))
			p := newProvider(t, tt.source, srv.URL)

			_, err := p.Lookup(context.Background(), mustTaxID(t, tt.document))
			require.NoError(t, err)

			reqs := fp.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.wantPath, reqs[0].Path)
			assert.Equal(t, tt.document, reqs[0].Query.Get(tt.wantParam))
			assert.Equal(t, "1", reqs[0].Query.Get("pagina"))
			assert.Equal(t, "secret", reqs[0].Header.Get(providers.APIKeyHeader))
			assert.Equal(t, "application/json", reqs[0].Header.Get("Accept"))
		})
	}
}

func TestTransparencyProvider_SkipsUncoveredKinds(t *testing.T) {
	tests := []struct {
		source   providers.Source
		document string
	}{
		{providers.SourceCEPIM, testCPF},
		{providers.SourceLeniencia, testCPF},
		{providers.SourceCEAF, testCNPJ},
	}
	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			fp, srv := newFakePortal(t, jsonBody(http.StatusOK, `[{"id":1}]`))
			p := newProvider(t, tt.source, srv.URL)
			id := mustTaxID(t, tt.document)

			assert.False(t, p.Supports(id.Kind()))
			payload, err := p.Lookup(context.Background(), id)
			require.NoError(t, err)
			assert.JSONEq(t, `[]`, string(payload))
			assert.Empty(t, fp.Requests())
		})
	}
}

func TestTransparencyProvider_Contract(t *testing.T) {
	body := `[{"id": 10, "sancionado": {"nome": "ACME LTDA"}}, {"id": 11}]`
	_, srv := newFakePortal(t, jsonBody(http.StatusOK, body))

	suite := &contract.ContractSuite{
		Source: providers.SourceCEIS,
		Tests: []contract.ContractTest{
			{
				Name:        "returns the array body unchanged",
				Provider:    newProvider(t, providers.SourceCEIS, srv.URL),
				TaxID:       mustTaxID(t, testCNPJ),
				ExpectItems: 2,
				ValidateFunc: func(payload gjson.Result) error {
					if payload.Get("0.sancionado.nome").String() != "ACME LTDA" {
						return errors.New("nested field lost")
					}
					return nil
				},
			},
		},
	}
	suite.Run(t)
}

func TestTransparencyProvider_EmptyArray(t *testing.T) {
	_, srv := newFakePortal(t, jsonBody(http.StatusOK, `[]`))

	suite := &contract.ContractSuite{
		Source: providers.SourceCNEP,
		Tests: []contract.ContractTest{
			{Name: "no records", Provider: newProvider(t, providers.SourceCNEP, srv.URL), TaxID: mustTaxID(t, testCPF)},
		},
	}
	suite.Run(t)
}

func TestTransparencyProvider_FailuresYieldEmptyArray(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		category providers.ErrorCategory
	}{
		{"server error", jsonBody(http.StatusInternalServerError, `{"message":"boom"}`), providers.ErrorProviderOutage},
		{"unauthorized", jsonBody(http.StatusUnauthorized, `{}`), providers.ErrorAuthentication},
		{"forbidden", jsonBody(http.StatusForbidden, `{}`), providers.ErrorAuthentication},
		{"rate limited", jsonBody(http.StatusTooManyRequests, `{}`), providers.ErrorRateLimited},
		{"not found", jsonBody(http.StatusNotFound, ``), providers.ErrorNotFound},
		{"object body", jsonBody(http.StatusOK, `{"id": 1}`), providers.ErrorBadData},
		{"invalid json", jsonBody(http.StatusOK, `[{"id": `), providers.ErrorBadData},
		{"html body", jsonBody(http.StatusOK, `<html></html>`), providers.ErrorBadData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newFakePortal(t, tt.handler)
			ect := &contract.ErrorContractTest{
				Name:          tt.name,
				Provider:      newProvider(t, providers.SourceCEIS, srv.URL),
				TaxID:         mustTaxID(t, testCNPJ),
				ExpectedError: tt.category,
			}
			ect.Run(t)
		})
	}
}

func TestTransparencyProvider_OutageWrapsSentinel(t *testing.T) {
	_, srv := newFakePortal(t, jsonBody(http.StatusBadGateway, ``))
	p := newProvider(t, providers.SourceCEIS, srv.URL)

	_, err := p.Lookup(context.Background(), mustTaxID(t, testCNPJ))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	var pe *providers.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
	assert.Equal(t, providers.SourceCEIS, pe.Source)
}

func TestTransparencyProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	_, srv := newFakePortal(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	endpoint, _ := providers.EndpointFor(providers.SourceCNEP)
	p := providers.NewTransparencyProvider(endpoint, providers.Config{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Timeout: 50 * time.Millisecond,
	}, nil)

	payload, err := p.Lookup(context.Background(), mustTaxID(t, testCNPJ))
	require.Error(t, err)
	assert.Equal(t, providers.ErrorTimeout, providers.GetCategory(err))
	assert.JSONEq(t, `[]`, string(payload))
}

func TestTransparencyProvider_Unreachable(t *testing.T) {
	_, srv := newFakePortal(t, jsonBody(http.StatusOK, `[]`))
	base := srv.URL
	srv.Close()

	p := newProvider(t, providers.SourceCEIS, base)
	payload, err := p.Lookup(context.Background(), mustTaxID(t, testCNPJ))
	require.Error(t, err)
	assert.Equal(t, providers.ErrorProviderOutage, providers.GetCategory(err))
	assert.JSONEq(t, `[]`, string(payload))
}

func TestTransparencyProvider_OversizedBody(t *testing.T) {
	_, srv := newFakePortal(t, jsonBody(http.StatusOK, `[{"id": 1}, {"id": 2}]`))
	endpoint, _ := providers.EndpointFor(providers.SourceCEIS)
	p := providers.NewTransparencyProvider(endpoint, providers.Config{
		BaseURL:      srv.URL,
		APIKey:       "secret",
		Timeout:      time.Second,
		MaxBodyBytes: 8,
	}, nil)

	_, err := p.Lookup(context.Background(), mustTaxID(t, testCNPJ))
	assert.Equal(t, providers.ErrorBadData, providers.GetCategory(err))
}

func TestNewPortalRegistry(t *testing.T) {
	t.Run("registers every source", func(t *testing.T) {
		r := providers.NewPortalRegistry(providers.Config{BaseURL: "http://portal.test", APIKey: "k", Timeout: time.Second}, nil)
		require.NoError(t, r.Ready())
		for _, s := range append(providers.CoreSources, providers.SourceCEAF) {
			p, ok := r.Get(s)
			require.True(t, ok, s)
			assert.Equal(t, s, p.Source())
		}
	})

	t.Run("missing key is a configuration error", func(t *testing.T) {
		r := providers.NewPortalRegistry(providers.Config{BaseURL: "http://portal.test", Timeout: time.Second}, nil)
		assert.True(t, dErrors.HasCode(r.Ready(), dErrors.CodeConfiguration))
	})
}

func TestParseSource(t *testing.T) {
	s, err := providers.ParseSource(" CEIS ")
	require.NoError(t, err)
	assert.Equal(t, providers.SourceCEIS, s)

	_, err = providers.ParseSource("ofac")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestToDomainError(t *testing.T) {
	timeout := providers.NewProviderError(providers.ErrorTimeout, providers.SourceCEIS, "slow", nil)
	assert.True(t, dErrors.HasCode(providers.ToDomainError(timeout), dErrors.CodeTimeout))

	outage := providers.NewProviderError(providers.ErrorProviderOutage, providers.SourceCEIS, "down", nil)
	assert.True(t, dErrors.HasCode(providers.ToDomainError(outage), dErrors.CodeUpstreamUnavailable))

	assert.NoError(t, providers.ToDomainError(nil))
}
