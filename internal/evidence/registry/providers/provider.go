package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"diligence/pkg/domain"
	dErrors "diligence/pkg/domain-errors"
)

// Source identifies one Portal da Transparência registry.
type Source string

const (
	SourceCEIS      Source = "ceis"
	SourceCNEP      Source = "cnep"
	SourceCEPIM     Source = "cepim"
	SourceLeniencia Source = "leniencia"
	SourceCEAF      Source = "ceaf"
)

// CoreSources are the registries consulted by every aggregated lookup, in report order.
var CoreSources = []Source{SourceCEIS, SourceCNEP, SourceCEPIM, SourceLeniencia}

// ParseSource validates a registry tag taken from user input.
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := endpoints[s]; !ok {
		return "", dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown registry %q", raw))
	}
	return s, nil
}

// EmptyPayload is the value every registry contributes when it has nothing to say,
// whether because it found no records or because the call failed.
var EmptyPayload = json.RawMessage("[]")

// Endpoint describes how a registry is addressed: its path under the portal base URL
// and the query parameter carrying the identifier for each document kind.
// An empty parameter means the registry does not cover that kind of party.
type Endpoint struct {
	Source      Source
	Path        string
	EntityParam string
	PersonParam string
}

var endpoints = map[Source]Endpoint{
	SourceCEIS:      {Source: SourceCEIS, Path: "/ceis", EntityParam: "codigoSancionado", PersonParam: "codigoSancionado"},
	SourceCNEP:      {Source: SourceCNEP, Path: "/cnep", EntityParam: "codigoSancionado", PersonParam: "codigoSancionado"},
	SourceCEPIM:     {Source: SourceCEPIM, Path: "/cepim", EntityParam: "cnpjSancionado"},
	SourceLeniencia: {Source: SourceLeniencia, Path: "/acordos-leniencia", EntityParam: "cnpjSancionado"},
	SourceCEAF:      {Source: SourceCEAF, Path: "/ceaf", PersonParam: "cpfSancionado"},
}

// EndpointFor returns the endpoint of a known source.
func EndpointFor(s Source) (Endpoint, bool) {
	e, ok := endpoints[s]
	return e, ok
}

// Param returns the identifier query parameter for kind, or false when the
// registry does not list that kind of party.
func (e Endpoint) Param(kind domain.DocumentKind) (string, bool) {
	switch kind {
	case domain.KindCNPJ:
		return e.EntityParam, e.EntityParam != ""
	case domain.KindCPF:
		return e.PersonParam, e.PersonParam != ""
	default:
		return "", false
	}
}

// Provider is implemented by every registry client.
//
// Invariant: Lookup always returns a syntactically valid JSON array, EmptyPayload
// on failure. The error, when non-nil, is a *ProviderError that callers may log
// and report but must not treat as fatal for the surrounding lookup.
type Provider interface {
	Source() Source
	Supports(kind domain.DocumentKind) bool
	Lookup(ctx context.Context, taxID domain.TaxID) (json.RawMessage, error)
}

// ProviderRegistry maintains providers keyed by source.
type ProviderRegistry struct {
	providers map[Source]Provider
	readyErr  error
}

// NewProviderRegistry creates a new empty registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[Source]Provider),
	}
}

// Register adds a provider to the registry
func (r *ProviderRegistry) Register(p Provider) error {
	s := p.Source()
	if _, exists := r.providers[s]; exists {
		return fmt.Errorf("provider %s already registered", s)
	}
	r.providers[s] = p
	return nil
}

// Get retrieves a provider by source
func (r *ProviderRegistry) Get(s Source) (Provider, bool) {
	p, ok := r.providers[s]
	return p, ok
}

// Ready reports whether the registered providers can be called at all.
// It returns a configuration error when the portal credentials are missing.
func (r *ProviderRegistry) Ready() error {
	return r.readyErr
}
