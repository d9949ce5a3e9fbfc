package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"diligence/pkg/domain"
	dErrors "diligence/pkg/domain-errors"
	"diligence/pkg/platform/sentinel"
)

const (
	// APIKeyHeader carries the portal credential on every request.
	APIKeyHeader = "chave-api-dados"

	defaultMaxBodyBytes int64 = 8 << 20
)

// Config holds the portal connection settings shared by every registry client.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Validate reports a configuration error when the portal cannot be called.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return dErrors.New(dErrors.CodeConfiguration, "portal API key is not configured")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "portal base URL is invalid")
	}
	return nil
}

// TransparencyProvider queries one Portal da Transparência registry.
type TransparencyProvider struct {
	endpoint     Endpoint
	baseURL      string
	apiKey       string
	maxBodyBytes int64
	client       *http.Client
	tracer       trace.Tracer
}

var _ Provider = (*TransparencyProvider)(nil)

// NewTransparencyProvider builds a client for one registry endpoint.
// A nil client gets a default one bounded by cfg.Timeout.
func NewTransparencyProvider(endpoint Endpoint, cfg Config, client *http.Client) *TransparencyProvider {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &TransparencyProvider{
		endpoint:     endpoint,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		maxBodyBytes: maxBody,
		client:       client,
		tracer:       otel.Tracer("diligence/registry"),
	}
}

// NewPortalRegistry registers a TransparencyProvider for every known source.
// Configuration problems do not prevent construction; they are reported by Ready.
func NewPortalRegistry(cfg Config, client *http.Client) *ProviderRegistry {
	r := NewProviderRegistry()
	r.readyErr = cfg.Validate()
	for _, s := range []Source{SourceCEIS, SourceCNEP, SourceCEPIM, SourceLeniencia, SourceCEAF} {
		_ = r.Register(NewTransparencyProvider(endpoints[s], cfg, client))
	}
	return r
}

func (p *TransparencyProvider) Source() Source {
	return p.endpoint.Source
}

func (p *TransparencyProvider) Supports(kind domain.DocumentKind) bool {
	_, ok := p.endpoint.Param(kind)
	return ok
}

// Lookup fetches the first result page for taxID.
// Registries that do not cover the document kind answer EmptyPayload without a call.
func (p *TransparencyProvider) Lookup(ctx context.Context, taxID domain.TaxID) (json.RawMessage, error) {
	param, ok := p.endpoint.Param(taxID.Kind())
	if !ok {
		return EmptyPayload, nil
	}

	ctx, span := p.tracer.Start(ctx, "registry.lookup",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("registry.source", string(p.endpoint.Source)),
			attribute.String("document.kind", string(taxID.Kind())),
		),
	)
	defer span.End()

	payload, err := p.fetch(ctx, param, taxID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(GetCategory(err)))
		return EmptyPayload, err
	}
	span.SetAttributes(attribute.Int("registry.items", int(gjson.ParseBytes(payload).Get("#").Int())))
	return payload, nil
}

func (p *TransparencyProvider) fetch(ctx context.Context, param string, taxID domain.TaxID) (json.RawMessage, error) {
	q := url.Values{}
	q.Set(param, taxID.String())
	q.Set("pagina", "1")
	target := p.baseURL + p.endpoint.Path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, NewProviderError(ErrorInternal, p.endpoint.Source, "build request", err)
	}
	req.Header.Set(APIKeyHeader, p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, NewProviderError(ErrorTimeout, p.endpoint.Source, "request timed out", err)
		}
		return nil, NewProviderError(ErrorProviderOutage, p.endpoint.Source, "request failed",
			errors.Join(sentinel.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		pe := NewProviderError(categoryForStatus(resp.StatusCode), p.endpoint.Source,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
		pe.StatusCode = resp.StatusCode
		if pe.Category == ErrorProviderOutage {
			pe.Underlying = sentinel.ErrUnavailable
		}
		return nil, pe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodyBytes+1))
	if err != nil {
		if isTimeout(err) {
			return nil, NewProviderError(ErrorTimeout, p.endpoint.Source, "reading body timed out", err)
		}
		return nil, NewProviderError(ErrorBadData, p.endpoint.Source, "read body", err)
	}
	if int64(len(body)) > p.maxBodyBytes {
		return nil, NewProviderError(ErrorBadData, p.endpoint.Source,
			fmt.Sprintf("response exceeds %d bytes", p.maxBodyBytes), nil)
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		return nil, NewProviderError(ErrorBadData, p.endpoint.Source, "response is not a JSON array", nil)
	}
	return json.RawMessage(body), nil
}

func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorAuthentication
	case status == http.StatusNotFound:
		return ErrorNotFound
	case status == http.StatusTooManyRequests:
		return ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorTimeout
	case status >= 500:
		return ErrorProviderOutage
	default:
		return ErrorBadData
	}
}
