package handler

import (
	"encoding/json"
	"time"

	"diligence/internal/evidence/registry/normalize"
	"diligence/internal/evidence/registry/orchestrator"
	"diligence/internal/evidence/registry/providers"
	"diligence/internal/lookup"
	dErrors "diligence/pkg/domain-errors"
)

// LookupResponse is the body of GET /lookup.
type LookupResponse struct {
	Data         RegistryData                              `json:"data"`
	Records      []normalize.Record                        `json:"records"`
	RecordErrors []normalize.ItemError                     `json:"record_errors"`
	Failures     map[providers.Source]orchestrator.Failure `json:"failures"`
	NoResults    bool                                      `json:"no_results"`
	Analysis     any                                       `json:"analysis"`
	Metadata     Metadata                                  `json:"metadata"`
}

// RegistryData holds the raw payload of each core registry.
type RegistryData struct {
	CEIS      json.RawMessage `json:"ceis"`
	CNEP      json.RawMessage `json:"cnep"`
	CEPIM     json.RawMessage `json:"cepim"`
	Leniencia json.RawMessage `json:"leniencia"`
}

type Metadata struct {
	Document          string    `json:"document"`
	DocumentFormatted string    `json:"document_formatted"`
	DocumentKind      string    `json:"document_kind"`
	Timestamp         time.Time `json:"timestamp"`
	RequestID         string    `json:"request_id"`
}

// AnalysisError replaces the analysis when narration failed.
type AnalysisError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorDetails     string `json:"error_details,omitempty"`
}

func analysisError(err error) AnalysisError {
	code := dErrors.CodeOf(err)
	out := AnalysisError{Error: string(code)}
	if code == dErrors.CodeInternal {
		return out
	}
	if de, ok := dErrors.As(err); ok {
		out.ErrorDescription = de.Message
		out.ErrorDetails = dErrors.Detail(err)
	}
	return out
}

// FromResult builds the response body.
func FromResult(r *lookup.Result) LookupResponse {
	resp := LookupResponse{
		Data: RegistryData{
			CEIS:      r.Registries.CEIS,
			CNEP:      r.Registries.CNEP,
			CEPIM:     r.Registries.CEPIM,
			Leniencia: r.Registries.Leniencia,
		},
		Records:      r.Records,
		RecordErrors: r.RecordErrors,
		Failures:     r.Registries.Failures,
		NoResults:    r.NoResults,
		Metadata: Metadata{
			Document:          r.TaxID.String(),
			DocumentFormatted: r.TaxID.Formatted(),
			DocumentKind:      string(r.TaxID.Kind()),
			Timestamp:         r.Timestamp,
			RequestID:         r.RequestID,
		},
	}
	if resp.Records == nil {
		resp.Records = []normalize.Record{}
	}
	if resp.RecordErrors == nil {
		resp.RecordErrors = []normalize.ItemError{}
	}
	if resp.Failures == nil {
		resp.Failures = map[providers.Source]orchestrator.Failure{}
	}
	switch {
	case r.NarrationErr != nil:
		resp.Analysis = analysisError(r.NarrationErr)
	case r.Narration != nil:
		resp.Analysis = r.Narration
	}
	return resp
}
