package handler

import (
	"encoding/json"
	"fmt"
	"strings"

	"diligence/internal/narration"
	dErrors "diligence/pkg/domain-errors"
)

// AnalyzeRequest is the HTTP request body for POST /compliance/analyze.
// The legacy *Data field names are accepted as aliases.
type AnalyzeRequest struct {
	CEIS      json.RawMessage `json:"ceis"`
	CNEP      json.RawMessage `json:"cnep"`
	CEPIM     json.RawMessage `json:"cepim"`
	Leniencia json.RawMessage `json:"leniencia"`

	CEISData    json.RawMessage `json:"ceisData"`
	CNEPData    json.RawMessage `json:"cnepData"`
	CEPIMData   json.RawMessage `json:"cepimData"`
	AcordosData json.RawMessage `json:"acordosData"`
}

// Validate folds aliases into the canonical fields and rejects payloads that
// are neither arrays nor null.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *AnalyzeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.CEIS = prefer(r.CEIS, r.CEISData)
	r.CNEP = prefer(r.CNEP, r.CNEPData)
	r.CEPIM = prefer(r.CEPIM, r.CEPIMData)
	r.Leniencia = prefer(r.Leniencia, r.AcordosData)

	for name, raw := range map[string]json.RawMessage{
		"ceis": r.CEIS, "cnep": r.CNEP, "cepim": r.CEPIM, "leniencia": r.Leniencia,
	} {
		if err := arrayOrNull(name, raw); err != nil {
			return err
		}
	}
	return nil
}

// Payloads returns the validated registry payloads.
func (r *AnalyzeRequest) Payloads() narration.Payloads {
	return narration.Payloads{CEIS: r.CEIS, CNEP: r.CNEP, CEPIM: r.CEPIM, Leniencia: r.Leniencia}
}

func prefer(primary, alias json.RawMessage) json.RawMessage {
	if len(primary) > 0 {
		return primary
	}
	return alias
}

func arrayOrNull(name string, raw json.RawMessage) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || strings.HasPrefix(trimmed, "[") {
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be a JSON array", name))
}
