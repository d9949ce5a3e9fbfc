package handler

import (
	"encoding/json"
	"time"

	"diligence/internal/narration"
)

// AnalyzeResponse echoes the analysed data next to the model's opinion.
type AnalyzeResponse struct {
	RawData   RawData          `json:"raw_data"`
	Analysis  string           `json:"analysis"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Metadata  AnalysisMetadata `json:"metadata"`
}

type RawData struct {
	CEIS      json.RawMessage `json:"ceis"`
	CNEP      json.RawMessage `json:"cnep"`
	CEPIM     json.RawMessage `json:"cepim"`
	Leniencia json.RawMessage `json:"leniencia"`
}

type AnalysisMetadata struct {
	Model            string `json:"model"`
	PromptTokens     *int   `json:"prompt_tokens,omitempty"`
	CompletionTokens *int   `json:"completion_tokens,omitempty"`
	TotalTokens      *int   `json:"total_tokens,omitempty"`
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// FromNarration builds the response body.
func FromNarration(p narration.Payloads, n *narration.Narration) AnalyzeResponse {
	return AnalyzeResponse{
		RawData: RawData{
			CEIS:      orNull(p.CEIS),
			CNEP:      orNull(p.CNEP),
			CEPIM:     orNull(p.CEPIM),
			Leniencia: orNull(p.Leniencia),
		},
		Analysis:  n.Text,
		Timestamp: n.Timestamp,
		RequestID: n.RequestID,
		Metadata: AnalysisMetadata{
			Model:            n.Model,
			PromptTokens:     n.PromptTokens,
			CompletionTokens: n.CompletionTokens,
			TotalTokens:      n.TotalTokens,
		},
	}
}
