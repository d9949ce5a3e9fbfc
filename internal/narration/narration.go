package narration

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// FallbackText is returned when the model answers with no content.
const FallbackText = "Não foi possível gerar uma análise."

// Payloads carries the four registry results exactly as fetched.
type Payloads struct {
	CEIS      json.RawMessage `json:"ceis"`
	CNEP      json.RawMessage `json:"cnep"`
	CEPIM     json.RawMessage `json:"cepim"`
	Leniencia json.RawMessage `json:"leniencia"`
}

// Empty reports whether no payload carries any item. Absent, null and empty
// arrays all count as empty.
func (p Payloads) Empty() bool {
	for _, raw := range []json.RawMessage{p.CEIS, p.CNEP, p.CEPIM, p.Leniencia} {
		if !isBlank(raw) {
			return false
		}
	}
	return true
}

func isBlank(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return true
	}
	v := gjson.Parse(trimmed)
	switch {
	case v.IsArray():
		return len(v.Array()) == 0
	case v.IsObject():
		return len(v.Map()) == 0
	default:
		return false
	}
}

// Narration is the model's compliance opinion plus provenance.
type Narration struct {
	Text             string    `json:"text"`
	Timestamp        time.Time `json:"timestamp"`
	RequestID        string    `json:"request_id"`
	Model            string    `json:"model"`
	PromptTokens     *int      `json:"prompt_tokens,omitempty"`
	CompletionTokens *int      `json:"completion_tokens,omitempty"`
	TotalTokens      *int      `json:"total_tokens,omitempty"`
}
