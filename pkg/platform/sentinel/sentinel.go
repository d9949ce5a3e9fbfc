package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Clients return these (optionally
// wrapped) so callers can recognise the condition without parsing messages.
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrUnavailable = errors.New("unavailable")
)
