package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"diligence/internal/lookup"
	"diligence/pkg/platform/httputil"
	"diligence/pkg/requestcontext"
)

// Service defines the interface for lookup operations.
type Service interface {
	Lookup(ctx context.Context, document string) (*lookup.Result, error)
}

// Handler wires the lookup endpoint to the lookup service.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// New constructs a lookup handler with its dependencies.
func New(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the lookup endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/lookup", h.HandleLookup)
}

// documentParam reads the tax ID from ?document=, falling back to ?cnpj= and ?cpf=.
func documentParam(r *http.Request) string {
	q := r.URL.Query()
	for _, key := range []string{"document", "cnpj", "cpf"} {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

// HandleLookup handles GET /lookup requests.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	result, err := h.service.Lookup(ctx, documentParam(r))
	if err != nil {
		h.logger.Warn("lookup failed",
			zap.String("request_id", requestID),
			zap.String("client", requestcontext.ClientFamily(ctx)),
			zap.Error(err),
		)
		httputil.WriteError(w, err)
		return
	}

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("document_kind", string(result.TaxID.Kind())),
		zap.Int("records", len(result.Records)),
		zap.Bool("no_results", result.NoResults),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	for source, failure := range result.Registries.Failures {
		fields = append(fields, zap.String("failure_"+string(source), string(failure.Category)))
	}
	for source, latency := range result.Registries.Latencies {
		fields = append(fields, zap.Int64("latency_ms_"+string(source), latency.Milliseconds()))
	}
	if result.NarrationErr != nil {
		fields = append(fields, zap.NamedError("narration_error", result.NarrationErr))
	}
	h.logger.Info("lookup completed", fields...)

	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}
