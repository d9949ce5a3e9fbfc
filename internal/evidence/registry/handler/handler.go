package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"diligence/internal/evidence/registry/normalize"
	"diligence/internal/evidence/registry/providers"
	"diligence/pkg/domain"
	"diligence/pkg/platform/httputil"
	"diligence/pkg/requestcontext"
)

// Fetcher queries one registry and reports its failure.
type Fetcher interface {
	Fetch(ctx context.Context, source providers.Source, taxID domain.TaxID) (json.RawMessage, error)
}

// Handler exposes single-registry lookups.
type Handler struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// New constructs a registry handler with its dependencies.
func New(fetcher Fetcher, logger *zap.Logger) *Handler {
	return &Handler{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Register mounts the registry endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/registries/{source}", h.HandleRegistry)
}

// RegistryResponse is the body of GET /registries/{source}.
type RegistryResponse struct {
	Source       providers.Source      `json:"source"`
	Data         json.RawMessage       `json:"data"`
	Records      []normalize.Record    `json:"records"`
	RecordErrors []normalize.ItemError `json:"record_errors"`
	Document     string                `json:"document"`
	Timestamp    time.Time             `json:"timestamp"`
	RequestID    string                `json:"request_id"`
}

// HandleRegistry handles GET /registries/{source} requests.
func (h *Handler) HandleRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	source, err := providers.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	q := r.URL.Query()
	raw := q.Get("document")
	for _, alias := range []string{"cnpj", "cpf"} {
		if strings.TrimSpace(raw) == "" {
			raw = q.Get(alias)
		}
	}
	taxID, err := domain.ParseTaxID(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	payload, err := h.fetcher.Fetch(ctx, source, taxID)
	if err != nil {
		h.logger.Warn("registry lookup failed",
			zap.String("request_id", requestID),
			zap.String("source", string(source)),
			zap.String("document_kind", string(taxID.Kind())),
			zap.Error(err),
		)
		var pe *providers.ProviderError
		if errors.As(err, &pe) {
			err = providers.ToDomainError(err)
		}
		httputil.WriteError(w, err)
		return
	}

	records, itemErrs := normalize.Normalize(source, payload)
	if itemErrs == nil {
		itemErrs = []normalize.ItemError{}
	}

	h.logger.Info("registry lookup completed",
		zap.String("request_id", requestID),
		zap.String("source", string(source)),
		zap.String("document_kind", string(taxID.Kind())),
		zap.Int("records", len(records)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	httputil.WriteJSON(w, http.StatusOK, RegistryResponse{
		Source:       source,
		Data:         payload,
		Records:      records,
		RecordErrors: itemErrs,
		Document:     taxID.Formatted(),
		Timestamp:    requestcontext.Now(ctx),
		RequestID:    requestID,
	})
}
