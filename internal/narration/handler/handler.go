package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"diligence/internal/narration"
	dErrors "diligence/pkg/domain-errors"
	"diligence/pkg/platform/httputil"
	"diligence/pkg/requestcontext"
)

// Narrator defines the interface for compliance narration.
type Narrator interface {
	Narrate(ctx context.Context, payloads narration.Payloads) (*narration.Narration, error)
}

// Handler wires the analysis endpoint to the narrator.
type Handler struct {
	narrator Narrator
	logger   *zap.Logger
}

// New constructs a narration handler with its dependencies.
func New(narrator Narrator, logger *zap.Logger) *Handler {
	return &Handler{
		narrator: narrator,
		logger:   logger,
	}
}

// Register mounts the analysis endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/analyze", h.HandleAnalyze)
}

// HandleAnalyze handles POST /compliance/analyze requests.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[AnalyzeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	payloads := req.Payloads()
	result, err := h.narrator.Narrate(ctx, payloads)
	if err != nil {
		h.logger.Error("compliance analysis failed",
			zap.String("request_id", requestID),
			zap.String("code", string(dErrors.CodeOf(err))),
			zap.Error(err),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.Info("compliance analysis generated",
		zap.String("request_id", requestID),
		zap.String("model", result.Model),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	httputil.WriteJSON(w, http.StatusOK, FromNarration(payloads, result))
}
