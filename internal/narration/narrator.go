package narration

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	dErrors "diligence/pkg/domain-errors"
	"diligence/pkg/requestcontext"
)

// Config configures the chat-completion provider.
type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Narrator turns registry payloads into a compliance opinion.
type Narrator struct {
	cfg     Config
	client  *http.Client
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option customizes a Narrator.
type Option func(*Narrator)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Narrator) {
		n.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *Narrator) {
		n.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(n *Narrator) {
		n.metrics = m
	}
}

// New constructs a Narrator. A missing API key is accepted here and reported
// by every Narrate call.
func New(cfg Config, opts ...Option) *Narrator {
	n := &Narrator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
		tracer: otel.Tracer("diligence/narration"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Narrate asks the model for a due-diligence opinion on payloads.
//
// Errors:
//   - CodeConfiguration when no API key is configured
//   - CodeNoData when every payload is empty; the model is not called
//   - CodeProcessing when the provider call fails, wrapping its message
//
// Nothing is retried.
func (n *Narrator) Narrate(ctx context.Context, payloads Payloads) (*Narration, error) {
	if strings.TrimSpace(n.cfg.APIKey) == "" {
		n.metrics.IncrementOutcome(outcomeConfiguration)
		return nil, dErrors.New(dErrors.CodeConfiguration, "language model API key is not configured")
	}
	if payloads.Empty() {
		n.metrics.IncrementOutcome(outcomeNoData)
		return nil, dErrors.New(dErrors.CodeNoData, "no registry data provided for analysis")
	}

	ctx, span := n.tracer.Start(ctx, "narration.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.model", n.cfg.Model)),
	)
	defer span.End()

	start := time.Now()
	resp, err := n.complete(ctx, chatRequest{
		Model: n.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(payloads)},
		},
		Temperature: n.cfg.Temperature,
		MaxTokens:   n.cfg.MaxTokens,
	})
	n.metrics.ObserveLatency(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		n.metrics.IncrementOutcome(outcomeFailed)
		n.logger.Error("compliance narration failed",
			zap.String("request_id", requestcontext.RequestID(ctx)),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeProcessing, "failed to process the analysis")
	}

	text := FallbackText
	if len(resp.Choices) > 0 {
		if content := strings.TrimSpace(resp.Choices[0].Message.Content); content != "" {
			text = content
		}
	}

	model := resp.Model
	if model == "" {
		model = n.cfg.Model
	}

	out := &Narration{
		Text:      text,
		Timestamp: requestcontext.Now(ctx).UTC(),
		RequestID: uuid.NewString(),
		Model:     model,
	}
	if resp.Usage != nil {
		out.PromptTokens = resp.Usage.PromptTokens
		out.CompletionTokens = resp.Usage.CompletionTokens
		out.TotalTokens = resp.Usage.TotalTokens
		n.metrics.AddTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	n.metrics.IncrementOutcome(outcomeOK)

	span.SetAttributes(attribute.String("llm.response_model", model))
	n.logger.Info("compliance narration generated",
		zap.String("request_id", requestcontext.RequestID(ctx)),
		zap.String("narration_id", out.RequestID),
		zap.String("model", model),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}
