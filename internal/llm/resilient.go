package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"agentic-rag/internal/logger"
)

// ErrCircuitOpen is returned while the breaker rejects calls after repeated failures.
var ErrCircuitOpen = errors.New("generation provider unavailable: circuit open")

// Resilient rate limits calls to a provider, trips a circuit breaker when
// the provider keeps failing and traces every call.
type Resilient struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	tracer  trace.Tracer
	log     *slog.Logger
}

// NewResilient wraps next. A non-positive requestsPerMinute disables rate limiting.
func NewResilient(next Provider, requestsPerMinute int, log *slog.Logger) *Resilient {
	if log == nil {
		log = logger.Discard()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(1, requestsPerMinute/10))
	}
	r := &Resilient{
		next:    next,
		limiter: limiter,
		tracer:  otel.Tracer("agentic-rag/llm"),
		log:     log.With("provider", next.Name()),
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up is not a provider failure
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return r
}

func (r *Resilient) Name() string { return r.next.Name() }

func (r *Resilient) Complete(ctx context.Context, req Request) (*Response, error) {
	ctx, span := r.tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", r.next.Name()),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Float64("llm.temperature", req.Temperature),
	)

	if err := r.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("llm.rate_limited", true))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.next.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("llm.circuit_open", true))
			err = ErrCircuitOpen
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Debug("completion failed", "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	resp := out.(*Response)
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", resp.PromptTokens),
		attribute.Int("llm.completion_tokens", resp.CompletionTokens),
	)
	r.log.Debug("completion", "elapsed", time.Since(start), "prompt_tokens", resp.PromptTokens, "completion_tokens", resp.CompletionTokens)
	return resp, nil
}
