package tutor

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashureev/tutor-labs/internal/llm"
)

const tracerName = "github.com/ashureev/tutor-labs/internal/tutor"

// Completer produces a reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Gateway wraps a model transport with the reply quality gate. It never
// retries; the orchestrator owns the fallback policy.
type Gateway struct {
	transport llm.Transport
	check     QualityCheck
	tracer    trace.Tracer
}

// NewGateway creates a Gateway. A nil check accepts every reply.
func NewGateway(transport llm.Transport, check QualityCheck) *Gateway {
	if check == nil {
		check = AcceptAll
	}
	return &Gateway{
		transport: transport,
		check:     check,
		tracer:    otel.Tracer(tracerName),
	}
}

// Complete calls the model once. Errors wrap ErrTransport, ErrEmptyResponse
// (always together with ErrTransport) or ErrQualityRejected.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := g.tracer.Start(ctx, "tutor.gateway.complete",
		trace.WithAttributes(
			attribute.Int("tutor.attempt", attemptFromContext(ctx)),
			attribute.Int("tutor.prompt_len", len(prompt)),
		),
	)
	defer span.End()

	text, err := g.transport.Complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	span.SetAttributes(attribute.Int("tutor.reply_len", len(text)))

	if err := g.check(text); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quality")
		if !errors.Is(err, ErrQualityRejected) {
			err = fmt.Errorf("%w: %w", ErrQualityRejected, err)
		}
		return "", err
	}
	return text, nil
}

type attemptKey struct{}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey{}, n)
}

func attemptFromContext(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}
