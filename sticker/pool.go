package sticker

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many normalizations run at once so CPU-bound work does
// not pile up behind the update dispatcher.
type Pool struct {
	normalizer *Normalizer
	sem        *semaphore.Weighted
	tracer     trace.Tracer
}

// NewPool returns a pool with the given number of workers; workers < 1
// means one per CPU.
func NewPool(n *Normalizer, workers int) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		normalizer: n,
		sem:        semaphore.NewWeighted(int64(workers)),
		tracer:     otel.Tracer("sticker-bot/sticker"),
	}
}

// Normalize waits for a free worker and runs the normalizer on raw. Only
// the wait observes ctx; a started job always runs to completion.
func (p *Pool) Normalize(ctx context.Context, raw []byte) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "normalize", trace.WithAttributes(
		attribute.Int("input.bytes", len(raw)),
	))
	defer span.End()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "wait for worker")
		return Result{}, errors.WithMessage(err, "wait for worker")
	}
	defer p.sem.Release(1)

	res, err := p.normalizer.Normalize(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("output.bytes", len(res.Data)),
		attribute.Int("output.width", res.Width),
		attribute.Int("output.height", res.Height),
		attribute.String("output.fit", res.Fit.String()),
	)
	return res, nil
}
