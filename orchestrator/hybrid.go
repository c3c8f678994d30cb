package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/triad"
)

type branchResult struct {
	result *triad.OrchestrationResult
	err    error
}

// runHybrid starts the online and offline paths together. The online result
// wins if it succeeds within HybridBound; otherwise the offline result is
// awaited. Both branches run on a context detached from the caller and are
// never cancelled, so the losing branch still completes its cache write.
// Wait blocks until they finish.
func (o *Orchestrator) runHybrid(ctx context.Context, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed) *triad.OrchestrationResult {
	ctx, span := observability.StartSpan(ctx, "orchestrate.hybrid",
		attribute.Int64("hybrid.bound_ms", o.opts.HybridBound.Milliseconds()),
	)
	defer observability.EndSpan(span, nil)

	detached := context.WithoutCancel(ctx)
	online := make(chan branchResult, 1)
	offline := make(chan *triad.OrchestrationResult, 1)

	o.background.Add(2)
	go func() {
		defer o.background.Done()
		defer func() {
			if r := recover(); r != nil {
				online <- branchResult{err: fmt.Errorf("online branch panic: %v", r)}
			}
		}()
		res, err := o.runOnline(detached, req, preseed)
		online <- branchResult{result: res, err: err}
	}()
	go func() {
		defer o.background.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.ErrorContext(detached, "offline branch panic", "error", fmt.Sprint(r))
				offline <- o.degraded()
			}
		}()
		offline <- o.runOffline(detached, req, preseed)
	}()

	timer := time.NewTimer(o.opts.HybridBound)
	defer timer.Stop()

	select {
	case br := <-online:
		if br.err == nil && br.result != nil {
			return o.hybridWinner(ctx, span, br.result, "online")
		}
		o.logger.WarnContext(ctx, "hybrid online branch failed, awaiting offline", "error", br.err)
	case <-timer.C:
		o.logger.DebugContext(ctx, "hybrid online branch exceeded bound, awaiting offline", "bound", o.opts.HybridBound)
	case <-ctx.Done():
		o.logger.DebugContext(ctx, "caller cancelled hybrid call, awaiting offline")
	}

	return o.hybridWinner(ctx, span, <-offline, "offline")
}

func (o *Orchestrator) hybridWinner(ctx context.Context, span trace.Span, result *triad.OrchestrationResult, branch string) *triad.OrchestrationResult {
	o.deps.Instruments.RecordHybridWinner(ctx, branch)
	span.SetAttributes(attribute.String("hybrid.winner", branch))

	out := *result
	out.Mode = triad.ModeHybrid
	return &out
}
