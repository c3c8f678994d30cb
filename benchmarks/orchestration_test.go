/*
Orchestration benchmarks for triadkit-go.

These benchmarks measure the in-process cost of each execution path with a
scripted backend, so the numbers exclude model latency entirely.

Methodology:
1. Offline: template generation with an empty cache
2. Cache: lookups against a populated store
3. Online: three agents plus synthesis, with and without the middleware stack
4. Screening: injection detection and redaction on typical inputs

Production Impact: a real model call takes hundreds of milliseconds, so
orchestration overhead is a small fraction of the total.

Run benchmarks with: go test -bench=. -benchmem ./benchmarks
*/

package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/agents"
	"github.com/scttfrdmn/triadkit-go/cache"
	"github.com/scttfrdmn/triadkit-go/coordinator"
	"github.com/scttfrdmn/triadkit-go/fallback"
	"github.com/scttfrdmn/triadkit-go/health"
	"github.com/scttfrdmn/triadkit-go/middleware"
	"github.com/scttfrdmn/triadkit-go/orchestrator"
	"github.com/scttfrdmn/triadkit-go/safety"
	"github.com/scttfrdmn/triadkit-go/triad"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func backend() *llm.ScriptedLLM {
	return llm.NewScriptedLLM("bench").
		Respond("Agent focus: aesthetic", `{"guidance":"Notice the light","creative_practices":["sketch"],"beauty_focus":"light","imagery":"harbor"}`).
		Respond("Agent focus: cognitive", `{"guidance":"Reframe","insights":["you adapt"],"narrative":"a chapter"}`).
		Respond("Agent focus: ethical", `{"guidance":"Rest","values":["rest"],"rhythm":"stop at six","practices":["walk"]}`).
		Respond("Advisor outputs", "Let the evening be yours again.")
}

func request(i int) *triad.OrchestrationRequest {
	return &triad.OrchestrationRequest{
		UserID:          fmt.Sprintf("user-%d", i),
		PersonalityType: triad.INFJ,
		SessionType:     triad.SessionWellness,
		Input:           "I feel stretched thin at work",
	}
}

func newOrchestrator(b llm.LLM, online bool) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Dependencies{
		Invoker:      agents.NewInvoker(b, agents.DefaultConfig(), agents.WithLogger(logger)),
		Synthesizer:  coordinator.New(b, coordinator.DefaultConfig(), logger),
		Fallback:     fallback.NewGenerator(fallback.NewMemoryPipelineStore(), fallback.WithLogger(logger)),
		Connectivity: health.StaticConnectivity(online),
		Logger:       logger,
	}, orchestrator.DefaultOptions())
}

// BenchmarkOfflineTemplate measures template generation without a cache.
func BenchmarkOfflineTemplate(b *testing.B) {
	o := newOrchestrator(backend(), false)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o.Orchestrate(ctx, request(i))
	}
}

// BenchmarkOnline measures the full agent and synthesis path.
func BenchmarkOnline(b *testing.B) {
	o := newOrchestrator(backend(), true)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o.Orchestrate(ctx, request(i))
	}
}

// BenchmarkOnlineWithMiddleware adds the default decorator stack.
func BenchmarkOnlineWithMiddleware(b *testing.B) {
	o := newOrchestrator(middleware.Wrap(backend(), middleware.DefaultStackConfig()), true)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o.Orchestrate(ctx, request(i))
	}
}

// BenchmarkCacheLookup measures lookups against stores of increasing size.
func BenchmarkCacheLookup(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("entries=%d", size), func(b *testing.B) {
			ctx := context.Background()
			m := cache.NewManager(cache.NewMemoryStore(), cache.NewHashEmbedder(0), cache.DefaultConfig(), cache.WithLogger(logger))
			req := request(0)
			result := &triad.OrchestrationResult{Coordinated: triad.CoordinatedResponse{Guidance: "Rest."}}
			for i := 0; i < size; i++ {
				r := *req
				r.Input = fmt.Sprintf("variant %d of feeling stretched thin", i)
				if err := m.Write(ctx, &r, result); err != nil {
					b.Fatal(err)
				}
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				m.Lookup(ctx, req)
			}
		})
	}
}

// BenchmarkScreening measures the per-request safety checks.
func BenchmarkScreening(b *testing.B) {
	detector := safety.NewInjectionDetector(0)
	redactor := safety.NewRedactor()
	input := "I feel stretched thin at work, write to me at ana@example.com or 555-123-4567"

	b.Run("injection", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			detector.Detect(input)
		}
	})
	b.Run("redaction", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			redactor.Redact(input)
		}
	})
}
