package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/command"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/snapshot"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/store"
)

const tracerName = "github.com/hheimbuerger/code-brainstormer-lm/internal/generate"

// Edit is one user edit event: the input of a generation cycle.
type Edit struct {
	FunctionID string
	Aspect     model.Aspect
	Value      string
	// Reroll regenerates the edited aspect itself as the first downstream
	// entry instead of starting after it.
	Reroll bool
}

// Cycle is the outcome of one generation cycle, before command application.
type Cycle struct {
	// Downstream lists the aspects that were queued for regeneration; the
	// caller should flag these as in progress in the UI until the batch is
	// applied or the cycle fails.
	Downstream []model.Aspect
	Commands   []command.Command
	Rationale  string
	Dropped    int
	Duration   time.Duration
	// InputTokens and OutputTokens report the LLM usage of this cycle; zero
	// when the cycle short-circuited without a service call.
	InputTokens  int
	OutputTokens int
}

// Orchestrator turns a user edit into a validated command batch. It does not
// apply commands; the caller hands the cycle's commands to an Executor. One
// orchestrator call must complete (or fail) before the next edit to the same
// function is processed; the caller serializes cycles.
type Orchestrator struct {
	store   *store.Store
	service Service
	log     *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given store and service.
func NewOrchestrator(s *store.Store, svc Service) *Orchestrator {
	return &Orchestrator{store: s, service: svc, log: slog.Default()}
}

// ComputeDownstream returns the aspects eligible for regeneration after an
// edit to the named aspect of the function, in ascending aspect order,
// stopping before the first locked aspect. Unknown function IDs yield nil.
func (o *Orchestrator) ComputeDownstream(functionID string, edited model.Aspect, reroll bool) []model.Aspect {
	fn, ok := o.store.Get(functionID)
	if !ok {
		return nil
	}
	return model.Downstream(fn, edited, reroll)
}

// Generate runs one generation cycle for the given edit. On any transport,
// truncation, or parse failure it returns an error and no commands; nothing
// from a failed cycle may be applied. An empty downstream list short-circuits
// without calling the service.
func (o *Orchestrator) Generate(ctx context.Context, edit Edit) (*Cycle, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "generation_cycle")
	defer span.End()

	start := time.Now()

	fn, ok := o.store.Get(edit.FunctionID)
	if !ok {
		err := fmt.Errorf("generate: unknown function %q", edit.FunctionID)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !edit.Aspect.Valid() {
		err := fmt.Errorf("generate: unknown aspect %q", edit.Aspect)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	downstream := model.Downstream(fn, edit.Aspect, edit.Reroll)
	span.SetAttributes(
		attribute.String("function", fn.Name()),
		attribute.String("edited_aspect", string(edit.Aspect)),
		attribute.Int("downstream_count", len(downstream)),
		attribute.Bool("reroll", edit.Reroll),
	)

	cycle := &Cycle{Downstream: downstream, Duration: time.Since(start)}
	if len(downstream) == 0 {
		// Editing the last aspect, or hitting a lock immediately: nothing to
		// generate.
		o.log.Debug("no downstream aspects to generate",
			"function", fn.Name(), "aspect", string(edit.Aspect))
		return cycle, nil
	}

	req := &Request{
		Snapshot: snapshot.Package(o.store),
		Trigger: TriggerPayload{
			EditedFunctionIdentifier:    fn.Name(),
			EditedAspect:                edit.Aspect,
			EditedValue:                 edit.Value,
			DownstreamAspectsToGenerate: downstream,
		},
	}

	env, err := o.service.Generate(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generation cycle for %q: %w", fn.Name(), err)
	}

	cycle.Commands = env.Commands
	cycle.Rationale = env.Rationale
	cycle.Dropped = env.Dropped
	cycle.InputTokens = env.InputTokens
	cycle.OutputTokens = env.OutputTokens
	cycle.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("commands", len(cycle.Commands)),
		attribute.Int("dropped", cycle.Dropped),
	)
	o.log.Info("generation cycle complete",
		"function", fn.Name(),
		"edited_aspect", string(edit.Aspect),
		"commands", len(cycle.Commands),
		"dropped", cycle.Dropped,
		"duration", cycle.Duration)
	return cycle, nil
}
