package generate

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/command"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/store"
)

// fakeService records the request it received and replies with a canned
// envelope or error.
type fakeService struct {
	env     *command.Envelope
	err     error
	lastReq *Request
	calls   int
}

func (f *fakeService) Generate(ctx context.Context, req *Request) (*command.Envelope, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.env, nil
}

func seedFunction(s *store.Store, name string) string {
	return s.CreateFunction(&model.Function{
		Identifier: model.AspectValue{Text: name, Lifecycle: model.LifecycleEdited},
	})
}

func TestComputeDownstream(t *testing.T) {
	s := store.New("test")
	id := seedFunction(s, "f")
	o := NewOrchestrator(s, &fakeService{})

	got := o.ComputeDownstream(id, model.AspectSignature, false)
	want := []model.Aspect{model.AspectSpecification, model.AspectImplementation}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("downstream = %v, want %v", got, want)
	}

	if got := o.ComputeDownstream("missing", model.AspectSignature, false); got != nil {
		t.Errorf("unknown function downstream = %v, want nil", got)
	}
}

func TestGenerateSendsSnapshotAndTrigger(t *testing.T) {
	s := store.New("demo")
	id := seedFunction(s, "f")
	seedFunction(s, "other")
	svc := &fakeService{env: &command.Envelope{
		Rationale: "filled in",
		Commands: []command.Command{{
			Type: command.TypeUpdateAspect, FunctionName: "f",
			Aspect: model.AspectSpecification, Value: "Does things.",
		}},
		InputTokens:  300,
		OutputTokens: 40,
	}}
	o := NewOrchestrator(s, svc)

	cycle, err := o.Generate(context.Background(), Edit{
		FunctionID: id,
		Aspect:     model.AspectSignature,
		Value:      "(x: int) -> int",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	req := svc.lastReq
	if req.Trigger.EditedFunctionIdentifier != "f" {
		t.Errorf("trigger function = %q", req.Trigger.EditedFunctionIdentifier)
	}
	if req.Trigger.EditedAspect != model.AspectSignature || req.Trigger.EditedValue != "(x: int) -> int" {
		t.Errorf("trigger = %+v", req.Trigger)
	}
	wantDS := []model.Aspect{model.AspectSpecification, model.AspectImplementation}
	if !reflect.DeepEqual(req.Trigger.DownstreamAspectsToGenerate, wantDS) {
		t.Errorf("downstream = %v, want %v", req.Trigger.DownstreamAspectsToGenerate, wantDS)
	}
	if req.Snapshot.ProjectIdentifier != "demo" || len(req.Snapshot.Functions) != 2 {
		t.Errorf("snapshot = %+v", req.Snapshot)
	}

	if cycle.Rationale != "filled in" || len(cycle.Commands) != 1 {
		t.Errorf("cycle = %+v", cycle)
	}
	if cycle.InputTokens != 300 || cycle.OutputTokens != 40 {
		t.Errorf("cycle usage = %d/%d, want 300/40", cycle.InputTokens, cycle.OutputTokens)
	}
	if !reflect.DeepEqual(cycle.Downstream, wantDS) {
		t.Errorf("cycle downstream = %v", cycle.Downstream)
	}
}

func TestGenerateEmptyDownstreamSkipsService(t *testing.T) {
	s := store.New("test")
	id := seedFunction(s, "f")
	svc := &fakeService{}
	o := NewOrchestrator(s, svc)

	cycle, err := o.Generate(context.Background(), Edit{
		FunctionID: id,
		Aspect:     model.AspectImplementation,
		Value:      "x = 1",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if svc.calls != 0 {
		t.Errorf("service called %d times for an empty downstream", svc.calls)
	}
	if len(cycle.Commands) != 0 || len(cycle.Downstream) != 0 {
		t.Errorf("cycle = %+v", cycle)
	}
}

func TestGenerateStopsAtLock(t *testing.T) {
	s := store.New("test")
	id := seedFunction(s, "f")
	s.UpdateFunction(id, store.Update{Aspects: []store.AspectUpdate{{
		Aspect: model.AspectImplementation,
		Value:  model.AspectValue{Text: "mine", Lifecycle: model.LifecycleLocked},
	}}})
	svc := &fakeService{env: &command.Envelope{}}
	o := NewOrchestrator(s, svc)

	_, err := o.Generate(context.Background(), Edit{
		FunctionID: id, Aspect: model.AspectSignature, Value: "(x)",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []model.Aspect{model.AspectSpecification}
	if !reflect.DeepEqual(svc.lastReq.Trigger.DownstreamAspectsToGenerate, want) {
		t.Errorf("downstream = %v, want %v", svc.lastReq.Trigger.DownstreamAspectsToGenerate, want)
	}
}

func TestGenerateRerollIncludesEditedAspect(t *testing.T) {
	s := store.New("test")
	id := seedFunction(s, "f")
	svc := &fakeService{env: &command.Envelope{}}
	o := NewOrchestrator(s, svc)

	_, err := o.Generate(context.Background(), Edit{
		FunctionID: id, Aspect: model.AspectSpecification, Value: "Spec.", Reroll: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []model.Aspect{model.AspectSpecification, model.AspectImplementation}
	if !reflect.DeepEqual(svc.lastReq.Trigger.DownstreamAspectsToGenerate, want) {
		t.Errorf("downstream = %v, want %v", svc.lastReq.Trigger.DownstreamAspectsToGenerate, want)
	}
}

func TestGenerateServiceFailureYieldsNoCommands(t *testing.T) {
	s := store.New("test")
	id := seedFunction(s, "f")
	svc := &fakeService{err: errors.New("connection reset")}
	o := NewOrchestrator(s, svc)

	cycle, err := o.Generate(context.Background(), Edit{
		FunctionID: id, Aspect: model.AspectIdentifier, Value: "g",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if cycle != nil {
		t.Errorf("failed cycle returned commands: %+v", cycle)
	}
}

func TestGenerateUnknownFunction(t *testing.T) {
	s := store.New("test")
	o := NewOrchestrator(s, &fakeService{})
	if _, err := o.Generate(context.Background(), Edit{
		FunctionID: "missing", Aspect: model.AspectIdentifier, Value: "x",
	}); err == nil {
		t.Error("expected error for unknown function")
	}
}

func TestGenerateUnknownAspect(t *testing.T) {
	s := store.New("test")
	id := seedFunction(s, "f")
	o := NewOrchestrator(s, &fakeService{})
	if _, err := o.Generate(context.Background(), Edit{
		FunctionID: id, Aspect: model.Aspect("bogus"), Value: "x",
	}); err == nil {
		t.Error("expected error for unknown aspect")
	}
}

// End to end: an edit cascades through generation and command application,
// auto-creating a referenced helper, while a locked aspect survives.
func TestEditCycleEndToEnd(t *testing.T) {
	s := store.New("e2e")
	id := seedFunction(s, "main")
	s.UpdateFunction(id, store.Update{Aspects: []store.AspectUpdate{{
		Aspect: model.AspectSignature,
		Value:  model.AspectValue{Text: "() -> None", Lifecycle: model.LifecycleLocked},
	}}})

	svc := &fakeService{env: &command.Envelope{
		Rationale: "implemented main in terms of a new helper",
		Commands: []command.Command{
			{Type: command.TypeUpdateAspect, FunctionName: "main",
				Aspect: model.AspectImplementation, Value: "helper(input)"},
			{Type: command.TypeUpdateAspect, FunctionName: "main",
				Aspect: model.AspectSignature, Value: "(x) -> y"},
		},
	}}
	o := NewOrchestrator(s, svc)

	cycle, err := o.Generate(context.Background(), Edit{
		FunctionID: id, Aspect: model.AspectSpecification, Value: "Process the input.",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// The user edit itself is applied by the caller before the cycle; mirror
	// that here.
	s.UpdateFunction(id, store.Update{Aspects: []store.AspectUpdate{{
		Aspect: model.AspectSpecification,
		Value:  model.AspectValue{Text: "Process the input.", Lifecycle: model.LifecycleEdited},
	}}})
	report := NewExecutor(s).Apply(cycle.Commands)

	if !reflect.DeepEqual(report.Discovered, []string{"helper"}) {
		t.Errorf("discovered = %v", report.Discovered)
	}
	if _, ok := s.FindByName("helper"); !ok {
		t.Error("helper not auto-created")
	}

	main, _ := s.Get(id)
	if main.Implementation.Text != "helper(input)" {
		t.Errorf("implementation = %q", main.Implementation.Text)
	}
	if main.Signature.Text != "() -> None" {
		t.Errorf("locked signature changed to %q", main.Signature.Text)
	}
	if main.Specification.Lifecycle != model.LifecycleEdited {
		t.Errorf("specification lifecycle = %s", main.Specification.Lifecycle)
	}
}
