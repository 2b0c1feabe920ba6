package generate

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/command"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/store"
)

func storeWith(names ...string) *store.Store {
	s := store.New("test")
	for _, n := range names {
		s.CreateFunction(&model.Function{
			Identifier: model.AspectValue{Text: n, Lifecycle: model.LifecycleEdited},
		})
	}
	return s
}

func TestApplyUpdateAspect(t *testing.T) {
	s := storeWith("f")
	report := NewExecutor(s).Apply([]command.Command{{
		Type:         command.TypeUpdateAspect,
		FunctionName: "f",
		Aspect:       model.AspectSignature,
		Value:        "(x: int) -> int",
	}})
	if report.Applied != 1 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}
	fn, _ := s.FindByName("f")
	if fn.Signature.Text != "(x: int) -> int" {
		t.Errorf("signature = %q", fn.Signature.Text)
	}
	if fn.Signature.Lifecycle != model.LifecycleAutogenerated {
		t.Errorf("lifecycle = %s", fn.Signature.Lifecycle)
	}
}

func TestApplyUnresolvedTargetSkipped(t *testing.T) {
	s := storeWith("f")
	report := NewExecutor(s).Apply([]command.Command{
		{Type: command.TypeUpdateAspect, FunctionName: "ghost", Aspect: model.AspectSignature, Value: "(x)"},
		{Type: command.TypeDeleteFunction, FunctionName: "ghost"},
		{Type: command.TypeUpdateRenderedCode, FunctionName: "ghost", Value: "code"},
		{Type: command.TypeUpdateAspect, FunctionName: "f", Aspect: model.AspectSignature, Value: "(y)"},
	})
	if report.Skipped != 3 || report.Applied != 1 {
		t.Errorf("report = %+v", report)
	}
	fn, _ := s.FindByName("f")
	if fn.Signature.Text != "(y)" {
		t.Error("batch should continue past skipped commands")
	}
}

func TestApplyDeleteFunction(t *testing.T) {
	s := storeWith("old", "kept")
	report := NewExecutor(s).Apply([]command.Command{{
		Type: command.TypeDeleteFunction, FunctionName: "old",
	}})
	if report.Applied != 1 {
		t.Errorf("report = %+v", report)
	}
	if _, ok := s.FindByName("old"); ok {
		t.Error("old still present")
	}
	if _, ok := s.FindByName("kept"); !ok {
		t.Error("kept vanished")
	}
}

func TestApplyCreateFunction(t *testing.T) {
	s := storeWith()
	report := NewExecutor(s).Apply([]command.Command{{
		Type:         command.TypeCreateFunction,
		FunctionName: "fresh",
		Function: &command.FunctionPayload{
			Identifier:     model.AspectValue{Text: "fresh", Lifecycle: model.LifecycleAutogenerated},
			Signature:      model.AspectValue{Text: "()", Lifecycle: model.LifecycleAutogenerated},
			Specification:  model.Unset(),
			Implementation: model.Unset(),
		},
	}})
	if report.Applied != 1 {
		t.Errorf("report = %+v", report)
	}
	fn, ok := s.FindByName("fresh")
	if !ok {
		t.Fatal("created function not resolvable")
	}
	if fn.UniqueID == "" {
		t.Error("created function has no identity")
	}
	if fn.Signature.Text != "()" {
		t.Errorf("signature = %q", fn.Signature.Text)
	}
}

func TestApplyRenderedCode(t *testing.T) {
	s := storeWith("f")
	NewExecutor(s).Apply([]command.Command{{
		Type: command.TypeUpdateRenderedCode, FunctionName: "f", Value: "def f(): ...",
	}})
	fn, _ := s.FindByName("f")
	if fn.RenderedCode != "def f(): ..." {
		t.Errorf("rendered code = %q", fn.RenderedCode)
	}
}

func TestApplyDiscoversReferencedFunctions(t *testing.T) {
	s := storeWith("main", "known")
	report := NewExecutor(s).Apply([]command.Command{{
		Type:         command.TypeUpdateAspect,
		FunctionName: "main",
		Aspect:       model.AspectImplementation,
		Value:        "result = known(x) + newA(y) + newB(newA(z))",
	}})

	if !reflect.DeepEqual(report.Discovered, []string{"newA", "newB"}) {
		t.Errorf("discovered = %v", report.Discovered)
	}
	// The implementation update plus two auto-creations.
	if report.Applied != 3 {
		t.Errorf("applied = %d, want 3", report.Applied)
	}
	for _, name := range []string{"newA", "newB"} {
		fn, ok := s.FindByName(name)
		if !ok {
			t.Fatalf("%s not created", name)
		}
		if fn.Identifier.Lifecycle != model.LifecycleAutogenerated {
			t.Errorf("%s identifier lifecycle = %s", name, fn.Identifier.Lifecycle)
		}
		if fn.Signature.Lifecycle != model.LifecycleUnset {
			t.Errorf("%s signature should be unset", name)
		}
	}
	if s.Len() != 4 {
		t.Errorf("store has %d functions, want 4", s.Len())
	}
}

func TestApplyNoDuplicateCreations(t *testing.T) {
	s := storeWith("a", "b")
	// Two implementation updates reference the same new name.
	NewExecutor(s).Apply([]command.Command{
		{Type: command.TypeUpdateAspect, FunctionName: "a", Aspect: model.AspectImplementation, Value: "shared(x)"},
		{Type: command.TypeUpdateAspect, FunctionName: "b", Aspect: model.AspectImplementation, Value: "shared(y)"},
	})
	count := 0
	for _, fn := range s.List() {
		if fn.Identifier.Text == "shared" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d functions named shared, want 1", count)
	}
}

func TestApplyPendingCreationSurvivesInterleavedCommand(t *testing.T) {
	s := storeWith("a", "b")
	// The rendered-code command targets the still-pending name and is
	// dequeued before its creation runs. It skips, but must not clear the
	// duplicate guard: b's reference to the same name would otherwise
	// enqueue a second creation.
	report := NewExecutor(s).Apply([]command.Command{
		{Type: command.TypeUpdateAspect, FunctionName: "a", Aspect: model.AspectImplementation, Value: "shared(x)"},
		{Type: command.TypeUpdateRenderedCode, FunctionName: "shared", Value: "code"},
		{Type: command.TypeUpdateAspect, FunctionName: "b", Aspect: model.AspectImplementation, Value: "shared(y)"},
	})
	count := 0
	for _, fn := range s.List() {
		if fn.Identifier.Text == "shared" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d functions named shared, want 1", count)
	}
	if got := []string{"shared"}; !reflect.DeepEqual(report.Discovered, got) {
		t.Errorf("discovered = %v, want %v", report.Discovered, got)
	}
}

func TestApplyTerminatesOnDenseReferences(t *testing.T) {
	// A batch whose implementation text mentions many distinct unknown names
	// must settle after exactly that many creations.
	s := storeWith("root")
	var refs string
	for i := 0; i < 40; i++ {
		refs += fmt.Sprintf("step%d(x); ", i)
	}
	report := NewExecutor(s).Apply([]command.Command{{
		Type:         command.TypeUpdateAspect,
		FunctionName: "root",
		Aspect:       model.AspectImplementation,
		Value:        refs,
	}})
	if len(report.Discovered) != 40 {
		t.Errorf("discovered %d, want 40", len(report.Discovered))
	}
	if s.Len() != 41 {
		t.Errorf("store has %d functions, want 41", s.Len())
	}
}

func TestApplyFIFOOrder(t *testing.T) {
	// A command that targets a function created earlier in the same batch must
	// see it.
	s := storeWith()
	report := NewExecutor(s).Apply([]command.Command{
		command.NewCreateFunction("late"),
		{Type: command.TypeUpdateAspect, FunctionName: "late", Aspect: model.AspectSpecification, Value: "Filled in."},
	})
	if report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}
	fn, _ := s.FindByName("late")
	if fn.Specification.Text != "Filled in." {
		t.Errorf("specification = %q", fn.Specification.Text)
	}
}

func TestApplyEmptyBatch(t *testing.T) {
	s := storeWith("f")
	report := NewExecutor(s).Apply(nil)
	if report.Applied != 0 || report.Skipped != 0 || report.Discovered != nil {
		t.Errorf("report = %+v", report)
	}
}

func TestApplyUnknownTypeSkipped(t *testing.T) {
	s := storeWith("f")
	report := NewExecutor(s).Apply([]command.Command{{
		Type: command.Type("merge_functions"), FunctionName: "f",
	}})
	if report.Skipped != 1 || report.Applied != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestApplyLockedAspectSurvivesBatch(t *testing.T) {
	s := storeWith("f")
	fn, _ := s.FindByName("f")
	s.UpdateFunction(fn.UniqueID, store.Update{Aspects: []store.AspectUpdate{{
		Aspect: model.AspectSpecification,
		Value:  model.AspectValue{Text: "frozen", Lifecycle: model.LifecycleLocked},
	}}})

	NewExecutor(s).Apply([]command.Command{{
		Type: command.TypeUpdateAspect, FunctionName: "f",
		Aspect: model.AspectSpecification, Value: "overwritten",
	}})

	after, _ := s.FindByName("f")
	if after.Specification.Text != "frozen" {
		t.Errorf("locked aspect changed to %q", after.Specification.Text)
	}
}
