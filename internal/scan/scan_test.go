package scan

import (
	"reflect"
	"testing"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

func TestCallsBasic(t *testing.T) {
	got := Calls("return parse(input) + format(parse(rest))")
	want := []CallRef{
		{Name: "parse", Occurrence: 0},
		{Name: "format", Occurrence: 0},
		{Name: "parse", Occurrence: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Calls = %v, want %v", got, want)
	}
}

func TestCallsEmptyAndPlainText(t *testing.T) {
	if got := Calls(""); got != nil {
		t.Errorf("Calls(\"\") = %v", got)
	}
	if got := Calls("no calls here, just prose."); got != nil {
		t.Errorf("Calls = %v, want nil", got)
	}
}

func TestCallsIdentifierShapes(t *testing.T) {
	got := Calls("_helper(x); compute_v2(y); 3abc(z)")
	want := []CallRef{
		{Name: "_helper", Occurrence: 0},
		{Name: "compute_v2", Occurrence: 0},
		// "3abc(" does not start with a letter or underscore; the scanner
		// still picks up the trailing "abc(".
		{Name: "abc", Occurrence: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Calls = %v, want %v", got, want)
	}
}

func TestCallsOccurrenceCountersArePerName(t *testing.T) {
	got := Calls("a() b() a() b() a()")
	want := []CallRef{
		{Name: "a", Occurrence: 0},
		{Name: "b", Occurrence: 0},
		{Name: "a", Occurrence: 1},
		{Name: "b", Occurrence: 1},
		{Name: "a", Occurrence: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Calls = %v, want %v", got, want)
	}
}

func TestCallsDeterministic(t *testing.T) {
	text := "f(g(x), h(y)) + f(z)"
	first := Calls(text)
	for i := 0; i < 10; i++ {
		if got := Calls(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

type fakeResolver map[string]bool

func (f fakeResolver) FindByName(name string) (*model.Function, bool) {
	if f[name] {
		return &model.Function{UniqueID: "id-" + name}, true
	}
	return nil, false
}

func TestUnresolved(t *testing.T) {
	r := fakeResolver{"known": true}
	got := Unresolved("known(x) + missing(y) + missing(z) + also_missing()", r)
	want := []string{"missing", "also_missing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unresolved = %v, want %v", got, want)
	}
}

func TestUnresolvedAllKnown(t *testing.T) {
	r := fakeResolver{"a": true, "b": true}
	if got := Unresolved("a() + b()", r); got != nil {
		t.Errorf("Unresolved = %v, want nil", got)
	}
}

func projectFixture() *model.Project {
	return &model.Project{
		Name: "demo",
		Functions: []*model.Function{
			{
				UniqueID:       "id-main",
				Identifier:     model.AspectValue{Text: "main", Lifecycle: model.LifecycleEdited},
				Implementation: model.AspectValue{Text: "helper(x); helper(y); ghost(z)", Lifecycle: model.LifecycleAutogenerated},
			},
			{
				UniqueID:   "id-helper",
				Identifier: model.AspectValue{Text: "helper", Lifecycle: model.LifecycleAutogenerated},
			},
		},
	}
}

func TestEdges(t *testing.T) {
	got := Edges(projectFixture())
	want := []Edge{
		{CallerID: "id-main", CalleeID: "id-helper", CalleeName: "helper", Occurrence: 0},
		{CallerID: "id-main", CalleeID: "id-helper", CalleeName: "helper", Occurrence: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Edges = %v, want %v", got, want)
	}
}

func TestEdgesDuplicateNamesResolveToFirst(t *testing.T) {
	p := &model.Project{
		Functions: []*model.Function{
			{UniqueID: "id-1", Identifier: model.AspectValue{Text: "dup"}},
			{UniqueID: "id-2", Identifier: model.AspectValue{Text: "dup"}},
			{
				UniqueID:       "id-caller",
				Identifier:     model.AspectValue{Text: "caller"},
				Implementation: model.AspectValue{Text: "dup()"},
			},
		},
	}
	edges := Edges(p)
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	if edges[0].CalleeID != "id-1" {
		t.Errorf("callee = %s, want first-declared id-1", edges[0].CalleeID)
	}
}
