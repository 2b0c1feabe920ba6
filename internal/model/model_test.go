package model

import (
	"reflect"
	"testing"
)

func TestAspectValid(t *testing.T) {
	for _, a := range AspectOrder {
		if !a.Valid() {
			t.Errorf("expected %q to be valid", a)
		}
	}
	if Aspect("rendered_code").Valid() {
		t.Error("rendered_code is not an aspect")
	}
	if Aspect("").Valid() {
		t.Error("empty aspect should be invalid")
	}
}

func TestAspectIndex(t *testing.T) {
	if got := AspectIdentifier.Index(); got != 0 {
		t.Errorf("identifier index = %d, want 0", got)
	}
	if got := AspectImplementation.Index(); got != 3 {
		t.Errorf("implementation index = %d, want 3", got)
	}
	if got := Aspect("bogus").Index(); got != -1 {
		t.Errorf("bogus index = %d, want -1", got)
	}
}

func TestLifecycleUserAuthored(t *testing.T) {
	cases := map[Lifecycle]bool{
		LifecycleUnset:         false,
		LifecycleAutogenerated: false,
		LifecycleEdited:        true,
		LifecycleLocked:        true,
	}
	for l, want := range cases {
		if got := l.UserAuthored(); got != want {
			t.Errorf("%s.UserAuthored() = %v, want %v", l, got, want)
		}
	}
}

func TestNewFunctionAllAspectsUnset(t *testing.T) {
	fn := NewFunction("f-1")
	for _, a := range AspectOrder {
		if fn.AspectValue(a).Lifecycle != LifecycleUnset {
			t.Errorf("aspect %s should start unset", a)
		}
	}
}

func TestSetAspectUnknownIgnored(t *testing.T) {
	fn := NewFunction("f-1")
	fn.SetAspect(Aspect("bogus"), AspectValue{Text: "x", Lifecycle: LifecycleEdited})
	for _, a := range AspectOrder {
		if fn.AspectValue(a).Text != "" {
			t.Errorf("unknown aspect write leaked into %s", a)
		}
	}
}

func fnWith(lifecycles map[Aspect]Lifecycle) *Function {
	fn := NewFunction("f-1")
	for a, l := range lifecycles {
		fn.SetAspect(a, AspectValue{Text: "v", Lifecycle: l})
	}
	return fn
}

func TestDownstreamFullCascade(t *testing.T) {
	fn := NewFunction("f-1")
	got := Downstream(fn, AspectIdentifier, false)
	want := []Aspect{AspectSignature, AspectSpecification, AspectImplementation}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Downstream = %v, want %v", got, want)
	}
}

func TestDownstreamStopsBeforeLock(t *testing.T) {
	fn := fnWith(map[Aspect]Lifecycle{
		AspectSpecification: LifecycleLocked,
	})
	got := Downstream(fn, AspectIdentifier, false)
	want := []Aspect{AspectSignature}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Downstream = %v, want %v", got, want)
	}
}

func TestDownstreamImmediateLockYieldsNothing(t *testing.T) {
	fn := fnWith(map[Aspect]Lifecycle{
		AspectSignature: LifecycleLocked,
	})
	if got := Downstream(fn, AspectIdentifier, false); got != nil {
		t.Errorf("Downstream = %v, want nil", got)
	}
}

func TestDownstreamLastAspectEdit(t *testing.T) {
	fn := NewFunction("f-1")
	if got := Downstream(fn, AspectImplementation, false); got != nil {
		t.Errorf("editing the last aspect should yield nothing, got %v", got)
	}
}

func TestDownstreamReroll(t *testing.T) {
	fn := NewFunction("f-1")
	got := Downstream(fn, AspectSpecification, true)
	want := []Aspect{AspectSpecification, AspectImplementation}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Downstream reroll = %v, want %v", got, want)
	}
}

func TestDownstreamRerollLockedEditedAspect(t *testing.T) {
	fn := fnWith(map[Aspect]Lifecycle{
		AspectSpecification: LifecycleLocked,
	})
	if got := Downstream(fn, AspectSpecification, true); got != nil {
		t.Errorf("reroll of a locked aspect should yield nothing, got %v", got)
	}
}

func TestDownstreamUnknownAspect(t *testing.T) {
	fn := NewFunction("f-1")
	if got := Downstream(fn, Aspect("bogus"), false); got != nil {
		t.Errorf("unknown aspect should yield nil, got %v", got)
	}
}

// Whatever combination of locks is present, the downstream list never
// contains a locked aspect and is always a contiguous run in aspect order.
func TestDownstreamNeverContainsLocked(t *testing.T) {
	for mask := 0; mask < 16; mask++ {
		fn := NewFunction("f-1")
		for i, a := range AspectOrder {
			if mask&(1<<i) != 0 {
				fn.SetAspect(a, AspectValue{Text: "v", Lifecycle: LifecycleLocked})
			}
		}
		for _, edited := range AspectOrder {
			for _, reroll := range []bool{false, true} {
				ds := Downstream(fn, edited, reroll)
				prev := edited.Index() - 1
				if !reroll {
					prev = edited.Index()
				}
				for _, a := range ds {
					if fn.AspectValue(a).Lifecycle == LifecycleLocked {
						t.Fatalf("mask %04b: locked aspect %s in downstream %v", mask, a, ds)
					}
					if a.Index() != prev+1 {
						t.Fatalf("mask %04b: downstream %v is not contiguous", mask, ds)
					}
					prev = a.Index()
				}
			}
		}
	}
}
