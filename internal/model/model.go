// Package model defines the shared vocabulary for the function graph: the
// four ordered aspects of a function, the lifecycle state of each aspect
// value, and the Function and Project records every other package operates on.
package model

// Aspect identifies one of the four ordered facets of a function. The
// ordering identifier < signature < specification < implementation is fixed
// and defines the downstream direction for cascading generation.
type Aspect string

const (
	AspectIdentifier     Aspect = "identifier"
	AspectSignature      Aspect = "signature"
	AspectSpecification  Aspect = "specification"
	AspectImplementation Aspect = "implementation"
)

// AspectOrder lists all aspects in their fixed generation order.
var AspectOrder = []Aspect{
	AspectIdentifier,
	AspectSignature,
	AspectSpecification,
	AspectImplementation,
}

// Valid reports whether a is one of the four known aspects.
func (a Aspect) Valid() bool {
	switch a {
	case AspectIdentifier, AspectSignature, AspectSpecification, AspectImplementation:
		return true
	}
	return false
}

// Index returns the position of a in AspectOrder, or -1 for unknown aspects.
func (a Aspect) Index() int {
	for i, known := range AspectOrder {
		if a == known {
			return i
		}
	}
	return -1
}

// Lifecycle describes the provenance of an aspect value.
type Lifecycle string

const (
	// LifecycleUnset marks an aspect that has never been given a value.
	LifecycleUnset Lifecycle = "unset"
	// LifecycleAutogenerated marks a value last written by the generation service.
	LifecycleAutogenerated Lifecycle = "autogenerated"
	// LifecycleEdited marks a value last written directly by the user.
	LifecycleEdited Lifecycle = "edited"
	// LifecycleLocked marks a value the user has frozen; generation must
	// never overwrite it.
	LifecycleLocked Lifecycle = "locked"
)

// Valid reports whether l is one of the four known lifecycle states.
func (l Lifecycle) Valid() bool {
	switch l {
	case LifecycleUnset, LifecycleAutogenerated, LifecycleEdited, LifecycleLocked:
		return true
	}
	return false
}

// UserAuthored reports whether l records a direct user write.
func (l Lifecycle) UserAuthored() bool {
	return l == LifecycleEdited || l == LifecycleLocked
}

// AspectValue is the text of one aspect together with its provenance.
type AspectValue struct {
	Text      string    `json:"text"`
	Lifecycle Lifecycle `json:"lifecycle"`
}

// Unset is the zero value for a never-written aspect.
func Unset() AspectValue {
	return AspectValue{Lifecycle: LifecycleUnset}
}

// Function is the core entity: a node on the canvas. UniqueID is assigned at
// creation, never reused, and is the only stable reference across renames.
type Function struct {
	UniqueID       string      `json:"unique_id"`
	Identifier     AspectValue `json:"identifier"`
	Signature      AspectValue `json:"signature"`
	Specification  AspectValue `json:"specification"`
	Implementation AspectValue `json:"implementation"`
	// RenderedCode is a derived display field; it carries no protocol meaning
	// and may be blank.
	RenderedCode string `json:"rendered_code,omitempty"`
}

// NewFunction returns a Function with the given identity and all aspects unset.
func NewFunction(uniqueID string) *Function {
	return &Function{
		UniqueID:       uniqueID,
		Identifier:     Unset(),
		Signature:      Unset(),
		Specification:  Unset(),
		Implementation: Unset(),
	}
}

// AspectValue returns the value of the named aspect. Unknown aspects return
// the unset value.
func (f *Function) AspectValue(a Aspect) AspectValue {
	switch a {
	case AspectIdentifier:
		return f.Identifier
	case AspectSignature:
		return f.Signature
	case AspectSpecification:
		return f.Specification
	case AspectImplementation:
		return f.Implementation
	}
	return Unset()
}

// SetAspect replaces the named aspect wholesale. Unknown aspects are ignored.
func (f *Function) SetAspect(a Aspect, v AspectValue) {
	switch a {
	case AspectIdentifier:
		f.Identifier = v
	case AspectSignature:
		f.Signature = v
	case AspectSpecification:
		f.Specification = v
	case AspectImplementation:
		f.Implementation = v
	}
}

// Name returns the function's identifier text.
func (f *Function) Name() string {
	return f.Identifier.Text
}

// Clone returns a deep copy of f.
func (f *Function) Clone() *Function {
	c := *f
	return &c
}

// Project is the ordered collection of all functions plus a display name.
// Identifier texts may collide; unique IDs never do.
type Project struct {
	Name      string      `json:"name"`
	Functions []*Function `json:"functions"`
}

// Downstream returns the aspects to regenerate after an edit to edited,
// stopping before the first locked aspect. With reroll set, the edited aspect
// itself leads the list. The lock check consults fn's current lifecycle
// states; a locked edited aspect in reroll mode yields nothing.
func Downstream(fn *Function, edited Aspect, reroll bool) []Aspect {
	start := edited.Index()
	if start < 0 {
		return nil
	}
	if !reroll {
		start++
	}
	var out []Aspect
	for _, a := range AspectOrder[start:] {
		if fn.AspectValue(a).Lifecycle == LifecycleLocked {
			break
		}
		out = append(out, a)
	}
	return out
}
