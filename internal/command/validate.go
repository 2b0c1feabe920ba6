package command

import (
	"encoding/json"
	"fmt"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

// wire mirrors the external command shape with pointer fields so that absent
// and mistyped fields are distinguishable from zero values. Unknown extra
// fields are tolerated.
type wire struct {
	Type         *string      `json:"type"`
	FunctionName *string      `json:"functionName"`
	Function     *wireFn      `json:"function"`
	Aspect       *string      `json:"aspect"`
	Value        *string      `json:"value"`
}

type wireFn struct {
	Identifier     *wireAspect `json:"identifier"`
	Signature      *wireAspect `json:"signature"`
	Specification  *wireAspect `json:"specification"`
	Implementation *wireAspect `json:"implementation"`
}

type wireAspect struct {
	Text      *string `json:"text"`
	Lifecycle *string `json:"lifecycle"`
}

// Validate checks one candidate object against the four command shapes. It
// accepts exactly matching candidates (extra unknown fields permitted) and
// rejects everything else whole; there is no partial repair. Pure and total.
func Validate(raw json.RawMessage) (Command, error) {
	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Command{}, fmt.Errorf("not a command object: %w", err)
	}
	if w.Type == nil {
		return Command{}, fmt.Errorf("missing type field")
	}
	if w.FunctionName == nil {
		return Command{}, fmt.Errorf("%s: missing functionName", *w.Type)
	}

	cmd := Command{FunctionName: *w.FunctionName}

	switch Type(*w.Type) {
	case TypeCreateFunction:
		cmd.Type = TypeCreateFunction
		if w.Function == nil {
			return Command{}, fmt.Errorf("create_function: missing function payload")
		}
		payload, err := validatePayload(w.Function)
		if err != nil {
			return Command{}, fmt.Errorf("create_function: %w", err)
		}
		cmd.Function = payload

	case TypeDeleteFunction:
		cmd.Type = TypeDeleteFunction

	case TypeUpdateAspect:
		cmd.Type = TypeUpdateAspect
		if w.Aspect == nil {
			return Command{}, fmt.Errorf("update_aspect: missing aspect")
		}
		aspect := model.Aspect(*w.Aspect)
		if !aspect.Valid() {
			return Command{}, fmt.Errorf("update_aspect: unknown aspect %q", *w.Aspect)
		}
		if w.Value == nil {
			return Command{}, fmt.Errorf("update_aspect: missing value")
		}
		cmd.Aspect = aspect
		cmd.Value = *w.Value

	case TypeUpdateRenderedCode:
		cmd.Type = TypeUpdateRenderedCode
		if w.Value == nil {
			return Command{}, fmt.Errorf("update_rendered_code: missing value")
		}
		cmd.Value = *w.Value

	default:
		return Command{}, fmt.Errorf("unknown command type %q", *w.Type)
	}

	return cmd, nil
}

// validatePayload checks a create_function payload. Every aspect must carry a
// text field; lifecycle defaults to autogenerated and, since only a direct
// user edit may mark an aspect edited or locked, user-authored lifecycles
// from the service are coerced to autogenerated rather than trusted.
func validatePayload(w *wireFn) (*FunctionPayload, error) {
	p := &FunctionPayload{}
	for _, entry := range []struct {
		name string
		src  *wireAspect
		dst  *model.AspectValue
	}{
		{"identifier", w.Identifier, &p.Identifier},
		{"signature", w.Signature, &p.Signature},
		{"specification", w.Specification, &p.Specification},
		{"implementation", w.Implementation, &p.Implementation},
	} {
		if entry.src == nil {
			return nil, fmt.Errorf("missing %s aspect", entry.name)
		}
		if entry.src.Text == nil {
			return nil, fmt.Errorf("%s aspect: missing text", entry.name)
		}
		v := model.AspectValue{Text: *entry.src.Text, Lifecycle: model.LifecycleAutogenerated}
		if entry.src.Lifecycle != nil {
			lc := model.Lifecycle(*entry.src.Lifecycle)
			if !lc.Valid() {
				return nil, fmt.Errorf("%s aspect: unknown lifecycle %q", entry.name, *entry.src.Lifecycle)
			}
			if lc == model.LifecycleUnset {
				v = model.Unset()
			}
		}
		*entry.dst = v
	}
	return p, nil
}
