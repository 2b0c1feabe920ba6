// Package command defines the closed set of mutation instructions the
// generation service may emit, and validates untrusted service output into
// that set. Commands are immutable serializable data, never closures.
package command

import (
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

// Type discriminates the four command shapes. Adding a kind means touching
// every switch over Type; each switch carries an unhandled-case default so a
// missed consumer fails loudly instead of silently dropping work.
type Type string

const (
	TypeCreateFunction     Type = "create_function"
	TypeDeleteFunction     Type = "delete_function"
	TypeUpdateAspect       Type = "update_aspect"
	TypeUpdateRenderedCode Type = "update_rendered_code"
)

// FunctionPayload carries the aspect data of a create_function command.
type FunctionPayload struct {
	Identifier     model.AspectValue `json:"identifier"`
	Signature      model.AspectValue `json:"signature"`
	Specification  model.AspectValue `json:"specification"`
	Implementation model.AspectValue `json:"implementation"`
}

// Command is one validated mutation instruction. Which fields are meaningful
// depends on Type:
//
//	create_function:      FunctionName, Function
//	delete_function:      FunctionName
//	update_aspect:        FunctionName, Aspect, Value
//	update_rendered_code: FunctionName, Value
type Command struct {
	Type         Type             `json:"type"`
	FunctionName string           `json:"functionName"`
	Function     *FunctionPayload `json:"function,omitempty"`
	Aspect       model.Aspect     `json:"aspect,omitempty"`
	Value        string           `json:"value,omitempty"`
}

// NewCreateFunction builds a create_function command for a freshly discovered
// name: identifier autogenerated, all other aspects unset.
func NewCreateFunction(name string) Command {
	return Command{
		Type:         TypeCreateFunction,
		FunctionName: name,
		Function: &FunctionPayload{
			Identifier:     model.AspectValue{Text: name, Lifecycle: model.LifecycleAutogenerated},
			Signature:      model.Unset(),
			Specification:  model.Unset(),
			Implementation: model.Unset(),
		},
	}
}
