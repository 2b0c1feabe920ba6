// Package snapshot packages the current function graph into the minimal
// serializable form sent to the generation service. Positional and visual
// data never crosses this boundary.
package snapshot

import (
	"encoding/json"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

// PackagedFunction is one function as the generation service sees it.
type PackagedFunction struct {
	Identifier     model.AspectValue `json:"identifier"`
	Signature      model.AspectValue `json:"signature"`
	Specification  model.AspectValue `json:"specification"`
	Implementation model.AspectValue `json:"implementation"`
	RenderedCode   string            `json:"rendered_code,omitempty"`
}

// PackagedGraph is the request-side snapshot of the whole project.
type PackagedGraph struct {
	ProjectIdentifier string             `json:"project_identifier"`
	Functions         []PackagedFunction `json:"functions"`
}

// Source is the read surface the packager needs from the store.
type Source interface {
	ProjectName() string
	List() []*model.Function
}

// Package captures the current graph state. It reads through copies, never
// mutates the source, and is safe to call at any time.
func Package(src Source) *PackagedGraph {
	fns := src.List()
	pg := &PackagedGraph{
		ProjectIdentifier: src.ProjectName(),
		Functions:         make([]PackagedFunction, 0, len(fns)),
	}
	for _, fn := range fns {
		pg.Functions = append(pg.Functions, PackagedFunction{
			Identifier:     fn.Identifier,
			Signature:      fn.Signature,
			Specification:  fn.Specification,
			Implementation: fn.Implementation,
			RenderedCode:   fn.RenderedCode,
		})
	}
	return pg
}

// MarshalIndent renders the snapshot as indented JSON for prompts and logs.
func (pg *PackagedGraph) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(pg, "", "  ")
}
