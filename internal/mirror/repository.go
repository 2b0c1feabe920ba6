// Package mirror externalizes the function graph and its call edges to a
// graph database so they can be queried outside the editor session. The
// in-memory store stays authoritative; the mirror is write-behind and
// optional.
package mirror

import (
	"context"
	"fmt"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/scan"
)

// Repository persists a project's functions and call edges.
type Repository interface {
	// SyncProject replaces the mirrored state of the project with the given
	// functions and edges.
	SyncProject(ctx context.Context, project *model.Project, edges []scan.Edge) error
	// QueryCallees returns the identifier texts of all functions called by
	// the function with the given unique ID.
	QueryCallees(ctx context.Context, uniqueID string) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// Callees resolves identifier against the local project and asks the mirror
// which functions it calls. Identifier resolution matches the scanner: exact
// text match, first function in insertion order wins. The mirror answers
// from the last sync, so a freshly edited project can disagree until the
// next sync.
func Callees(ctx context.Context, repo Repository, p *model.Project, identifier string) ([]string, error) {
	for _, fn := range p.Functions {
		if fn.Identifier.Text == identifier {
			return repo.QueryCallees(ctx, fn.UniqueID)
		}
	}
	return nil, fmt.Errorf("unknown function %q", identifier)
}
