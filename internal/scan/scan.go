// Package scan extracts function-call-shaped tokens from free implementation
// text and resolves them against the function graph. It is a best-effort
// heuristic standing in for a real call graph; keeping it behind this package
// boundary lets a structured representation replace it later without touching
// the command queue.
package scan

import (
	"regexp"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

// callPattern matches an identifier immediately followed by an opening
// parenthesis. The argument list is located, never parsed.
var callPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\(`)

// CallRef is one textual occurrence of name(...) inside implementation text.
// Occurrence is a zero-based counter private to that name within the scanned
// text, giving a stable key for edge drawing.
type CallRef struct {
	Name       string
	Occurrence int
}

// Calls returns all call references in text in left-to-right order. The
// result is deterministic: scanning the same text twice yields identical
// sequences.
func Calls(text string) []CallRef {
	matches := callPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]CallRef, 0, len(matches))
	seen := make(map[string]int, len(matches))
	for _, m := range matches {
		name := m[:len(m)-1] // strip the trailing "("
		refs = append(refs, CallRef{Name: name, Occurrence: seen[name]})
		seen[name]++
	}
	return refs
}

// Resolver answers whether a name resolves to an existing function. The
// store's exact-match rule is the one implementation; tests supply fakes.
type Resolver interface {
	FindByName(name string) (*model.Function, bool)
}

// Unresolved returns the deduplicated set of call-reference names in text
// that do not resolve to any existing function, in first-occurrence order.
func Unresolved(text string, r Resolver) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ref := range Calls(text) {
		if seen[ref.Name] {
			continue
		}
		seen[ref.Name] = true
		if _, ok := r.FindByName(ref.Name); !ok {
			out = append(out, ref.Name)
		}
	}
	return out
}

// Edge is a resolved caller→callee relationship derived from implementation
// text. Occurrence disambiguates repeated calls to the same callee.
type Edge struct {
	CallerID   string `json:"caller_id"`
	CalleeID   string `json:"callee_id"`
	CalleeName string `json:"callee_name"`
	Occurrence int    `json:"occurrence"`
}

// Edges derives the call edges for every function in the project, resolving
// callee names by exact identifier match, first in project order. Unresolved
// references produce no edge; they are an expected, visually-flagged state.
func Edges(p *model.Project) []Edge {
	byName := make(map[string]string, len(p.Functions))
	for _, fn := range p.Functions {
		if _, ok := byName[fn.Identifier.Text]; !ok {
			byName[fn.Identifier.Text] = fn.UniqueID
		}
	}

	var edges []Edge
	for _, fn := range p.Functions {
		for _, ref := range Calls(fn.Implementation.Text) {
			calleeID, ok := byName[ref.Name]
			if !ok {
				continue
			}
			edges = append(edges, Edge{
				CallerID:   fn.UniqueID,
				CalleeID:   calleeID,
				CalleeName: ref.Name,
				Occurrence: ref.Occurrence,
			})
		}
	}
	return edges
}
