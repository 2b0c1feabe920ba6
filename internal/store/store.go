// Package store holds the single authoritative, in-memory collection of
// functions. All mutation goes through the narrow API here; callers never
// reach into Function fields of a shared record directly.
package store

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

// AspectUpdate describes a whole-aspect replacement. Aspects not mentioned in
// an update are left untouched.
type AspectUpdate struct {
	Aspect model.Aspect
	Value  model.AspectValue
}

// Update is a partial write against one function.
type Update struct {
	Aspects []AspectUpdate
	// RenderedCode replaces the derived display text when non-nil.
	RenderedCode *string
}

// Observer is notified after every successful mutation.
type Observer func()

// Store is the function graph store. All operations are total: "not found"
// is logged and skipped, never returned as an error, so that command replay
// can continue past a bad reference.
type Store struct {
	mu        sync.RWMutex
	name      string
	order     []string
	functions map[string]*model.Function
	observers []Observer
	log       *slog.Logger
}

// New creates an empty store for a project with the given display name.
func New(name string) *Store {
	return &Store{
		name:      name,
		functions: make(map[string]*model.Function),
		log:       slog.Default(),
	}
}

// FromProject builds a store preloaded with the project's functions.
// Functions without a unique ID are assigned one.
func FromProject(p *model.Project) *Store {
	s := New(p.Name)
	for _, fn := range p.Functions {
		c := fn.Clone()
		if c.UniqueID == "" {
			c.UniqueID = uuid.NewString()
		}
		s.functions[c.UniqueID] = c
		s.order = append(s.order, c.UniqueID)
	}
	return s
}

// Subscribe registers an observer called after each mutation. Observers run
// synchronously on the mutating goroutine and must not call back into the
// store's write API.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// ProjectName returns the project's display name.
func (s *Store) ProjectName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// CreateFunction appends a new function and returns its unique ID. When
// initial is non-nil its aspect values seed the new record. Never fails.
func (s *Store) CreateFunction(initial *model.Function) string {
	s.mu.Lock()
	fn := model.NewFunction(uuid.NewString())
	if initial != nil {
		fn.Identifier = initial.Identifier
		fn.Signature = initial.Signature
		fn.Specification = initial.Specification
		fn.Implementation = initial.Implementation
		fn.RenderedCode = initial.RenderedCode
	}
	s.functions[fn.UniqueID] = fn
	s.order = append(s.order, fn.UniqueID)
	s.mu.Unlock()

	s.notify()
	return fn.UniqueID
}

// UpdateFunction replaces one or more whole aspects (and/or the rendered
// code) on the referenced function. A generation-sourced write (lifecycle
// autogenerated) against a locked aspect is refused and logged; user-sourced
// writes always land. No-op with a warning when id does not resolve.
func (s *Store) UpdateFunction(id string, u Update) {
	s.mu.Lock()
	fn, ok := s.functions[id]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("update for unknown function", "unique_id", id)
		return
	}
	for _, au := range u.Aspects {
		if !au.Aspect.Valid() {
			s.log.Warn("update names unknown aspect", "unique_id", id, "aspect", string(au.Aspect))
			continue
		}
		current := fn.AspectValue(au.Aspect)
		if current.Lifecycle == model.LifecycleLocked && !au.Value.Lifecycle.UserAuthored() {
			s.log.Warn("refusing generated write to locked aspect",
				"unique_id", id, "aspect", string(au.Aspect))
			continue
		}
		fn.SetAspect(au.Aspect, au.Value)
	}
	if u.RenderedCode != nil {
		fn.RenderedCode = *u.RenderedCode
	}
	s.mu.Unlock()

	s.notify()
}

// RemoveFunction deletes the function. No-op with a warning when not found.
// Dangling call-text references to the removed name are expected and left in
// place; the store never rewrites text.
func (s *Store) RemoveFunction(id string) {
	s.mu.Lock()
	if _, ok := s.functions[id]; !ok {
		s.mu.Unlock()
		s.log.Warn("remove for unknown function", "unique_id", id)
		return
	}
	delete(s.functions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify()
}

// Get returns a copy of the function with the given unique ID.
func (s *Store) Get(id string) (*model.Function, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.functions[id]
	if !ok {
		return nil, false
	}
	return fn.Clone(), true
}

// FindByName resolves an identifier text to a function by exact match, first
// in insertion order. Identifier texts are not required to be unique; the
// first match wins. This is the single resolution rule used everywhere
// (scanner, executor, duplicate detection).
func (s *Store) FindByName(name string) (*model.Function, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if fn := s.functions[id]; fn.Identifier.Text == name {
			return fn.Clone(), true
		}
	}
	return nil, false
}

// List returns copies of all functions in insertion order.
func (s *Store) List() []*model.Function {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Function, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.functions[id].Clone())
	}
	return out
}

// Len returns the number of functions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.functions)
}

// Project returns a snapshot of the store as a Project value.
func (s *Store) Project() *model.Project {
	return &model.Project{
		Name:      s.ProjectName(),
		Functions: s.List(),
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, o := range observers {
		o()
	}
}
