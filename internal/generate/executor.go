package generate

import (
	"log/slog"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/command"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/scan"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/store"
)

// ApplyReport summarizes one drain of the command queue.
type ApplyReport struct {
	Applied int
	Skipped int
	// Discovered lists names of functions auto-created because generated
	// implementation text referenced them.
	Discovered []string
}

// Executor drains a FIFO queue of validated commands against the store.
// Applying an implementation update may append create_function commands for
// newly discovered call references, so the queue can grow while draining.
type Executor struct {
	store *store.Store
	log   *slog.Logger
}

// NewExecutor creates an executor over the given store.
func NewExecutor(s *store.Store) *Executor {
	return &Executor{store: s, log: slog.Default()}
}

// Apply executes cmds strictly in FIFO order. Commands are never reordered;
// a command that targets a function created earlier in the same batch is
// correct only if queued after that creation. Resolution failures are logged
// and skipped so the rest of the batch still applies.
//
// The drain terminates: creations are only enqueued for names not yet known
// and not already pending, so the set of known names grows strictly and is
// bounded by the distinct names mentioned in the batch.
func (e *Executor) Apply(cmds []command.Command) *ApplyReport {
	report := &ApplyReport{}

	queue := make([]command.Command, len(cmds))
	copy(queue, cmds)

	// Names with a creation already queued in this drain; guards against
	// duplicate creations before the pending command executes. Entries are
	// never removed: once the creation runs, FindByName resolves the name,
	// and until then the pending mark is exactly what prevents a second
	// creation for it.
	pending := make(map[string]bool)

	for len(queue) > 0 {
		cmd := queue[0]
		queue = queue[1:]

		switch cmd.Type {
		case command.TypeCreateFunction:
			e.applyCreate(cmd)
			report.Applied++

		case command.TypeDeleteFunction:
			fn, ok := e.store.FindByName(cmd.FunctionName)
			if !ok {
				e.log.Warn("delete target not found", "function", cmd.FunctionName)
				report.Skipped++
				continue
			}
			e.store.RemoveFunction(fn.UniqueID)
			report.Applied++

		case command.TypeUpdateAspect:
			fn, ok := e.store.FindByName(cmd.FunctionName)
			if !ok {
				e.log.Warn("update target not found",
					"function", cmd.FunctionName, "aspect", string(cmd.Aspect))
				report.Skipped++
				continue
			}
			e.store.UpdateFunction(fn.UniqueID, store.Update{
				Aspects: []store.AspectUpdate{{
					Aspect: cmd.Aspect,
					Value:  model.AspectValue{Text: cmd.Value, Lifecycle: model.LifecycleAutogenerated},
				}},
			})
			report.Applied++

			if cmd.Aspect == model.AspectImplementation {
				for _, name := range scan.Unresolved(cmd.Value, e.store) {
					if pending[name] {
						continue
					}
					pending[name] = true
					queue = append(queue, command.NewCreateFunction(name))
					report.Discovered = append(report.Discovered, name)
					e.log.Info("discovered function reference", "name", name)
				}
			}

		case command.TypeUpdateRenderedCode:
			fn, ok := e.store.FindByName(cmd.FunctionName)
			if !ok {
				e.log.Warn("rendered-code target not found", "function", cmd.FunctionName)
				report.Skipped++
				continue
			}
			value := cmd.Value
			e.store.UpdateFunction(fn.UniqueID, store.Update{RenderedCode: &value})
			report.Applied++

		default:
			// The validator admits only the four known types; reaching this
			// means a consumer was not updated for a new command kind.
			e.log.Error("unhandled command type", "type", string(cmd.Type))
			report.Skipped++
		}
	}

	return report
}

// applyCreate creates an empty function first so the record has a stable
// identity, then populates it with the command's aspect data.
func (e *Executor) applyCreate(cmd command.Command) {
	id := e.store.CreateFunction(nil)
	if cmd.Function == nil {
		return
	}
	e.store.UpdateFunction(id, store.Update{
		Aspects: []store.AspectUpdate{
			{Aspect: model.AspectIdentifier, Value: cmd.Function.Identifier},
			{Aspect: model.AspectSignature, Value: cmd.Function.Signature},
			{Aspect: model.AspectSpecification, Value: cmd.Function.Specification},
			{Aspect: model.AspectImplementation, Value: cmd.Function.Implementation},
		},
	})
}
