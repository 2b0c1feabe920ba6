// Package generate implements the progressive aspect-generation protocol:
// deciding which aspects of a function to regenerate after a user edit,
// invoking the external generation service, and applying the validated
// command batch to the function graph store.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/command"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/llm"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/observability"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/snapshot"
)

// TriggerPayload is the request-side description of the user edit that
// started a generation cycle.
type TriggerPayload struct {
	EditedFunctionIdentifier    string         `json:"editedFunctionIdentifier"`
	EditedAspect                model.Aspect   `json:"editedAspect"`
	EditedValue                 string         `json:"editedValue"`
	DownstreamAspectsToGenerate []model.Aspect `json:"downstreamAspectsToGenerate"`
}

// Request is the full generation service request: the packaged graph plus the
// trigger.
type Request struct {
	Snapshot *snapshot.PackagedGraph `json:"snapshot"`
	Trigger  TriggerPayload          `json:"trigger"`
	// RelatedContext optionally carries specification texts of functions
	// similar to the edited one, retrieved from the vector index.
	RelatedContext []string `json:"-"`
}

// Service is the external generation service contract. Implementations must
// return a fully validated envelope or an error; a transport failure,
// truncated response, or unparseable body yields an error and zero commands,
// never a partial batch.
type Service interface {
	Generate(ctx context.Context, req *Request) (*command.Envelope, error)
}

// ContextRetriever finds specification texts related to a query text.
// Optional; a nil retriever disables related-function context.
type ContextRetriever interface {
	Related(ctx context.Context, text string, topK int) ([]string, error)
}

const systemPrompt = `You are the generation backend of a function-design canvas.
The user iteratively defines functions, each with four ordered aspects:
identifier, signature, specification, implementation. When the user edits one
aspect you fill in the downstream aspects listed in the trigger.

Respond with a single JSON object and nothing else:
{"rationale": "...", "commands": [...]}

Each command must be one of:
{"type": "create_function", "functionName": "...", "function": {"identifier": {"text": "...", "lifecycle": "autogenerated"}, "signature": {...}, "specification": {...}, "implementation": {...}}}
{"type": "delete_function", "functionName": "..."}
{"type": "update_aspect", "functionName": "...", "aspect": "identifier"|"signature"|"specification"|"implementation", "value": "..."}
{"type": "update_rendered_code", "functionName": "...", "value": "..."}

Rules:
- Only emit update_aspect commands for the aspects listed in
  downstreamAspectsToGenerate, in that order.
- Calls to other functions inside implementation text must be literal
  name(...) tokens, no markdown, no backticks.
- Reference functions by their identifier text exactly as it appears in the
  snapshot.`

// LLMService implements Service on top of an llm.Provider.
type LLMService struct {
	provider  llm.Provider
	opts      *llm.RequestOptions
	retriever ContextRetriever
	log       *slog.Logger
}

// NewLLMService builds the production generation service. retriever may be
// nil.
func NewLLMService(provider llm.Provider, opts *llm.RequestOptions, retriever ContextRetriever) *LLMService {
	return &LLMService{
		provider:  provider,
		opts:      opts,
		retriever: retriever,
		log:       slog.Default(),
	}
}

// Generate invokes the LLM and validates its output into a command envelope.
func (s *LLMService) Generate(ctx context.Context, req *Request) (*command.Envelope, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	if s.retriever != nil && len(req.RelatedContext) == 0 {
		query := req.Trigger.EditedValue
		related, err := s.retriever.Related(ctx, query, 3)
		if err != nil {
			// Related context is advisory; a retrieval failure must not
			// abort the cycle.
			s.log.Warn("related-context retrieval failed", "error", err)
		} else {
			req.RelatedContext = related
		}
	}

	userMsg, err := buildUserMessage(req)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	llmCtx, span := observability.StartLLMSpan(ctx, s.provider.Name(), "")
	start := time.Now()
	resp, err := s.provider.Complete(llmCtx, llm.SingleTurn(systemPrompt, userMsg), s.opts)
	if err != nil {
		span.End()
		return nil, fmt.Errorf("generation call: %w", err)
	}
	observability.RecordLLMMetrics(span, resp.InputTokens, resp.OutputTokens, time.Since(start))
	span.End()
	if resp.Truncated() {
		return nil, fmt.Errorf("generation response truncated (stop reason %q)", resp.StopReason)
	}

	body := llm.StripMarkdownFences(resp.Content)
	env, err := command.ParseEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("generation response: %w", err)
	}
	if env.Dropped > 0 {
		s.log.Warn("dropped invalid commands from generation response", "dropped", env.Dropped)
	}
	env.InputTokens = resp.InputTokens
	env.OutputTokens = resp.OutputTokens
	return env, nil
}

func buildUserMessage(req *Request) (string, error) {
	snap, err := req.Snapshot.MarshalIndent()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Project snapshot:\n")
	b.Write(snap)
	b.WriteString("\n\nTrigger:\n")
	fmt.Fprintf(&b, "- edited function: %s\n", req.Trigger.EditedFunctionIdentifier)
	fmt.Fprintf(&b, "- edited aspect: %s\n", req.Trigger.EditedAspect)
	fmt.Fprintf(&b, "- new value:\n%s\n", req.Trigger.EditedValue)
	fmt.Fprintf(&b, "- aspects to generate: %s\n", joinAspects(req.Trigger.DownstreamAspectsToGenerate))

	if len(req.RelatedContext) > 0 {
		b.WriteString("\nSpecifications of related functions in this project:\n")
		for _, rc := range req.RelatedContext {
			fmt.Fprintf(&b, "- %s\n", rc)
		}
	}
	return b.String(), nil
}

func joinAspects(aspects []model.Aspect) string {
	if len(aspects) == 0 {
		return "(none)"
	}
	parts := make([]string, len(aspects))
	for i, a := range aspects {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}
