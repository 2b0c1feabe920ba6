package command

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the top-level response shape of the generation service.
type Envelope struct {
	Rationale string    `json:"rationale"`
	Commands  []Command `json:"commands"`
	// Dropped counts candidates that failed validation and were discarded.
	Dropped int `json:"-"`
	// InputTokens and OutputTokens carry the LLM usage behind this envelope.
	// Zero when the envelope was not produced by a live completion.
	InputTokens  int `json:"-"`
	OutputTokens int `json:"-"`
}

// ParseEnvelope decodes a generation service response body. The body must be
// a single JSON object; anything else is a parse error and yields no
// commands. A missing or non-array commands field also yields zero commands,
// without error. Individual candidates that fail validation are dropped; the
// rest of the batch survives.
func ParseEnvelope(body string) (*Envelope, error) {
	var raw struct {
		Rationale json.RawMessage `json:"rationale"`
		Commands  json.RawMessage `json:"commands"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON envelope: %w", err)
	}

	env := &Envelope{}
	if len(raw.Rationale) > 0 {
		// A non-string rationale is tolerated; the field is informational.
		_ = json.Unmarshal(raw.Rationale, &env.Rationale)
	}

	trimmed := bytes.TrimSpace(raw.Commands)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return env, nil
	}
	var candidates []json.RawMessage
	if err := json.Unmarshal(trimmed, &candidates); err != nil {
		return env, nil
	}

	for _, candidate := range candidates {
		cmd, err := Validate(candidate)
		if err != nil {
			env.Dropped++
			continue
		}
		env.Commands = append(env.Commands, cmd)
	}
	return env, nil
}
