package llm

// Response wraps an LLM completion result.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// Truncated reports whether the completion was cut off before the model
// reached its natural end of turn. A truncated response must not be parsed
// for commands.
func (r *Response) Truncated() bool {
	switch r.StopReason {
	case "max_tokens", "length":
		return true
	}
	return false
}
