// Package completion wraps the external chat-completion API behind a
// narrow contract: one-shot calls for the committed exchange path and a
// streamed variant for presentation surfaces.
package completion

import "context"

// Message is one {role, content} turn submitted to the API.
type Message struct {
	Role    string
	Content string
}

// Request describes one completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int // cap on output tokens; 0 means provider default
}

// Result is a finished completion with the authoritative token usage
// reported by the API.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	FinishReason     string
	Model            string
}

// Client is the completion collaborator contract.
type Client interface {
	// Complete performs a single-shot completion, retrying transient
	// failures internally before giving up.
	Complete(ctx context.Context, req Request) (*Result, error)

	// Stream performs a completion, invoking emit for each reply fragment
	// as it arrives. Used only by presentation layers; the committed
	// exchange path calls Complete.
	Stream(ctx context.Context, req Request, emit func(delta string) error) (*Result, error)
}
