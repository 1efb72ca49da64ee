// Package tokens estimates token counts for text and chat message lists.
// Counts here feed pre-flight budget checks and UI estimates only; the
// authoritative numbers come from the completion API response afterwards.
package tokens

import (
	"log"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackCharsPerToken is the rough chars-per-token ratio used when an
// exact encoding is unavailable.
const fallbackCharsPerToken = 4

// replyPrimingTokens is charged once per request: every reply is primed
// with an assistant header.
const replyPrimingTokens = 3

// Overhead holds the fixed framing tokens a model family charges per chat
// message beyond the raw content.
type Overhead struct {
	PerMessage int
	PerName    int
}

// modelOverheads maps model-name prefixes to framing costs. The longest
// matching prefix wins; unknown models use the gpt-4 scheme.
var modelOverheads = map[string]Overhead{
	"gpt-4":         {PerMessage: 3, PerName: 1},
	"gpt-3.5-turbo": {PerMessage: 4, PerName: -1},
}

var defaultOverhead = Overhead{PerMessage: 3, PerName: 1}

// OverheadFor returns the framing cost table for a model.
func OverheadFor(model string) Overhead {
	best := ""
	for prefix := range modelOverheads {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return defaultOverhead
	}
	return modelOverheads[best]
}

// Message is one {role, content} turn as it would be submitted to the
// completion API.
type Message struct {
	Role    string
	Content string
	Name    string
}

// Encoding is the subset of tiktoken used here, extracted so tests can
// substitute a deterministic encoder.
type Encoding interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// Counter produces deterministic, model-aware token estimates. Encoders are
// cached per model behind a mutex; Counter is safe for concurrent use.
type Counter struct {
	mu       sync.Mutex
	encoders map[string]Encoding
	load     func(model string) (Encoding, error)
}

// NewCounter returns a Counter backed by tiktoken encodings.
func NewCounter() *Counter {
	return &Counter{
		encoders: make(map[string]Encoding),
		load:     loadEncoding,
	}
}

// NewCounterWithLoader returns a Counter with a custom encoding loader.
// Callers outside tests should use NewCounter.
func NewCounterWithLoader(load func(model string) (Encoding, error)) *Counter {
	return &Counter{
		encoders: make(map[string]Encoding),
		load:     load,
	}
}

func loadEncoding(model string) (Encoding, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return enc, nil
	}
	// cl100k_base covers the gpt-4 and gpt-3.5-turbo families.
	return tiktoken.GetEncoding("cl100k_base")
}

func (c *Counter) encodingFor(model string) (Encoding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encoders[model]; ok {
		return enc, nil
	}
	enc, err := c.load(model)
	if err != nil {
		return nil, err
	}
	c.encoders[model] = enc
	return enc, nil
}

// CountText returns the token count of text under the given model's
// encoding, falling back to a chars/4 estimate when no encoding can be
// loaded.
func (c *Counter) CountText(text, model string) int {
	if text == "" {
		return 0
	}
	enc, err := c.encodingFor(model)
	if err != nil {
		log.Printf("tokens: encoding for %s unavailable, using heuristic: %v", model, err)
		return len(text) / fallbackCharsPerToken
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessages returns the token count of a full chat request, including
// the per-message framing overhead and the reply priming tokens the API
// charges on top of raw content.
func (c *Counter) CountMessages(msgs []Message, model string) int {
	if len(msgs) == 0 {
		return 0
	}
	enc, err := c.encodingFor(model)
	if err != nil {
		log.Printf("tokens: encoding for %s unavailable, using heuristic: %v", model, err)
		total := 0
		for _, m := range msgs {
			total += len(m.Content) / fallbackCharsPerToken
		}
		return total
	}

	oh := OverheadFor(model)
	n := 0
	for _, m := range msgs {
		n += oh.PerMessage
		n += len(enc.Encode(m.Role, nil, nil))
		n += len(enc.Encode(m.Content, nil, nil))
		if m.Name != "" {
			n += len(enc.Encode(m.Name, nil, nil))
			n += oh.PerName
		}
	}
	n += replyPrimingTokens
	return n
}
