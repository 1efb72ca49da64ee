package completion

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Client against any OpenAI-compatible chat completion
// endpoint.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI builds a client for the given API key. An optional base URL
// redirects calls to a compatible alternative provider.
func NewOpenAI(apiKey, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("completion: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...)}, nil
}

func buildParams(req Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Complete performs a single-shot completion with retry on transient
// failures.
func (o *OpenAI) Complete(ctx context.Context, req Request) (*Result, error) {
	params := buildParams(req)

	return withRetry(ctx, baseDelay, func() (*Result, error) {
		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, &Error{Kind: KindUnexpected, Err: fmt.Errorf("empty response from API")}
		}

		choice := resp.Choices[0]
		log.Printf("completion: %d tokens (prompt: %d, completion: %d)",
			resp.Usage.TotalTokens, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		return &Result{
			Content:          choice.Message.Content,
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
			FinishReason:     string(choice.FinishReason),
			Model:            resp.Model,
		}, nil
	})
}

// Stream performs a completion and emits reply fragments as they arrive.
// No retry: streams back presentation surfaces where a stale retry is
// worse than a visible error.
func (o *OpenAI) Stream(ctx context.Context, req Request, emit func(delta string) error) (*Result, error) {
	params := buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	res := &Result{Model: req.Model}
	var content strings.Builder

	for stream.Next() {
		chunk := stream.Current()

		// The final chunk may carry only usage.
		if chunk.Usage.TotalTokens > 0 {
			res.PromptTokens = int(chunk.Usage.PromptTokens)
			res.CompletionTokens = int(chunk.Usage.CompletionTokens)
			res.TotalTokens = int(chunk.Usage.TotalTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if err := emit(choice.Delta.Content); err != nil {
				return nil, &Error{Kind: KindUnexpected, Err: err}
			}
		}
		if choice.FinishReason != "" {
			res.FinishReason = string(choice.FinishReason)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, classify(err)
	}

	res.Content = content.String()
	return res, nil
}
