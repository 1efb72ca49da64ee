package completion

import "testing"

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI("", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
	if _, err := NewOpenAI("sk-test", ""); err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
}

func TestBuildParams(t *testing.T) {
	params := buildParams(Request{
		Model: "gpt-4",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})

	if string(params.Model) != "gpt-4" {
		t.Errorf("Model = %q, want gpt-4", params.Model)
	}
	if len(params.Messages) != 3 {
		t.Errorf("Messages = %d, want 3", len(params.Messages))
	}
	if params.Temperature.Value != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", params.Temperature.Value)
	}
	if params.MaxTokens.Value != 500 {
		t.Errorf("MaxTokens = %v, want 500", params.MaxTokens.Value)
	}
}

func TestBuildParams_NoMaxTokens(t *testing.T) {
	params := buildParams(Request{Model: "gpt-4", Messages: []Message{{Role: "user", Content: "x"}}})
	if params.MaxTokens.Valid() {
		t.Error("MaxTokens should be omitted when the request has no cap")
	}
}
