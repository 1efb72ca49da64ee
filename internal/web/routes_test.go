package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/parleyhq/parley/internal/challenge"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/tokens"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubClient struct{}

func (stubClient) Complete(ctx context.Context, req completion.Request) (*completion.Result, error) {
	return &completion.Result{
		Content:          "stub reply",
		PromptTokens:     50,
		CompletionTokens: 20,
		TotalTokens:      70,
		FinishReason:     "stop",
	}, nil
}

func (s stubClient) Stream(ctx context.Context, req completion.Request, emit func(string) error) (*completion.Result, error) {
	return s.Complete(ctx, req)
}

type stubEncoding struct{}

func (stubEncoding) Encode(text string, allowedSpecial, disallowedSpecial []string) []int {
	return make([]int, len(text)/4+1)
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}, &models.Message{}, &models.SessionEvent{}, &models.Challenge{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	chatSvc := chat.New(chat.Opts{
		Client:           stubClient{},
		Counter:          tokens.NewCounterWithLoader(func(string) (tokens.Encoding, error) { return stubEncoding{}, nil }),
		MaxMessageLength: cfg.Session.MaxMessageLength,
		Temperature:      cfg.OpenAI.Temperature,
		MaxOutputTokens:  cfg.OpenAI.MaxTokens,
	})

	router := gin.New()
	registerRoutes(router, db, chatSvc, *cfg)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateSessionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"candidate_name": "Ada Lovelace",
		"time_limit":     1800,
		"token_budget":   5000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}

	var got sessionView
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID == "" || got.Status != "created" {
		t.Errorf("got %+v", got)
	}
	if got.TimeLimit != 1800 || got.TokenBudget != 5000 {
		t.Errorf("limits = %d/%d, want 1800/5000", got.TimeLimit, got.TokenBudget)
	}
}

func TestCreateSessionEndpoint_Defaults(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"candidate_name": "Ada",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}
	var got sessionView
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TimeLimit != 3600 || got.TokenBudget != 50000 || got.ModelName != "gpt-4" {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestCreateSessionEndpoint_MissingName(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"candidate_name": "Ada",
	})
	var created sessionView
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	base := "/api/sessions/" + created.ID

	for _, step := range []struct {
		path string
		want string
	}{
		{"/start", "active"},
		{"/pause", "paused"},
		{"/resume", "active"},
		{"/end", "completed"},
	} {
		w := doJSON(t, router, http.MethodPost, base+step.path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("POST %s status = %d: %s", step.path, w.Code, w.Body)
		}
		var got sessionView
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Status != step.want {
			t.Errorf("after %s status = %q, want %q", step.path, got.Status, step.want)
		}
	}
}

func TestTransitionEndpoint_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/api/sessions/nope/start", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestTimerAndUsageEndpoints(t *testing.T) {
	router, db := newTestRouter(t)
	s, err := session.Create(db, session.Config{
		CandidateName: "Ada", TimeLimit: 3600, TokenBudget: 10000, ModelName: "gpt-4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/sessions/"+s.ID+"/timer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("timer status = %d: %s", w.Code, w.Body)
	}
	var snap map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap["state"] != "not_started" {
		t.Errorf("state = %v, want not_started", snap["state"])
	}

	w = doJSON(t, router, http.MethodGet, "/api/sessions/"+s.ID+"/usage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("usage status = %d: %s", w.Code, w.Body)
	}
	var stats map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["remaining_budget"] != float64(10000) {
		t.Errorf("remaining_budget = %v, want 10000", stats["remaining_budget"])
	}
}

func TestExtendEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	s, err := session.Create(db, session.Config{
		CandidateName: "Ada", TimeLimit: 3600, TokenBudget: 10000, ModelName: "gpt-4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+s.ID+"/extend", map[string]any{
		"seconds": 600,
		"tokens":  5000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var got sessionView
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TimeLimit != 4200 || got.TokenBudget != 15000 {
		t.Errorf("limits = %d/%d, want 4200/15000", got.TimeLimit, got.TokenBudget)
	}

	w = doJSON(t, router, http.MethodPost, "/api/sessions/"+s.ID+"/extend", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty extend status = %d, want 400", w.Code)
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	s, err := session.Create(db, session.Config{
		CandidateName: "Ada", TimeLimit: 3600, TokenBudget: 10000, ModelName: "gpt-4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := session.Start(db, s.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+s.ID+"/messages", map[string]any{
		"content": "How should I approach this?",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var reply map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply["content"] != "stub reply" {
		t.Errorf("content = %v, want stub reply", reply["content"])
	}

	// Listing shows both turns.
	w = doJSON(t, router, http.MethodGet, "/api/sessions/"+s.ID+"/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listed.Count != 2 {
		t.Errorf("count = %d, want 2", listed.Count)
	}
}

func TestSendMessageEndpoint_RejectionIs400(t *testing.T) {
	router, db := newTestRouter(t)
	s, err := session.Create(db, session.Config{
		CandidateName: "Ada", TimeLimit: 3600, TokenBudget: 10000, ModelName: "gpt-4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Not started yet: rejected, not an internal error.
	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+s.ID+"/messages", map[string]any{
		"content": "hello",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body)
	}

	w = doJSON(t, router, http.MethodPost, "/api/sessions/missing/messages", map[string]any{
		"content": "hello",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestChallengesEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	if err := challenge.SeedTemplates(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/challenges", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Count      int             `json:"count"`
		Challenges []challengeView `json:"challenges"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 3 {
		t.Errorf("count = %d, want 3 seeded templates", got.Count)
	}

	w = doJSON(t, router, http.MethodGet, "/api/challenges?category=debugging", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("filtered count = %d, want 1", got.Count)
	}
}

func TestListSessionsEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	for i := 0; i < 3; i++ {
		if _, err := session.Create(db, session.Config{
			CandidateName: fmt.Sprintf("c%d", i), TimeLimit: 60, TokenBudget: 100, ModelName: "gpt-4",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 3 {
		t.Errorf("count = %d, want 3", got.Count)
	}
}
