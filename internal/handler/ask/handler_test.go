package ask

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	brokerModel "github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	"github.com/zhouzirui/codetutor/backend/internal/service/ai"
	brokerService "github.com/zhouzirui/codetutor/backend/internal/service/broker"
	routerService "github.com/zhouzirui/codetutor/backend/internal/service/router"
)

type stubGenerator struct {
	calls   int
	history []chat.Exchange
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, req ai.Request) (ai.Reply, error) {
	g.calls++
	g.history = req.History
	if g.err != nil {
		return ai.Reply{}, g.err
	}
	return ai.Reply{Text: "Đề bài yêu cầu tính tổng.", Model: "gemini-2.5-flash"}, nil
}

func (g *stubGenerator) Classify(_ context.Context, _, _ string) (ai.Reply, error) {
	g.calls++
	if g.err != nil {
		return ai.Reply{}, g.err
	}
	return ai.Reply{Text: "about_problem", Model: "gemini-2.5-flash"}, nil
}

func setupRouter(t *testing.T, gen *stubGenerator) (*chi.Mux, *brokerService.Service, *credential.MemoryStore) {
	t.Helper()
	store := credential.NewMemoryStore()
	brokerSvc := brokerService.NewService(store, nil, nil)
	prompts, err := ai.NewModePromptManager()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	routerSvc := routerService.NewService(brokerSvc, credential.NewPool([]string{"AIzaSharedOne"}), gen, prompts)

	r := chi.NewRouter()
	New(routerSvc).RegisterRoutes(r)
	return r, brokerSvc, store
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestAskExam(t *testing.T) {
	gen := &stubGenerator{}
	r, _, _ := setupRouter(t, gen)

	resp := post(r, "/ask", map[string]any{
		"prompt": "giải thích đề bài này",
		"mode":   "exam",
		"history": []map[string]string{
			{"role": "user", "text": "xin chào"},
			{"role": "model", "text": "Chào bạn"},
		},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out map[string]string
	json.Unmarshal(resp.Body.Bytes(), &out)
	if out["model"] != "gemini-2.5-flash" || out["reply"] == "" {
		t.Fatalf("unexpected body %v", out)
	}
	if len(gen.history) != 2 || gen.history[1].Role != chat.RoleAssistant {
		t.Fatalf("history not normalised: %+v", gen.history)
	}
}

func TestAskExamRefusal(t *testing.T) {
	gen := &stubGenerator{}
	r, _, _ := setupRouter(t, gen)

	resp := post(r, "/api/ask", map[string]any{"prompt": "viết code cho bài này", "mode": "exam"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out map[string]string
	json.Unmarshal(resp.Body.Bytes(), &out)
	if out["model"] != routerService.FilteredModel {
		t.Fatalf("expected filtered model, got %v", out)
	}
	if gen.calls != 0 {
		t.Fatalf("backend called %d times", gen.calls)
	}
}

func TestAskPracticeRequiresToken(t *testing.T) {
	gen := &stubGenerator{}
	r, brokerSvc, store := setupRouter(t, gen)

	resp := post(r, "/ask", map[string]any{"prompt": "xin chào", "mode": "practice"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	store.SaveCredential("B21DCCN001", "An", "AIzaSyPersonalCredentialForAskTest01")
	token, err := brokerSvc.IssueToken(context.Background(), "B21DCCN001")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	resp = post(r, "/ask", map[string]any{"prompt": "xin chào", "mode": "practice", "token": token})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gen.calls != 1 {
		t.Fatalf("expected one backend call, got %d", gen.calls)
	}
}

func TestAskStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{brokerModel.ErrRateLimited, http.StatusTooManyRequests},
		{brokerModel.ErrUnauthorized, http.StatusUnauthorized},
		{brokerModel.ErrUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r, _, _ := setupRouter(t, &stubGenerator{err: tc.err})
		resp := post(r, "/ask", map[string]any{"prompt": "cách nộp bài", "mode": "teacher"})
		if resp.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, resp.Code)
		}
	}
}

func TestAskRejectsBadInput(t *testing.T) {
	r, _, _ := setupRouter(t, &stubGenerator{})

	bodies := []map[string]any{
		{"prompt": "x", "mode": "homework"},
		{"prompt": "", "mode": "exam"},
		{"prompt": "x", "mode": "exam", "history": []map[string]string{{"role": "system", "text": "x"}}},
	}
	for _, body := range bodies {
		if resp := post(r, "/ask", body); resp.Code != http.StatusBadRequest {
			t.Fatalf("%v: expected 400, got %d", body, resp.Code)
		}
	}
}

func TestClassify(t *testing.T) {
	gen := &stubGenerator{}
	r, brokerSvc, store := setupRouter(t, gen)

	resp := post(r, "/classify", map[string]string{"prompt": "phân loại", "token": "missing"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	store.SaveCredential("B21DCCN001", "An", "AIzaSyPersonalCredentialForAskTest01")
	token, _ := brokerSvc.IssueToken(context.Background(), "B21DCCN001")

	resp = post(r, "/api/classify", map[string]string{"prompt": "phân loại", "token": token})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out map[string]string
	json.Unmarshal(resp.Body.Bytes(), &out)
	if out["reply"] != "about_problem" {
		t.Fatalf("unexpected body %v", out)
	}
}
