package router_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zhouzirui/codetutor/backend/internal/analysis/intent"
	model "github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	"github.com/zhouzirui/codetutor/backend/internal/service/ai"
	"github.com/zhouzirui/codetutor/backend/internal/service/router"
	"github.com/zhouzirui/codetutor/backend/internal/session"
)

type fakeTokens map[string]string

func (f fakeTokens) ResolveCredential(_ context.Context, token string) (string, error) {
	if cred, ok := f[token]; ok {
		return cred, nil
	}
	return "", model.ErrUnauthorized
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []ai.Request
	bare     []string
	err      error
}

func (g *fakeGenerator) Generate(_ context.Context, req ai.Request) (ai.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return ai.Reply{}, g.err
	}
	return ai.Reply{Text: "answer", Model: "gemini-2.5-flash"}, nil
}

func (g *fakeGenerator) Classify(_ context.Context, cred, prompt string) (ai.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bare = append(g.bare, cred+"|"+prompt)
	if g.err != nil {
		return ai.Reply{}, g.err
	}
	return ai.Reply{Text: "label", Model: "gemini-2.5-flash"}, nil
}

type fakeInstructions map[chat.Mode]string

func (f fakeInstructions) Instruction(m chat.Mode) (string, bool) {
	s, ok := f[m]
	return s, ok
}

var instructions = fakeInstructions{
	chat.ModeExam:     "exam instruction",
	chat.ModeTeacher:  "teacher instruction",
	chat.ModePractice: "practice instruction",
}

func newRouter(t *testing.T, gen *fakeGenerator, shared ...string) *router.Service {
	t.Helper()
	tokens := fakeTokens{"tok-1": "AIzaPersonalCredentialForCaller01"}
	return router.NewService(tokens, credential.NewPool(shared), gen, instructions,
		router.WithLogger(zaptest.NewLogger(t)))
}

func TestAskExamUsesSharedPoolAndExamInstruction(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(t, gen, "AIzaShared1", "AIzaShared2")

	history := []chat.Exchange{chat.UserExchange("hi"), chat.AssistantExchange("hello")}
	reply, err := r.Ask(context.Background(), router.Request{
		Mode:    chat.ModeExam,
		Prompt:  "giải thích đề bài này",
		History: history,
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", reply.Text)

	require.Len(t, gen.requests, 1)
	got := gen.requests[0]
	assert.Equal(t, "AIzaShared1", got.Credential)
	assert.Equal(t, "exam instruction", got.Instruction)
	assert.Equal(t, history, got.History)
}

func TestAskTeacherRotatesPool(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(t, gen, "AIzaShared1", "AIzaShared2")

	for i := 0; i < 3; i++ {
		_, err := r.Ask(context.Background(), router.Request{Mode: chat.ModeTeacher, Prompt: "làm sao nộp bài?"})
		require.NoError(t, err)
	}

	var creds []string
	for _, req := range gen.requests {
		creds = append(creds, req.Credential)
		assert.Equal(t, "teacher instruction", req.Instruction)
	}
	assert.Equal(t, []string{"AIzaShared1", "AIzaShared2", "AIzaShared1"}, creds)
}

func TestAskExamRefusesSolutionRequestsWithoutBackend(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(t, gen, "AIzaShared1")

	reply, err := r.Ask(context.Background(), router.Request{Mode: chat.ModeExam, Prompt: "viết code cho bài này"})
	require.NoError(t, err)
	assert.Equal(t, router.FilteredModel, reply.Model)
	assert.Equal(t, intent.Default().Refusal(), reply.Text)
	assert.Empty(t, gen.requests, "backend must not be called")
}

func TestAskExamIgnoresProblemContextWhenFiltering(t *testing.T) {
	problem := session.Problem{Title: "Tổng hai số", Description: "Cho hai số nguyên a và b, in ra a+b."}

	t.Run("solution request is refused", func(t *testing.T) {
		gen := &fakeGenerator{}
		r := newRouter(t, gen, "AIzaShared1")

		prompt := session.BuildContextPrompt(problem, "viết code cho bài này")
		reply, err := r.Ask(context.Background(), router.Request{Mode: chat.ModeExam, Prompt: prompt})
		require.NoError(t, err)
		assert.Equal(t, router.FilteredModel, reply.Model)
		assert.Empty(t, gen.requests, "backend must not be called")
	})

	t.Run("question about the problem keeps its context", func(t *testing.T) {
		gen := &fakeGenerator{}
		r := newRouter(t, gen, "AIzaShared1")

		prompt := session.BuildContextPrompt(problem, "giải thích output được tính như thế nào")
		reply, err := r.Ask(context.Background(), router.Request{Mode: chat.ModeExam, Prompt: prompt})
		require.NoError(t, err)
		assert.Equal(t, "answer", reply.Text)
		require.Len(t, gen.requests, 1)
		assert.Equal(t, prompt, gen.requests[0].Prompt)
	})
}

func TestAskFilterOnlyAppliesToExam(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(t, gen, "AIzaShared1")

	reply, err := r.Ask(context.Background(), router.Request{Mode: chat.ModePractice, Token: "tok-1", Prompt: "viết code cho bài này"})
	require.NoError(t, err)
	assert.Equal(t, "answer", reply.Text)
	require.Len(t, gen.requests, 1)
	assert.Equal(t, "AIzaPersonalCredentialForCaller01", gen.requests[0].Credential)
	assert.Equal(t, "practice instruction", gen.requests[0].Instruction)
}

func TestAskPracticeWithoutTokenFailsFast(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(t, gen, "AIzaShared1")

	for _, token := range []string{"", "revoked-token"} {
		_, err := r.Ask(context.Background(), router.Request{Mode: chat.ModePractice, Token: token, Prompt: "xin chào"})
		require.ErrorIs(t, err, model.ErrUnauthorized)
		assert.Contains(t, err.Error(), "practice mode requires personal credential")
	}
	assert.Empty(t, gen.requests)
}

func TestAskValidatesInput(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(t, gen, "AIzaShared1")

	_, err := r.Ask(context.Background(), router.Request{Mode: "homework", Prompt: "x"})
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = r.Ask(context.Background(), router.Request{Mode: chat.ModeExam, Prompt: "   "})
	require.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Empty(t, gen.requests)
}

func TestAskEmptyPoolIsUnknown(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(t, gen)

	_, err := r.Ask(context.Background(), router.Request{Mode: chat.ModeTeacher, Prompt: "hello"})
	require.ErrorIs(t, err, model.ErrUnknown)
	assert.Empty(t, gen.requests)
}

func TestAskSurfacesBackendErrors(t *testing.T) {
	gen := &fakeGenerator{err: model.ErrRateLimited}
	r := newRouter(t, gen, "AIzaShared1")

	_, err := r.Ask(context.Background(), router.Request{Mode: chat.ModeTeacher, Prompt: "hello"})
	require.ErrorIs(t, err, model.ErrRateLimited)
}

func TestClassifyRequiresActiveToken(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(t, gen, "AIzaShared1")

	_, err := r.Classify(context.Background(), "", "is this about syntax?")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = r.Classify(context.Background(), "unknown", "is this about syntax?")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	reply, err := r.Classify(context.Background(), "tok-1", "is this about syntax?")
	require.NoError(t, err)
	assert.Equal(t, "label", reply.Text)
	assert.Equal(t, []string{"AIzaPersonalCredentialForCaller01|is this about syntax?"}, gen.bare)
}
