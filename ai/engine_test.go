package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"tabletop-chat/backend/pkg/resilience"
	"tabletop-chat/backend/pkg/secrets"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestCLIEngineDefaults(t *testing.T) {
	e := NewCLIEngine("", "")
	assert.Equal(t, "ollama", e.Command)
	assert.Equal(t, []string{"run", "mistral"}, e.Args)
}

func TestCLIEngineFeedsPromptOnStdin(t *testing.T) {
	requireBinary(t, "cat")
	e := &CLIEngine{Command: "cat"}

	out, err := e.Generate(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}

func TestCLIEngineNonZeroExit(t *testing.T) {
	requireBinary(t, "sh")
	e := &CLIEngine{Command: "sh", Args: []string{"-c", "echo model missing >&2; exit 3"}}

	_, err := e.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model missing")
}

func TestCLIEngineHonoursDeadline(t *testing.T) {
	requireBinary(t, "sleep")
	e := &CLIEngine{Command: "sleep", Args: []string{"5"}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Generate(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

type fakeModel struct {
	got  []llms.MessageContent
	resp *llms.ContentResponse
	err  error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.got = messages
	return m.resp, m.err
}

func (m *fakeModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestOllamaEngine(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Aye."}}}}
	e := NewOllamaEngineWithModel(model)

	out, err := e.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Aye.", out)
	require.Len(t, model.got, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.got[0].Role)
}

func TestOllamaEngineNoChoices(t *testing.T) {
	e := NewOllamaEngineWithModel(&fakeModel{resp: &llms.ContentResponse{}})
	_, err := e.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestNewOllamaEngine(t *testing.T) {
	e, err := NewOllamaEngine("http://localhost:11434", "mistral", nil)
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func openAIServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestOpenAIEngine(t *testing.T) {
	srv := openAIServer(t, "  I draw my sword.  ")
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL, "gpt-test")
	out, err := e.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "  I draw my sword.  ", out)
}

func TestOpenAIEngineFromSecrets(t *testing.T) {
	srv := openAIServer(t, "ok")
	defer srv.Close()

	e, err := NewOpenAIEngineFromSecrets(context.Background(), secrets.Static{secrets.KeyOpenAIAPIKey: "sk-test"}, srv.URL, "gpt-test")
	require.NoError(t, err)

	out, err := e.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = NewOpenAIEngineFromSecrets(context.Background(), secrets.Static{}, srv.URL, "gpt-test")
	assert.Error(t, err)
}

func TestGuardedEngineTimeout(t *testing.T) {
	slow := EngineFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	e := NewGuardedEngine(slow, 20*time.Millisecond, nil)

	_, err := e.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuardedEngineOpensBreaker(t *testing.T) {
	calls := 0
	failing := EngineFunc(func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("backend down")
	})
	breaker := resilience.NewCircuitBreaker(resilience.Config{
		Name:             "generator",
		FailureThreshold: 2,
		RetryTimeout:     time.Hour,
	}, nil)
	e := NewGuardedEngine(failing, time.Second, breaker)

	for i := 0; i < 2; i++ {
		_, err := e.Generate(context.Background(), "x")
		require.Error(t, err)
	}
	_, err := e.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, resilience.StateOpen, e.Breaker().State())
}

func TestGuardedEnginePassesOutput(t *testing.T) {
	e := NewGuardedEngine(EngineFunc(func(context.Context, string) (string, error) {
		return "fine", nil
	}), time.Second, resilience.NewCircuitBreaker(resilience.DefaultConfig("generator"), nil))

	out, err := e.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}
