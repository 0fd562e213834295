package config

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/argoproxy/goproxy/internal/config"
	"github.com/argoproxy/goproxy/internal/models"
)

// upstreamStub fakes the Argo backend and records the last forwarded body.
type upstreamStub struct {
	mu       sync.Mutex
	lastBody []byte
	reply    string
	status   int
}

func (s *upstreamStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.lastBody = body
		status := s.status
		s.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("backend exploded"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "embed") {
			_, _ = w.Write([]byte(`{"embedding":[[0.1,0.2],[0.3,0.4]]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": s.reply})
	})
}

func (s *upstreamStub) forwarded() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody
}

func newTestApp(t *testing.T, stub *upstreamStub) *fiber.App {
	t.Helper()
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Host:             "127.0.0.1",
		Port:             "0",
		User:             "svc-user",
		ArgoURL:          server.URL + "/chat",
		ArgoStreamURL:    server.URL + "/chat/stream",
		ArgoEmbeddingURL: server.URL + "/embed",
		NumWorkers:       2,
		Timeout:          5 * time.Second,
		TranslateTools:   true,
	}
	return NewProxy(cfg).buildApp()
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestChatCompletionResolvesAliasAndOverridesUser(t *testing.T) {
	stub := &upstreamStub{reply: "Hello!"}
	app := newTestApp(t, stub)

	resp := doJSON(t, app, http.MethodPost, "/v1/chat/completions",
		`{"model":"argo:gpt-4o","user":"client-user","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	forwarded := stub.forwarded()
	assert.Equal(t, "gpt4o", gjson.GetBytes(forwarded, "model").String())
	assert.Equal(t, "svc-user", gjson.GetBytes(forwarded, "user").String())

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out models.ChatCompletion
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "chat.completion", out.Object)
	assert.Equal(t, "gpt4o", out.Model)
	require.Len(t, out.Choices, 1)
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "Hello!", *out.Choices[0].Message.Content)
	assert.Equal(t, out.Usage.PromptTokens+out.Usage.CompletionTokens, out.Usage.TotalTokens)
}

func TestChatCompletionFakeStreaming(t *testing.T) {
	stub := &upstreamStub{reply: "a fairly long reply that spans multiple fixed-size windows"}
	app := newTestApp(t, stub)

	resp := doJSON(t, app, http.MethodPost, "/v1/chat/completions",
		`{"model":"argo:gpt-o1-mini","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// the upstream must have been asked for a non-streaming reply
	assert.False(t, gjson.GetBytes(stub.forwarded(), "stream").Bool())

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	raw := string(body)

	assert.Equal(t, 1, strings.Count(raw, "data: [DONE]\n\n"))
	assert.True(t, strings.HasSuffix(raw, "data: [DONE]\n\n"))

	var joined strings.Builder
	for _, frame := range strings.Split(raw, "\n\n") {
		payload := strings.TrimPrefix(frame, "data: ")
		if frame == "" || payload == "[DONE]" {
			continue
		}
		var chunk models.ChatCompletionChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		require.Len(t, chunk.Choices, 1)
		joined.WriteString(chunk.Choices[0].Delta.Content)
	}
	assert.Equal(t, stub.reply, joined.String())
}

func TestEmbeddingsTranslation(t *testing.T) {
	stub := &upstreamStub{}
	app := newTestApp(t, stub)

	resp := doJSON(t, app, http.MethodPost, "/v1/embeddings",
		`{"model":"argo:text-embedding-3-small","input":["a","b"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	forwarded := stub.forwarded()
	assert.False(t, gjson.GetBytes(forwarded, "input").Exists())
	prompt := gjson.GetBytes(forwarded, "prompt")
	require.True(t, prompt.IsArray())
	require.Len(t, prompt.Array(), 2)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out models.EmbeddingList
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Data, 2)
	assert.Equal(t, int64(0), out.Data[0].Index)
	assert.Equal(t, int64(1), out.Data[1].Index)
	assert.Equal(t, out.Usage.PromptTokens, out.Usage.TotalTokens)
}

func TestResponsesNonStreamEnvelope(t *testing.T) {
	stub := &upstreamStub{reply: "full responses reply"}
	app := newTestApp(t, stub)

	resp := doJSON(t, app, http.MethodPost, "/v1/responses",
		`{"model":"argo:gpt-4o","input":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out models.Response
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Regexp(t, `^resp_[0-9a-f]+$`, out.ID)
	assert.Equal(t, "completed", out.Status)
	require.Len(t, out.Output, 1)
	require.Len(t, out.Output[0].Content, 1)
	assert.Equal(t, "full responses reply", out.Output[0].Content[0].Text)
}

func TestResponsesFakeStreamEventSequence(t *testing.T) {
	stub := &upstreamStub{reply: "hello"}
	app := newTestApp(t, stub)

	resp := doJSON(t, app, http.MethodPost, "/v1/responses",
		`{"model":"argo:gpt-o1-mini","stream":true,"input":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	raw := string(body)
	assert.NotContains(t, raw, "[DONE]")

	var seqs []int64
	var types []string
	for _, frame := range strings.Split(raw, "\n\n") {
		if frame == "" {
			continue
		}
		var ev models.ResponseStreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev))
		seqs = append(seqs, ev.SequenceNumber)
		types = append(types, ev.Type)
	}

	for i, s := range seqs {
		assert.Equal(t, int64(i), s, "sequence number %d", i)
	}
	assert.Equal(t, "response.created", types[0])
	assert.Equal(t, "response.completed", types[len(types)-1])
	assert.Equal(t, 1, strings.Count(raw, `"type":"response.completed"`))
}

func TestModelsCataloguesChatAndEmbeddingAliases(t *testing.T) {
	app := newTestApp(t, &upstreamStub{})

	resp := doJSON(t, app, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out models.ModelList
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "list", out.Object)

	ids := make(map[string]bool)
	for _, m := range out.Data {
		assert.Equal(t, "model", m.Object)
		ids[m.ID] = true
	}
	assert.True(t, ids["argo:gpt-4o"])
	assert.True(t, ids["argo:text-embedding-3-small"])
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &upstreamStub{})

	resp := doJSON(t, app, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "healthy", gjson.GetBytes(body, "status").String())
}

func TestUpstreamErrorStatusPassesThrough(t *testing.T) {
	stub := &upstreamStub{status: http.StatusBadGateway}
	app := newTestApp(t, stub)

	resp := doJSON(t, app, http.MethodPost, "/v1/chat/completions",
		`{"model":"argo:gpt-4o","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, gjson.GetBytes(body, "error").String(), "Upstream API error: 502")
}

func TestEmptyBodyIsBadRequest(t *testing.T) {
	app := newTestApp(t, &upstreamStub{})

	resp := doJSON(t, app, http.MethodPost, "/v1/chat/completions", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToolCallBridgeEndToEnd(t *testing.T) {
	stub := &upstreamStub{reply: "FUNCTION_CALL: get\nARGUMENTS: {\"docid\":\"ABC\"}"}
	app := newTestApp(t, stub)

	resp := doJSON(t, app, http.MethodPost, "/v1/chat/completions",
		`{"model":"argo:gpt-4o","messages":[{"role":"user","content":"fetch ABC"}],"tools":[{"type":"function","function":{"name":"get","description":"Fetch a document","parameters":{"type":"object","properties":{"docid":{"type":"string"}},"required":["docid"]}}}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the preamble must have been injected as a system message upstream
	forwarded := stub.forwarded()
	assert.Contains(t, gjson.GetBytes(forwarded, "messages.0.content").String(), "FUNCTION_CALL")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", gjson.GetBytes(body, "choices.0.finish_reason").String())
	assert.True(t, gjson.GetBytes(body, "choices.0.message.content").Type == gjson.Null)
	assert.Equal(t, "get", gjson.GetBytes(body, "choices.0.message.tool_calls.0.function.name").String())
	assert.Equal(t, `{"docid":"ABC"}`, gjson.GetBytes(body, "choices.0.message.tool_calls.0.function.arguments").String())
}

func TestDocsPointer(t *testing.T) {
	app := newTestApp(t, &upstreamStub{})

	resp := doJSON(t, app, http.MethodGet, "/v1/docs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Documentation")
}
