package shaper

import (
	"testing"

	"github.com/tidwall/gjson"

	"github.com/argoproxy/goproxy/internal/config"
	"github.com/argoproxy/goproxy/internal/registry"
)

func testConfig() *config.Config {
	return &config.Config{User: "svc-user"}
}

// scenario 1: model alias resolution.
func TestShapeResolvesModelAliasAndOverridesUser(t *testing.T) {
	reg := registry.New()
	body := `{"model":"argo:gpt-4o","messages":[{"role":"user","content":"hi"}]}`

	res, err := Shape([]byte(body), ChatCompletions, testConfig(), reg)
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if res.UpstreamModel != "gpt4o" {
		t.Errorf("UpstreamModel = %q, want gpt4o", res.UpstreamModel)
	}
	if gjson.GetBytes(res.Payload, "model").String() != "gpt4o" {
		t.Errorf("payload model = %q, want gpt4o", gjson.GetBytes(res.Payload, "model").String())
	}
	if gjson.GetBytes(res.Payload, "user").String() != "svc-user" {
		t.Errorf("payload user = %q, want svc-user", gjson.GetBytes(res.Payload, "user").String())
	}
}

// scenario 2: system demotion for no-sys-msg models.
func TestShapeDemotesSystemMessageForNoSysMsgModel(t *testing.T) {
	reg := registry.New()
	body := `{"model":"argo:gpt-o1-mini","messages":[{"role":"system","content":"be brief"},{"role":"user","content":"hi"}]}`

	res, err := Shape([]byte(body), ChatCompletions, testConfig(), reg)
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	messages := gjson.GetBytes(res.Payload, "messages").Array()
	for _, m := range messages {
		if m.Get("role").String() == "system" {
			t.Fatalf("found system role in payload, want none: %s", res.Payload)
		}
	}
	found := false
	for _, m := range messages {
		if m.Get("content").String() == "be brief" && m.Get("role").String() == "user" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected demoted system content as a user message, got %s", res.Payload)
	}
}

// scenario 3: fake-streaming precondition — forwarded stream is false even
// though the client asked for streaming, because the model isn't streamable.
func TestShapeForcesNonStreamForUnstreamableModel(t *testing.T) {
	reg := registry.New()
	body := `{"model":"argo:gpt-o1-mini","stream":true,"messages":[{"role":"user","content":"hi"}]}`

	res, err := Shape([]byte(body), ChatCompletions, testConfig(), reg)
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if !res.ClientStream {
		t.Error("ClientStream = false, want true")
	}
	if res.ForwardStream {
		t.Error("ForwardStream = true, want false")
	}
	if gjson.GetBytes(res.Payload, "stream").Bool() {
		t.Error("payload stream = true, want false")
	}
}

// scenario 5: embeddings translation — input renamed to prompt, list kept
// as a list (not collapsed/deduped).
func TestShapeEmbeddingsRenamesInputToPromptList(t *testing.T) {
	reg := registry.New()
	body := `{"model":"argo:text-embedding-3-small","input":["a","b"]}`

	res, err := Shape([]byte(body), Embeddings, testConfig(), reg)
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if gjson.GetBytes(res.Payload, "input").Exists() {
		t.Error("payload still has input field")
	}
	prompt := gjson.GetBytes(res.Payload, "prompt")
	if !prompt.IsArray() || len(prompt.Array()) != 2 {
		t.Fatalf("expected 2-element prompt array, got %s", res.Payload)
	}
	if prompt.Array()[0].String() != "a" || prompt.Array()[1].String() != "b" {
		t.Errorf("prompt array = %s, want [a b]", prompt.Raw)
	}
}

// scenario 4 precondition: responses input -> messages, instructions
// prepended as a synthetic system message.
func TestShapeResponsesRenamesInputAndPrependsInstructions(t *testing.T) {
	reg := registry.New()
	body := `{"model":"argo:gpt-4o","instructions":"be terse","input":[{"role":"user","content":"hello"}],"max_output_tokens":50,"store":true}`

	res, err := Shape([]byte(body), Responses, testConfig(), reg)
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	messages := gjson.GetBytes(res.Payload, "messages").Array()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages (synthetic system + user), got %d: %s", len(messages), res.Payload)
	}
	if messages[0].Get("role").String() != "system" || messages[0].Get("content").String() != "be terse" {
		t.Errorf("messages[0] = %s, want synthetic system message", messages[0].Raw)
	}
	if gjson.GetBytes(res.Payload, "max_tokens").Int() != 50 {
		t.Errorf("max_tokens = %d, want 50", gjson.GetBytes(res.Payload, "max_tokens").Int())
	}
	if gjson.GetBytes(res.Payload, "max_output_tokens").Exists() {
		t.Error("max_output_tokens should have been removed")
	}
	if gjson.GetBytes(res.Payload, "store").Exists() {
		t.Error("store should have been stripped as an incompatible field")
	}
}

func TestShapeRejectsEmptyBody(t *testing.T) {
	reg := registry.New()
	if _, err := Shape(nil, ChatCompletions, testConfig(), reg); err == nil {
		t.Fatal("expected bad-request error for empty body")
	}
}

func TestShapeRejectsMalformedSystemType(t *testing.T) {
	reg := registry.New()
	body := `{"model":"argo:gpt-o1-mini","system":42,"messages":[{"role":"user","content":"hi"}]}`
	if _, err := Shape([]byte(body), ChatCompletions, testConfig(), reg); err == nil {
		t.Fatal("expected bad-request error for non-string/array system field")
	}
}

func TestShapeCollapsesPromptListToSingleJoinedEntry(t *testing.T) {
	reg := registry.New()
	body := `{"model":"argo:gpt-4o","prompt":["a","b"]}`
	res, err := Shape([]byte(body), ChatCompletions, testConfig(), reg)
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	prompt := gjson.GetBytes(res.Payload, "prompt")
	if prompt.Type != gjson.String {
		t.Fatalf("expected prompt to collapse to a string, got %s", res.Payload)
	}
	if prompt.String() != "a\n\nb" {
		t.Errorf("prompt = %q, want joined %q", prompt.String(), "a\n\nb")
	}
}

// rule 10 dedup matters once rule 8 merges system content into the prompt
// list alongside the already rule-7-collapsed entry, producing a list with
// an actual duplicate element.
func TestShapeDedupesMergedSystemAndPromptForNoSysMsgModel(t *testing.T) {
	reg := registry.New()
	body := `{"model":"argo:gpt-o1-mini","system":["shared context","shared context"],"prompt":["hi"]}`
	res, err := Shape([]byte(body), ChatPassthrough, testConfig(), reg)
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if gjson.GetBytes(res.Payload, "system").Exists() {
		t.Error("system field should have been removed")
	}
	prompt := gjson.GetBytes(res.Payload, "prompt")
	if prompt.Type != gjson.String {
		t.Fatalf("expected prompt to collapse to a string, got %s", res.Payload)
	}
	if prompt.String() != "shared context\n\nhi" {
		t.Errorf("prompt = %q, want deduped+joined %q", prompt.String(), "shared context\n\nhi")
	}
}
