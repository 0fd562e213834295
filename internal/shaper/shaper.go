// Package shaper implements the Request Shaper: the per-endpoint pipeline
// that rewrites an incoming OpenAI-shaped JSON body into the upstream
// Argo-shaped JSON body, per the ordered rule list each Shape call applies.
//
// The working payload is kept as raw JSON throughout and mutated with
// gjson/sjson rather than unmarshaled into a Go struct up front: the
// upstream contract is duck-typed (fields appear or don't depending on
// endpoint and client), and patching the wire bytes directly avoids
// silently dropping fields the typed side doesn't know about.
package shaper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/argoproxy/goproxy/internal/apperr"
	"github.com/argoproxy/goproxy/internal/config"
	"github.com/argoproxy/goproxy/internal/funccall"
	"github.com/argoproxy/goproxy/internal/registry"
	"github.com/argoproxy/goproxy/internal/utils"
)

// Kind identifies which endpoint contract Shape is rewriting for.
type Kind int

const (
	// ChatPassthrough forwards an already Argo-shaped body (/v1/chat).
	ChatPassthrough Kind = iota
	// ChatCompletions is the OpenAI chat-completions contract.
	ChatCompletions
	// Completions is the OpenAI legacy text-completions contract.
	Completions
	// Embeddings is the OpenAI embeddings contract.
	Embeddings
	// Responses is the OpenAI responses contract.
	Responses
)

// incompatibleResponsesFields are stripped from a /v1/responses body before
// it is forwarded upstream; the upstream chat API has no concept of them.
var incompatibleResponsesFields = []string{
	"include", "metadata", "parallel_tool_calls", "previous_response_id",
	"reasoning", "service_tier", "store", "text", "tool_choice", "tools", "truncation",
}

// Result is what the Shaper hands to the Transport and Translator.
type Result struct {
	UpstreamModel string
	Payload       []byte // final upstream-shaped JSON body
	ClientStream  bool   // what the client originally asked for
	ForwardStream bool   // what is actually being sent upstream
	PromptText    string // concatenation used for prompt-token accounting
}

// Shape runs the ordered rule list (§4.2) against raw, producing the
// upstream payload. It never mutates raw.
func Shape(raw []byte, kind Kind, cfg *config.Config, reg *registry.Registry) (*Result, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil, apperr.NewBadRequest("request body must be a JSON object", nil)
	}

	body := append([]byte(nil), raw...)
	var err error

	clientStream := gjson.GetBytes(body, "stream").Bool()

	// Rule 1: user override.
	if body, err = sjson.SetBytes(body, "user", cfg.User); err != nil {
		return nil, apperr.NewUnexpected(err)
	}

	// Rule 2: model resolution.
	rk := registry.Chat
	if kind == Embeddings {
		rk = registry.Embedding
	}
	clientModel := gjson.GetBytes(body, "model").String()
	resolved := reg.Resolve(clientModel, rk)
	if body, err = sjson.SetBytes(body, "model", resolved); err != nil {
		return nil, apperr.NewUnexpected(err)
	}

	// Rule 3: normalize prompt to an ordered sequence of strings.
	if gjson.GetBytes(body, "prompt").Exists() {
		seq, serr := toStringSlice(gjson.GetBytes(body, "prompt"))
		if serr != nil {
			return nil, apperr.NewBadRequest(serr.Error(), serr)
		}
		if body, err = setStringArray(body, "prompt", seq); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
	}

	// Rule 4: embeddings only — input -> prompt.
	if kind == Embeddings {
		if !gjson.GetBytes(body, "input").Exists() {
			return nil, apperr.NewBadRequest("embeddings request missing input", nil)
		}
		seq, serr := toStringSlice(gjson.GetBytes(body, "input"))
		if serr != nil {
			return nil, apperr.NewBadRequest(serr.Error(), serr)
		}
		if body, err = setStringArray(body, "prompt", seq); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
		if body, err = sjson.DeleteBytes(body, "input"); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
	}

	// Rule 5: responses only.
	if kind == Responses {
		if body, err = shapeResponsesInput(body); err != nil {
			return nil, err
		}
	}

	// Rule 6: optional function-calling preamble injection.
	if cfg.TranslateTools && kind == ChatCompletions && gjson.GetBytes(body, "tools").Exists() {
		if body, err = injectToolsPreamble(body); err != nil {
			return nil, err
		}
	}

	// Rule 7: collapse the prompt list to a single joined entry for
	// chat-shaped endpoints (embeddings keeps one prompt entry per input item).
	if kind != Embeddings && gjson.GetBytes(body, "prompt").IsArray() {
		joined := joinArray(gjson.GetBytes(body, "prompt"), "\n\n")
		if body, err = setStringArray(body, "prompt", []string{joined}); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
	}

	// Rule 8: no-sys-msg demotion, tested against the resolved upstream id.
	if kind != Embeddings && reg.NoSysMsg(resolved) {
		if body, err = demoteSystemMessages(body, kind); err != nil {
			return nil, err
		}
	}

	// Rule 9: force non-streaming when the resolved model can't stream.
	forwardStream := clientStream
	if kind != Embeddings && !reg.Streamable(resolved) {
		forwardStream = false
	}
	if kind == Embeddings {
		forwardStream = false
	}
	if body, err = sjson.SetBytes(body, "stream", forwardStream); err != nil {
		return nil, apperr.NewUnexpected(err)
	}

	// Rule 10: dedup-and-concatenate system/prompt sequences (chat-shaped
	// endpoints only — embeddings' prompt list stays a list).
	if kind != Embeddings {
		if body, err = dedupConcat(body, "system"); err != nil {
			return nil, err
		}
		if body, err = dedupConcat(body, "prompt"); err != nil {
			return nil, err
		}
	}

	promptText := buildPromptText(body)

	return &Result{
		UpstreamModel: resolved,
		Payload:       body,
		ClientStream:  clientStream,
		ForwardStream: forwardStream,
		PromptText:    promptText,
	}, nil
}

// toStringSlice normalizes a gjson value that may be a scalar or an array
// of scalars into an ordered slice of strings. A scalar becomes a
// one-element slice.
func toStringSlice(v gjson.Result) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	if v.IsArray() {
		out := make([]string, 0, len(v.Array()))
		for _, el := range v.Array() {
			if el.Type != gjson.String {
				return nil, fmt.Errorf("expected a string or list of strings")
			}
			out = append(out, el.String())
		}
		return out, nil
	}
	if v.Type != gjson.String {
		return nil, fmt.Errorf("expected a string or list of strings")
	}
	return []string{v.String()}, nil
}

func setStringArray(body []byte, path string, values []string) ([]byte, error) {
	return sjson.SetBytes(body, path, values)
}

func joinArray(v gjson.Result, sep string) string {
	parts := make([]string, 0, len(v.Array()))
	for _, el := range v.Array() {
		parts = append(parts, el.String())
	}
	return strings.Join(parts, sep)
}

// dedupConcat implements rule 10 for one field: if the field is a
// sequence, replace it with the order-preserving, duplicate-eliminated
// "\n\n"-joined string.
func dedupConcat(body []byte, field string) ([]byte, error) {
	v := gjson.GetBytes(body, field)
	if !v.Exists() || !v.IsArray() {
		return body, nil
	}
	seen := make(map[string]bool)
	ordered := make([]string, 0, len(v.Array()))
	for _, el := range v.Array() {
		s := el.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		ordered = append(ordered, s)
	}
	return sjson.SetBytes(body, field, strings.Join(ordered, "\n\n"))
}

// shapeResponsesInput implements rule 5 in full: input -> messages (with
// instructions prepended as a synthetic system message), max_output_tokens
// -> max_tokens, and unsupported-field stripping.
func shapeResponsesInput(body []byte) ([]byte, error) {
	var err error

	input := gjson.GetBytes(body, "input")
	if !input.Exists() || !input.IsArray() {
		return nil, apperr.NewBadRequest("responses request missing input message list", nil)
	}

	messages := input.Raw

	if instructions := gjson.GetBytes(body, "instructions"); instructions.Exists() && instructions.String() != "" {
		synthetic := fmt.Sprintf(`{"role":"system","content":%s}`, quoteJSON(instructions.String()))
		messages, err = sjson.SetRaw("[]", "-1", synthetic)
		if err != nil {
			return nil, apperr.NewUnexpected(err)
		}
		// Re-append the original messages after the synthetic one.
		for _, m := range input.Array() {
			messages, err = sjson.SetRaw(messages, "-1", m.Raw)
			if err != nil {
				return nil, apperr.NewUnexpected(err)
			}
		}
	}

	if body, err = sjson.SetRawBytes(body, "messages", []byte(messages)); err != nil {
		return nil, apperr.NewUnexpected(err)
	}
	if body, err = sjson.DeleteBytes(body, "input"); err != nil {
		return nil, apperr.NewUnexpected(err)
	}
	if body, err = sjson.DeleteBytes(body, "instructions"); err != nil {
		return nil, apperr.NewUnexpected(err)
	}

	if mot := gjson.GetBytes(body, "max_output_tokens"); mot.Exists() {
		if body, err = sjson.SetBytes(body, "max_tokens", mot.Value()); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
		if body, err = sjson.DeleteBytes(body, "max_output_tokens"); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
	}

	for _, field := range incompatibleResponsesFields {
		if body, err = sjson.DeleteBytes(body, field); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
	}

	return body, nil
}

// demoteSystemMessages implements rule 8: for no-sys-msg models, system
// roled messages become user roled, and any top-level system field is
// prepended to prompt and removed.
func demoteSystemMessages(body []byte, kind Kind) ([]byte, error) {
	var err error

	if messages := gjson.GetBytes(body, "messages"); messages.Exists() && messages.IsArray() {
		rewritten := "[]"
		for _, m := range messages.Array() {
			role := m.Get("role").String()
			if role == "system" {
				rewritten, err = sjson.SetRaw(rewritten, "-1", mustSetRole(m.Raw, "user"))
			} else {
				rewritten, err = sjson.SetRaw(rewritten, "-1", m.Raw)
			}
			if err != nil {
				return nil, apperr.NewUnexpected(err)
			}
		}
		if body, err = sjson.SetRawBytes(body, "messages", []byte(rewritten)); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
	}

	if kind == Embeddings {
		return body, nil
	}

	if sys := gjson.GetBytes(body, "system"); sys.Exists() {
		seq, serr := toStringSlice(sys)
		if serr != nil {
			return nil, apperr.NewBadRequest("system prompt must be a string or list", serr)
		}
		existing, perr := toStringSlice(gjson.GetBytes(body, "prompt"))
		if perr != nil {
			return nil, apperr.NewBadRequest(perr.Error(), perr)
		}
		merged := append(seq, existing...)
		if body, err = setStringArray(body, "prompt", merged); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
		if body, err = sjson.DeleteBytes(body, "system"); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
	}

	return body, nil
}

func mustSetRole(messageJSON, role string) string {
	out, err := sjson.Set(messageJSON, "role", role)
	if err != nil {
		return messageJSON
	}
	return out
}

// buildPromptText concatenates system (if any) and prompt/messages content
// for Token Accountant input.
func buildPromptText(body []byte) string {
	var parts []string
	for _, field := range []string{"system", "prompt"} {
		v := gjson.GetBytes(body, field)
		if !v.Exists() {
			continue
		}
		if v.IsArray() {
			parts = append(parts, joinArray(v, "\n\n"))
		} else {
			parts = append(parts, v.String())
		}
	}
	if messages := gjson.GetBytes(body, "messages"); messages.Exists() && messages.IsArray() {
		for _, m := range messages.Array() {
			parts = append(parts, utils.MessageText(m.Get("content")))
		}
	}
	return strings.Join(parts, "\n\n")
}

func quoteJSON(s string) string {
	b, _ := sjson.Set("{}", "v", s)
	return gjson.Get(b, "v").Raw
}

// injectToolsPreamble implements rule 6: synthesize a function-calling
// preamble from the tools array and prepend it to the first system
// message's content, then null out tools in the forwarded payload.
func injectToolsPreamble(body []byte) ([]byte, error) {
	var tools []funccall.Tool
	if err := json.Unmarshal([]byte(gjson.GetBytes(body, "tools").Raw), &tools); err != nil {
		return nil, apperr.NewBadRequest("tools must be a valid OpenAI tools array", err)
	}
	preamble := funccall.BuildPreamble(tools)

	var err error
	messages := gjson.GetBytes(body, "messages")
	if messages.Exists() && messages.IsArray() {
		rewritten := "[]"
		injected := false
		for _, m := range messages.Array() {
			if !injected && m.Get("role").String() == "system" {
				content := preamble + m.Get("content").String()
				m.Raw, err = sjson.Set(m.Raw, "content", content)
				if err != nil {
					return nil, apperr.NewUnexpected(err)
				}
				injected = true
			}
			rewritten, err = sjson.SetRaw(rewritten, "-1", m.Raw)
			if err != nil {
				return nil, apperr.NewUnexpected(err)
			}
		}
		if !injected {
			synthetic := fmt.Sprintf(`{"role":"system","content":%s}`, quoteJSON(preamble))
			rewritten, err = sjson.SetRaw("[]", "-1", synthetic)
			if err != nil {
				return nil, apperr.NewUnexpected(err)
			}
			for _, m := range messages.Array() {
				rewritten, err = sjson.SetRaw(rewritten, "-1", m.Raw)
				if err != nil {
					return nil, apperr.NewUnexpected(err)
				}
			}
		}
		if body, err = sjson.SetRawBytes(body, "messages", []byte(rewritten)); err != nil {
			return nil, apperr.NewUnexpected(err)
		}
	}

	if body, err = sjson.SetBytes(body, "tools", nil); err != nil {
		return nil, apperr.NewUnexpected(err)
	}
	return body, nil
}
