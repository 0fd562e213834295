// Package funccall implements the Function-Call Bridge: synthesizing a
// textual tool-calling preamble from an OpenAI tools schema, and parsing a
// model's textual FUNCTION_CALL:/ARGUMENTS: reply back into an OpenAI
// tool_calls structure.
package funccall

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// callPattern matches a FUNCTION_CALL:/ARGUMENTS: reply, dot-matches-newline
// over the arguments object.
var callPattern = regexp.MustCompile(`(?s)FUNCTION_CALL:\s*(\w+)\s*\nARGUMENTS:\s*(\{.*?\})`)

// ToolFunction is the OpenAI "function" shape inside a tools[] entry.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Tool is one entry of an OpenAI tools[] array.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// BuildPreamble produces the textual instruction block describing every
// tool and prescribing the literal FUNCTION_CALL/ARGUMENTS reply shape.
func BuildPreamble(tools []Tool) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant with access to functions. ")
	b.WriteString("When you want to call a function, use the exact format below in your response to the user:\n\n")
	b.WriteString("When an interaction requires a function call, respond IMMEDIATELY and ONLY with:\n")
	b.WriteString("FUNCTION_CALL: function_name\n")
	b.WriteString(`ARGUMENTS: {"param1": "value1", "param2": "value2"}` + "\n\n")
	b.WriteString("Just call the function immediately using the exact format above. ")
	b.WriteString("The ARGUMENTS must be valid JSON. Use double quotes for strings.\n\n")
	b.WriteString("Otherwise, respond normally with text.\n\n")
	b.WriteString("Available functions:\n")
	for _, t := range tools {
		b.WriteString(describeFunction(t.Function))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeFunction(fn ToolFunction) string {
	var params []string
	required := map[string]bool{}
	if req, ok := fn.Parameters["required"].([]interface{}); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}
	if props, ok := fn.Parameters["properties"].(map[string]interface{}); ok {
		for name, raw := range props {
			info, _ := raw.(map[string]interface{})
			paramType := "string"
			desc := ""
			if info != nil {
				if t, ok := info["type"].(string); ok {
					paramType = t
				}
				if d, ok := info["description"].(string); ok {
					desc = d
				}
			}
			part := fmt.Sprintf("%s: %s", name, paramType)
			if required[name] {
				part += " (required)"
			}
			if desc != "" {
				part += " - " + desc
			}
			params = append(params, part)
		}
	}
	return fmt.Sprintf("- %s(%s): %s", fn.Name, strings.Join(params, ", "), fn.Description)
}

// Call is a parsed FUNCTION_CALL:/ARGUMENTS: reply.
type Call struct {
	ID        string
	Name      string
	Arguments string // JSON-serialized arguments object
}

// Parse attempts to match the FUNCTION_CALL:/ARGUMENTS: pattern in text. It
// returns ok=false if there is no match or the arguments are not valid JSON.
func Parse(text string) (call Call, ok bool) {
	m := callPattern.FindStringSubmatch(text)
	if m == nil {
		return Call{}, false
	}
	name, rawArgs := m[1], m[2]

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(rawArgs), &parsed); err != nil {
		return Call{}, false
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return Call{}, false
	}

	return Call{ID: newCallID(), Name: name, Arguments: string(normalized)}, true
}

func newCallID() string {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "call_0000000000"
	}
	return "call_" + hex.EncodeToString(b)
}
