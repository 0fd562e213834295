package utils

import (
	"strings"

	"github.com/tidwall/gjson"
)

// MessageText extracts the text of an OpenAI message content value, which
// may be a plain string or an array of typed content parts. Non-text
// parts (images, audio) contribute nothing.
func MessageText(content gjson.Result) string {
	if !content.Exists() {
		return ""
	}
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var texts []string
		for _, part := range content.Array() {
			if t := part.Get("text"); t.Exists() && t.Type == gjson.String {
				texts = append(texts, t.String())
			}
		}
		return strings.Join(texts, " ")
	}
	return ""
}

// LastUserMessageText returns the text of the last user-roled message with
// non-empty text in an OpenAI messages array, or "" when there is none.
func LastUserMessageText(messages gjson.Result) string {
	if !messages.IsArray() {
		return ""
	}
	arr := messages.Array()
	for i := len(arr) - 1; i >= 0; i-- {
		if arr[i].Get("role").String() != "user" {
			continue
		}
		if text := MessageText(arr[i].Get("content")); text != "" {
			return text
		}
	}
	return ""
}
