package models

import (
	"crypto/rand"
	"encoding/hex"
)

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString(make([]byte, n))
	}
	return hex.EncodeToString(b)
}

// NewChatCompletionID returns a fresh chatcmpl-prefixed identifier.
func NewChatCompletionID() string { return "chatcmpl-" + randomHex(12) }

// NewCompletionID returns a fresh cmpl-prefixed identifier.
func NewCompletionID() string { return "cmpl-" + randomHex(12) }

// NewResponseID returns a fresh resp_-prefixed identifier.
func NewResponseID() string { return "resp_" + randomHex(12) }

// NewMessageID returns a fresh msg_-prefixed identifier.
func NewMessageID() string { return "msg_" + randomHex(12) }
