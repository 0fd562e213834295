package models

import (
	"github.com/openai/openai-go/v2"
)

// Usage is the token-accounting block attached to chat and legacy
// completion replies. TotalTokens is always the sum of the other two.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ChatCompletionMessage is the assistant message inside a non-streaming
// chat completion choice. Content is a pointer so a tool-call reply can
// serialize it as an explicit null.
type ChatCompletionMessage struct {
	Role      string                                      `json:"role"`
	Content   *string                                     `json:"content"`
	ToolCalls []openai.ChatCompletionMessageToolCallUnion `json:"tool_calls,omitzero"`
}

// ChatCompletionChoice is one entry of a chat completion's choices array.
type ChatCompletionChoice struct {
	Index        int64                 `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// ChatCompletion is the OpenAI-compatible non-streaming chat reply.
type ChatCompletion struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   Usage                  `json:"usage"`
}

// ChatCompletionChunkChoiceDelta carries the incremental content of one
// streamed chunk. Ongoing chunks set only Content; the terminal chunk of a
// tool-call reply sets ToolCalls instead.
type ChatCompletionChunkChoiceDelta struct {
	Role      string                                          `json:"role,omitzero"`
	Content   string                                          `json:"content,omitzero"`
	ToolCalls []openai.ChatCompletionChunkChoiceDeltaToolCall `json:"tool_calls,omitzero"`
}

// ChatCompletionChunkChoice is one entry of a streamed chunk's choices
// array. FinishReason is absent on ongoing chunks.
type ChatCompletionChunkChoice struct {
	Index        int64                          `json:"index"`
	Delta        ChatCompletionChunkChoiceDelta `json:"delta"`
	FinishReason string                         `json:"finish_reason,omitzero"`
}

// ChatCompletionChunk is one OpenAI-compatible SSE chat chunk.
type ChatCompletionChunk struct {
	ID      string                      `json:"id"`
	Object  string                      `json:"object"`
	Created int64                       `json:"created"`
	Model   string                      `json:"model"`
	Choices []ChatCompletionChunkChoice `json:"choices"`
}

// CompletionChoice is one entry of a legacy text completion's choices.
type CompletionChoice struct {
	Index        int64  `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitzero"`
}

// Completion is both the non-streaming legacy completion reply and, chunk
// by chunk, the streamed variant; the two differ only in how much text a
// choice carries.
type Completion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
}
