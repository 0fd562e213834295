package format_adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argoproxy/goproxy/internal/models"
)

func TestConvertChatCompletionUsageAddsUp(t *testing.T) {
	reply := &models.UpstreamChatReply{Response: "hello there friend"}

	out := ArgoToOpenAI.ConvertChatCompletion(reply, "gpt4o", 7, false)

	require.Len(t, out.Choices, 1)
	assert.Equal(t, "chat.completion", out.Object)
	assert.Equal(t, "gpt4o", out.Model)
	assert.Equal(t, "stop", out.Choices[0].FinishReason)
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "hello there friend", *out.Choices[0].Message.Content)
	assert.Equal(t, int64(7), out.Usage.PromptTokens)
	assert.Equal(t, out.Usage.PromptTokens+out.Usage.CompletionTokens, out.Usage.TotalTokens)
}

func TestConvertChatCompletionBridgesToolCall(t *testing.T) {
	reply := &models.UpstreamChatReply{Response: "FUNCTION_CALL: get\nARGUMENTS: {\"docid\":\"ABC\"}"}

	out := ArgoToOpenAI.ConvertChatCompletion(reply, "gpt4o", 3, true)

	require.Len(t, out.Choices, 1)
	choice := out.Choices[0]
	assert.Equal(t, "tool_calls", choice.FinishReason)
	assert.Nil(t, choice.Message.Content)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "get", choice.Message.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"docid":"ABC"}`, choice.Message.ToolCalls[0].Function.Arguments)
}

func TestConvertChatCompletionIgnoresToolShapeWhenDisabled(t *testing.T) {
	reply := &models.UpstreamChatReply{Response: "FUNCTION_CALL: get\nARGUMENTS: {\"docid\":\"ABC\"}"}

	out := ArgoToOpenAI.ConvertChatCompletion(reply, "gpt4o", 3, false)

	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "stop", out.Choices[0].FinishReason)
	assert.Empty(t, out.Choices[0].Message.ToolCalls)
}

func TestConvertCompletionUsesTextField(t *testing.T) {
	reply := &models.UpstreamChatReply{Response: "plain text reply"}

	out := ArgoToOpenAI.ConvertCompletion(reply, "gpt4", 5)

	assert.Equal(t, "text_completion", out.Object)
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "plain text reply", out.Choices[0].Text)
	require.NotNil(t, out.Usage)
	assert.Equal(t, out.Usage.PromptTokens+out.Usage.CompletionTokens, out.Usage.TotalTokens)
}

func TestConvertEmbeddingsIndexesAndUsage(t *testing.T) {
	reply := &models.UpstreamEmbedReply{Embedding: [][]float64{{0.1, 0.2}, {0.3, 0.4}}}

	out := ArgoToOpenAI.ConvertEmbeddings(reply, "v3small", 4)

	assert.Equal(t, "list", out.Object)
	require.Len(t, out.Data, 2)
	for i, d := range out.Data {
		assert.Equal(t, "embedding", d.Object)
		assert.Equal(t, int64(i), d.Index)
	}
	assert.Equal(t, int64(4), out.Usage.PromptTokens)
	assert.Equal(t, out.Usage.PromptTokens, out.Usage.TotalTokens)
}

func TestConvertResponseSingleOutputMessage(t *testing.T) {
	reply := &models.UpstreamChatReply{Response: "the full reply"}

	out := ArgoToOpenAI.ConvertResponse(reply, "gpt4o", 2)

	assert.Equal(t, "response", out.Object)
	assert.Equal(t, "completed", out.Status)
	assert.Regexp(t, `^resp_[0-9a-f]+$`, out.ID)
	require.Len(t, out.Output, 1)
	msg := out.Output[0]
	assert.Regexp(t, `^msg_[0-9a-f]+$`, msg.ID)
	assert.Equal(t, "completed", msg.Status)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "output_text", msg.Content[0].Type)
	assert.Equal(t, "the full reply", msg.Content[0].Text)
	require.NotNil(t, out.Usage)
	assert.Equal(t, out.Usage.InputTokens+out.Usage.OutputTokens, out.Usage.TotalTokens)
}
