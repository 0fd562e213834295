// Package format_adapter converts non-streaming Argo replies into the
// OpenAI-compatible envelopes clients expect. The request direction lives
// in the shaper; this side only ever sees upstream JSON already parsed
// into the upstream reply types.
package format_adapter

import (
	"time"

	"github.com/openai/openai-go/v2"

	"github.com/argoproxy/goproxy/internal/funccall"
	"github.com/argoproxy/goproxy/internal/models"
	"github.com/argoproxy/goproxy/internal/tokens"
)

// ArgoToOpenAIConverter handles conversion from Argo reply shapes to
// OpenAI-compatible response envelopes.
type ArgoToOpenAIConverter struct{}

// ConvertChatCompletion builds a chat.completion envelope from the
// upstream reply text. When translateTools is set and the text matches the
// FUNCTION_CALL/ARGUMENTS shape, the message is rewritten as a tool call.
func (c *ArgoToOpenAIConverter) ConvertChatCompletion(reply *models.UpstreamChatReply, model string, promptTokens int64, translateTools bool) *models.ChatCompletion {
	completionTokens := int64(tokens.Count(reply.Response, model))

	message := models.ChatCompletionMessage{
		Role:    "assistant",
		Content: &reply.Response,
	}
	finishReason := "stop"

	if translateTools {
		if call, ok := funccall.Parse(reply.Response); ok {
			message.Content = nil
			message.ToolCalls = []openai.ChatCompletionMessageToolCallUnion{{
				ID:   call.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageFunctionToolCallFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			}}
			finishReason = "tool_calls"
		}
	}

	return &models.ChatCompletion{
		ID:      models.NewChatCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []models.ChatCompletionChoice{{
			Index:        0,
			Message:      message,
			FinishReason: finishReason,
		}},
		Usage: models.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}

// ConvertCompletion builds a legacy text_completion envelope.
func (c *ArgoToOpenAIConverter) ConvertCompletion(reply *models.UpstreamChatReply, model string, promptTokens int64) *models.Completion {
	completionTokens := int64(tokens.Count(reply.Response, model))

	return &models.Completion{
		ID:      models.NewCompletionID(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []models.CompletionChoice{{
			Index:        0,
			Text:         reply.Response,
			FinishReason: "stop",
		}},
		Usage: &models.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}

// ConvertEmbeddings builds the embeddings list envelope, index-aligned
// with the upstream vector order. There is no completion side, so total
// equals the prompt count.
func (c *ArgoToOpenAIConverter) ConvertEmbeddings(reply *models.UpstreamEmbedReply, model string, promptTokens int64) *models.EmbeddingList {
	data := make([]models.EmbeddingData, len(reply.Embedding))
	for i, vec := range reply.Embedding {
		data[i] = models.EmbeddingData{
			Object:    "embedding",
			Index:     int64(i),
			Embedding: vec,
		}
	}

	return &models.EmbeddingList{
		Object: "list",
		Data:   data,
		Model:  model,
		Usage: models.EmbeddingUsage{
			PromptTokens: promptTokens,
			TotalTokens:  promptTokens,
		},
	}
}

// ConvertResponse builds a completed responses envelope with a single
// output message holding the full reply text.
func (c *ArgoToOpenAIConverter) ConvertResponse(reply *models.UpstreamChatReply, model string, promptTokens int64) *models.Response {
	outputTokens := int64(tokens.Count(reply.Response, model))

	return &models.Response{
		ID:        models.NewResponseID(),
		Object:    "response",
		CreatedAt: time.Now().Unix(),
		Model:     model,
		Status:    "completed",
		Output: []models.ResponseOutputMessage{{
			ID:      models.NewMessageID(),
			Type:    "message",
			Role:    "assistant",
			Status:  "completed",
			Content: []models.ResponseOutputText{models.NewResponseOutputText(reply.Response)},
		}},
		Usage: &models.ResponseUsage{
			InputTokens:  promptTokens,
			OutputTokens: outputTokens,
			TotalTokens:  promptTokens + outputTokens,
		},
	}
}
