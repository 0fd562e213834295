package models

// ResponseOutputText is the output_text content part of a responses reply.
type ResponseOutputText struct {
	Type        string   `json:"type"`
	Text        string   `json:"text"`
	Annotations []string `json:"annotations"`
}

// NewResponseOutputText builds an output_text part with the annotations
// slice present but empty, matching the wire shape clients expect.
func NewResponseOutputText(text string) ResponseOutputText {
	return ResponseOutputText{Type: "output_text", Text: text, Annotations: []string{}}
}

// ResponseOutputMessage is the single assistant message inside a responses
// reply's output array.
type ResponseOutputMessage struct {
	ID      string               `json:"id"`
	Type    string               `json:"type"`
	Role    string               `json:"role"`
	Status  string               `json:"status"`
	Content []ResponseOutputText `json:"content"`
}

// ResponseUsage is the responses-API usage block; input/output rather than
// prompt/completion naming.
type ResponseUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Response is the OpenAI-compatible responses reply envelope, used both as
// the non-streaming document and as the snapshot carried inside
// response.created / response.in_progress / response.completed events.
type Response struct {
	ID        string                  `json:"id"`
	Object    string                  `json:"object"`
	CreatedAt int64                   `json:"created_at"`
	Model     string                  `json:"model"`
	Status    string                  `json:"status"`
	Output    []ResponseOutputMessage `json:"output"`
	Usage     *ResponseUsage          `json:"usage,omitempty"`
}

// ResponseStreamEvent is one event of the responses SSE sequence. The set
// of populated fields depends on Type; SequenceNumber is monotonic from 0
// within one stream.
type ResponseStreamEvent struct {
	Type           string                 `json:"type"`
	SequenceNumber int64                  `json:"sequence_number"`
	Response       *Response              `json:"response,omitempty"`
	OutputIndex    *int64                 `json:"output_index,omitempty"`
	ContentIndex   *int64                 `json:"content_index,omitempty"`
	ItemID         string                 `json:"item_id,omitempty"`
	Item           *ResponseOutputMessage `json:"item,omitempty"`
	Part           *ResponseOutputText    `json:"part,omitempty"`
	Delta          string                 `json:"delta,omitempty"`
	Text           string                 `json:"text,omitempty"`
}
