package models

// EmbeddingUsage has no completion side: total always equals the prompt
// count.
type EmbeddingUsage struct {
	PromptTokens int64 `json:"prompt_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// EmbeddingData is one vector of an embeddings reply, index-aligned with
// the request's input order.
type EmbeddingData struct {
	Object    string    `json:"object"`
	Index     int64     `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingList is the OpenAI-compatible embeddings reply envelope.
type EmbeddingList struct {
	Object string          `json:"object"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  EmbeddingUsage  `json:"usage"`
}
