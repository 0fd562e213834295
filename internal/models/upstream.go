package models

// UpstreamChatReply is the non-streaming Argo reply for chat, legacy
// completion, and responses requests. Extra upstream fields are ignored.
type UpstreamChatReply struct {
	Response string `json:"response"`
}

// UpstreamEmbedReply is the Argo embeddings reply: one vector per prompt
// entry, in request order.
type UpstreamEmbedReply struct {
	Embedding [][]float64 `json:"embedding"`
}

// Model is one entry of the /v1/models catalogue.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the /v1/models reply envelope.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
