package format_adapter

// Package-level singleton adapter instance for efficient reuse.
var ArgoToOpenAI *ArgoToOpenAIConverter

func init() {
	ArgoToOpenAI = &ArgoToOpenAIConverter{}
}
