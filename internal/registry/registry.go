// Package registry holds the static model-alias table and the capability
// sets (no-system-message, streamable) derived from it. It is loaded once
// at startup and frozen thereafter.
package registry

import "path/filepath"

// Kind partitions the registry by request surface.
type Kind int

const (
	// Chat covers /v1/chat, /v1/chat/completions, /v1/completions and /v1/responses.
	Chat Kind = iota
	// Embedding covers /v1/embeddings.
	Embedding
)

const (
	defaultChatUpstream  = "gpt4o"
	defaultEmbedUpstream = "v3small"
)

// noSysMsgPatterns are glob patterns (matched against both the alias and
// the resolved upstream id) identifying models that reject system-roled
// messages.
var noSysMsgPatterns = []string{"argo:gpt-o*", "argo:o*", "gpto*"}

// streamablePatterns are glob patterns identifying models the upstream can
// actually stream; anything not matching falls back to fake streaming.
var streamablePatterns = []string{
	"argo:gpt-3.5-turbo", "argo:gpt-3.5-turbo-16k",
	"argo:gpt-4", "argo:gpt-4-32k", "argo:gpt-4-turbo-preview", "argo:gpt-4o",
	"gpt35", "gpt35large", "gpt4", "gpt4large", "gpt4turbo", "gpt4o",
}

// entry is one alias -> upstream-id mapping.
type entry struct {
	alias    string
	upstream string
}

// Registry is the frozen, in-memory model table.
type Registry struct {
	chat         []entry
	embed        []entry
	chatByAlias  map[string]string
	chatByUp     map[string]string
	embedByAlias map[string]string
	embedByUp    map[string]string
	noSysMsg     map[string]bool
	streamable   map[string]bool
}

// New builds the registry from the literal alias tables ported from the
// upstream's original model list, precomputing the glob-derived capability
// sets once.
func New() *Registry {
	chat := []entry{
		{"argo:gpt-3.5-turbo", "gpt35"},
		{"argo:gpt-3.5-turbo-16k", "gpt35large"},
		{"argo:gpt-4", "gpt4"},
		{"argo:gpt-4-32k", "gpt4large"},
		{"argo:gpt-4-turbo-preview", "gpt4turbo"},
		{"argo:gpt-4o", "gpt4o"},
		{"argo:gpt-o1-preview", "gpto1preview"},
		{"argo:gpt-o1-mini", "gpto1mini"},
		{"argo:gpt-o3-mini", "gpto3mini"},
	}
	embed := []entry{
		{"argo:text-embedding-ada-002", "ada002"},
		{"argo:text-embedding-3-small", "v3small"},
		{"argo:text-embedding-3-large", "v3large"},
	}

	r := &Registry{
		chat:         chat,
		embed:        embed,
		chatByAlias:  map[string]string{},
		chatByUp:     map[string]string{},
		embedByAlias: map[string]string{},
		embedByUp:    map[string]string{},
	}
	for _, e := range chat {
		r.chatByAlias[e.alias] = e.upstream
		r.chatByUp[e.upstream] = e.upstream
	}
	for _, e := range embed {
		r.embedByAlias[e.alias] = e.upstream
		r.embedByUp[e.upstream] = e.upstream
	}

	ids := make(map[string]bool)
	for _, e := range chat {
		ids[e.alias] = true
		ids[e.upstream] = true
	}
	for _, e := range embed {
		ids[e.alias] = true
		ids[e.upstream] = true
	}

	r.noSysMsg = precomputeSet(ids, noSysMsgPatterns)
	r.streamable = precomputeSet(ids, streamablePatterns)
	return r
}

func precomputeSet(ids map[string]bool, patterns []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for id := range ids {
		for _, p := range patterns {
			if ok, _ := filepath.Match(p, id); ok {
				out[id] = true
				break
			}
		}
	}
	return out
}

// Resolve maps a client-supplied name (alias or already-upstream id) to an
// upstream id for the given kind. Resolution is total: an unknown name
// yields the kind-specific default. Matching is case-sensitive.
func (r *Registry) Resolve(name string, kind Kind) string {
	switch kind {
	case Embedding:
		if up, ok := r.embedByAlias[name]; ok {
			return up
		}
		if up, ok := r.embedByUp[name]; ok {
			return up
		}
		return defaultEmbedUpstream
	default:
		if up, ok := r.chatByAlias[name]; ok {
			return up
		}
		if up, ok := r.chatByUp[name]; ok {
			return up
		}
		return defaultChatUpstream
	}
}

// NoSysMsg reports whether the given resolved upstream id rejects
// system-roled messages. Callers must pass an already-resolved upstream
// id, never a raw client alias.
func (r *Registry) NoSysMsg(upstreamID string) bool {
	return r.noSysMsg[upstreamID]
}

// Streamable reports whether the upstream can itself stream replies for
// the given resolved upstream id.
func (r *Registry) Streamable(upstreamID string) bool {
	return r.streamable[upstreamID]
}

// ListChat returns the chat alias table in stable declaration order.
func (r *Registry) ListChat() []string {
	out := make([]string, len(r.chat))
	for i, e := range r.chat {
		out[i] = e.alias
	}
	return out
}

// ListEmbed returns the embedding alias table in stable declaration order.
func (r *Registry) ListEmbed() []string {
	out := make([]string, len(r.embed))
	for i, e := range r.embed {
		out[i] = e.alias
	}
	return out
}
