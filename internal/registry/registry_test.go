package registry

import "testing"

func TestResolveKnownAlias(t *testing.T) {
	r := New()
	if got := r.Resolve("argo:gpt-4o", Chat); got != "gpt4o" {
		t.Errorf("Resolve(argo:gpt-4o) = %q, want gpt4o", got)
	}
}

func TestResolveUnknownYieldsKindDefault(t *testing.T) {
	r := New()
	if got := r.Resolve("not-a-model", Chat); got != "gpt4o" {
		t.Errorf("Resolve(unknown, Chat) = %q, want gpt4o", got)
	}
	if got := r.Resolve("not-a-model", Embedding); got != "v3small" {
		t.Errorf("Resolve(unknown, Embedding) = %q, want v3small", got)
	}
}

func TestResolveAlreadyUpstreamID(t *testing.T) {
	r := New()
	if got := r.Resolve("gpt35", Chat); got != "gpt35" {
		t.Errorf("Resolve(gpt35) = %q, want gpt35", got)
	}
}

func TestNoSysMsgMatchesGlobPatterns(t *testing.T) {
	r := New()
	for _, up := range []string{"gpto1preview", "gpto1mini", "gpto3mini"} {
		if !r.NoSysMsg(up) {
			t.Errorf("NoSysMsg(%q) = false, want true", up)
		}
	}
	if r.NoSysMsg("gpt4o") {
		t.Error("NoSysMsg(gpt4o) = true, want false")
	}
}

func TestStreamableExcludesOModels(t *testing.T) {
	r := New()
	if !r.Streamable("gpt4o") {
		t.Error("Streamable(gpt4o) = false, want true")
	}
	if r.Streamable("gpto1mini") {
		t.Error("Streamable(gpto1mini) = true, want false")
	}
}

func TestListChatAndEmbedStable(t *testing.T) {
	r := New()
	chat := r.ListChat()
	if len(chat) != 9 {
		t.Errorf("len(ListChat()) = %d, want 9", len(chat))
	}
	if chat[0] != "argo:gpt-3.5-turbo" {
		t.Errorf("ListChat()[0] = %q, want argo:gpt-3.5-turbo", chat[0])
	}
	embed := r.ListEmbed()
	if len(embed) != 3 {
		t.Errorf("len(ListEmbed()) = %d, want 3", len(embed))
	}
}
