package stream_simulator

import (
	"strings"
	"testing"
)

func TestWindowsJoinToOriginal(t *testing.T) {
	text := strings.Repeat("0123456789", 7) + "abc"
	wins := windows(text, windowSize)

	if got := strings.Join(wins, ""); got != text {
		t.Errorf("joined windows = %q, want original text", got)
	}
	for i, w := range wins[:len(wins)-1] {
		if len([]rune(w)) != windowSize {
			t.Errorf("window %d has %d runes, want %d", i, len([]rune(w)), windowSize)
		}
	}
}

func TestWindowsKeepMultibyteRunesIntact(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 5)
	wins := windows(text, windowSize)

	if got := strings.Join(wins, ""); got != text {
		t.Errorf("joined windows = %q, want original text", got)
	}
}

func TestWindowsEmptyTextYieldsOneWindow(t *testing.T) {
	wins := windows("", windowSize)
	if len(wins) != 1 || wins[0] != "" {
		t.Errorf("windows(\"\") = %v, want one empty window", wins)
	}
}
