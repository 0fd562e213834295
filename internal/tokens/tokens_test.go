package tokens

import "testing"

func TestCountEmptyIsZero(t *testing.T) {
	if got := Count("", "gpt4o"); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
}

func TestCountWordsIgnoresWhitespace(t *testing.T) {
	got := Count("hello   world", "gpt4o")
	if got != 2 {
		t.Errorf("Count(\"hello   world\") = %d, want 2", got)
	}
}

func TestCountIsMonotonicWithLength(t *testing.T) {
	short := Count("hello", "gpt4o")
	longer := Count("hello there friend", "gpt4o")
	if !(longer > short) {
		t.Errorf("expected longer text to count higher: short=%d longer=%d", short, longer)
	}
}
