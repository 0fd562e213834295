// Package tokens implements the proxy's single, uniform token counter.
// Every code path that needs a token count — prompt accounting, completion
// accounting, responses usage — goes through Count, so no path can drift
// back to a whitespace-split approximation.
package tokens

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/words"
)

// Count returns an approximate token count for text, segmenting on Unicode
// word boundaries (UAX #29) and discarding pure-whitespace segments. model
// is accepted for interface parity with a per-model tokenizer but is not
// currently used to vary the count.
func Count(text string, model string) int {
	if text == "" {
		return 0
	}

	toks := words.FromString(text)
	count := 0
	for toks.Next() {
		if strings.TrimSpace(toks.Value()) != "" {
			count++
		}
	}
	return count
}
