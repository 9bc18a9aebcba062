package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func getEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		encoding = enc
	})
	return encoding
}

// CountTokens estimates the token count of text. Falls back to a bytes/4
// heuristic when the encoding cannot be loaded.
func CountTokens(text string) int {
	enc := getEncoding()
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// ClipToTokenBudget truncates text to at most budget tokens. Texts within
// the budget are returned unchanged.
func ClipToTokenBudget(text string, budget int) string {
	if budget <= 0 || text == "" {
		return ""
	}
	enc := getEncoding()
	if enc == nil {
		max := budget * 4
		if len(text) <= max {
			return text
		}
		return text[:max]
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}
