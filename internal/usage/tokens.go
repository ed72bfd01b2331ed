package usage

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// EstimateTokens returns an approximate token count for the given text.
// Vendors report usage inconsistently, so we estimate from the prompt and
// response text with a cl100k encoding. Falls back to a bytes/4 heuristic
// if the tokenizer is unavailable.
func EstimateTokens(text string) int64 {
	if text == "" {
		return 0
	}

	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})

	if codec != nil {
		if n, err := codec.Count(text); err == nil {
			return int64(n)
		}
	}
	return int64(len(text)+3) / 4
}
