// Package tokens estimates prompt sizes for instruction budgeting.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens in a piece of text.
type Estimator interface {
	Count(text string) int
}

// Heuristic approximates one token per four characters, rounded up.
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// BPE counts tokens with the cl100k_base encoding and falls back to the
// heuristic if the codec cannot be loaded or rejects the input.
type BPE struct {
	codec    tokenizer.Codec
	fallback Heuristic
}

var (
	defaultOnce sync.Once
	defaultEst  Estimator
)

// Default returns a process-wide BPE estimator, or the heuristic when the
// encoding is unavailable.
func Default() Estimator {
	defaultOnce.Do(func() {
		est, err := NewBPE()
		if err != nil {
			defaultEst = Heuristic{}
			return
		}
		defaultEst = est
	})
	return defaultEst
}

func NewBPE() (*BPE, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return &BPE{codec: codec}, nil
}

func (b *BPE) Count(text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		return b.fallback.Count(text)
	}
	return len(ids)
}

// Truncate cuts text so that est.Count(result) <= limit. The cut is made on
// a rune boundary.
func Truncate(est Estimator, text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if est.Count(text) <= limit {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if est.Count(string(runes[:mid])) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
