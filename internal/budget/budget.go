// Package budget sizes prompts against a model's context window using a
// conservative character-based token estimate.
package budget

import (
	"math"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the ~4 chars per token heuristic for English text.
const charsPerToken = 4

// EstimateTokensFromChars converts a character count into an estimated token
// count, rounding up. The result is at least 1 when charCount > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / charsPerToken))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(utf8.RuneCountInString(s))
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to 8192.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	for _, s := range suffixSizes {
		if strings.HasSuffix(name, s.suffix) {
			return s.tokens
		}
	}
	if strings.HasPrefix(name, "gpt-4o") || strings.HasPrefix(name, "gpt-4.1") || strings.Contains(name, "-mini") {
		return 128_000
	}
	return 8192
}

// HeadroomTokens is subtracted from the context so framing and tokenizer
// drift never overrun it: the larger of 5% of the context or 512 tokens.
func HeadroomTokens(modelName string) int {
	dyn := int(math.Ceil(float64(ModelContextTokens(modelName)) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// RemainingContextWithHeadroom computes remaining input tokens after the
// output reservation, headroom and the fixed part of the prompt. Never negative.
func RemainingContextWithHeadroom(modelName string, reservedForOutput int, promptTokens int) int {
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	remaining := ModelContextTokens(modelName) - HeadroomTokens(modelName) - reservedForOutput - promptTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FitText truncates text so that fixed (the rest of the prompt) plus text fits
// the model's context. It cuts on a rune boundary and, when possible, at the
// last space before the limit. The second result reports truncation.
func FitText(modelName string, reservedForOutput int, fixed string, text string) (string, bool) {
	room := RemainingContextWithHeadroom(modelName, reservedForOutput, EstimateTokens(fixed))
	maxChars := room * charsPerToken
	if utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	if maxChars <= 0 {
		return "", true
	}
	runes := []rune(text)
	cut := string(runes[:maxChars])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut, true
}

var knownModelMax = map[string]int{
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4-turbo":   128_000,
	"gpt-4":         8_192,
	"gpt-3.5-turbo": 16_384,
	"gpt-4.1":       1_000_000,
	"gpt-4.1-mini":  1_000_000,

	"llama-3":   8_192,
	"llama-3.1": 128_000,

	"gpt-oss-20b":        4_096,
	"openai/gpt-oss-20b": 4_096,
}

var suffixSizes = []struct {
	suffix string
	tokens int
}{
	{"1m", 1_000_000},
	{"512k", 512_000},
	{"200k", 200_000},
	{"128k", 128_000},
	{"32k", 32_768},
	{"16k", 16_384},
}
