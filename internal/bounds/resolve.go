package bounds

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Range is a half-open span [Start, End) of character (rune) offsets.
type Range struct {
	Start int
	End   int
}

// Len returns the number of characters in the range.
func (r Range) Len() int { return r.End - r.Start }

// Resolve maps an answer onto text.
//
// Offsets must satisfy 0 <= Start <= Stop <= len(text) in characters.
// Phrases resolve to the span starting at the first occurrence of Begin and
// ending after the first occurrence of End that follows it, both included.
// When End never follows Begin the span runs to the end of the text.
func Resolve(text string, a Answer) (Range, error) {
	if a.Offsets {
		r := Range{Start: a.Start, End: a.Stop}
		if err := check(text, r); err != nil {
			return Range{}, err
		}
		return r, nil
	}

	bStart, bLen, ok := find(text, a.Begin)
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrMarkerNotFound, preview(a.Begin))
	}
	bEnd := bStart + bLen
	stop := len(text)
	if eStart, eLen, ok := find(text[bEnd:], a.End); ok {
		stop = bEnd + eStart + eLen
	}
	return Range{
		Start: utf8.RuneCountInString(text[:bStart]),
		End:   utf8.RuneCountInString(text[:stop]),
	}, nil
}

// Slice returns the characters of text covered by r.
func Slice(text string, r Range) (string, error) {
	if err := check(text, r); err != nil {
		return "", err
	}
	return text[byteOffset(text, r.Start):byteOffset(text, r.End)], nil
}

func check(text string, r Range) error {
	n := utf8.RuneCountInString(text)
	if r.Start < 0 || r.Start > r.End || r.End > n {
		return fmt.Errorf("%w: start=%d end=%d length=%d", ErrOutOfRange, r.Start, r.End, n)
	}
	return nil
}

// byteOffset converts a rune offset already known to be in range.
func byteOffset(text string, runes int) int {
	if runes == 0 {
		return 0
	}
	i := 0
	for pos := range text {
		if i == runes {
			return pos
		}
		i++
	}
	return len(text)
}

// find locates marker in text, first verbatim (after whitespace folding and
// NFC), then with the quotes and ellipses models like to add stripped off.
// It returns a byte index and byte length within text.
func find(text, marker string) (int, int, bool) {
	for _, m := range candidates(marker) {
		if i := strings.Index(text, m); i >= 0 {
			return i, len(m), true
		}
	}
	return 0, 0, false
}

func candidates(marker string) []string {
	folded := norm.NFC.String(strings.Join(strings.Fields(marker), " "))
	if folded == "" {
		return nil
	}
	out := []string{folded}
	if trimmed := trimDecoration(folded); trimmed != "" && trimmed != folded {
		out = append(out, trimmed)
	}
	return out
}

func trimDecoration(s string) string {
	const quotes = "\"'`“”‘’«»"
	for {
		prev := s
		s = strings.TrimSpace(s)
		s = strings.Trim(s, quotes)
		s = strings.TrimSuffix(s, "...")
		s = strings.TrimSuffix(s, "…")
		s = strings.TrimPrefix(s, "...")
		s = strings.TrimPrefix(s, "…")
		if s == prev {
			return s
		}
	}
}
