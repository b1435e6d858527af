// Package bounds turns a model's answer about where the main content of a
// page starts and ends into a validated character range over the page text.
//
// The model is asked for a JSON object with two keys, BEGIN and END. Each
// holds either a short verbatim phrase (the first and last words of the main
// content) or an integer character offset into the text. Both keys must use
// the same form.
package bounds

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnparseable means the answer holds no usable BEGIN/END pair.
	ErrUnparseable = errors.New("unparseable answer")
	// ErrMarkerNotFound means the BEGIN phrase does not occur in the text.
	ErrMarkerNotFound = errors.New("begin marker not found in text")
	// ErrOutOfRange means offsets fall outside the text or are inverted.
	ErrOutOfRange = errors.New("offsets out of range")
)

// SystemPrompt instructs the model to answer with BEGIN/END phrases.
const SystemPrompt = "You are a webpage analyzer that finds where the actual content of the webpage begins. " +
	"When you receive text, return a JSON object that contains the key 'BEGIN' with the value of the first 10 words " +
	"of where the main content of the webpage begins, and the key 'END' with the value of the last 10 words of where " +
	"the main content ends. Copy the words exactly as they appear in the text."

// Answer is a parsed model reply.
type Answer struct {
	// Begin and End are verbatim phrases when Offsets is false.
	Begin string
	End   string
	// Start and Stop are character offsets when Offsets is true.
	Start   int
	Stop    int
	Offsets bool
}

// Parse reads the model reply. It tolerates code fences and prose around
// the JSON object, matches keys case-insensitively and accepts START for
// BEGIN and STOP for END. BEGIN and END win over their synonyms.
func Parse(content string) (Answer, error) {
	raw, err := jsonObject(content)
	if err != nil {
		return Answer{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	beginRaw, err := pick(fields, "begin", "start")
	if err != nil {
		return Answer{}, err
	}
	endRaw, err := pick(fields, "end", "stop")
	if err != nil {
		return Answer{}, err
	}
	if beginRaw == nil || endRaw == nil {
		return Answer{}, fmt.Errorf("%w: missing BEGIN or END", ErrUnparseable)
	}

	bs, bIsStr, err := decodeValue(beginRaw)
	if err != nil {
		return Answer{}, err
	}
	es, eIsStr, err := decodeValue(endRaw)
	if err != nil {
		return Answer{}, err
	}
	if bIsStr != eIsStr {
		return Answer{}, fmt.Errorf("%w: BEGIN and END must both be phrases or both be offsets", ErrUnparseable)
	}
	if bIsStr {
		if strings.TrimSpace(bs) == "" || strings.TrimSpace(es) == "" {
			return Answer{}, fmt.Errorf("%w: empty marker", ErrUnparseable)
		}
		return Answer{Begin: bs, End: es}, nil
	}
	start, _ := strconv.Atoi(bs)
	stop, _ := strconv.Atoi(es)
	return Answer{Start: start, Stop: stop, Offsets: true}, nil
}

// pick returns the value of the first name present in fields, compared
// case-insensitively. Two keys spelling the same name are ambiguous.
func pick(fields map[string]json.RawMessage, names ...string) (json.RawMessage, error) {
	for _, name := range names {
		var found json.RawMessage
		n := 0
		for k, v := range fields {
			if strings.EqualFold(strings.TrimSpace(k), name) {
				found = v
				n++
			}
		}
		if n > 1 {
			return nil, fmt.Errorf("%w: duplicate %s key", ErrUnparseable, strings.ToUpper(name))
		}
		if n == 1 {
			return found, nil
		}
	}
	return nil, nil
}

// jsonObject returns the outermost {...} span of s.
func jsonObject(s string) (string, error) {
	i := strings.IndexByte(s, '{')
	j := strings.LastIndexByte(s, '}')
	if i < 0 || j < i {
		return "", fmt.Errorf("%w: no JSON object in %q", ErrUnparseable, preview(s))
	}
	return s[i : j+1], nil
}

// decodeValue returns the value as a string and whether it was a JSON string.
// Numbers must be integers.
func decodeValue(v json.RawMessage) (string, bool, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, true, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", false, fmt.Errorf("%w: value %s is neither text nor a number", ErrUnparseable, string(v))
	}
	if _, err := strconv.Atoi(n.String()); err != nil {
		return "", false, fmt.Errorf("%w: offset %s is not an integer", ErrUnparseable, n)
	}
	return n.String(), false, nil
}

func preview(s string) string {
	const max = 80
	r := []rune(strings.TrimSpace(s))
	if len(r) > max {
		return string(r[:max]) + "…"
	}
	return string(r)
}
