package kernel

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Decision is the short-key JSON envelope the kernel expects from the LLM
// (spec §4.1 Short-key JSON semantics): {t: thought?, a: action?, i: input?,
// f: final?, c: confirm?, r: remember?}.
type Decision struct {
	Thought  string          `json:"t,omitempty"`
	Action   string          `json:"a,omitempty"`
	Input    json.RawMessage `json:"i,omitempty"`
	Final    string          `json:"f,omitempty"`
	Confirm  bool            `json:"c,omitempty"`
	Remember string          `json:"r,omitempty"`
}

// ParseError is raised by the short-key parser. It never halts the kernel
// on its own (spec §7): the caller converts it into a format-correction
// nudge.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

var fencedJSONBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseDecisions extracts one or more Decisions from raw assistant content.
// It accepts a bare short-key object, a batch array of objects, and content
// wrapped in fenced ```json blocks, and performs best-effort recovery via
// balanced-brace extraction when the content isn't valid JSON outright.
func ParseDecisions(content string) ([]Decision, error) {
	candidates := extractCandidates(content)

	for _, candidate := range candidates {
		normalized := normalizeStringNewlines(candidate)

		var batch []Decision
		if err := json.Unmarshal([]byte(normalized), &batch); err == nil && len(batch) > 0 {
			return batch, nil
		}

		var single Decision
		if err := json.Unmarshal([]byte(normalized), &single); err == nil && !isZeroDecision(single) {
			return []Decision{single}, nil
		}
	}

	// Best-effort recovery: scan the raw content for balanced `{...}` spans
	// and try each as a standalone Decision, tolerating stray prose around
	// or between them.
	var recovered []Decision
	for _, span := range balancedBraceSpans(content) {
		normalized := normalizeStringNewlines(span)
		var d Decision
		if err := json.Unmarshal([]byte(normalized), &d); err == nil && !isZeroDecision(d) {
			recovered = append(recovered, d)
		}
	}
	if len(recovered) > 0 {
		return recovered, nil
	}

	return nil, &ParseError{Message: "no short-key JSON decision found in assistant content"}
}

// extractCandidates returns fenced ```json blocks if present, otherwise the
// trimmed whole content as the single candidate.
func extractCandidates(content string) []string {
	matches := fencedJSONBlock.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return []string{strings.TrimSpace(content)}
	}
	candidates := make([]string, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	return candidates
}

// normalizeStringNewlines escapes literal newlines that occur inside JSON
// string literals, a common way LLM output breaks otherwise-valid JSON.
// Newlines outside of strings (formatting whitespace) are left untouched.
func normalizeStringNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\' && inString:
			b.WriteRune(r)
			escaped = true
		case r == '"':
			inString = !inString
			b.WriteRune(r)
		case r == '\n' && inString:
			b.WriteString(`\n`)
		case r == '\r' && inString:
			// drop; \n (if present) already handles the line break
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// balancedBraceSpans scans s for top-level `{...}` substrings, tracking
// string/escape state so that braces inside string values don't confuse the
// balance count.
func balancedBraceSpans(s string) []string {
	var spans []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}

func isZeroDecision(d Decision) bool {
	return d.Thought == "" && d.Action == "" && len(d.Input) == 0 &&
		d.Final == "" && !d.Confirm && d.Remember == ""
}
