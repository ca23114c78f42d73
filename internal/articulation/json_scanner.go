package articulation

import (
	"encoding/json"
	"regexp"
	"strings"

	"foodiebot/internal/types"
)

// The LLM is instructed to return exactly one JSON object, but in practice
// responses arrive wrapped in prose, markdown fences, or with small syntax
// defects. The helpers here isolate and repair a JSON object from untrusted
// response text. Residual failures surface as types.ErrMalformedResponse,
// never as an unrecoverable fault.

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// repairJSON normalizes common LLM formatting defects: trailing commas
// before closing braces/brackets and stray non-breaking spaces.
func repairJSON(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(s)
}

// braceSpan isolates the outermost JSON object by scanning for the first
// '{' and the last '}'. Defensive against prose wrapping; returns "" when
// no object-shaped span exists.
func braceSpan(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// findJSONCandidates scans the input for complete top-level JSON objects
// using a byte-level state machine that is aware of strings and escape
// sequences. It is safe to iterate bytes for the ASCII delimiters because
// UTF-8 guarantees ASCII bytes never occur inside a multi-byte sequence.
func findJSONCandidates(s string) []string {
	var candidates []string
	var depth int
	start := -1
	var inString, escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
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
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}

// DecodeObject extracts and parses a JSON object from raw LLM response
// text. It tries, in order: each complete balanced object found by the
// scanner, then the coarse first-{ / last-} span. Every candidate is
// repaired before parsing. Returns types.ErrMalformedResponse when nothing
// parses.
func DecodeObject(raw string, out any) error {
	if raw == "" || !strings.Contains(raw, "{") {
		return types.ErrMalformedResponse
	}

	for _, cand := range findJSONCandidates(raw) {
		if err := json.Unmarshal([]byte(repairJSON(cand)), out); err == nil {
			return nil
		}
	}

	if span := braceSpan(raw); span != "" {
		if err := json.Unmarshal([]byte(repairJSON(span)), out); err == nil {
			return nil
		}
	}

	return types.ErrMalformedResponse
}
