// Package extract turns raw model completions into text, JSON objects or JSON arrays.
// Decoding never fails from the caller's point of view: an unparseable completion
// yields a fixed sentinel value instead of an error.
package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Sentinel values substituted when a completion cannot be decoded.
const (
	MetadataParseError = "Could not parse lease metadata"

	SentinelClause         = "Error parsing response"
	SentinelIssue          = "Could not analyze lease"
	SentinelSeverity       = "Unknown"
	SentinelRecommendation = "Manual review required"
)

// Strategy selects how hard the extractor works before falling back.
type Strategy string

const (
	// StrategyGreedy decodes only the span from the first opening bracket
	// to the last closing bracket.
	StrategyGreedy Strategy = "greedy"
	// StrategyHardened also tries fenced code blocks, balanced spans and
	// common model artefacts (comments, trailing commas).
	StrategyHardened Strategy = "hardened"
)

// maxBalancedCandidates bounds the balanced-span scan on long completions.
const maxBalancedCandidates = 64

var (
	objectPattern      = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayPattern       = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	objectBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	arrayBlockPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	trailingComma      = regexp.MustCompile(`,\s*([}\]])`)
)

// Extractor decodes completions. The zero value is not usable; call New.
type Extractor struct {
	strategy   Strategy
	logger     *slog.Logger
	onFallback func(shape string)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithStrategy sets the decoding strategy. Unknown values fall back to hardened.
func WithStrategy(s Strategy) Option {
	return func(e *Extractor) {
		if s == StrategyGreedy || s == StrategyHardened {
			e.strategy = s
		}
	}
}

// WithLogger sets the logger used to report sentinel substitutions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFallbackObserver registers fn to be called with the shape ("object" or
// "array") each time a sentinel is substituted.
func WithFallbackObserver(fn func(shape string)) Option {
	return func(e *Extractor) {
		e.onFallback = fn
	}
}

// New returns an Extractor using the hardened strategy by default.
func New(opts ...Option) *Extractor {
	e := &Extractor{strategy: StrategyHardened, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy returns the configured strategy.
func (e *Extractor) Strategy() Strategy { return e.strategy }

// Text returns the completion unchanged.
func (e *Extractor) Text(completion string) string {
	return completion
}

// Object decodes a JSON object from completion, or returns the metadata sentinel
// {"error": ..., "raw_response": completion}.
func (e *Extractor) Object(completion string) map[string]any {
	for _, c := range e.candidates(completion, objectPattern, objectBlockPattern, '{', '}') {
		if obj, ok := decodeObject(c); ok {
			return obj
		}
	}
	e.fallback("object", completion)
	return MetadataSentinel(completion)
}

// Array decodes a JSON array of objects from completion, or returns a
// single-element slice holding the clause sentinel.
func (e *Extractor) Array(completion string) []map[string]any {
	for _, c := range e.candidates(completion, arrayPattern, arrayBlockPattern, '[', ']') {
		if arr, ok := decodeArray(c); ok {
			return arr
		}
	}
	e.fallback("array", completion)
	return []map[string]any{ClauseSentinel()}
}

// MetadataSentinel is the object returned when metadata cannot be decoded.
func MetadataSentinel(raw string) map[string]any {
	return map[string]any{
		"error":        MetadataParseError,
		"raw_response": raw,
	}
}

// ClauseSentinel is the clause returned when an issue list cannot be decoded.
func ClauseSentinel() map[string]any {
	return map[string]any{
		"clause":              SentinelClause,
		"issue":               SentinelIssue,
		"severity":            SentinelSeverity,
		"potentially_illegal": false,
		"recommendation":      SentinelRecommendation,
	}
}

// candidates lists the substrings to try decoding, in order.
func (e *Extractor) candidates(completion string, greedy, fenced *regexp.Regexp, open, closing byte) []string {
	span := greedy.FindString(completion)
	if span == "" {
		// Nothing bracketed: the whole completion is the only candidate.
		return []string{completion}
	}
	out := []string{span}
	if e.strategy != StrategyHardened {
		return out
	}

	if m := fenced.FindStringSubmatch(completion); len(m) > 1 {
		out = append(out, m[1])
	}
	out = append(out, balancedSpans(completion, open, closing)...)

	n := len(out)
	for i := 0; i < n; i++ {
		if cleaned := cleanJSON(out[i]); cleaned != out[i] {
			out = append(out, cleaned)
		}
	}
	return out
}

func (e *Extractor) fallback(shape, completion string) {
	e.logger.Warn("model response could not be decoded, using sentinel",
		"shape", shape,
		"strategy", string(e.strategy),
		"response_len", len(completion),
		"response", truncate(completion, 500),
	)
	if e.onFallback != nil {
		e.onFallback(shape)
	}
}

func decodeObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func decodeArray(s string) ([]map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return nil, false
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, obj)
	}
	return out, true
}

// balancedSpans returns every bracket-balanced substring starting at an
// opening bracket, in order of position. Brackets inside JSON strings are ignored.
func balancedSpans(s string, open, closing byte) []string {
	var spans []string
	for start := 0; start < len(s) && len(spans) < maxBalancedCandidates; start++ {
		if s[start] != open {
			continue
		}
		if end := matchBracket(s, start, open, closing); end > 0 {
			spans = append(spans, s[start:end+1])
		}
	}
	return spans
}

// matchBracket returns the index of the bracket closing s[start], or -1.
func matchBracket(s string, start int, open, closing byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// cleanJSON removes // comments outside strings and trailing commas.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingComma.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a trailing // comment from one line, respecting string values.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// truncate cuts s to maxBytes without splitting UTF-8 runes.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
