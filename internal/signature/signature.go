// Package signature canonicalizes raw error text into short, stable
// signatures suitable for cross-session matching.
//
// Canonicalization keeps only the first line of the input, preserves a
// leading error-type token when one is present, and strips variable content
// (file paths, line:column suffixes, addresses, UUIDs, long numeric runs,
// hashes, long string literals) so that two occurrences of the same failure
// produce the same signature regardless of where or when they happened.
//
// Canonicalize never fails: degenerate inputs map to a fixed sentinel
// signature so they still group together instead of polluting the pattern
// space with near-duplicates.
package signature

import (
	"regexp"
	"strings"
)

const (
	// MaxLength bounds the canonical signature length.
	MaxLength = 200

	// minLength is the shortest signature considered meaningful. Anything
	// shorter maps to Sentinel.
	minLength = 5

	// Sentinel is the fixed signature assigned to degenerate inputs.
	Sentinel = "unparseable-error"
)

// substitution pairs a compiled regex with its replacement token. The slice
// is applied in order; ordering matters (paths must be collapsed before the
// bare :line:col rule runs on what is left behind them).
type substitution struct {
	regex   *regexp.Regexp
	replace string
}

var substitutions = []substitution{
	// Absolute and relative file paths, Windows drive paths included.
	{regexp.MustCompile(`(?:[A-Za-z]:)?(?:[\\/][\w.@~-]+){2,}`), "<path>"},
	// Trailing :line or :line:col position suffixes.
	{regexp.MustCompile(`:\d+(?::\d+)?\b`), ""},
	// Memory-address-like hex tokens.
	{regexp.MustCompile(`\b0[xX][0-9a-fA-F]+\b`), "<addr>"},
	// UUIDs.
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), "<uuid>"},
	// Long hex runs (commit hashes, digests).
	{regexp.MustCompile(`\b[0-9a-fA-F]{12,}\b`), "<hash>"},
	// Long digit runs (timestamps, row ids, ports embedded in messages).
	{regexp.MustCompile(`\b\d{4,}\b`), "<num>"},
	// Long quoted string literals; short ones often carry identity
	// (field names, keys) and are kept.
	{regexp.MustCompile(`"[^"]{24,}"`), `"<str>"`},
	{regexp.MustCompile(`'[^']{24,}'`), `'<str>'`},
}

// errTypePrefix matches a leading error-type token such as "TypeError:" or
// "java.lang.NullPointerException:".
var errTypePrefix = regexp.MustCompile(`^\s*([A-Za-z][\w.$]*(?:Error|Exception|Panic|Fault)):\s*`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Canonicalize converts raw error or log text into a stable signature.
// It never returns an empty string.
func Canonicalize(raw string) string {
	line := firstLine(raw)
	if strings.TrimSpace(line) == "" {
		return Sentinel
	}

	var prefix string
	if m := errTypePrefix.FindStringSubmatch(line); m != nil {
		prefix = m[1] + ": "
		line = line[len(m[0]):]
	}

	for _, sub := range substitutions {
		line = sub.regex.ReplaceAllString(line, sub.replace)
	}

	line = whitespaceRun.ReplaceAllString(line, " ")
	line = strings.TrimSpace(line)

	sig := prefix + line
	if len(sig) > MaxLength {
		sig = sig[:MaxLength]
	}
	if len(strings.TrimSpace(sig)) < minLength {
		return Sentinel
	}
	return sig
}

// firstLine returns the text up to the first newline, trimmed of a carriage
// return. Stack traces below the first line are deliberately discarded; this
// under-distinguishes errors that share a first line but differ in cause,
// a known precision/recall trade-off.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, "\r")
}

// Similarity computes Jaccard similarity over whitespace-separated tokens of
// two signatures. Returns a value in [0,1]; identical token sets score 1.
// Used for fuzzy matching when an exact signature lookup misses.
func Similarity(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}

	union := len(set)
	intersect := 0
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			intersect++
		} else {
			union++
		}
	}
	return float64(intersect) / float64(union)
}
