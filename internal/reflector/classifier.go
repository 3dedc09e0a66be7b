package reflector

import (
	"regexp"
)

// GeneralStrategy is the fallback tag when no rule matches a hypothesis.
const GeneralStrategy = "general-logic-fix"

// Classifier derives strategy tags from the free text of a hypothesis.
// Implementations must return at least one tag.
type Classifier interface {
	Classify(text string) []string
}

// rule pairs one topic pattern with the tag it assigns.
type rule struct {
	tag string
	re  *regexp.Regexp
}

// RegexClassifier matches hypothesis text against an ordered rule table.
// The table is deliberately simple and auditable; swap in a different
// Classifier if something smarter is ever needed.
type RegexClassifier struct {
	rules []rule
}

var _ Classifier = (*RegexClassifier)(nil)

// DefaultClassifier returns the built-in rule table. Rules are evaluated in
// order and every matching tag is kept, so the first tag reflects the most
// specific topic found.
func DefaultClassifier() *RegexClassifier {
	return &RegexClassifier{rules: []rule{
		{"mock-lifecycle-fix", regexp.MustCompile(`(?i)\b(mock|stub|spy|fixture)\b|\bteardown\b|\breset\b.*\b(test|state)\b`)},
		{"cache-invalidation", regexp.MustCompile(`(?i)\bcache\b|\binvalidat|\bstale\b|\bevict`)},
		{"timeout-config-fix", regexp.MustCompile(`(?i)\bttl\b|\btimeout\b|\bexpir|\bdeadline\b`)},
		{"concurrency-fix", regexp.MustCompile(`(?i)\brace\b|\bconcurren|\bdeadlock\b|\bmutex\b|\batomic\b|\block(ing|ed)?\b`)},
		{"null-check-fix", regexp.MustCompile(`(?i)\bnil\b|\bnull\b|\bundefined\b|\bNoneType\b`)},
		{"dependency-fix", regexp.MustCompile(`(?i)\bdependenc|\bupgrad|\bdowngrad|\bpin(ned)?\b.*\bversion\b|\bversion\b.*\b(bump|mismatch)\b`)},
		{"config-fix", regexp.MustCompile(`(?i)\bconfig|\benv(ironment)?\b|\bflag\b|\bsetting\b`)},
		{"async-flow-fix", regexp.MustCompile(`(?i)\basync\b|\bawait\b|\bpromise\b|\bcallback\b|\bgoroutine\b|\bchannel\b`)},
		{"type-fix", regexp.MustCompile(`(?i)\btype\b|\bcast\b|\bcoerc|\bschema\b`)},
	}}
}

// Classify returns every matching tag in rule order, or the general
// fallback when nothing matches.
func (c *RegexClassifier) Classify(text string) []string {
	var tags []string
	for _, r := range c.rules {
		if r.re.MatchString(text) {
			tags = append(tags, r.tag)
		}
	}
	if len(tags) == 0 {
		tags = []string{GeneralStrategy}
	}
	return tags
}
