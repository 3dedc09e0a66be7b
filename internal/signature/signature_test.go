package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize_StripsPathAndPosition(t *testing.T) {
	raw := "TypeError: Cannot read property 'email' of undefined at /app/src/auth.ts:42:10"
	sig := Canonicalize(raw)

	assert.True(t, strings.HasPrefix(sig, "TypeError:"), "signature: %q", sig)
	assert.Contains(t, sig, "Cannot read property 'email' of undefined")
	assert.NotContains(t, sig, "/app/src/auth.ts")
	assert.NotContains(t, sig, "42")
	assert.NotContains(t, sig, "10")
}

func TestCanonicalize_PathInvariance(t *testing.T) {
	a := Canonicalize("Error: ENOENT no such file at /Users/alice/work/api/server.js:10:3")
	b := Canonicalize("Error: ENOENT no such file at /home/ci/build/api/server.js:882:41")
	assert.Equal(t, a, b)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"TypeError: Cannot read property 'email' of undefined at /app/src/auth.ts:42:10",
		"panic: runtime error: invalid memory address 0xc000012345",
		"connection refused to host 10.0.0.1 id 123456789",
		"AssertionError: expected request 9f1c2d3e-4a5b-6c7d-8e9f-0a1b2c3d4e5f to succeed",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		assert.Equal(t, once, Canonicalize(once), "input: %q", in)
	}
}

func TestCanonicalize_FirstLineOnly(t *testing.T) {
	raw := "NullPointerException: boom\n\tat com.example.Foo.bar(Foo.java:12)\n\tat com.example.Main.main(Main.java:4)"
	sig := Canonicalize(raw)
	assert.NotContains(t, sig, "at com.example")
}

func TestCanonicalize_Substitutions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hex address", "segfault at 0xDEADBEEF in worker", "segfault at <addr> in worker"},
		{"uuid", "job 9f1c2d3e-4a5b-6c7d-8e9f-0a1b2c3d4e5f failed hard", "job <uuid> failed hard"},
		{"long digits", "request 1699999999 timed out badly", "request <num> timed out badly"},
		{"long hex hash", "object deadbeefcafe1234 missing from index", "object <hash> missing from index"},
		{"whitespace collapse", "too   many\t spaces   here", "too many spaces here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestCanonicalize_LongQuotedLiteral(t *testing.T) {
	sig := Canonicalize(`ValidationError: unexpected payload "this is a very long user supplied string value" in body`)
	assert.NotContains(t, sig, "user supplied")
	assert.Contains(t, sig, `"<str>"`)
}

func TestCanonicalize_Degenerate(t *testing.T) {
	assert.Equal(t, Sentinel, Canonicalize(""))
	assert.Equal(t, Sentinel, Canonicalize("   \n  stack below"))
	assert.Equal(t, Sentinel, Canonicalize("ok"))
	assert.Equal(t, Sentinel, Canonicalize("123"))
}

func TestCanonicalize_Truncates(t *testing.T) {
	sig := Canonicalize("Error: " + strings.Repeat("boom ", 100))
	assert.LessOrEqual(t, len(sig), MaxLength)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("a b c", "c b a"))
	assert.Equal(t, 0.0, Similarity("a b", "c d"))
	assert.InDelta(t, 0.5, Similarity("a b c", "a b d e"), 0.2)
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("a", ""))
}
