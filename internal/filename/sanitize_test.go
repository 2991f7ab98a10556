package filename

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var safe = regexp.MustCompile(`^[A-Za-z0-9._-]*$`)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Alice_Night Owl_1700000000.pdf": "Alice_Night_Owl_1700000000.pdf",
		"../../etc/passwd":               ".._.._etc_passwd",
		"José":                           "Jos_",
		"a/b\\c:d*e?f":                   "a_b_c_d_e_f",
		"plain-name_1.pdf":               "plain-name_1.pdf",
		"":                               "",
		"日本":                             "__",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), in)
	}
}

func TestSanitize_IdempotentAndSafe(t *testing.T) {
	inputs := []string{
		"", "x", "Night Owl", "tab\tnew\nline", "emoji 🦉 owl", "%00null", "..", "a b c", "ÅÄÖ åäö",
		string([]byte{0xff, 0xfe, 'a'}),
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), in)
		assert.Regexp(t, safe, once, in)
		if in != "" {
			assert.NotEmpty(t, once, in)
		}
	}
}

func TestForReport(t *testing.T) {
	at := time.Unix(1700000000, 999)
	assert.Equal(t, "Alice_Night_Owl_1700000000.pdf", ForReport("Alice", "Night Owl", at))
	assert.Equal(t, "a_b_c_1700000000.pdf", ForReport("a/b", "c", at))
}
