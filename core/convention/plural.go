package convention

import "strings"

// suffixRule rewrites a trailing suffix. When vowelBefore is set the rule
// applies only if the letter before the suffix is (true) or is not (false)
// a vowel.
type suffixRule struct {
	suffix      string
	replace     string
	vowelBefore *bool
}

var (
	yes = true
	no  = false
)

// pluralRules are tried in order; the first match wins.
var pluralRules = []suffixRule{
	{suffix: "quy", replace: "quies"},
	{suffix: "y", replace: "ies", vowelBefore: &no},
	{suffix: "ix", replace: "ices"},
	{suffix: "ex", replace: "ices", vowelBefore: &no},
	{suffix: "sis", replace: "ses"},
	{suffix: "fe", replace: "ves"},
	{suffix: "lf", replace: "lves"},
	{suffix: "af", replace: "aves"},
	{suffix: "ch", replace: "ches"},
	{suffix: "sh", replace: "shes"},
	{suffix: "ss", replace: "sses"},
	{suffix: "us", replace: "uses"},
	{suffix: "x", replace: "xes"},
	{suffix: "quiz", replace: "quizzes"},
	{suffix: "z", replace: "zes"},
	{suffix: "s", replace: "ses"},
}

// irregular maps singular to plural forms no rule derives.
var irregular = map[string]string{
	"child":  "children",
	"datum":  "data",
	"foot":   "feet",
	"goose":  "geese",
	"man":    "men",
	"medium": "media",
	"mouse":  "mice",
	"ox":     "oxen",
	"person": "people",
	"tooth":  "teeth",
	"woman":  "women",
}

var uncountable = map[string]bool{
	"equipment":   true,
	"information": true,
	"metadata":    true,
	"money":       true,
	"news":        true,
	"series":      true,
	"sheep":       true,
	"species":     true,
}

// Pluralize returns the English plural of word. In underscored compounds
// only the last segment changes ("album_track" -> "album_tracks").
// A leading capital is kept.
func Pluralize(word string) string {
	head, last := "", word
	if i := strings.LastIndexByte(word, '_'); i >= 0 && i < len(word)-1 {
		head, last = word[:i+1], word[i+1:]
	}
	if last == "" {
		return word
	}

	lower := strings.ToLower(last)
	if uncountable[lower] {
		return word
	}
	if plural, ok := irregular[lower]; ok {
		if last[0] >= 'A' && last[0] <= 'Z' {
			plural = strings.ToUpper(plural[:1]) + plural[1:]
		}
		return head + plural
	}

	for _, r := range pluralRules {
		if !r.matches(lower) {
			continue
		}
		return head + last[:len(last)-len(r.suffix)] + r.replace
	}
	return head + last + "s"
}

func (r suffixRule) matches(word string) bool {
	if !strings.HasSuffix(word, r.suffix) {
		return false
	}
	if r.vowelBefore == nil {
		return true
	}
	n := len(word) - len(r.suffix)
	if n == 0 {
		return false
	}
	return isVowel(word[n-1]) == *r.vowelBefore
}

func isVowel(c byte) bool {
	return strings.IndexByte("aeiou", c) >= 0
}
