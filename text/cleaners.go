package text

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Cleaner func(string) string

var cleaners = map[string]Cleaner{
	"basic_cleaners":           basicCleaners,
	"transliteration_cleaners": transliterationCleaners,
	"english_cleaners":         englishCleaners,
}

// Clean applies the named cleaners in order.
func Clean(s string, names []string) (string, error) {
	for _, name := range names {
		c, ok := cleaners[name]
		if !ok {
			return "", fmt.Errorf("unknown cleaner %q", name)
		}
		s = c(s)
	}
	return s, nil
}

var whitespace = regexp.MustCompile(`\s+`)

var abbreviations = []struct {
	re   *regexp.Regexp
	full string
}{
	{abbrev("mrs"), "misess"},
	{abbrev("mr"), "mister"},
	{abbrev("dr"), "doctor"},
	{abbrev("st"), "saint"},
	{abbrev("co"), "company"},
	{abbrev("jr"), "junior"},
	{abbrev("maj"), "major"},
	{abbrev("gen"), "general"},
	{abbrev("drs"), "doctors"},
	{abbrev("rev"), "reverend"},
	{abbrev("lt"), "lieutenant"},
	{abbrev("hon"), "honorable"},
	{abbrev("sgt"), "sergeant"},
	{abbrev("capt"), "captain"},
	{abbrev("esq"), "esquire"},
	{abbrev("ltd"), "limited"},
	{abbrev("col"), "colonel"},
	{abbrev("ft"), "fort"},
}

func abbrev(a string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + a + `\.`)
}

func expandAbbreviations(s string) string {
	for _, a := range abbreviations {
		s = a.re.ReplaceAllString(s, a.full)
	}
	return s
}

func collapseWhitespace(s string) string { return whitespace.ReplaceAllString(s, " ") }

// toASCII decomposes accented characters, drops the marks and then anything that
// is still outside ASCII.
func toASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, out)
}

func basicCleaners(s string) string {
	return collapseWhitespace(strings.ToLower(s))
}

func transliterationCleaners(s string) string {
	return collapseWhitespace(strings.ToLower(toASCII(s)))
}

func englishCleaners(s string) string {
	s = toASCII(s)
	s = strings.ToLower(s)
	s = normalizeNumbers(s)
	s = expandAbbreviations(s)
	return collapseWhitespace(s)
}
