package text

import (
	"context"
	"regexp"
	"strings"
)

var curly = regexp.MustCompile(`(?s)^(.*?)\{(.+?)\}(.*)$`)

// ToSequence converts text to symbol ids. Spans in curly braces are read as
// space separated ARPAbet, e.g. "Turn left on {HH AW1 S S T AH0 N} Street".
// Symbols outside the table are dropped.
func ToSequence(s string, cleanerNames []string) ([]int, error) {
	var seq []int
	for len(s) > 0 {
		m := curly.FindStringSubmatch(s)
		if m == nil {
			cleaned, err := Clean(s, cleanerNames)
			if err != nil {
				return nil, err
			}
			seq = append(seq, symbolsToSequence(cleaned)...)
			break
		}
		cleaned, err := Clean(m[1], cleanerNames)
		if err != nil {
			return nil, err
		}
		seq = append(seq, symbolsToSequence(cleaned)...)
		seq = append(seq, arpabetToSequence(m[2])...)
		s = m[3]
	}
	return seq, nil
}

func symbolsToSequence(s string) []int {
	out := make([]int, 0, len(s))
	for _, r := range s {
		if sym := string(r); keep(sym) {
			out = append(out, symbolToID[sym])
		}
	}
	return out
}

func arpabetToSequence(s string) []int {
	var out []int
	for _, p := range strings.Fields(s) {
		if sym := "@" + p; keep(sym) {
			out = append(out, symbolToID[sym])
		}
	}
	return out
}

// ToText converts ids back to text, wrapping ARPAbet runs in curly braces.
// Padding ids are skipped.
func ToText(seq []int) string {
	var b strings.Builder
	for _, id := range seq {
		if id <= PadID || id >= len(Symbols) {
			continue
		}
		s := Symbols[id]
		if len(s) > 1 && s[0] == '@' {
			s = "{" + s[1:] + "}"
		}
		b.WriteString(s)
	}
	return strings.ReplaceAll(b.String(), "}{", " ")
}

// Tokenizer is the local text pipeline bound to a cleaner list.
type Tokenizer struct {
	Cleaners []string
}

func NewTokenizer(cleaners ...string) *Tokenizer {
	if len(cleaners) == 0 {
		cleaners = []string{"english_cleaners"}
	}
	return &Tokenizer{Cleaners: cleaners}
}

func (t *Tokenizer) Tokenize(_ context.Context, s string) ([]int, error) {
	return ToSequence(s, t.Cleaners)
}
