package text

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	commaNumberRe = regexp.MustCompile(`([0-9][0-9,]+[0-9])`)
	poundsRe      = regexp.MustCompile(`£([0-9,]*[0-9]+)`)
	dollarsRe     = regexp.MustCompile(`\$([0-9.,]*[0-9]+)`)
	decimalRe     = regexp.MustCompile(`([0-9]+\.[0-9]+)`)
	ordinalRe     = regexp.MustCompile(`[0-9]+(st|nd|rd|th)`)
	numberRe      = regexp.MustCompile(`[0-9]+`)
)

var ones = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

var scales = []string{"", "thousand", "million", "billion", "trillion", "quadrillion", "quintillion"}

func normalizeNumbers(s string) string {
	s = commaNumberRe.ReplaceAllStringFunc(s, func(m string) string { return strings.ReplaceAll(m, ",", "") })
	s = poundsRe.ReplaceAllString(s, "$1 pounds")
	s = dollarsRe.ReplaceAllStringFunc(s, func(m string) string { return expandDollars(m[1:]) })
	s = decimalRe.ReplaceAllStringFunc(s, func(m string) string { return strings.ReplaceAll(m, ".", " point ") })
	s = ordinalRe.ReplaceAllStringFunc(s, func(m string) string { return ordinal(cardinal(m[:len(m)-2])) })
	return numberRe.ReplaceAllStringFunc(s, expandNumber)
}

func expandDollars(m string) string {
	m = strings.ReplaceAll(m, ",", "")
	parts := strings.Split(m, ".")
	if len(parts) > 2 {
		return m + " dollars"
	}
	dollars, _ := strconv.Atoi(parts[0])
	cents := 0
	if len(parts) > 1 && parts[1] != "" {
		cents, _ = strconv.Atoi(parts[1])
	}
	unit := func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	}
	switch {
	case dollars != 0 && cents != 0:
		return strconv.Itoa(dollars) + " " + unit(dollars, "dollar", "dollars") + ", " +
			strconv.Itoa(cents) + " " + unit(cents, "cent", "cents")
	case dollars != 0:
		return strconv.Itoa(dollars) + " " + unit(dollars, "dollar", "dollars")
	case cents != 0:
		return strconv.Itoa(cents) + " " + unit(cents, "cent", "cents")
	default:
		return "zero dollars"
	}
}

// expandNumber reads four digit numbers between 1000 and 3000 as years.
func expandNumber(m string) string {
	n, err := strconv.ParseUint(m, 10, 64)
	if err != nil {
		return spellDigits(m)
	}
	if n <= 1000 || n >= 3000 {
		return cardinal(m)
	}
	switch {
	case n == 2000:
		return "two thousand"
	case n > 2000 && n < 2010:
		return "two thousand " + under100(int(n%100))
	case n%100 == 0:
		return under100(int(n/100)) + " hundred"
	default:
		return pair(int(n/100)) + " " + pair(int(n%100))
	}
}

// pair reads a two digit group, a leading zero spoken as "oh".
func pair(n int) string {
	if n < 10 {
		return "oh " + ones[n]
	}
	return under100(n)
}

func under100(n int) string {
	if n < 20 {
		return ones[n]
	}
	w := tens[n/10]
	if n%10 != 0 {
		w += "-" + ones[n%10]
	}
	return w
}

func under1000(n int) string {
	if n < 100 {
		return under100(n)
	}
	w := ones[n/100] + " hundred"
	if n%100 != 0 {
		w += " " + under100(n%100)
	}
	return w
}

// cardinal spells a digit string, thousands groups separated by ", ".
func cardinal(digits string) string {
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return spellDigits(digits)
	}
	if n == 0 {
		return ones[0]
	}
	var groups []string
	for i := 0; n > 0; i++ {
		g := int(n % 1000)
		n /= 1000
		if g == 0 {
			continue
		}
		w := under1000(g)
		if scales[i] != "" {
			w += " " + scales[i]
		}
		groups = append([]string{w}, groups...)
	}
	return strings.Join(groups, ", ")
}

func spellDigits(digits string) string {
	words := make([]string, 0, len(digits))
	for _, r := range digits {
		words = append(words, ones[r-'0'])
	}
	return strings.Join(words, " ")
}

var ordinalIrregular = map[string]string{
	"one": "first", "two": "second", "three": "third", "five": "fifth",
	"eight": "eighth", "nine": "ninth", "twelve": "twelfth",
}

// ordinal rewrites the last word of a cardinal.
func ordinal(words string) string {
	cut := strings.LastIndexAny(words, " -")
	head, last := words[:cut+1], words[cut+1:]
	if o, ok := ordinalIrregular[last]; ok {
		return head + o
	}
	if strings.HasSuffix(last, "y") {
		return head + strings.TrimSuffix(last, "y") + "ieth"
	}
	return head + last + "th"
}
