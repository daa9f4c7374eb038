// Package text turns transcriptions into symbol id sequences using the Tacotron 2
// symbol table and cleaners.
package text

const (
	pad         = "_"
	special     = "-"
	punctuation = "!'(),.:;? "
	letters     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// ARPAbet phonemes from CMUDict, used inside {curly braces}.
var arpabet = []string{
	"AA", "AA0", "AA1", "AA2", "AE", "AE0", "AE1", "AE2", "AH", "AH0", "AH1", "AH2",
	"AO", "AO0", "AO1", "AO2", "AW", "AW0", "AW1", "AW2", "AY", "AY0", "AY1", "AY2",
	"B", "CH", "D", "DH", "EH", "EH0", "EH1", "EH2", "ER", "ER0", "ER1", "ER2", "EY",
	"EY0", "EY1", "EY2", "F", "G", "HH", "IH", "IH0", "IH1", "IH2", "IY", "IY0", "IY1",
	"IY2", "JH", "K", "L", "M", "N", "NG", "OW", "OW0", "OW1", "OW2", "OY", "OY0",
	"OY1", "OY2", "P", "R", "S", "SH", "T", "TH", "UH", "UH0", "UH1", "UH2", "UW",
	"UW0", "UW1", "UW2", "V", "W", "Y", "Z", "ZH",
}

// Symbols is the full table; a symbol's id is its index. Id 0 is padding.
var Symbols = buildSymbols()

var symbolToID = func() map[string]int {
	m := make(map[string]int, len(Symbols))
	for i, s := range Symbols {
		m[s] = i
	}
	return m
}()

func buildSymbols() []string {
	out := []string{pad}
	for _, group := range []string{special, punctuation, letters} {
		for _, r := range group {
			out = append(out, string(r))
		}
	}
	for _, p := range arpabet {
		out = append(out, "@"+p)
	}
	return out
}

// PadID is the id used to right-pad token sequences.
const PadID = 0

func keep(s string) bool {
	_, ok := symbolToID[s]
	return ok && s != pad && s != "~"
}
