// Package tokenize partitions sentence text into addressable spans.
//
// Offsets are code-point (rune) offsets, the unit the sentence store uses
// for entity spans.
package tokenize

import "unicode"

// Token is a maximal run of either whitespace or non-whitespace runes.
type Token struct {
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	IsSpace bool   `json:"isSpace"`
}

// Tokenize splits text into an ordered, gap-free sequence of word and
// whitespace tokens. Concatenating Text over the result reproduces text;
// the first token starts at 0 and the last ends at the rune length.
// The result is never nil.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, 8)

	var (
		runStart   int  // rune offset of current run
		byteStart  int  // byte offset of current run
		runIsSpace bool // kind of current run
		pos        int  // rune offset of r
		started    bool
	)

	for i, r := range text {
		space := isSeparator(r)
		if !started {
			runIsSpace = space
			started = true
		} else if space != runIsSpace {
			tokens = append(tokens, Token{
				Text:    text[byteStart:i],
				Start:   runStart,
				End:     pos,
				IsSpace: runIsSpace,
			})
			runStart, byteStart, runIsSpace = pos, i, space
		}
		pos++
	}

	if started {
		tokens = append(tokens, Token{
			Text:    text[byteStart:],
			Start:   runStart,
			End:     pos,
			IsSpace: runIsSpace,
		})
	}
	return tokens
}

// Lookup returns the token whose span is exactly [start,end).
// Tokens must be the output of Tokenize.
func Lookup(tokens []Token, start, end int) (Token, bool) {
	lo, hi := 0, len(tokens)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case tokens[mid].Start < start:
			lo = mid + 1
		case tokens[mid].Start > start:
			hi = mid
		default:
			if tokens[mid].End == end {
				return tokens[mid], true
			}
			return Token{}, false
		}
	}
	return Token{}, false
}

// LookupWord is Lookup restricted to non-space tokens.
func LookupWord(tokens []Token, start, end int) (Token, bool) {
	tok, ok := Lookup(tokens, start, end)
	if !ok || tok.IsSpace {
		return Token{}, false
	}
	return tok, true
}

// Words returns the non-space tokens in order.
func Words(tokens []Token) []Token {
	words := make([]Token, 0, len(tokens)/2+1)
	for _, t := range tokens {
		if !t.IsSpace {
			words = append(words, t)
		}
	}
	return words
}

// isSeparator reports whether r separates tokens. The set is the Unicode
// Space_Separator category plus the ASCII controls \t \n \v \f \r, the
// line and paragraph separators, and U+FEFF. U+0085 is not a separator.
func isSeparator(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', 0x2028, 0x2029, 0xFEFF:
		return true
	}
	return unicode.Is(unicode.Zs, r)
}
