package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	hyphenBreakRe = regexp.MustCompile(`(\p{L})-\n\s*(\p{Ll})`)
	spaceRunRe    = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
)

// superscripts and subscripts would be flattened into plain digits by NFKC
// (x² -> x2), so they are rewritten with explicit markers first.
var scriptReplacer = strings.NewReplacer(
	"⁰", "^0", "¹", "^1", "²", "^2", "³", "^3", "⁴", "^4",
	"⁵", "^5", "⁶", "^6", "⁷", "^7", "⁸", "^8", "⁹", "^9",
	"⁺", "^+", "⁻", "^-", "ⁿ", "^n",
	"₀", "_0", "₁", "_1", "₂", "_2", "₃", "_3", "₄", "_4",
	"₅", "_5", "₆", "_6", "₇", "_7", "₈", "_8", "₉", "_9",
)

var mathReplacer = strings.NewReplacer(
	"−", "-", // minus sign
	"–", "-",
	"∗", "*",
	"·", "*",
	"×", "x",
	"÷", "/",
	"∕", "/",
	"≤", "<=",
	"≥", ">=",
	"≠", "!=",
	"≈", "~=",
	"→", "->",
	"←", "<-",
	"\u200b", "", // zero width space
	"\u00ad", "", // soft hyphen
)

// Normalize applies light cleanup to extracted page text: it joins words
// hyphenated across line breaks, rewrites super/subscript digits and common
// math glyphs to ASCII notation, folds ligatures and compatibility forms with
// NFKC, and collapses runs of horizontal whitespace. Line breaks are kept.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = hyphenBreakRe.ReplaceAllString(text, "$1$2")
	text = scriptReplacer.Replace(text)
	text = norm.NFKC.String(text)
	text = mathReplacer.Replace(text)
	text = spaceRunRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
