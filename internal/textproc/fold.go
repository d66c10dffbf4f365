package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Letters that survive NFD because they are not base+combining-mark pairs.
var strokeReplacer = strings.NewReplacer(
	"ø", "o", "Ø", "o",
	"æ", "ae", "Æ", "ae",
	"ß", "ss",
	"đ", "d", "Đ", "d",
	"ł", "l", "Ł", "l",
)

// Fold lowercases text and strips diacritics: "København" → "kobenhavn".
// Keyword matching and place lookup both run over folded text so "Örland",
// "Ørland" and "orland" are the same word.
func Fold(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(strings.TrimSpace(strokeReplacer.Replace(folded)))
}
