// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package query

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/poiesic/screener/model"
)

// ngramSize is the width of the character n-grams used for fuzzy clauses.
const ngramSize = 3

// Stop words dropped from names and free text
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// Letters that carry no combining mark to strip.
var letterFolds = strings.NewReplacer(
	"ß", "ss", "ø", "o", "ł", "l", "đ", "d", "æ", "ae", "œ", "oe", "ı", "i", "þ", "th",
)

// Fold lowercases text and strips diacritics, so "Müller" and "MULLER" fold
// to the same string.
func Fold(text string) string {
	// transform chains keep state and must not be shared between goroutines
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return letterFolds.Replace(folded)
}

// Tokenize folds text, splits it on anything that is not a letter or digit,
// and removes stop words.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// NameKey reduces a name to its sorted tokens concatenated, so that
// "Doe, Jane" and "Jane DOE" share a key. Returns "" when nothing is left.
func NameKey(name string) string {
	tokens := Tokenize(name)
	slices.Sort(tokens)
	return strings.Join(tokens, "")
}

// IdentifierKey compacts an identifier to its folded letters and digits.
func IdentifierKey(value string) string {
	var b strings.Builder
	for _, r := range Fold(value) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DateKeys returns the date and its coarser prefixes, most specific first.
// "1975-04-21" yields "1975-04-21", "1975-04" and "1975".
func DateKeys(value string) []string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) > 10 {
		runes = runes[:10]
	}
	if len(runes) == 0 {
		return nil
	}
	keys := []string{string(runes)}
	for _, n := range []int{7, 4} {
		if len(runes) > n {
			keys = append(keys, string(runes[:n]))
		}
	}
	return keys
}

// PhoneKey normalizes a phone number to the form stored in the index.
func PhoneKey(value string) string {
	return model.PhoneDigits(value)
}

// EmailKey normalizes an email address.
func EmailKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// CountryKey normalizes a country code.
func CountryKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NGrams returns the distinct character n-grams of s in order of first
// appearance. Strings shorter than n yield themselves.
func NGrams(s string, n int) []string {
	r := []rune(s)
	if len(r) == 0 {
		return nil
	}
	if len(r) <= n {
		return []string{s}
	}
	seen := make(map[string]bool, len(r)-n+1)
	grams := make([]string, 0, len(r)-n+1)
	for i := 0; i+n <= len(r); i++ {
		g := string(r[i : i+n])
		if !seen[g] {
			seen[g] = true
			grams = append(grams, g)
		}
	}
	return grams
}
