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

package model

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// hintRule derives a lowercase ISO country code from a typed value.
type hintRule func(value string) (string, bool)

var hintRules = map[string]hintRule{
	"iban":  IBANCountry,
	"phone": PhoneCountry,
}

// IBANCountry returns the country encoded in the first two letters of an IBAN.
// The value must start with two letters followed by two check digits.
func IBANCountry(value string) (string, bool) {
	compact := strings.ToUpper(strings.Join(strings.Fields(value), ""))
	if len(compact) < 4 {
		return "", false
	}
	for i, r := range compact[:4] {
		if i < 2 && (r < 'A' || r > 'Z') {
			return "", false
		}
		if i >= 2 && (r < '0' || r > '9') {
			return "", false
		}
	}
	return strings.ToLower(compact[:2]), true
}

// PhoneCountry returns the region of an international phone number. Numbers
// without a "+" or "00" prefix, numbers that are not possible for their
// calling code, and non-geographic numbers yield no hint.
func PhoneCountry(value string) (string, bool) {
	digits := PhoneDigits(value)
	if !strings.HasPrefix(digits, "+") {
		return "", false
	}
	num, err := phonenumbers.Parse(digits, "")
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return "", false
	}
	region := phonenumbers.GetRegionCodeForNumber(num)
	if len(region) != 2 || region == "ZZ" {
		return "", false
	}
	return strings.ToLower(region), true
}

// PhoneDigits reduces a phone number to its digits, keeping a "+" that comes
// before the first digit. A leading international "00" prefix is rewritten to "+".
func PhoneDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.HasPrefix(out, "00") {
		out = "+" + out[2:]
	}
	return out
}
