// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"strings"

	"golang.org/x/text/width"
)

// lensBracketFolds maps the CJK "lenticular"/corner bracket forms to ASCII
// equivalents. These are not in the Unicode fullwidth block, so width.Fold
// does not touch them, yet they are common in Bilibili titles and render as
// tofu on plain-text notification clients.
var lensBracketFolds = strings.NewReplacer(
	"【", "[",
	"】", "]",
	"〈", "<",
	"〉", ">",
	"「", "[",
	"」", "]",
	"『", "[",
	"』", "]",
)

// Sanitize strips characters outside the Basic Multilingual Plane (emoji and
// other astral-plane symbols that render as tofu boxes on many notification
// clients) and folds fullwidth forms, including bracket punctuation, to
// their ASCII equivalents, per spec §4.10.
func Sanitize(s string) string {
	folded := width.Fold.String(s)
	folded = lensBracketFolds.Replace(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r > 0xFFFF {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
