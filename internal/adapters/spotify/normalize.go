package spotify

import (
	"strings"
	"unicode"
)

// releaseTokens are words that describe a release rather than a song and
// should not count when comparing a query to a catalog entry.
var releaseTokens = map[string]struct{}{
	"clean":      {},
	"deluxe":     {},
	"edition":    {},
	"edit":       {},
	"explicit":   {},
	"feat":       {},
	"featuring":  {},
	"ft":         {},
	"live":       {},
	"mono":       {},
	"official":   {},
	"remaster":   {},
	"remastered": {},
	"stereo":     {},
	"version":    {},
}

// normalize lower-cases s, drops bracketed segments and punctuation, and
// removes release tokens.
func normalize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	fields := strings.Fields(onlyLettersAndDigits(dropBracketed(strings.ToLower(s))))
	kept := fields[:0]
	for _, f := range fields {
		if _, drop := releaseTokens[f]; !drop {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func dropBracketed(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func onlyLettersAndDigits(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteRune(' ')
			space = true
		}
	}
	return b.String()
}
