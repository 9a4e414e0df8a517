// Package birds formats taxonomic fields into display names.
//
// The formatter is pure and keeps no state, so every function here is safe
// for concurrent use:
//
//	birds.FormatName("accipiter", "COOPERII", "", "cooper's hawk")
//	// "Cooper's Hawk (Accipiter cooperii)"
package birds

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	hyphen     = "-"
	apostrophe = "'"
)

// FormatName returns "<Common> (<Genus> <species>[ <subspecies>])".
// It never fails; an empty subspecies is omitted.
func FormatName(genus, species, subspecies, englishName string) string {
	return CommonName(englishName) + " (" + ScientificName(genus, species, subspecies) + ")"
}

// ScientificName title-cases the genus and lower-cases species and subspecies.
func ScientificName(genus, species, subspecies string) string {
	var sb strings.Builder
	sb.Grow(len(genus) + len(species) + len(subspecies) + 2)

	sb.WriteString(titleCase(genus))
	sb.WriteByte(' ')
	sb.WriteString(lowerCase(species))
	if subspecies != "" {
		sb.WriteByte(' ')
		sb.WriteString(lowerCase(subspecies))
	}
	return sb.String()
}

// CommonName title-cases an English name, then restores lower case after
// hyphens and apostrophes: "black-eared shrike-babbler" becomes
// "Black-eared Shrike-babbler" and "COOPER'S HAWK" becomes "Cooper's Hawk".
func CommonName(englishName string) string {
	name := titleCase(englishName)
	name = fixupDelimited(name, hyphen)
	return fixupDelimited(name, apostrophe)
}

// fixupDelimited rewrites every space separated word containing delim so
// that only its first delim segment keeps a capital letter.
func fixupDelimited(name, delim string) string {
	if !strings.Contains(name, delim) {
		return name
	}

	words := strings.Split(name, " ")
	for i, word := range words {
		if !strings.Contains(word, delim) {
			continue
		}
		parts := strings.Split(lowerCase(word), delim)
		parts[0] = titleCase(parts[0])
		words[i] = strings.Join(parts, delim)
	}
	return strings.Join(words, " ")
}

// titleCase upper-cases every cased letter that follows an uncased
// character and lower-cases all other cased letters. Digits, spaces and
// punctuation all count as word boundaries, so "cooper's" becomes "Cooper'S".
func titleCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	prevCased := false
	for _, r := range s {
		if isCased(r) {
			if prevCased {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToTitle(r))
			}
			prevCased = true
			continue
		}
		sb.WriteRune(r)
		prevCased = false
	}
	return sb.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}

// lowerCase uses a fresh Caser per call since cases.Caser is not safe for
// concurrent use.
func lowerCase(s string) string {
	if s == "" {
		return s
	}
	return cases.Lower(language.Und).String(s)
}
