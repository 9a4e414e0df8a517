package birds

import (
	"strings"

	"github.com/hellobirdie/hellobirdie/internal/errors"
)

// ErrInvalidInput is returned by a strict Formatter when a required field is empty.
var ErrInvalidInput = errors.NewStd("invalid input")

// NameParts holds the taxonomic fields of a bird. An empty Subspecies means absent.
type NameParts struct {
	Genus       string
	Species     string
	Subspecies  string
	EnglishName string
}

// Validate checks that genus, species and English name are present.
func (p NameParts) Validate() error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"genus", p.Genus},
		{"species", p.Species},
		{"english_name", p.EnglishName},
	} {
		if strings.TrimSpace(f.value) == "" {
			return errors.New(ErrInvalidInput).
				Component("birds").
				Category(errors.CategoryValidation).
				Context("field", f.name).
				Build()
		}
	}
	return nil
}

// ScientificName returns the formatted binomial or trinomial.
func (p NameParts) ScientificName() string {
	return ScientificName(p.Genus, p.Species, p.Subspecies)
}

// String returns the display name.
func (p NameParts) String() string {
	return FormatName(p.Genus, p.Species, p.Subspecies, p.EnglishName)
}

// Formatter formats NameParts. The zero value never fails; set Strict to
// reject records missing a required field.
type Formatter struct {
	Strict bool
}

// Format returns the display name for p.
func (f Formatter) Format(p NameParts) (string, error) {
	if f.Strict {
		if err := p.Validate(); err != nil {
			return "", err
		}
	}
	return p.String(), nil
}

// ParseScientificName splits "Genus species [subspecies]" into its parts.
// Extra words after the subspecies are kept with it, and a single word is
// returned as the genus with an empty species.
func ParseScientificName(name string) (genus, species, subspecies string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", "", ""
	case 1:
		return fields[0], "", ""
	case 2:
		return fields[0], fields[1], ""
	default:
		return fields[0], fields[1], strings.Join(fields[2:], " ")
	}
}
