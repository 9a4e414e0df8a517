// Package entities contains the GORM models for the hellobirdie record store.
package entities

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hellobirdie/hellobirdie/internal/birds"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

// Column length limits
const (
	MaxGenusLength       = 50
	MaxSpeciesLength     = 50
	MaxSubspeciesLength  = 50
	MaxEnglishNameLength = 75
	MaxFamilyLength      = 50
)

// Bird is one species or subspecies record.
// Subspecies and Family are nullable; an empty string is stored as NULL.
type Bird struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Genus       string    `gorm:"size:50;not null;index:idx_birds_taxon" json:"genus"`
	Species     string    `gorm:"size:50;not null;index:idx_birds_taxon;index" json:"species"`
	Subspecies  *string   `gorm:"size:50" json:"subspecies"`
	EnglishName string    `gorm:"size:75;not null" json:"english_name"`
	Family      *string   `gorm:"size:50" json:"family"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Bird) TableName() string {
	return "birds"
}

// Parts returns the formatter view of the record.
func (b *Bird) Parts() birds.NameParts {
	return birds.NameParts{
		Genus:       b.Genus,
		Species:     b.Species,
		Subspecies:  deref(b.Subspecies),
		EnglishName: b.EnglishName,
	}
}

// DisplayName returns e.g. "Cooper's Hawk (Accipiter cooperii)".
func (b *Bird) DisplayName() string {
	return b.Parts().String()
}

// String implements fmt.Stringer with the display name.
func (b *Bird) String() string {
	return b.DisplayName()
}

// Clone returns a copy that shares no pointers with b.
func (b *Bird) Clone() *Bird {
	c := *b
	if b.Subspecies != nil {
		v := *b.Subspecies
		c.Subspecies = &v
	}
	if b.Family != nil {
		v := *b.Family
		c.Family = &v
	}
	return &c
}

// SubspeciesValue returns the subspecies or "".
func (b *Bird) SubspeciesValue() string {
	return deref(b.Subspecies)
}

// FamilyValue returns the family or "".
func (b *Bird) FamilyValue() string {
	return deref(b.Family)
}

// Normalize trims whitespace and turns blank optional fields into NULL.
func (b *Bird) Normalize() {
	b.Genus = strings.TrimSpace(b.Genus)
	b.Species = strings.TrimSpace(b.Species)
	b.EnglishName = strings.TrimSpace(b.EnglishName)
	b.Subspecies = OptionalString(deref(b.Subspecies))
	b.Family = OptionalString(deref(b.Family))
}

// Validate checks required fields and column lengths. Lengths count runes,
// matching VARCHAR semantics.
func (b *Bird) Validate() error {
	if err := b.Parts().Validate(); err != nil {
		return err
	}

	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"genus", b.Genus, MaxGenusLength},
		{"species", b.Species, MaxSpeciesLength},
		{"subspecies", deref(b.Subspecies), MaxSubspeciesLength},
		{"english_name", b.EnglishName, MaxEnglishNameLength},
		{"family", deref(b.Family), MaxFamilyLength},
	} {
		if n := utf8.RuneCountInString(f.value); n > f.max {
			return errors.Newf("%s is %d characters long, the limit is %d", f.name, n, f.max).
				Component("datastore").
				Category(errors.CategoryValidation).
				Context("field", f.name).
				Build()
		}
	}
	return nil
}

// OptionalString returns nil for a blank string, otherwise a pointer to the
// trimmed value.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SampleBirds returns the records seeded into a fresh database.
func SampleBirds() []Bird {
	sample := func(genus, species, subspecies, englishName, family string) Bird {
		return Bird{
			Genus:       genus,
			Species:     species,
			Subspecies:  OptionalString(subspecies),
			EnglishName: englishName,
			Family:      OptionalString(family),
		}
	}

	return []Bird{
		sample("Accipiter", "nisus", "", "Eurasian Sparrowhawk", "Accipitridae"),
		sample("Accipiter", "cooperii", "", "Cooper's Hawk", "Accipitridae"),
		sample("Charadrius", "nivosus", "occidentalis", "Snowy Plover", "Charadriidae"),
		sample("Pteruthius", "melanotis", "tahanensis", "Black-eared Shrike-babbler", "Vireonidae"),
		sample("Seleucidis", "melanoleucus", "", "Twelve-wired Bird-of-paradise", "Paradisaeidae"),
		sample("Diphyllodes", "respublica", "", "Wilson's Bird-of-paradise", "Paradisaeidae"),
		sample("Falco", "subbuteo", "", "Eurasian Hobby", "Falconidae"),
		sample("Falco", "columbarius", "suckleyi", "Merlin", "Falconidae"),
		sample("Menura", "novaehollandiae", "victoriae", "Superb Lyrebird", "Menuridae"),
		sample("Phoeniculus", "purpureus", "", "Green Wood Hoopoe", "Phoeniculidae"),
		sample("Strix", "nebulosa", "", "Great Grey Owl", "Strigidae"),
		sample("Apteryx", "owenii", "", "Little Spotted Kiwi", "Apterygidae"),
	}
}

// Key identifies a taxon independent of its database ID.
func (b *Bird) Key() string {
	return fmt.Sprintf("%s|%s|%s",
		strings.ToLower(b.Genus), strings.ToLower(b.Species), strings.ToLower(deref(b.Subspecies)))
}
