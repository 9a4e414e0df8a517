package birds

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellobirdie/hellobirdie/internal/errors"
)

func TestFormatName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		genus       string
		species     string
		subspecies  string
		englishName string
		want        string
	}{
		{"binomial", "Accipiter", "nisus", "", "Eurasian Sparrowhawk", "Eurasian Sparrowhawk (Accipiter nisus)"},
		{"trinomial", "Charadrius", "nivosus", "occidentalis", "Snowy Plover", "Snowy Plover (Charadrius nivosus occidentalis)"},
		{"hyphens in two words", "Pteruthius", "melanotis", "tahanensis", "Black-eared Shrike-babbler", "Black-eared Shrike-babbler (Pteruthius melanotis tahanensis)"},
		{"multiple hyphens", "Seleucidis", "melanoleucus", "", "Twelve-wired Bird-of-paradise", "Twelve-wired Bird-of-paradise (Seleucidis melanoleucus)"},
		{"apostrophe", "Accipiter", "cooperii", "", "Cooper's Hawk", "Cooper's Hawk (Accipiter cooperii)"},
		{"apostrophe and hyphen", "Diphyllodes", "respublica", "", "Wilson's Bird-of-paradise", "Wilson's Bird-of-paradise (Diphyllodes respublica)"},
		{"shouting input", "FALCO", "PEREGRINUS", "ANATUM", "PEREGRINE FALCON", "Peregrine Falcon (Falco peregrinus anatum)"},
		{"lower input", "haemorhous", "purpureus", "", "purple finch", "Purple Finch (Haemorhous purpureus)"},
		{"mixed case hyphen", "Pteruthius", "melanotis", "", "BLACK-EARED shrike-BABBLER", "Black-eared Shrike-babbler (Pteruthius melanotis)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatName(tt.genus, tt.species, tt.subspecies, tt.englishName))
		})
	}
}

func TestScientificName_NoDoubleSpace(t *testing.T) {
	t.Parallel()

	got := ScientificName("accipiter", "NISUS", "")
	assert.Equal(t, "Accipiter nisus", got)
	assert.NotContains(t, got, "  ")
	assert.NotRegexp(t, `\s$`, got)
}

func TestCommonName_EdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"leading hyphen", "-bird", "-bird"},
		{"trailing hyphen", "bird-", "Bird-"},
		{"doubled hyphen", "bird--of paradise", "Bird--of Paradise"},
		{"lone hyphen", "-", "-"},
		{"leading apostrophe", "'akepa", "'akepa"},
		{"hyphen then apostrophe in one word", "o'brien-smith warbler", "O'brien-smith Warbler"},
		{"digits count as boundaries", "2nd bird", "2Nd Bird"},
		{"non-ascii", "ÉMEU d'été", "Émeu D'été"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.NotPanics(t, func() { CommonName(tt.input) })
			assert.Equal(t, tt.want, CommonName(tt.input))
		})
	}
}

func TestCommonName_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Eurasian Sparrowhawk",
		"black-eared shrike-babbler",
		"TWELVE-WIRED BIRD-OF-PARADISE",
		"cooper's hawk",
		"Wilson's Bird-of-paradise",
		"o'brien-smith warbler",
		"-bird",
		"",
	}

	for _, in := range inputs {
		once := CommonName(in)
		assert.Equal(t, once, CommonName(once), "input %q", in)
	}
}

func TestFormatName_ConcurrentUse(t *testing.T) {
	t.Parallel()

	const workers = 32
	var wg sync.WaitGroup
	results := make([]string, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = FormatName("Diphyllodes", "respublica", "", "wilson's bird-of-paradise")
		}()
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, "Wilson's Bird-of-paradise (Diphyllodes respublica)", got, "worker %d", i)
	}
}

func TestFormatter_Format(t *testing.T) {
	t.Parallel()

	complete := NameParts{Genus: "Accipiter", Species: "cooperii", EnglishName: "Cooper's Hawk"}

	t.Run("lenient accepts empty fields", func(t *testing.T) {
		t.Parallel()
		got, err := Formatter{}.Format(NameParts{Genus: "Accipiter"})
		require.NoError(t, err)
		assert.Equal(t, " (Accipiter )", got)
	})

	t.Run("strict formats complete parts", func(t *testing.T) {
		t.Parallel()
		got, err := Formatter{Strict: true}.Format(complete)
		require.NoError(t, err)
		assert.Equal(t, "Cooper's Hawk (Accipiter cooperii)", got)
	})

	for _, field := range []string{"genus", "species", "english_name"} {
		t.Run("strict rejects missing "+field, func(t *testing.T) {
			t.Parallel()

			p := complete
			switch field {
			case "genus":
				p.Genus = ""
			case "species":
				p.Species = "  "
			case "english_name":
				p.EnglishName = ""
			}

			got, err := Formatter{Strict: true}.Format(p)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.True(t, errors.IsValidation(err))

			var ee *errors.EnhancedError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, field, ee.GetContext()["field"])
		})
	}
}

func TestParseScientificName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in         string
		genus      string
		species    string
		subspecies string
	}{
		{"", "", "", ""},
		{"Accipiter", "Accipiter", "", ""},
		{"Accipiter nisus", "Accipiter", "nisus", ""},
		{"Charadrius  nivosus occidentalis", "Charadrius", "nivosus", "occidentalis"},
		{"Larus argentatus smithsonianus x", "Larus", "argentatus", "smithsonianus x"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			t.Parallel()
			g, s, ss := ParseScientificName(tt.in)
			assert.Equal(t, tt.genus, g)
			assert.Equal(t, tt.species, s)
			assert.Equal(t, tt.subspecies, ss)
		})
	}
}
