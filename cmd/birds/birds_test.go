package birds

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
)

func init() {
	color.NoColor = true
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Database.Type = conf.DatabaseSQLite
	s.Database.SQLite.Path = filepath.Join(t.TempDir(), "birds.db")
	return s
}

func execute(t *testing.T, settings *conf.Settings, args ...string) (string, error) {
	t.Helper()
	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestPrintTable(t *testing.T) {
	t.Parallel()

	samples := entities.SampleBirds()[:3]
	for i := range samples {
		samples[i].ID = uint(i + 1)
	}
	samples[2].Family = nil

	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, samples))
	out := buf.String()

	assert.Contains(t, out, "DISPLAY NAME")
	assert.Contains(t, out, "Eurasian Sparrowhawk (Accipiter nisus)")
	assert.Contains(t, out, "Accipitridae")
	assert.Contains(t, out, "3 birds\n")
}

func TestBirdsCommands(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)

	out, err := execute(t, settings, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 12 birds")

	out, err = execute(t, settings, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 0 birds")

	out, err = execute(t, settings, "list", "--genus", "Falco")
	require.NoError(t, err)
	assert.Contains(t, out, "Merlin (Falco columbarius suckleyi)")
	assert.Contains(t, out, "2 birds")

	out, err = execute(t, settings, "add",
		"--genus", "FALCO", "--species", "peregrinus", "--subspecies", "anatum",
		"--english-name", "peregrine falcon")
	require.NoError(t, err)
	assert.Contains(t, out, "Peregrine Falcon (Falco peregrinus anatum)")

	out, err = execute(t, settings, "list", "peregrine")
	require.NoError(t, err)
	assert.Contains(t, out, "1 bird\n")

	out, err = execute(t, settings, "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1")

	_, err = execute(t, settings, "delete", "1")
	require.Error(t, err)

	_, err = execute(t, settings, "delete", "abc")
	require.Error(t, err)
}

func TestAddCommand_Validation(t *testing.T) {
	t.Parallel()

	_, err := execute(t, testSettings(t), "add", "--genus", "Falco", "--species", strings.Repeat("a", entities.MaxSpeciesLength+1), "--english-name", "Hobby")
	require.Error(t, err)

	_, err = execute(t, testSettings(t), "add", "--genus", "Falco")
	require.Error(t, err, "required flags are enforced")
}
