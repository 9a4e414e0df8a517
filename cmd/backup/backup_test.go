package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellobirdie/hellobirdie/internal/backup"
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore"
)

func init() {
	color.NoColor = true
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()
	s := &conf.Settings{}
	s.Database.Type = conf.DatabaseSQLite
	s.Database.SQLite.Path = filepath.Join(dir, "birds.db")
	s.Database.SeedSamples = true
	s.Backup.Target = conf.BackupTargetLocal
	s.Backup.Local.Path = filepath.Join(dir, "backups")
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

// seedStore opens the store once with seeding on, the way serve does.
func seedStore(t *testing.T, settings *conf.Settings) {
	t.Helper()
	store, err := datastore.Open(settings, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

// snapshotFile returns the single snapshot in the local target.
func snapshotFile(t *testing.T, settings *conf.Settings) (path, id string) {
	t.Helper()
	entries, err := os.ReadDir(settings.Backup.Local.Path)
	require.NoError(t, err)
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), backup.FileExtension); ok {
			return filepath.Join(settings.Backup.Local.Path, e.Name()), name
		}
	}
	t.Fatal("no snapshot written")
	return "", ""
}

func TestBackupCommands(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	seedStore(t, settings)

	out, err := execute(t, settings, "create")
	require.NoError(t, err)
	assert.Contains(t, out, "12 records")

	path, id := snapshotFile(t, settings)

	out, err = execute(t, settings, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "local")

	// Wipe the records, then restore them from the file. Restoring into the
	// empty table must not bring the samples back first.
	store, err := datastore.Open(settings, nil)
	require.NoError(t, err)
	require.NoError(t, store.DB().Exec("DELETE FROM birds").Error)
	require.NoError(t, store.Close())

	out, err = execute(t, settings, "restore", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 12 records: 12 created, 0 updated")

	out, err = execute(t, settings, "restore", path)
	require.NoError(t, err)
	assert.Contains(t, out, "0 created, 12 updated")

	_, err = execute(t, settings, "restore", path, "--checksum", "deadbeef")
	require.Error(t, err)

	out, err = execute(t, settings, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted backup "+id)
	assert.NoFileExists(t, path)
}

func TestBackupCommand_Errors(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)

	_, err := execute(t, settings, "create", "--target", "ftp")
	require.Error(t, err)

	_, err = execute(t, settings, "restore", filepath.Join(t.TempDir(), "missing.yaml.gz"))
	require.Error(t, err)
}
