package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/observability/metrics"
)

func setupRepo(t *testing.T, seed bool) repository.RecordRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&entities.Bird{}))

	repo := repository.NewRecordRepository(db, nil)
	if seed {
		for _, b := range entities.SampleBirds() {
			require.NoError(t, repo.Create(t.Context(), &b))
		}
	}
	return repo
}

func gzipString(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func TestExport_Metadata(t *testing.T) {
	t.Parallel()

	repo := setupRepo(t, true)
	exporter := NewExporter(repo, "sqlite", "1.2.3")
	exporter.now = func() time.Time { return time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC) }

	var buf bytes.Buffer
	meta, err := exporter.Export(t.Context(), &buf)
	require.NoError(t, err)

	sum := sha256.Sum256(buf.Bytes())
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.Checksum)
	assert.Equal(t, int64(buf.Len()), meta.Size)
	assert.Equal(t, len(entities.SampleBirds()), meta.Records)
	assert.Regexp(t, `^20260504T030201Z-[0-9a-f]{8}$`, meta.ID)
	assert.Equal(t, meta.ID+".yaml.gz", meta.Key())
	assert.Equal(t, "sqlite", meta.Source)
	assert.Equal(t, "1.2.3", meta.AppVersion)
	assert.True(t, meta.Compressed)
	assert.Equal(t, MetadataVersion, meta.Version)
}

func TestExport_SnapshotDocument(t *testing.T) {
	t.Parallel()

	repo := setupRepo(t, true)
	var buf bytes.Buffer
	_, err := NewExporter(repo, "sqlite", "dev").Export(t.Context(), &buf)
	require.NoError(t, err)

	gz, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	var snapshot Snapshot
	require.NoError(t, yaml.Unmarshal(raw, &snapshot))
	assert.Equal(t, SnapshotVersion, snapshot.Version)
	assert.Equal(t, "dev", snapshot.AppVersion)
	require.Len(t, snapshot.Birds, len(entities.SampleBirds()))

	// Records are exported in ID order, which is insertion order here.
	first := snapshot.Birds[0]
	assert.Equal(t, BirdRecord{
		Genus:       "Accipiter",
		Species:     "nisus",
		EnglishName: "Eurasian Sparrowhawk",
		Family:      "Accipitridae",
	}, first)
	assert.NotContains(t, string(raw), `subspecies: ""`)
	assert.Contains(t, string(raw), "subspecies: occidentalis")
}

func TestExport_Paging(t *testing.T) {
	t.Parallel()

	repo := setupRepo(t, true)
	exporter := NewExporter(repo, "sqlite", "dev")
	exporter.pageSize = 5

	var buf bytes.Buffer
	meta, err := exporter.Export(t.Context(), &buf)
	require.NoError(t, err)
	assert.Equal(t, len(entities.SampleBirds()), meta.Records)
}

func TestExport_EmptyRepository(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	meta, err := NewExporter(setupRepo(t, false), "sqlite", "dev").Export(t.Context(), &buf)
	require.NoError(t, err)
	assert.Zero(t, meta.Records)

	result, err := Restore(t.Context(), &buf, setupRepo(t, false))
	require.NoError(t, err)
	assert.Zero(t, result.Records)
}

func TestRestore_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := NewExporter(setupRepo(t, true), "sqlite", "dev").Export(t.Context(), &buf)
	require.NoError(t, err)
	data := buf.Bytes()

	target := setupRepo(t, false)
	result, err := Restore(t.Context(), bytes.NewReader(data), target)
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Records: 12, Created: 12}, result)

	// Restoring again matches every record.
	result, err = Restore(t.Context(), bytes.NewReader(data), target)
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Records: 12, Updated: 12}, result)

	found, err := target.Find(t.Context(), "occidentalis", nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Snowy Plover (Charadrius nivosus occidentalis)", found[0].DisplayName())
	assert.Equal(t, "Charadriidae", found[0].FamilyValue())
}

func TestRestore_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    func(t *testing.T) io.Reader
		category errors.ErrorCategory
	}{
		{
			name:     "not gzip",
			input:    func(*testing.T) io.Reader { return strings.NewReader("version: 1\n") },
			category: errors.CategoryFileParsing,
		},
		{
			name:     "not yaml",
			input:    func(t *testing.T) io.Reader { return gzipString(t, "{{{") },
			category: errors.CategoryFileParsing,
		},
		{
			name:     "unknown field",
			input:    func(t *testing.T) io.Reader { return gzipString(t, "version: 1\nflock: []\n") },
			category: errors.CategoryFileParsing,
		},
		{
			name:     "future version",
			input:    func(t *testing.T) io.Reader { return gzipString(t, "version: 2\nbirds: []\n") },
			category: errors.CategoryValidation,
		},
		{
			name:     "missing version",
			input:    func(t *testing.T) io.Reader { return gzipString(t, "birds: []\n") },
			category: errors.CategoryValidation,
		},
		{
			name: "invalid record",
			input: func(t *testing.T) io.Reader {
				return gzipString(t, "version: 1\nbirds:\n"+
					"  - genus: Strix\n    species: nebulosa\n    english_name: Great Grey Owl\n"+
					"  - genus: \"\"\n    species: nisus\n    english_name: Eurasian Sparrowhawk\n")
			},
			category: errors.CategoryValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := setupRepo(t, false)
			_, err := Restore(t.Context(), tt.input(t), repo)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)

			count, err := repo.Count(t.Context(), "", nil)
			require.NoError(t, err)
			assert.Zero(t, count, "nothing may be written when a snapshot is rejected")
		})
	}
}

func TestRestore_CanceledContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := NewExporter(setupRepo(t, true), "sqlite", "dev").Export(t.Context(), &buf)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = Restore(ctx, &buf, setupRepo(t, false))
	assert.ErrorIs(t, err, context.Canceled)
}

// fakeTarget keeps stored backups in memory.
type fakeTarget struct {
	name     string
	storeErr error
	listErr  error

	mu      sync.Mutex
	stored  map[string][]byte
	backups []Info
}

func newFakeTarget(name string) *fakeTarget {
	return &fakeTarget{name: name, stored: make(map[string][]byte)}
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) Store(_ context.Context, key string, r io.Reader, meta *Metadata) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[key] = data
	f.backups = append(f.backups, Info{Metadata: *meta, Target: f.name})
	return nil
}

func (f *fakeTarget) List(context.Context) ([]Info, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Info(nil), f.backups...), nil
}

func (f *fakeTarget) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, id+FileExtension)
	return nil
}

func (f *fakeTarget) Validate() error {
	if f.name == "" {
		return errors.NewStd("target has no name")
	}
	return nil
}

// operationRecorder captures backup metric calls.
type operationRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (r *operationRecorder) RecordBackupOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[operation+"/"+status]++
}

func TestManager_RunBackup(t *testing.T) {
	t.Parallel()

	repo := setupRepo(t, true)
	recorder := &operationRecorder{}
	manager := NewManager(NewExporter(repo, "sqlite", "dev"), repo, recorder)

	local, remote := newFakeTarget("local"), newFakeTarget("s3")
	require.NoError(t, manager.RegisterTarget(local))
	require.NoError(t, manager.RegisterTarget(remote))
	assert.Equal(t, []string{"local", "s3"}, manager.Targets())

	meta, err := manager.RunBackup(t.Context())
	require.NoError(t, err)

	for _, target := range []*fakeTarget{local, remote} {
		data, ok := target.stored[meta.Key()]
		require.True(t, ok, target.name)
		sum := sha256.Sum256(data)
		assert.Equal(t, meta.Checksum, hex.EncodeToString(sum[:]))
	}

	assert.Equal(t, 1, recorder.ops[metrics.OpBackupExport+"/"+metrics.StatusSuccess])
	assert.Equal(t, 2, recorder.ops[metrics.OpBackupStore+"/"+metrics.StatusSuccess])
}

func TestManager_RunBackupTargetFailure(t *testing.T) {
	t.Parallel()

	repo := setupRepo(t, true)
	recorder := &operationRecorder{}
	manager := NewManager(NewExporter(repo, "sqlite", "dev"), repo, recorder)

	good, bad := newFakeTarget("local"), newFakeTarget("s3")
	bad.storeErr = errors.NewStd("bucket unavailable")
	require.NoError(t, manager.RegisterTarget(good))
	require.NoError(t, manager.RegisterTarget(bad))

	meta, err := manager.RunBackup(t.Context())
	require.Error(t, err)
	require.NotNil(t, meta, "metadata is returned when some targets succeed")
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Contains(t, good.stored, meta.Key())
	assert.Equal(t, 1, recorder.ops[metrics.OpBackupStore+"/"+metrics.StatusError])
}

func TestManager_NoTargets(t *testing.T) {
	t.Parallel()

	repo := setupRepo(t, false)
	manager := NewManager(NewExporter(repo, "sqlite", "dev"), repo, nil)

	_, err := manager.RunBackup(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = manager.ListBackups(t.Context())
	require.Error(t, err)

	err = manager.RegisterTarget(newFakeTarget(""))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestManager_ListBackups(t *testing.T) {
	t.Parallel()

	repo := setupRepo(t, false)
	manager := NewManager(NewExporter(repo, "sqlite", "dev"), repo, nil)

	local, remote, broken := newFakeTarget("local"), newFakeTarget("s3"), newFakeTarget("x")
	local.backups = []Info{{Metadata: Metadata{ID: "20260101T000000Z-aaaaaaaa"}, Target: "local"}}
	remote.backups = []Info{{Metadata: Metadata{ID: "20260301T000000Z-bbbbbbbb"}, Target: "s3"}}
	broken.listErr = errors.NewStd("offline")
	for _, target := range []*fakeTarget{local, remote, broken} {
		require.NoError(t, manager.RegisterTarget(target))
	}

	backups, err := manager.ListBackups(t.Context())
	require.NoError(t, err, "partial results are not an error")
	require.Len(t, backups, 2)
	assert.Equal(t, "s3", backups[0].Target, "newest first")
	assert.Equal(t, "local", backups[1].Target)
}

func TestManager_Restore(t *testing.T) {
	t.Parallel()

	source := setupRepo(t, true)
	var buf bytes.Buffer
	meta, err := NewExporter(source, "sqlite", "dev").Export(t.Context(), &buf)
	require.NoError(t, err)
	data := buf.Bytes()

	t.Run("checksum mismatch", func(t *testing.T) {
		t.Parallel()
		repo := setupRepo(t, false)
		recorder := &operationRecorder{}
		manager := NewManager(nil, repo, recorder)

		_, err := manager.Restore(t.Context(), bytes.NewReader(data), strings.Repeat("0", 64))
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
		assert.Equal(t, 1, recorder.ops[metrics.OpBackupRestore+"/"+metrics.StatusError])

		count, err := repo.Count(t.Context(), "", nil)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("checksum match", func(t *testing.T) {
		t.Parallel()
		repo := setupRepo(t, false)
		recorder := &operationRecorder{}
		manager := NewManager(nil, repo, recorder)

		result, err := manager.Restore(t.Context(), bytes.NewReader(data), meta.Checksum)
		require.NoError(t, err)
		assert.Equal(t, meta.Records, result.Created)
		assert.Equal(t, 1, recorder.ops[metrics.OpBackupRestore+"/"+metrics.StatusSuccess])
	})
}

func TestNewID(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	a, b := NewID(at), NewID(at)
	assert.True(t, strings.HasPrefix(a, "20260102T020405Z-"), a)
	assert.NotEqual(t, a, b)
}
