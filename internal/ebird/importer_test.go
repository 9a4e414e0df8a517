package ebird

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository/mocks"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
	"github.com/hellobirdie/hellobirdie/internal/observability/metrics"
)

// staticSource serves a fixed taxonomy.
type staticSource struct {
	entries []TaxonomyEntry
	err     error
}

func (s staticSource) GetTaxonomy(context.Context, string) ([]TaxonomyEntry, error) {
	return s.entries, s.err
}

// countingRecorder captures import counters.
type countingRecorder struct {
	records  map[string]int
	duration time.Duration
}

func (r *countingRecorder) RecordImportRecords(result string, n int) {
	if r.records == nil {
		r.records = make(map[string]int)
	}
	r.records[result] += n
}

func (r *countingRecorder) RecordImportDuration(d time.Duration) { r.duration = d }

func setupImportRepo(t *testing.T) repository.RecordRepository {
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
	return repository.NewRecordRepository(db, nil)
}

func newTestImporter(source TaxonomySource, repo repository.RecordRepository, rec ImportRecorder) *Importer {
	im := NewImporter(source, repo, rec)
	im.Log = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	return im
}

func TestImporter_Import(t *testing.T) {
	t.Parallel()
	repo := setupImportRepo(t)
	rec := &countingRecorder{}

	entries := append([]TaxonomyEntry{}, sampleTaxonomy...)
	entries = append(entries, TaxonomyEntry{
		ScientificName: "Longus namus",
		CommonName:     strings.Repeat("x", entities.MaxEnglishNameLength+1),
		SpeciesCode:    "toolong",
		Category:       CategorySpecies,
	})

	im := newTestImporter(staticSource{entries: entries}, repo, rec)
	result, err := im.Import(t.Context(), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, len(entries), result.Fetched)
	assert.Equal(t, 3, result.Created, "two species and one issf")
	assert.Equal(t, 1, result.Skipped, "name longer than the column")
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 3, rec.records[metrics.ImportCreated])

	found, err := repo.Find(t.Context(), "suckleyi", nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Falconidae", found[0].FamilyValue())
	assert.Equal(t, "Merlin (Black) (Falco columbarius suckleyi)", found[0].DisplayName())

	// Re-importing updates instead of duplicating.
	result, err = im.Import(t.Context(), ImportOptions{})
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Equal(t, 3, result.Updated)

	count, err := repo.Count(t.Context(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestImporter_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        ImportOptions
		wantCreated int
	}{
		{name: "family filter is case-insensitive", opts: ImportOptions{Families: []string{"accipitridae"}}, wantCreated: 1},
		{name: "categories override", opts: ImportOptions{Categories: []string{CategoryISSF}}, wantCreated: 1},
		{name: "limit", opts: ImportOptions{Limit: 2}, wantCreated: 2},
		{name: "dry run", opts: ImportOptions{DryRun: true}, wantCreated: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := setupImportRepo(t)
			im := newTestImporter(staticSource{entries: sampleTaxonomy}, repo, nil)

			result, err := im.Import(t.Context(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, result.Created)

			stored, err := repo.Count(t.Context(), "", nil)
			require.NoError(t, err)
			if tt.opts.DryRun {
				assert.Zero(t, stored)
			} else {
				assert.Equal(t, int64(tt.wantCreated), stored)
			}
		})
	}
}

func TestImporter_RepositoryFailuresAreCounted(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockRepository{}
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(b *entities.Bird) bool { return b.Genus == "Falco" })).
		Return(false, errors.NewStd("database is locked"))
	repo.On("Upsert", mock.Anything, mock.Anything).Return(true, nil)

	im := newTestImporter(staticSource{entries: sampleTaxonomy}, repo, nil)
	result, err := im.Import(t.Context(), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.Created)
}

func TestImporter_FetchError(t *testing.T) {
	t.Parallel()

	fetchErr := errors.Newf("eBird API error (status 401)").Category(errors.CategoryConfiguration).Build()
	im := newTestImporter(staticSource{err: fetchErr}, &mocks.MockRepository{}, nil)

	_, err := im.Import(t.Context(), ImportOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestImporter_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	repo := &mocks.MockRepository{}
	im := newTestImporter(staticSource{entries: sampleTaxonomy}, repo, nil)

	_, err := im.Import(ctx, ImportOptions{})
	require.ErrorIs(t, err, context.Canceled)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestImporter_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := (&Importer{}).Import(t.Context(), ImportOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
