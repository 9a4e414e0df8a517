package ebird

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hellobirdie/hellobirdie/internal/birds"
	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
	"github.com/hellobirdie/hellobirdie/internal/observability/metrics"
)

// DefaultCategories are imported when ImportOptions.Categories is empty.
var DefaultCategories = []string{CategorySpecies, CategoryISSF}

// TaxonomySource fetches the taxonomy. *Client implements it.
type TaxonomySource interface {
	GetTaxonomy(ctx context.Context, locale string) ([]TaxonomyEntry, error)
}

// ImportRecorder receives import counters. *metrics.TaxonomyMetrics
// implements it.
type ImportRecorder interface {
	RecordImportRecords(result string, n int)
	RecordImportDuration(d time.Duration)
}

// ImportOptions narrows an import.
type ImportOptions struct {
	Locale     string
	Families   []string // family scientific names, case-insensitive; empty imports all
	Categories []string // eBird categories; empty means DefaultCategories
	Limit      int      // maximum entries to write; 0 means no limit
	DryRun     bool     // count valid entries as created without writing
}

// ImportResult counts what an import did.
type ImportResult struct {
	Fetched  int
	Created  int
	Updated  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Importer copies eBird taxonomy entries into the record repository.
type Importer struct {
	Source  TaxonomySource
	Repo    repository.RecordRepository
	Metrics ImportRecorder
	Log     logger.Logger
}

// NewImporter creates an importer. recorder may be nil.
func NewImporter(source TaxonomySource, repo repository.RecordRepository, recorder ImportRecorder) *Importer {
	return &Importer{
		Source:  source,
		Repo:    repo,
		Metrics: recorder,
		Log:     GetLogger(),
	}
}

// Import fetches the taxonomy and upserts every matching entry. Entries
// that cannot be stored are counted and skipped; only a failed fetch or a
// canceled context aborts the import.
func (im *Importer) Import(ctx context.Context, opts ImportOptions) (ImportResult, error) {
	start := time.Now()
	var result ImportResult

	if im.Source == nil || im.Repo == nil {
		return result, errors.Newf("importer needs a taxonomy source and a repository").
			Component("ebird").
			Category(errors.CategoryConfiguration).
			Build()
	}

	taxonomy, err := im.Source.GetTaxonomy(ctx, opts.Locale)
	if err != nil {
		return result, err
	}
	result.Fetched = len(taxonomy)

	categories := opts.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	families := make([]string, 0, len(opts.Families))
	for _, f := range opts.Families {
		families = append(families, strings.ToLower(strings.TrimSpace(f)))
	}

	written := 0
	for i := range taxonomy {
		if err := ctx.Err(); err != nil {
			im.finish(&result, start)
			return result, err
		}

		entry := &taxonomy[i]
		if !slices.Contains(categories, entry.Category) {
			continue
		}
		if len(families) > 0 && !slices.Contains(families, strings.ToLower(entry.FamilySciName)) {
			continue
		}
		if opts.Limit > 0 && written >= opts.Limit {
			break
		}
		written++

		bird, ok := im.convert(entry)
		if !ok {
			result.Skipped++
			continue
		}
		if opts.DryRun {
			result.Created++
			continue
		}

		created, err := im.Repo.Upsert(ctx, bird)
		switch {
		case err != nil:
			result.Failed++
			im.Log.Warn("failed to import taxonomy entry",
				logger.String("species_code", entry.SpeciesCode),
				logger.Error(err))
		case created:
			result.Created++
		default:
			result.Updated++
		}
	}

	im.finish(&result, start)
	im.Log.Info("taxonomy import finished",
		logger.Int("fetched", result.Fetched),
		logger.Int("created", result.Created),
		logger.Int("updated", result.Updated),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed),
		logger.Bool("dry_run", opts.DryRun),
		logger.Duration("duration", result.Duration))

	return result, nil
}

// convert maps a taxonomy entry onto a Bird. Entries without a binomial or
// with names longer than the column limits are rejected.
func (im *Importer) convert(entry *TaxonomyEntry) (*entities.Bird, bool) {
	genus, species, subspecies := birds.ParseScientificName(entry.ScientificName)

	bird := &entities.Bird{
		Genus:       genus,
		Species:     species,
		Subspecies:  entities.OptionalString(subspecies),
		EnglishName: strings.TrimSpace(entry.CommonName),
		Family:      entities.OptionalString(entry.FamilySciName),
	}

	if err := bird.Validate(); err != nil {
		im.Log.Warn("skipping taxonomy entry",
			logger.String("species_code", entry.SpeciesCode),
			logger.String("scientific_name", entry.ScientificName),
			logger.Int("common_name_length", utf8.RuneCountInString(entry.CommonName)),
			logger.Error(err))
		return nil, false
	}
	return bird, true
}

func (im *Importer) finish(result *ImportResult, start time.Time) {
	result.Duration = time.Since(start)
	if im.Metrics == nil {
		return
	}
	im.Metrics.RecordImportRecords(metrics.ImportCreated, result.Created)
	im.Metrics.RecordImportRecords(metrics.ImportUpdated, result.Updated)
	im.Metrics.RecordImportRecords(metrics.ImportSkipped, result.Skipped)
	im.Metrics.RecordImportRecords(metrics.ImportFailed, result.Failed)
	im.Metrics.RecordImportDuration(result.Duration)
}
