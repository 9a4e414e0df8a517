package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

const defaultExportPageSize = 500

// Exporter writes every record of a repository into a snapshot.
type Exporter struct {
	repo       repository.RecordRepository
	source     string
	appVersion string
	pageSize   int
	now        func() time.Time
}

// NewExporter creates an exporter. source names the database dialect and
// is copied into the metadata.
func NewExporter(repo repository.RecordRepository, source, appVersion string) *Exporter {
	return &Exporter{
		repo:       repo,
		source:     source,
		appVersion: appVersion,
		pageSize:   defaultExportPageSize,
		now:        time.Now,
	}
}

// NewID returns a backup ID: the UTC timestamp followed by a short random
// suffix, so IDs sort chronologically.
func NewID(t time.Time) string {
	return t.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// Export writes a gzip-compressed YAML snapshot to w and returns its
// metadata. Size and Checksum describe the bytes written to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (*Metadata, error) {
	records, err := e.collect(ctx)
	if err != nil {
		return nil, err
	}

	createdAt := e.now().UTC()
	meta := &Metadata{
		Version:    MetadataVersion,
		ID:         NewID(createdAt),
		Timestamp:  createdAt,
		Records:    len(records),
		Source:     e.source,
		AppVersion: e.appVersion,
		Compressed: true,
	}

	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(w, hash)}

	gz := gzip.NewWriter(counter)
	gz.Name = meta.ID + ".yaml"
	gz.ModTime = createdAt

	enc := yaml.NewEncoder(gz)
	enc.SetIndent(2)
	snapshot := Snapshot{
		Version:    SnapshotVersion,
		CreatedAt:  createdAt,
		AppVersion: e.appVersion,
		Birds:      records,
	}
	if err := enc.Encode(&snapshot); err != nil {
		return nil, exportError(fmt.Errorf("failed to encode snapshot: %w", err))
	}
	if err := enc.Close(); err != nil {
		return nil, exportError(fmt.Errorf("failed to flush snapshot: %w", err))
	}
	if err := gz.Close(); err != nil {
		return nil, exportError(fmt.Errorf("failed to finish compression: %w", err))
	}

	meta.Size = counter.n
	meta.Checksum = hex.EncodeToString(hash.Sum(nil))

	GetLogger().Debug("snapshot exported",
		logString("id", meta.ID),
		logInt("records", meta.Records),
		logInt64("size", meta.Size))

	return meta, nil
}

// collect pages through the repository in ID order.
func (e *Exporter) collect(ctx context.Context) ([]BirdRecord, error) {
	pageSize := e.pageSize
	if pageSize <= 0 {
		pageSize = defaultExportPageSize
	}

	records := make([]BirdRecord, 0, pageSize)
	for offset := 0; ; offset += pageSize {
		filters := repository.NewFilters().WithOrder("id").WithLimit(pageSize)
		filters.Offset = offset

		page, err := e.repo.List(ctx, filters)
		if err != nil {
			return nil, err
		}
		for i := range page {
			records = append(records, RecordFromBird(&page[i]))
		}
		if len(page) < pageSize {
			return records, nil
		}
	}
}

func exportError(err error) error {
	return errors.New(err).
		Component("backup").
		Category(errors.CategoryFileIO).
		Context("operation", "export").
		Build()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
