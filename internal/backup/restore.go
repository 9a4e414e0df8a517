package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

// RestoreResult counts what a restore did.
type RestoreResult struct {
	Records int
	Created int
	Updated int
}

// Restore reads a snapshot from r and upserts every record into repo.
// The whole snapshot is decoded and validated before anything is written.
func Restore(ctx context.Context, r io.Reader, repo repository.RecordRepository) (RestoreResult, error) {
	return restore(ctx, r, repo, "")
}

func restore(ctx context.Context, r io.Reader, repo repository.RecordRepository, checksum string) (RestoreResult, error) {
	var result RestoreResult

	snapshot, sum, err := decodeSnapshot(r)
	if err != nil {
		return result, err
	}
	if checksum != "" && sum != checksum {
		return result, errors.Newf("snapshot checksum mismatch").
			Component("backup").
			Category(errors.CategoryValidation).
			Context("expected", checksum).
			Context("actual", sum).
			Build()
	}

	birds := make([]*entities.Bird, 0, len(snapshot.Birds))
	for i := range snapshot.Birds {
		bird := snapshot.Birds[i].Bird()
		if err := bird.Validate(); err != nil {
			return result, errors.New(fmt.Errorf("invalid record %d in snapshot: %w", i, err)).
				Component("backup").
				Category(errors.CategoryValidation).
				Context("index", i).
				Build()
		}
		birds = append(birds, bird)
	}
	result.Records = len(birds)

	for _, bird := range birds {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		created, err := repo.Upsert(ctx, bird)
		if err != nil {
			return result, err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	GetLogger().Info("snapshot restored",
		logInt("records", result.Records),
		logInt("created", result.Created),
		logInt("updated", result.Updated))

	return result, nil
}

// decodeSnapshot decompresses and parses a snapshot and returns it with the
// hex SHA-256 of the compressed input.
func decodeSnapshot(r io.Reader) (*Snapshot, string, error) {
	h := sha256.New()
	tee := io.TeeReader(r, h)

	gz, err := gzip.NewReader(tee)
	if err != nil {
		return nil, "", restoreError(fmt.Errorf("snapshot is not gzip compressed: %w", err))
	}
	defer func() { _ = gz.Close() }()

	dec := yaml.NewDecoder(gz)
	dec.KnownFields(true)

	var snapshot Snapshot
	if err := dec.Decode(&snapshot); err != nil {
		return nil, "", restoreError(fmt.Errorf("failed to decode snapshot: %w", err))
	}

	// Drain so the gzip trailer is verified and the checksum covers every byte.
	if _, err := io.Copy(io.Discard, gz); err != nil {
		return nil, "", restoreError(fmt.Errorf("failed to read snapshot: %w", err))
	}
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return nil, "", restoreError(fmt.Errorf("failed to read snapshot: %w", err))
	}

	if snapshot.Version < 1 || snapshot.Version > SnapshotVersion {
		return nil, "", errors.Newf("unsupported snapshot version %d", snapshot.Version).
			Component("backup").
			Category(errors.CategoryValidation).
			Context("version", snapshot.Version).
			Build()
	}

	return &snapshot, hexSum(h), nil
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

func restoreError(err error) error {
	return errors.New(err).
		Component("backup").
		Category(errors.CategoryFileParsing).
		Context("operation", "restore").
		Build()
}
