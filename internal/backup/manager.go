package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
	"github.com/hellobirdie/hellobirdie/internal/observability/metrics"
)

// Default operation timeouts
const (
	DefaultBackupTimeout = 30 * time.Minute
	DefaultStoreTimeout  = 15 * time.Minute
)

// OperationRecorder receives backup operation outcomes.
// *metrics.TaxonomyMetrics implements it.
type OperationRecorder interface {
	RecordBackupOperation(operation, status string)
}

// Manager handles the backup operations
type Manager struct {
	exporter *Exporter
	repo     repository.RecordRepository
	targets  map[string]Target
	metrics  OperationRecorder
	mu       sync.RWMutex
	log      logger.Logger
}

// NewManager creates a new backup manager. recorder may be nil.
func NewManager(exporter *Exporter, repo repository.RecordRepository, recorder OperationRecorder) *Manager {
	return &Manager{
		exporter: exporter,
		repo:     repo,
		targets:  make(map[string]Target),
		metrics:  recorder,
		log:      GetLogger(),
	}
}

// RegisterTarget validates and adds a backup target
func (m *Manager) RegisterTarget(target Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := target.Validate(); err != nil {
		return errors.New(fmt.Errorf("invalid target configuration: %w", err)).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("target", target.Name()).
			Build()
	}

	m.targets[target.Name()] = target
	return nil
}

// Targets returns the names of the registered targets, sorted.
func (m *Manager) Targets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedKeys(m.targets)
}

// RunBackup exports a snapshot once and stores it in every registered
// target. The metadata is returned even when some targets fail.
func (m *Manager) RunBackup(ctx context.Context) (*Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, DefaultBackupTimeout)
	defer cancel()

	if len(m.targets) == 0 {
		return nil, errors.Newf("no backup targets registered, backup cannot proceed").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}

	m.log.Info("starting backup", logInt("targets", len(m.targets)))

	var buf bytes.Buffer
	meta, err := m.exporter.Export(ctx, &buf)
	if err != nil {
		m.record(metrics.OpBackupExport, metrics.StatusError)
		m.log.Error("backup export failed", logError(err))
		return nil, err
	}
	m.record(metrics.OpBackupExport, metrics.StatusSuccess)

	if err := m.storeInTargets(ctx, buf.Bytes(), meta); err != nil {
		return meta, err
	}

	m.log.Info("backup completed",
		logString("id", meta.ID),
		logInt("records", meta.Records),
		logInt64("size", meta.Size))
	return meta, nil
}

func (m *Manager) storeInTargets(ctx context.Context, data []byte, meta *Metadata) error {
	var errs []error
	for _, name := range sortedKeys(m.targets) {
		target := m.targets[name]
		if err := ctx.Err(); err != nil {
			return err
		}

		storeCtx, storeCancel := context.WithTimeout(ctx, DefaultStoreTimeout)
		err := target.Store(storeCtx, meta.Key(), bytes.NewReader(data), meta)
		storeCancel()
		if err != nil {
			m.record(metrics.OpBackupStore, metrics.StatusError)
			m.log.Error("failed to store backup",
				logString("target", name),
				logString("id", meta.ID),
				logError(err))
			errs = append(errs, errors.New(fmt.Errorf("failed to store backup in target %s: %w", name, err)).
				Component("backup").
				Category(errors.CategoryFileIO).
				Context("target", name).
				Build())
			continue
		}
		m.record(metrics.OpBackupStore, metrics.StatusSuccess)
		m.log.Info("stored backup", logString("target", name), logString("id", meta.ID))
	}
	return errors.Join(errs...)
}

// ListBackups returns the backups of every target, newest first. Partial
// results are returned when at least one target could be listed.
func (m *Manager) ListBackups(ctx context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.targets) == 0 {
		return nil, errors.Newf("no backup targets registered").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var all []Info
	var errs []error
	for _, name := range sortedKeys(m.targets) {
		backups, err := m.targets[name].List(ctx)
		if err != nil {
			m.log.Warn("failed to list backups", logString("target", name), logError(err))
			errs = append(errs, err)
			continue
		}
		all = append(all, backups...)
	}

	if len(errs) > 0 && len(all) == 0 {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return all, nil
}

// DeleteBackup deletes a backup from all targets
func (m *Manager) DeleteBackup(ctx context.Context, id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, name := range sortedKeys(m.targets) {
		if err := m.targets[name].Delete(ctx, id); err != nil {
			m.log.Error("failed to delete backup", logString("target", name), logString("id", id), logError(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Restore upserts the snapshot read from r. A non-empty checksum must match
// the SHA-256 of the compressed input or nothing is written.
func (m *Manager) Restore(ctx context.Context, r io.Reader, checksum string) (RestoreResult, error) {
	result, err := restore(ctx, r, m.repo, checksum)
	if err != nil {
		m.record(metrics.OpBackupRestore, metrics.StatusError)
		return result, err
	}
	m.record(metrics.OpBackupRestore, metrics.StatusSuccess)
	return result, nil
}

func (m *Manager) record(operation, status string) {
	if m.metrics != nil {
		m.metrics.RecordBackupOperation(operation, status)
	}
}

func sortedKeys(targets map[string]Target) []string {
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
