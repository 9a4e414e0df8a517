package targets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hellobirdie/hellobirdie/internal/backup"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// Constants for file operations
const (
	dirPermissions  = 0o700 // rwx------ (owner only)
	filePermissions = 0o600 // rw------- (owner only)
	maxPathLength   = 255
	metadataSuffix  = ".meta.json"
)

// LocalTarget implements backup.Target for a local directory. Every backup
// is a <id>.yaml.gz file next to a <id>.meta.json sidecar.
type LocalTarget struct {
	path string
	log  logger.Logger
}

// NewLocalTarget creates the backup directory if needed and returns a
// target writing into it.
func NewLocalTarget(path string) (*LocalTarget, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, localError(fmt.Errorf("failed to resolve absolute path: %w", err), errors.CategoryValidation)
	}

	if err := os.MkdirAll(absPath, dirPermissions); err != nil {
		return nil, localError(fmt.Errorf("failed to create backup directory: %w", err), errors.CategoryFileIO)
	}
	// MkdirAll leaves an existing directory's mode alone.
	if err := os.Chmod(absPath, dirPermissions); err != nil {
		return nil, localError(fmt.Errorf("failed to set directory permissions: %w", err), errors.CategoryFileIO)
	}

	return &LocalTarget{path: absPath, log: GetLogger()}, nil
}

// Name returns the name of this target
func (t *LocalTarget) Name() string {
	return "local"
}

// Path returns the absolute backup directory.
func (t *LocalTarget) Path() string {
	return t.path
}

// Store writes the snapshot and then its metadata sidecar. A backup without
// a sidecar is not listed, so a failure half way leaves nothing visible.
func (t *LocalTarget) Store(ctx context.Context, key string, r io.Reader, metadata *backup.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	dstPath := filepath.Join(t.path, key)
	var written int64
	err := atomicWriteFile(dstPath, "backup-*.tmp", func(f *os.File) error {
		n, err := io.Copy(f, &contextReader{ctx: ctx, r: r})
		written = n
		return err
	})
	if err != nil {
		return localError(fmt.Errorf("failed to write backup: %w", err), errors.CategoryFileIO)
	}

	if metadata.Size > 0 && written != metadata.Size {
		_ = os.Remove(dstPath)
		return errors.Newf("backup file size mismatch: expected %d, got %d", metadata.Size, written).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("key", key).
			Build()
	}

	metaPath := filepath.Join(t.path, metadata.ID+metadataSuffix)
	err = atomicWriteFile(metaPath, "metadata-*.tmp", func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(metadata)
	})
	if err != nil {
		_ = os.Remove(dstPath)
		return localError(fmt.Errorf("failed to write metadata: %w", err), errors.CategoryFileIO)
	}

	t.log.Debug("stored backup in local target",
		logString("path", dstPath),
		logInt64("size", written))
	return nil
}

// List returns the backups that have a readable sidecar, newest first.
func (t *LocalTarget) List(ctx context.Context) ([]backup.Info, error) {
	entries, err := os.ReadDir(t.path)
	if err != nil {
		return nil, localError(fmt.Errorf("failed to read backup directory: %w", err), errors.CategoryFileIO)
	}

	var backups []backup.Info
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metadataSuffix) {
			continue
		}

		meta, err := readMetadata(filepath.Join(t.path, entry.Name()))
		if err != nil {
			t.log.Warn("skipping backup with unreadable metadata",
				logString("file", entry.Name()),
				logError(err))
			continue
		}
		backups = append(backups, backup.Info{Metadata: *meta, Target: t.Name()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ID > backups[j].ID
	})
	return backups, nil
}

// Delete removes a backup and its sidecar.
func (t *LocalTarget) Delete(_ context.Context, id string) error {
	if err := validateKey(id); err != nil {
		return err
	}

	dataErr := os.Remove(filepath.Join(t.path, id+backup.FileExtension))
	metaErr := os.Remove(filepath.Join(t.path, id+metadataSuffix))
	if os.IsNotExist(dataErr) && os.IsNotExist(metaErr) {
		return errors.Newf("backup not found: %s", id).
			Component("backup").
			Category(errors.CategoryNotFound).
			Context("id", id).
			Build()
	}
	for _, err := range []error{dataErr, metaErr} {
		if err != nil && !os.IsNotExist(err) {
			return localError(fmt.Errorf("failed to delete backup: %w", err), errors.CategoryFileIO)
		}
	}
	return nil
}

// Validate checks that the directory exists and is writable.
func (t *LocalTarget) Validate() error {
	info, err := os.Stat(t.path)
	if err != nil {
		return localError(fmt.Errorf("failed to check backup path: %w", err), errors.CategoryValidation)
	}
	if !info.IsDir() {
		return errors.Newf("backup path is not a directory: %s", t.path).
			Component("backup").
			Category(errors.CategoryValidation).
			Build()
	}

	f, err := os.CreateTemp(t.path, ".write_test-*")
	if err != nil {
		return localError(fmt.Errorf("backup path is not writable: %w", err), errors.CategoryValidation)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func readMetadata(path string) (*backup.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta backup.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("metadata has no id")
	}
	return &meta, nil
}

// atomicWriteFile writes to a temporary file in the target directory and
// renames it into place.
func atomicWriteFile(targetPath, tempPattern string, write func(*os.File) error) error {
	tempFile, err := os.CreateTemp(filepath.Dir(targetPath), tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if err := tempFile.Chmod(filePermissions); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := write(tempFile); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	success = true
	return nil
}

func validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.Newf("path is required for local target").
			Component("backup").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(path) > maxPathLength {
		return errors.Newf("path length exceeds maximum allowed (%d characters)", maxPathLength).
			Component("backup").
			Category(errors.CategoryValidation).
			Build()
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return errors.Newf("path must not contain directory traversal sequences").
				Component("backup").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	return nil
}

// validateKey accepts plain file names only.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return errors.Newf("invalid backup key %q", key).
			Component("backup").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func localError(err error, category errors.ErrorCategory) error {
	return errors.New(err).
		Component("backup").
		Category(category).
		Context("target", "local").
		Build()
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
