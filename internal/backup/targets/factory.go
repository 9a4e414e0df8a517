package targets

import (
	"context"

	"github.com/hellobirdie/hellobirdie/internal/backup"
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

// FromSettings builds the target named by name, or by settings.Target when
// name is empty.
func FromSettings(ctx context.Context, settings *conf.BackupSettings, name string) (backup.Target, error) {
	if name == "" {
		name = settings.Target
	}

	switch name {
	case conf.BackupTargetLocal:
		target, err := NewLocalTarget(settings.Local.Path)
		if err != nil {
			return nil, err
		}
		return target, nil
	case conf.BackupTargetS3:
		target, err := NewS3Target(ctx, &settings.S3)
		if err != nil {
			return nil, err
		}
		return target, nil
	default:
		return nil, errors.Newf("unknown backup target %q", name).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("target", name).
			Build()
	}
}
