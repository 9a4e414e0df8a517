package datastore

import (
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/logger"
	"github.com/hellobirdie/hellobirdie/internal/observability/metrics"
)

// Store is an initialized database together with its record repository.
type Store struct {
	Manager
	Repo repository.RecordRepository
}

// Open opens and migrates the configured backend and builds the record
// repository on top of it, wrapped in the read cache when
// settings.Cache.Enabled is set. recorder may be nil.
func Open(settings *conf.Settings, recorder metrics.Recorder) (*Store, error) {
	mgr, err := New(settings, GetLogger())
	if err != nil {
		return nil, err
	}

	if err := mgr.Initialize(); err != nil {
		_ = mgr.Close()
		return nil, err
	}

	repo := repository.NewRecordRepository(mgr.DB(), recorder)
	if settings.Cache.Enabled {
		repo = repository.NewCachedRepository(repo, settings.Cache.TTL)
	}

	GetLogger().Debug("record store ready",
		logger.String("dialect", mgr.Dialect()),
		logger.String("location", mgr.Path()),
		logger.Bool("cache", settings.Cache.Enabled))

	return &Store{Manager: mgr, Repo: repo}, nil
}
