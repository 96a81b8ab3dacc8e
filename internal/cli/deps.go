package cli

import (
	"context"
	"fmt"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/export"
	"github.com/timmy/transitdw/internal/repository"
	"github.com/timmy/transitdw/internal/storage"
)

// openGateway connects to the warehouse. The returned func closes the pool.
func (a *app) openGateway(dbCfg config.DatabaseConfig) (*repository.Gateway, func(), error) {
	db, err := repository.InitDB(&dbCfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	gw := repository.NewGateway(db, repository.RetryOptions{
		Attempts:  a.cfg.Database.RetryAttempts,
		BaseDelay: a.cfg.Database.RetryBaseDelay,
	})
	return gw, closeDB, nil
}

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// objectStorage builds the upload target for --upload.
func (a *app) objectStorage(ctx context.Context) (storage.ObjectStorage, error) {
	if !a.cfg.Storage.Enabled {
		return nil, &domain.ConfigurationError{Field: "storage.enabled", Reason: "--upload requires storage to be enabled"}
	}
	store, err := storage.NewStorage(&a.cfg.Storage)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "storage", Err: err}
	}
	if b, ok := store.(bucketEnsurer); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
	}
	return store, nil
}

// exportTo writes every table and view to dir and uploads the files under
// label when store is set.
func (a *app) exportTo(ctx context.Context, gw *repository.Gateway, store storage.ObjectStorage, dir, label string) (*export.Manifest, error) {
	exporter := export.NewExporter(gw, export.Options{
		Workers: a.cfg.Export.Workers,
		Storage: store,
		Prefix:  a.cfg.Storage.Prefix,
	})
	m, err := exporter.ExportAll(ctx, dir)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := exporter.Upload(ctx, m, label); err != nil {
			return m, err
		}
	}
	return m, nil
}
