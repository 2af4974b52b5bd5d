package main

import (
	"context"
	"errors"
	"fmt"

	"obra-rdo/internal/config"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/model"
	"obra-rdo/internal/store"
)

var collections = []string{
	model.CollObras,
	model.CollFuncionarios,
	model.CollEquipes,
	model.CollUsuarios,
	model.CollRelatorios,
}

// migrate copies each collection document from the JSON files in DataDir into
// the SQL backend named by storage.driver. Documents are copied as stored.
func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "file" {
		return errors.New("storage.driver must name a SQL backend (mysql or sqlite)")
	}
	src, err := store.NewFileBackend(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	dst, err := store.OpenBackend(cfg)
	if err != nil {
		return err
	}
	for _, name := range collections {
		data, err := src.Read(ctx, name)
		if errors.Is(err, store.ErrNotExist) {
			logger.Info("migrate: skipped", "collection", name)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := dst.Write(ctx, name, data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		logger.Info("migrate: copied", "collection", name, "bytes", len(data), "driver", cfg.Storage.Driver)
	}
	return nil
}
