package main

import (
	"fmt"

	"assetcomposer/internal/config"
	"assetcomposer/internal/database"
	"assetcomposer/internal/logger"
	"assetcomposer/internal/services"
)

// openCompositionService connects to the configured database and returns a
// composition service over it. The returned func closes the connection.
func openCompositionService() (services.CompositionServicer, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	dbConfig, err := database.NewConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	manager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := manager.Migrate(); err != nil {
		_ = manager.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := manager.Close(); err != nil {
			logger.Get().Warnf("database close error: %v", err)
		}
	}
	return services.NewCompositionService(manager.DB()), closeFn, nil
}
