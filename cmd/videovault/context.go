package main

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"videovault/internal/config"
	"videovault/internal/database"
	"videovault/internal/pkg/logger"
)

type commandContext struct {
	once   sync.Once
	config *config.Config
	log    *zap.Logger
	err    error
}

func (c *commandContext) ensure() (*config.Config, *zap.Logger, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
		c.log = logger.New(logger.Config{
			Environment: cfg.AppEnv,
			Level:       cfg.Log.Level,
			ServiceName: "videovault",
			File:        cfg.Log.File,
			MaxSizeMB:   cfg.Log.MaxSizeMB,
			MaxBackups:  cfg.Log.MaxBackups,
			MaxAgeDays:  cfg.Log.MaxAgeDays,
		})
	})
	return c.config, c.log, c.err
}

// openDatabase connects and migrates. Every command needs the schema.
func (c *commandContext) openDatabase() (*gorm.DB, error) {
	cfg, log, err := c.ensure()
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (c *commandContext) flushLogs() {
	if c.log != nil {
		_ = c.log.Sync()
	}
}
