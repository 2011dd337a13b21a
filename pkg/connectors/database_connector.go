// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
)

// DatabaseConnector hands out gorm sessions bound to a request context.
type DatabaseConnector interface {
	Connector
	DB(ctx context.Context) *gorm.DB
}

type databaseConnector struct {
	cfg    config.HistoryConfig
	db     *gorm.DB
	logger commons.Logger
}

func NewDatabaseConnector(cfg config.HistoryConfig, logger commons.Logger) DatabaseConnector {
	return &databaseConnector{cfg: cfg, logger: logger}
}

func (c *databaseConnector) dialector() (gorm.Dialector, error) {
	switch c.cfg.Driver {
	case "postgres":
		return postgres.Open(c.cfg.DSN), nil
	case "sqlite", "":
		return sqlite.Open(c.cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported history driver %q", c.cfg.Driver)
}

func (c *databaseConnector) Connect(ctx context.Context) error {
	dialector, err := c.dialector()
	if err != nil {
		return err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		c.logger.Errorf("database: unable to open %s: %v", c.Name(), err)
		return fmt.Errorf("open %s: %w", c.cfg.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if c.cfg.MaxOpenConnection > 0 {
		sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConnection)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", c.cfg.Driver, err)
	}
	c.db = db
	c.logger.Debugf("database: connected to %s", c.Name())
	return nil
}

func (c *databaseConnector) Name() string {
	if c.cfg.Driver == "" {
		return "sqlite"
	}
	return c.cfg.Driver
}

func (c *databaseConnector) IsConnected(ctx context.Context) bool {
	if c.db == nil {
		return false
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (c *databaseConnector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.db = nil
	return sqlDB.Close()
}

func (c *databaseConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}
