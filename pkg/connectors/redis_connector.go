// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
)

type RedisConnector interface {
	Connector
	GetConnection() *redis.Client
}

type redisConnector struct {
	cfg    config.RedisConfig
	client *redis.Client
	logger commons.Logger
}

func NewRedisConnector(cfg config.RedisConfig, logger commons.Logger) RedisConnector {
	return &redisConnector{cfg: cfg, logger: logger}
}

// NewRedisConnectorWithClient wraps an existing client, typically a mock.
func NewRedisConnectorWithClient(client *redis.Client, logger commons.Logger) RedisConnector {
	return &redisConnector{client: client, logger: logger}
}

func (r *redisConnector) Connect(ctx context.Context) error {
	if r.client == nil {
		r.client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port),
			Password: r.cfg.Password,
			DB:       r.cfg.DB,
			PoolSize: r.cfg.MaxConnection,
		})
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.Errorf("redis: unable to reach %s:%d: %v", r.cfg.Host, r.cfg.Port, err)
		return fmt.Errorf("redis ping: %w", err)
	}
	r.logger.Debugf("redis: connected to %s:%d", r.cfg.Host, r.cfg.Port)
	return nil
}

func (r *redisConnector) Name() string {
	return fmt.Sprintf("redis://%s:%d", r.cfg.Host, r.cfg.Port)
}

func (r *redisConnector) IsConnected(ctx context.Context) bool {
	if r.client == nil {
		return false
	}
	return r.client.Ping(ctx).Err() == nil
}

func (r *redisConnector) Disconnect(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *redisConnector) GetConnection() *redis.Client {
	return r.client
}
