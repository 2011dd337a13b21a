// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rapidaai/studio/pkg/commons"
)

const DefaultChannel = "studio:transcripts"

type redisPublisher struct {
	client  *redis.Client
	channel string
	logger  commons.Logger
}

// NewRedisPublisher publishes every event as JSON on a redis pub/sub channel.
func NewRedisPublisher(client *redis.Client, channel string, logger commons.Logger) Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &redisPublisher{client: client, channel: channel, logger: logger}
}

func (p *redisPublisher) Publish(ctx context.Context, ev Event) error {
	if p.client == nil {
		return fmt.Errorf("redis connection not available for transcript publishing")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode transcript event: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish transcript event to %s: %w", p.channel, err)
	}
	p.logger.Debugw("published transcript event",
		"session", ev.SessionID,
		"final", ev.Final,
		"receivers", receivers)
	return nil
}
