/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fitbridge.dev/polarconnect/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenKey = "polarconnect:tokens"

// RedisTokenRepository is a Redis implementation of the TokenRepository.
type RedisTokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRepository creates a new RedisTokenRepository and verifies the
// connection with a ping.
func NewRedisTokenRepository(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisTokenRepository, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisTokenRepository{
		client: client,
		logger: logger.Named("redis_token_repo"),
	}, nil
}

func (r *RedisTokenRepository) Load(ctx context.Context) (*models.TokenRecord, error) {
	raw, err := r.client.Get(ctx, tokenKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token record from redis: %w", err)
	}
	var record models.TokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode token record: %w", err)
	}
	return &record, nil
}

func (r *RedisTokenRepository) Save(ctx context.Context, record *models.TokenRecord) error {
	stored := *record
	stored.LastUpdated = time.Now()
	raw, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}
	if err := r.client.Set(ctx, tokenKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save token record in redis: %w", err)
	}
	r.logger.Info("Saved token record in Redis", zap.Bool("connected", stored.Connected))
	return nil
}

func (r *RedisTokenRepository) Close() error {
	return r.client.Close()
}
