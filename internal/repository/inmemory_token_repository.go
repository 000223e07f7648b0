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
	"sync"
	"time"

	"fitbridge.dev/polarconnect/internal/models"
	"go.uber.org/zap"
)

// InMemoryTokenRepository is an in-memory implementation of the
// TokenRepository. Tokens are lost on process restart.
type InMemoryTokenRepository struct {
	mu     sync.RWMutex
	record *models.TokenRecord
	logger *zap.Logger
}

// NewInMemoryTokenRepository creates a new InMemoryTokenRepository.
func NewInMemoryTokenRepository(logger *zap.Logger) *InMemoryTokenRepository {
	return &InMemoryTokenRepository{
		logger: logger.Named("inmemory_token_repo"),
	}
}

func (r *InMemoryTokenRepository) Load(ctx context.Context) (*models.TokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.record == nil {
		return nil, nil
	}
	record := *r.record
	return &record, nil
}

func (r *InMemoryTokenRepository) Save(ctx context.Context, record *models.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *record
	stored.LastUpdated = time.Now()
	r.record = &stored
	r.logger.Debug("Stored token record in-memory", zap.Bool("connected", stored.Connected))
	return nil
}

func (r *InMemoryTokenRepository) Close() error {
	r.logger.Info("Closing in-memory token repository (no-op).")
	return nil
}
