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

	"fitbridge.dev/polarconnect/internal/models"
)

// TokenRepository defines the interface for storing and retrieving the Polar
// token record. Implementations hold exactly one record; Load returns
// (nil, nil) when none has been saved yet.
type TokenRepository interface {
	Load(ctx context.Context) (*models.TokenRecord, error)
	Save(ctx context.Context, record *models.TokenRecord) error
	Close() error
}
