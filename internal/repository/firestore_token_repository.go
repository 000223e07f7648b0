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
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"fitbridge.dev/polarconnect/internal/config"
	"fitbridge.dev/polarconnect/internal/models"
	"fitbridge.dev/polarconnect/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tokenCollection = "polar"
	tokenDocument   = "tokens"
)

// FirestoreTokenRepository is a Firestore implementation of the
// TokenRepository. The record survives process restarts.
type FirestoreTokenRepository struct {
	client *firestore.Client
	logger *zap.Logger
	config *config.Config
}

// NewFirestoreTokenRepository creates a new FirestoreTokenRepository.
func NewFirestoreTokenRepository(ctx context.Context, projectID string, logger *zap.Logger, config *config.Config) (*FirestoreTokenRepository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreTokenRepository{
		client: client,
		logger: logger.Named("firestore_token_repo"),
		config: config,
	}, nil
}

func (r *FirestoreTokenRepository) Load(ctx context.Context) (*models.TokenRecord, error) {
	doc, err := r.client.Collection(tokenCollection).Doc(tokenDocument).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get token record: %w", err)
	}
	var record models.TokenRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to decode token record: %w", err)
	}
	return r.decryptRecord(&record)
}

func (r *FirestoreTokenRepository) Save(ctx context.Context, record *models.TokenRecord) error {
	stored := *record
	stored.LastUpdated = time.Now()
	encrypted, err := r.encryptRecord(&stored)
	if err != nil {
		return err
	}
	_, err = r.client.Collection(tokenCollection).Doc(tokenDocument).Set(ctx, encrypted)
	if err != nil {
		return fmt.Errorf("failed to save token record in firestore: %w", err)
	}
	r.logger.Info("Saved token record in Firestore", zap.Bool("connected", stored.Connected))
	return nil
}

func (r *FirestoreTokenRepository) Close() error {
	return r.client.Close()
}

// encryptRecord encrypts the token fields when a secret key is configured.
func (r *FirestoreTokenRepository) encryptRecord(record *models.TokenRecord) (*models.TokenRecord, error) {
	if r.config.SecretKey == "" {
		return record, nil
	}
	encrypted := *record
	var err error
	if encrypted.AccessToken != "" {
		encrypted.AccessToken, err = utils.Encrypt(encrypted.AccessToken, r.config.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt access token: %w", err)
		}
	}
	if encrypted.RefreshToken != "" {
		encrypted.RefreshToken, err = utils.Encrypt(encrypted.RefreshToken, r.config.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}
	return &encrypted, nil
}

// decryptRecord decrypts the token fields when a secret key is configured.
func (r *FirestoreTokenRepository) decryptRecord(record *models.TokenRecord) (*models.TokenRecord, error) {
	if r.config.SecretKey == "" {
		return record, nil
	}
	decrypted := *record
	var err error
	if decrypted.AccessToken != "" {
		decrypted.AccessToken, err = utils.Decrypt(decrypted.AccessToken, r.config.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
	}
	if decrypted.RefreshToken != "" {
		decrypted.RefreshToken, err = utils.Decrypt(decrypted.RefreshToken, r.config.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}
	return &decrypted, nil
}
