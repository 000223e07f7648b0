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

package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fitbridge.dev/polarconnect/internal/config"
	"fitbridge.dev/polarconnect/internal/models"
	"fitbridge.dev/polarconnect/internal/repository"
	"fitbridge.dev/polarconnect/internal/service"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// expiryBuffer guards against clock skew and in-flight request latency: a
// token within this window of its expiry is treated as already expired.
const expiryBuffer = 60 * time.Second

// tokenEndpointTimeout bounds calls to the Polar token endpoint, the same
// budget the AccessLink client applies to resource calls. The broker mutex is
// held across these calls, so a stalled endpoint must fail instead of hang.
const tokenEndpointTimeout = 20 * time.Second

// Broker owns the Polar token record. All operations are serialized by one
// mutex so concurrent requests against an expired token perform a single
// refresh instead of racing.
type Broker struct {
	mu         sync.Mutex
	config     *config.Config
	oauth      *oauth2.Config
	repo       repository.TokenRepository
	polar      *service.PolarService
	logger     *zap.Logger
	httpClient *http.Client
	record     models.TokenRecord
	now        func() time.Time
}

// New creates a Broker, loading any previously persisted token record.
func New(ctx context.Context, cfg *config.Config, repo repository.TokenRepository, polar *service.PolarService, logger *zap.Logger) (*Broker, error) {
	b := &Broker{
		config:     cfg,
		oauth:      cfg.PolarOAuthConfig,
		repo:       repo,
		polar:      polar,
		logger:     logger.Named("token_broker"),
		httpClient: &http.Client{Timeout: tokenEndpointTimeout},
		now:        time.Now,
	}

	record, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token record: %w", err)
	}
	if record != nil {
		b.record = *record
	}
	return b, nil
}

// IsValid reports whether an access token is present and not within the
// expiry buffer.
func (b *Broker) IsValid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validLocked()
}

func (b *Broker) validLocked() bool {
	return b.record.AccessToken != "" &&
		b.now().Before(time.Unix(b.record.ExpiresAt, 0).Add(-expiryBuffer))
}

// EnsureValid refreshes the access token when it is expired or about to
// expire. It is a no-op for a valid token, and ErrNotConnected when no refresh
// token is held.
func (b *Broker) EnsureValid(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.validLocked() {
		return nil
	}
	if b.record.RefreshToken == "" {
		return ErrNotConnected
	}

	// Hand the token source only the refresh token so it always performs the
	// refresh grant instead of reusing an access token our stricter expiry
	// window already rejected.
	src := b.oauth.TokenSource(b.oauthContext(ctx), &oauth2.Token{RefreshToken: b.record.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return upstreamOr(err, "refresh_failed", "failed to refresh Polar token")
	}

	b.record.AccessToken = token.AccessToken
	b.record.ExpiresAt = expiresAt(token, b.now)
	// Polar may or may not return a new refresh token; keep the existing one
	// when it is absent.
	if token.RefreshToken != "" {
		b.record.RefreshToken = token.RefreshToken
	}
	b.record.Connected = true
	b.persistLocked(ctx)

	b.logger.Info("Refreshed Polar access token", zap.Int64("expiresAt", b.record.ExpiresAt))
	return nil
}

// ExchangeAuthorizationCode exchanges a one-time authorization code for
// tokens, fully overwriting the stored token fields. Nothing is written when
// the exchange fails.
func (b *Broker) ExchangeAuthorizationCode(ctx context.Context, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	token, err := b.oauth.Exchange(b.oauthContext(ctx), code)
	if err != nil {
		return upstreamOr(err, "token_exchange_failed", "failed to exchange Polar authorization code")
	}

	b.record.AccessToken = token.AccessToken
	b.record.RefreshToken = token.RefreshToken
	b.record.ExpiresAt = expiresAt(token, b.now)
	b.record.Connected = true
	b.persistLocked(ctx)

	b.logger.Info("Exchanged Polar authorization code", zap.Int64("expiresAt", b.record.ExpiresAt))
	return nil
}

// EnsureRegistered performs the one-time AccessLink user registration,
// returning the Polar user id. Once an id is stored the call is a no-op. A 409
// from Polar means the account is already registered elsewhere; the prior
// (possibly empty) id is returned without treating it as an error.
func (b *Broker) EnsureRegistered(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.record.PolarUserID != "" {
		return b.record.PolarUserID, nil
	}
	if b.record.AccessToken == "" {
		return "", ErrNotConnected
	}

	id, alreadyRegistered, err := b.polar.RegisterUser(ctx, b.record.AccessToken, b.config.MemberID())
	if err != nil {
		return "", err
	}
	if alreadyRegistered {
		if b.record.PolarUserID == "" {
			b.logger.Warn("Polar reports user already registered but no user id is cached")
		}
		return b.record.PolarUserID, nil
	}
	if id != "" {
		b.record.PolarUserID = id
		b.persistLocked(ctx)
	}
	return id, nil
}

// oauthContext carries the broker's HTTP client into x/oauth2 calls. Without
// it the library falls back to http.DefaultClient, which has no timeout.
func (b *Broker) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

// AccessToken returns the currently held access token.
func (b *Broker) AccessToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record.AccessToken
}

// Snapshot returns a copy of the token record for read-only reporting.
func (b *Broker) Snapshot() models.TokenRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record
}

// persistLocked saves the record to the repository. Persistence is best
// effort: a store outage must not mask a successful upstream exchange, so
// failures are logged and the in-memory record stays authoritative.
func (b *Broker) persistLocked(ctx context.Context) {
	record := b.record
	if err := b.repo.Save(ctx, &record); err != nil {
		b.logger.Error("Failed to persist token record", zap.Error(err))
	}
}

func expiresAt(token *oauth2.Token, now func() time.Time) int64 {
	if token.Expiry.IsZero() {
		// No expires_in from upstream: treat the token as already stale so the
		// next call refreshes again rather than trusting it forever.
		return now().Unix()
	}
	return token.Expiry.Unix()
}

// upstreamOr maps an oauth2 retrieval failure to an UpstreamError carrying
// the Polar response body verbatim, and wraps anything else as a plain error.
func upstreamOr(err error, op, msg string) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &service.UpstreamError{Op: op, Status: status, Body: retrieveErr.Body}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
