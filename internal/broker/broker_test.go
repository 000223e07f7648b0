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
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fitbridge.dev/polarconnect/internal/config"
	"fitbridge.dev/polarconnect/internal/models"
	"fitbridge.dev/polarconnect/internal/repository"
	"fitbridge.dev/polarconnect/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func newTestBroker(t *testing.T, upstreamURL string, seed *models.TokenRecord) *Broker {
	t.Helper()

	logger := zap.NewNop()
	cfg := &config.Config{
		PolarClientID:     "client-id",
		PolarClientSecret: "client-secret",
		PolarRedirectURI:  "http://localhost:8080/auth/polar/callback",
		PolarOAuthConfig: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:8080/auth/polar/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:   upstreamURL + "/oauth2/authorization",
				TokenURL:  upstreamURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
	}

	repo := repository.NewInMemoryTokenRepository(logger)
	if seed != nil {
		require.NoError(t, repo.Save(context.Background(), seed))
	}

	polar := service.NewPolarService(upstreamURL, otel.Tracer("test"), logger)

	b, err := New(context.Background(), cfg, repo, polar, logger)
	require.NoError(t, err)
	return b
}

func TestIsValid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name   string
		record models.TokenRecord
		want   bool
	}{
		{
			name: "no token",
			want: false,
		},
		{
			name:   "expired",
			record: models.TokenRecord{AccessToken: "at", ExpiresAt: now.Unix() - 1},
			want:   false,
		},
		{
			name:   "exactly at buffer boundary",
			record: models.TokenRecord{AccessToken: "at", ExpiresAt: now.Unix() + 60},
			want:   false,
		},
		{
			name:   "one second inside buffer",
			record: models.TokenRecord{AccessToken: "at", ExpiresAt: now.Unix() + 61},
			want:   true,
		},
		{
			name:   "well before expiry",
			record: models.TokenRecord{AccessToken: "at", ExpiresAt: now.Unix() + 3600},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Broker{record: tt.record, now: func() time.Time { return now }}
			assert.Equal(t, tt.want, b.IsValid())
		})
	}
}

func TestEnsureValidNoRefreshToken(t *testing.T) {
	b := newTestBroker(t, "http://127.0.0.1:0", nil)

	err := b.EnsureValid(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestEnsureValidValidTokenIsNoop(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, &models.TokenRecord{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		Connected:    true,
	})

	require.NoError(t, b.EnsureValid(context.Background()))
	assert.Zero(t, atomic.LoadInt32(&calls), "no upstream call expected for a valid token")
}

func TestEnsureValidRefreshKeepsRefreshToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		w.Header().Set("Content-Type", "application/json")
		// No refresh_token in the response: the stored one must survive.
		fmt.Fprint(w, `{"access_token":"new-access","token_type":"bearer","expires_in":3600}`)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, &models.TokenRecord{
		AccessToken:  "stale-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Unix() - 10,
		Connected:    true,
	})

	require.NoError(t, b.EnsureValid(context.Background()))

	record := b.Snapshot()
	assert.Equal(t, "new-access", record.AccessToken)
	assert.Equal(t, "old-refresh", record.RefreshToken)
	assert.True(t, record.Connected)
	assert.Greater(t, record.ExpiresAt, time.Now().Unix())
}

func TestEnsureValidRefreshReplacesRefreshToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new-access","token_type":"bearer","expires_in":3600,"refresh_token":"new-refresh"}`)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, &models.TokenRecord{
		AccessToken:  "stale-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Unix() - 10,
	})

	require.NoError(t, b.EnsureValid(context.Background()))
	assert.Equal(t, "new-refresh", b.Snapshot().RefreshToken)
}

func TestEnsureValidUpstreamReject(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, &models.TokenRecord{
		AccessToken:  "stale-access",
		RefreshToken: "dead-refresh",
		ExpiresAt:    time.Now().Unix() - 10,
	})

	err := b.EnsureValid(context.Background())
	require.Error(t, err)

	var upstreamErr *service.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "refresh_failed", upstreamErr.Op)
	assert.Contains(t, string(upstreamErr.Body), "invalid_grant")
}

// stalledTokenEndpoint holds every request open until the test finishes.
func stalledTokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		ts.Close()
	})
	return ts
}

func TestEnsureValidStalledTokenEndpointTimesOut(t *testing.T) {
	ts := stalledTokenEndpoint(t)

	b := newTestBroker(t, ts.URL, &models.TokenRecord{
		AccessToken:  "stale-access",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Unix() - 10,
		Connected:    true,
	})
	b.httpClient = &http.Client{Timeout: 200 * time.Millisecond}

	start := time.Now()
	err := b.EnsureValid(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 5*time.Second, "refresh must fail at the client timeout, not hang")
	assert.Equal(t, "stale-access", b.Snapshot().AccessToken, "a timed out refresh must not touch the record")
}

func TestExchangeStalledTokenEndpointTimesOut(t *testing.T) {
	ts := stalledTokenEndpoint(t)

	b := newTestBroker(t, ts.URL, nil)
	b.httpClient = &http.Client{Timeout: 200 * time.Millisecond}

	start := time.Now()
	err := b.ExchangeAuthorizationCode(context.Background(), "the-code")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 5*time.Second, "exchange must fail at the client timeout, not hang")
	assert.Empty(t, b.Snapshot().AccessToken)
}

func TestExchangeAuthorizationCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "http://localhost:8080/auth/polar/callback", r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","token_type":"bearer","expires_in":7200,"refresh_token":"refresh"}`)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, nil)

	require.NoError(t, b.ExchangeAuthorizationCode(context.Background(), "the-code"))

	record := b.Snapshot()
	assert.Equal(t, "access", record.AccessToken)
	assert.Equal(t, "refresh", record.RefreshToken)
	assert.True(t, record.Connected)
	assert.True(t, b.IsValid())
}

func TestExchangeAuthorizationCodeFailureWritesNothing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_request"}`)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, nil)

	err := b.ExchangeAuthorizationCode(context.Background(), "bad-code")
	require.Error(t, err)

	var upstreamErr *service.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "token_exchange_failed", upstreamErr.Op)

	record := b.Snapshot()
	assert.Empty(t, record.AccessToken)
	assert.False(t, record.Connected)
}

func TestEnsureRegisteredCallsUpstreamOnce(t *testing.T) {
	var registrations int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		atomic.AddInt32(&registrations, 1)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"polar-user-id":12345,"member-id":"polar-connect"}`)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, &models.TokenRecord{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		Connected:    true,
	})

	id, err := b.EnsureRegistered(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345", id)

	id, err = b.EnsureRegistered(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345", id)

	assert.Equal(t, int32(1), atomic.LoadInt32(&registrations))
}

func TestEnsureRegisteredConflictIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, &models.TokenRecord{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		Connected:    true,
	})

	id, err := b.EnsureRegistered(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, b.Snapshot().PolarUserID)
}

func TestEnsureRegisteredUpstreamReject(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"insufficient scope"}`)
	}))
	defer ts.Close()

	b := newTestBroker(t, ts.URL, &models.TokenRecord{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		Connected:    true,
	})

	_, err := b.EnsureRegistered(context.Background())
	require.Error(t, err)

	var upstreamErr *service.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "registration_failed", upstreamErr.Op)
	assert.Equal(t, http.StatusForbidden, upstreamErr.Status)
}

func TestEnsureRegisteredWithoutTokens(t *testing.T) {
	b := newTestBroker(t, "http://127.0.0.1:0", nil)

	_, err := b.EnsureRegistered(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}
