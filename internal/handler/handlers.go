/*
 * Copyright 2025 blockarchitech
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"fitbridge.dev/polarconnect/internal/broker"
	"fitbridge.dev/polarconnect/internal/config"
	"fitbridge.dev/polarconnect/internal/service"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HttpHandlers holds application-wide state and dependencies.
type HttpHandlers struct {
	logger       *zap.Logger
	config       *config.Config
	broker       *broker.Broker
	polarService *service.PolarService
	Tracer       trace.Tracer
}

// NewHttpHandlers creates a new HttpHandlers instance.
func NewHttpHandlers(
	logger *zap.Logger,
	cfg *config.Config,
	tokenBroker *broker.Broker,
	polarService *service.PolarService,
	tracer trace.Tracer,
) *HttpHandlers {
	return &HttpHandlers{
		logger:       logger.Named("http_handler"),
		config:       cfg,
		broker:       tokenBroker,
		polarService: polarService,
		Tracer:       tracer,
	}
}

// abortBrokerError maps token broker failures onto the HTTP surface. Upstream
// rejections are passed through with the Polar response body untouched so
// callers can inspect the nested error.
func (h *HttpHandlers) abortBrokerError(c *gin.Context, err error) {
	if errors.Is(err, broker.ErrNotConnected) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Polar not connected. Visit /auth/polar/start to connect.",
		})
		return
	}

	var upstreamErr *service.UpstreamError
	if errors.As(err, &upstreamErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			upstreamErr.Op: upstreamBody(upstreamErr),
		})
		return
	}

	h.logger.Error("Polar request failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Polar request failed"})
}

// upstreamBody renders the upstream response body: parsed JSON when possible,
// the raw string otherwise.
func upstreamBody(err *service.UpstreamError) any {
	if json.Valid(err.Body) {
		return json.RawMessage(err.Body)
	}
	return string(err.Body)
}
