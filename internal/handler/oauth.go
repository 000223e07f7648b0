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

package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// HandlePolarStart initiates the OAuth2 flow with Polar.
func (h *HttpHandlers) HandlePolarStart(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandlePolarStart")
	defer span.End()

	if err := h.config.RequirePolar(); err != nil {
		h.logger.Error("Polar OAuth configuration incomplete", zap.Error(err))
		span.RecordError(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The state value is used for traceability only; the callback belongs to a
	// single personal deployment and does not validate it.
	state := fmt.Sprintf("personal:%d", time.Now().Unix())
	authURL := h.config.PolarOAuthConfig.AuthCodeURL(state)
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// HandlePolarCallback handles the OAuth2 callback from Polar: it exchanges the
// authorization code for tokens and then attempts the one-time AccessLink user
// registration. A registration failure is flagged but does not undo a
// successful token exchange.
func (h *HttpHandlers) HandlePolarCallback(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandlePolarCallback")
	defer span.End()

	code := c.Query("code")
	if code == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing code in callback"})
		return
	}

	if err := h.broker.ExchangeAuthorizationCode(ctx, code); err != nil {
		h.logger.Error("Failed to exchange Polar authorization code", zap.Error(err))
		span.RecordError(err)
		h.abortBrokerError(c, err)
		return
	}
	span.SetAttributes(attribute.Bool("polar.token_exchanged", true))

	polarUserID, err := h.broker.EnsureRegistered(ctx)
	if err != nil {
		h.logger.Warn("Polar connected but user registration failed", zap.Error(err))
		span.RecordError(err)
		c.JSON(http.StatusOK, gin.H{
			"ok":                 true,
			"message":            "Polar connected, but user registration failed. Data endpoints may not work yet.",
			"registration_error": err.Error(),
		})
		return
	}
	span.SetAttributes(attribute.String("polar.user_id", polarUserID))

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"message":       "Polar connected! You can now call /polar/today, /polar/workouts, /polar/sleep.",
		"polar_user_id": polarUserID,
	})
}
