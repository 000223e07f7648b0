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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRoot is the liveness endpoint.
func (h *HttpHandlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "service": "polar-connect-backend"})
}

// HandlePolarStatus reports a read-only projection of the token broker state.
func (h *HttpHandlers) HandlePolarStatus(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandlePolarStatus")
	defer span.End()

	record := h.broker.Snapshot()

	expiresIn := record.ExpiresAt - time.Now().Unix()
	if expiresIn < 0 || record.AccessToken == "" {
		expiresIn = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":        record.Connected,
		"has_access_token": record.AccessToken != "",
		"expires_at":       record.ExpiresAt,
		"expires_in":       expiresIn,
		"polar_user_id":    record.PolarUserID,
	})
}
