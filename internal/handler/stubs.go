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

// The endpoints in this file are deliberate stubs: they enforce the same
// ensure-valid/ensure-registered precondition chain as the real data
// endpoints and return placeholder payloads until wired to the corresponding
// AccessLink resources.

// requirePolarSession runs the precondition chain shared by all data
// endpoints. It reports whether the caller may proceed.
func (h *HttpHandlers) requirePolarSession(c *gin.Context) bool {
	ctx := c.Request.Context()
	if err := h.broker.EnsureValid(ctx); err != nil {
		h.abortBrokerError(c, err)
		return false
	}
	if _, err := h.broker.EnsureRegistered(ctx); err != nil {
		h.abortBrokerError(c, err)
		return false
	}
	return true
}

// HandleGetWorkout returns a placeholder for a single workout.
func (h *HttpHandlers) HandleGetWorkout(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandleGetWorkout")
	defer span.End()

	if !h.requirePolarSession(c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              c.Param("id"),
		"startTime":       nil,
		"endTime":         nil,
		"type":            nil,
		"durationSeconds": nil,
		"calories":        nil,
		"distanceMeters":  nil,
		"avgHr":           nil,
		"maxHr":           nil,
	})
}

// HandleGetSleep returns a placeholder for sleep data.
func (h *HttpHandlers) HandleGetSleep(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandleGetSleep")
	defer span.End()

	date := c.Query("date")
	if date == "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "date is required"})
		return
	}

	if !h.requirePolarSession(c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":         date,
		"sleepSeconds": nil,
		"bedtime":      nil,
		"waketime":     nil,
		"efficiency":   nil,
		"score":        nil,
		"notes":        "Stub response. Wire this to Polar sleep endpoint/feeds.",
	})
}

// HandleGetToday returns a placeholder daily activity summary.
func (h *HttpHandlers) HandleGetToday(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandleGetToday")
	defer span.End()

	if !h.requirePolarSession(c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":           time.Now().Format("2006-01-02"),
		"steps":          nil,
		"calories":       nil,
		"activeMinutes":  nil,
		"distanceMeters": nil,
		"notes":          "Stub response. Wire this to your Polar ingestion logic.",
	})
}

// HandleTriggerSync acknowledges a sync request without doing any work yet.
func (h *HttpHandlers) HandleTriggerSync(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandleTriggerSync")
	defer span.End()

	if !h.requirePolarSession(c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Sync triggered (stub)."})
}
