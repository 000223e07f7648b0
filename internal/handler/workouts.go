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
	"strconv"

	"fitbridge.dev/polarconnect/internal/models"
	"fitbridge.dev/polarconnect/internal/service"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultWorkoutLimit = 50
	maxWorkoutLimit     = 200
)

// HandleListWorkouts lists Polar exercises in the requested date range.
// Exercise details are fetched one by one; a single broken upstream record is
// skipped rather than failing the whole listing.
func (h *HttpHandlers) HandleListWorkouts(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleListWorkouts")
	defer span.End()

	// from_date with from as an accepted synonym; both date bounds are
	// inclusive.
	fromDate := c.Query("from_date")
	if fromDate == "" {
		fromDate = c.Query("from")
	}
	toDate := c.Query("to")
	if fromDate == "" || toDate == "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "from_date and to are required"})
		return
	}

	limit := defaultWorkoutLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxWorkoutLimit {
		limit = maxWorkoutLimit
	}
	span.SetAttributes(
		attribute.String("polar.from", fromDate),
		attribute.String("polar.to", toDate),
		attribute.Int("polar.limit", limit),
	)

	// Unlike the OAuth callback there is no soft-fail here: data endpoints
	// need the registration to have happened.
	if !h.requirePolarSession(c) {
		return
	}

	accessToken := h.broker.AccessToken()
	ids, err := h.polarService.ListExerciseIDs(ctx, accessToken)
	if err != nil {
		h.abortBrokerError(c, err)
		return
	}

	workouts := make([]models.WorkoutSummary, 0, limit)
	for _, id := range ids {
		if len(workouts) >= limit {
			break
		}

		detail, err := h.polarService.GetExercise(ctx, accessToken, id)
		if err != nil {
			h.logger.Warn("Skipping exercise with failed detail fetch",
				zap.String("exerciseID", id),
				zap.Error(err),
			)
			continue
		}

		summary := service.NormalizeExercise(detail)
		if !inDateRange(summary.StartTime, fromDate, toDate) {
			continue
		}
		workouts = append(workouts, summary)
	}
	span.SetAttributes(attribute.Int("polar.workout_count", len(workouts)))

	c.JSON(http.StatusOK, gin.H{
		"workouts": workouts,
		"from":     fromDate,
		"to":       toDate,
		"count":    len(workouts),
	})
}

// inDateRange compares the date portion of a start time against the inclusive
// [from, to] range. Lexicographic comparison is valid because the format is
// fixed-width zero-padded YYYY-MM-DD.
func inDateRange(startTime, fromDate, toDate string) bool {
	if len(startTime) < 10 {
		return false
	}
	day := startTime[:10]
	return day >= fromDate && day <= toDate
}
