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

package service

import (
	"strconv"

	"fitbridge.dev/polarconnect/internal/models"
)

// AccessLink has shipped several spellings for the same logical fields. Each
// list below is tried in order and the first present value wins. Keep these
// lists explicit; do not fold them into ad hoc lookups.
var (
	polarUserIDAliases = []string{"polar-user-id", "polar_user_id", "id"}

	startTimeAliases = []string{"start-time", "start_time", "startTime"}
	sportAliases     = []string{"detailed-sport-info", "detailed_sport_info", "sport", "type"}
	durationAliases  = []string{"duration"}
	caloriesAliases  = []string{"calories", "kiloCalories"}
	distanceAliases  = []string{"distance", "distance-meters", "distanceMeters"}
	heartRateAliases = []string{"heart-rate", "heart_rate", "heartRate"}
	avgHrAliases     = []string{"average", "avg"}
	maxHrAliases     = []string{"maximum", "max"}

	exerciseListAliases = []string{"exercises", "data", "items"}
)

// NormalizeExercise reshapes a raw AccessLink exercise record into the stable
// response schema this service exposes.
func NormalizeExercise(raw map[string]any) models.WorkoutSummary {
	summary := models.WorkoutSummary{
		ID:             firstString(raw, "id"),
		StartTime:      firstString(raw, startTimeAliases...),
		Type:           firstString(raw, sportAliases...),
		Duration:       firstString(raw, durationAliases...),
		Calories:       firstNumber(raw, caloriesAliases...),
		DistanceMeters: firstNumber(raw, distanceAliases...),
	}

	if hr := firstMap(raw, heartRateAliases...); hr != nil {
		summary.AvgHr = firstNumber(hr, avgHrAliases...)
		summary.MaxHr = firstNumber(hr, maxHrAliases...)
	}

	return summary
}

// exerciseIDs extracts exercise identifiers from a listing response, which may
// be a bare array or an object wrapping one. Entries are either plain ids or
// objects carrying an id field.
func exerciseIDs(decoded any) []string {
	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range exerciseListAliases {
			if list, ok := v[key].([]any); ok {
				items = list
				break
			}
		}
	}

	var ids []string
	for _, item := range items {
		switch entry := item.(type) {
		case map[string]any:
			if id := firstString(entry, "id"); id != "" {
				ids = append(ids, id)
			}
		default:
			if id := asString(entry); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// firstString returns the first present key rendered as a string, tolerating
// numeric upstream values.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstNumber returns the first present key as a number, or nil when absent.
func firstNumber(m map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			value := n
			return &value
		case int64:
			value := float64(n)
			return &value
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return &parsed
			}
		}
	}
	return nil
}

// firstMap returns the first present key that holds a nested object.
func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if nested, ok := m[key].(map[string]any); ok {
			return nested
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
