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

package models

import "time"

// TokenRecord is the single process-wide Polar credential record. Connected is
// monotonic: once a token exchange has succeeded it is never reset. PolarUserID
// is set after AccessLink user registration and treated as permanent.
type TokenRecord struct {
	AccessToken  string    `firestore:"accessToken,omitempty" json:"access_token"`
	RefreshToken string    `firestore:"refreshToken,omitempty" json:"refresh_token"`
	ExpiresAt    int64     `firestore:"expiresAt,omitempty" json:"expires_at"`
	Connected    bool      `firestore:"connected,omitempty" json:"connected"`
	PolarUserID  string    `firestore:"polarUserID,omitempty" json:"polar_user_id"`
	LastUpdated  time.Time `firestore:"lastUpdated,omitempty" json:"last_updated"`
}

// WorkoutSummary is the normalized shape this service returns for a Polar
// exercise. Pointer fields render as null when the upstream record lacks them.
type WorkoutSummary struct {
	ID             string   `json:"id"`
	StartTime      string   `json:"startTime"`
	Type           string   `json:"type"`
	Duration       string   `json:"duration"`
	Calories       *float64 `json:"calories"`
	DistanceMeters *float64 `json:"distanceMeters"`
	AvgHr          *float64 `json:"avgHr"`
	MaxHr          *float64 `json:"maxHr"`
}
