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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	go_json "github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// UpstreamError carries a non-success response from the Polar API. The body is
// kept verbatim so callers can pass the upstream error through untouched.
type UpstreamError struct {
	Op     string
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: polar returned status %d: %s", e.Op, e.Status, string(e.Body))
}

// PolarService is responsible for interacting with the Polar AccessLink API.
type PolarService struct {
	baseURL    string
	client     *http.Client
	tracer     trace.Tracer
	logger     *zap.Logger
	apiTimeout time.Duration
}

// NewPolarService creates a new PolarService talking to the given AccessLink
// base URL (config.AccessLinkBaseURL in production).
func NewPolarService(apiURL string, tracer trace.Tracer, logger *zap.Logger) *PolarService {
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		),
		Timeout: 20 * time.Second,
	}
	return &PolarService{
		baseURL:    apiURL,
		client:     client,
		tracer:     tracer,
		logger:     logger.Named("polar_service"),
		apiTimeout: 20 * time.Second,
	}
}

// RegisterUser registers the connected account with AccessLink. Polar requires
// this once before any data endpoint works. The second return value is true
// when Polar answered 409, meaning the account is already registered.
func (s *PolarService) RegisterUser(ctx context.Context, accessToken, memberID string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "PolarService.RegisterUser")
	defer span.End()

	payload, err := go_json.Marshal(map[string]string{"member-id": memberID})
	if err != nil {
		return "", false, fmt.Errorf("failed to encode registration payload: %w", err)
	}

	status, body, err := s.do(ctx, http.MethodPost, s.baseURL+"/users", accessToken, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration request failed")
		return "", false, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status == http.StatusConflict {
		s.logger.Info("Polar user already registered", zap.String("memberID", memberID))
		return "", true, nil
	}
	if status >= 400 {
		s.logger.Error("Polar user registration failed",
			zap.Int("statusCode", status),
			zap.ByteString("responseBody", body),
		)
		span.SetStatus(codes.Error, "registration rejected")
		return "", false, &UpstreamError{Op: "registration_failed", Status: status, Body: body}
	}

	var data map[string]any
	if err := go_json.Unmarshal(body, &data); err != nil {
		return "", false, fmt.Errorf("failed to decode registration response: %w", err)
	}

	id := firstString(data, polarUserIDAliases...)
	if id == "" {
		s.logger.Warn("Polar registration response carried no user id", zap.ByteString("responseBody", body))
	} else {
		s.logger.Info("Registered Polar user", zap.String("polarUserID", id))
	}
	return id, false, nil
}

// ListExerciseIDs lists the identifiers of available exercises. AccessLink has
// answered with both a bare array and an object wrapping one; both are accepted.
func (s *PolarService) ListExerciseIDs(ctx context.Context, accessToken string) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "PolarService.ListExerciseIDs")
	defer span.End()

	status, body, err := s.do(ctx, http.MethodGet, s.baseURL+"/exercises", accessToken, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exercise listing request failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status >= 400 {
		s.logger.Error("Polar exercise listing failed",
			zap.Int("statusCode", status),
			zap.ByteString("responseBody", body),
		)
		span.SetStatus(codes.Error, "exercise listing rejected")
		return nil, &UpstreamError{Op: "exercise_list_failed", Status: status, Body: body}
	}

	var decoded any
	if err := go_json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode exercise listing: %w", err)
	}

	ids := exerciseIDs(decoded)
	span.SetAttributes(attribute.Int("polar.exercise_count", len(ids)))
	return ids, nil
}

// GetExercise fetches the detail record of a single exercise.
func (s *PolarService) GetExercise(ctx context.Context, accessToken, exerciseID string) (map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "PolarService.GetExercise")
	defer span.End()
	span.SetAttributes(attribute.String("polar.exercise_id", exerciseID))

	status, body, err := s.do(ctx, http.MethodGet, s.baseURL+"/exercises/"+exerciseID, accessToken, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exercise detail request failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status >= 400 {
		span.SetStatus(codes.Error, "exercise detail rejected")
		return nil, &UpstreamError{Op: "exercise_detail_failed", Status: status, Body: body}
	}

	var data map[string]any
	if err := go_json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode exercise %s: %w", exerciseID, err)
	}
	return data, nil
}

func (s *PolarService) do(ctx context.Context, method, url, accessToken string, payload []byte) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.apiTimeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to Polar API failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}
