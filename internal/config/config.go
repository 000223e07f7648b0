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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

const (
	// Polar OAuth2 and AccessLink endpoints. These are an external contract:
	// URLs, header names and grant parameter names must match what Polar expects.
	PolarAuthURL      = "https://flow.polar.com/oauth2/authorization"
	PolarTokenURL     = "https://polarremote.com/v2/oauth2/token"
	AccessLinkBaseURL = "https://www.polaraccesslink.com/v3"

	DefaultMemberID = "polar-connect"
)

// Config holds the application configuration values.
type Config struct {
	Port                 string
	PolarClientID        string
	PolarClientSecret    string
	PolarRedirectURI     string
	PolarMemberID        string
	BaseURL              string
	SecretKey            string
	StorageType          string
	GCPProjectID         string
	RedisURL             string
	CORSAllowedOrigins   string
	OtelExporterEndpoint string
	PolarOAuthConfig     *oauth2.Config
	Version              string
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is honored when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		PolarClientID:        getEnv("POLAR_CLIENT_ID", ""),
		PolarClientSecret:    getEnv("POLAR_CLIENT_SECRET", ""),
		PolarRedirectURI:     getEnv("POLAR_REDIRECT_URI", ""),
		PolarMemberID:        getEnv("POLAR_MEMBER_ID", ""),
		BaseURL:              getEnv("BASE_URL", ""),
		SecretKey:            getEnv("SECRET_KEY", ""),
		StorageType:          getEnv("STORAGE_TYPE", "inmemory"),
		GCPProjectID:         getEnv("GCP_PROJECT_ID", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		OtelExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
		Version:              getEnv("VERSION", "dev"),
	}

	if cfg.StorageType == "firestore" && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("STORAGE_TYPE is 'firestore' but GCP_PROJECT_ID is not set")
	}
	if cfg.StorageType == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("STORAGE_TYPE is 'redis' but REDIS_URL is not set")
	}

	cfg.PolarOAuthConfig = &oauth2.Config{
		ClientID:     cfg.PolarClientID,
		ClientSecret: cfg.PolarClientSecret,
		RedirectURL:  cfg.PolarRedirectURI,

		// Polar wants client credentials in a Basic Authorization header,
		// not in the form body.
		Endpoint: oauth2.Endpoint{
			AuthURL:   PolarAuthURL,
			TokenURL:  PolarTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return cfg, nil
}

// RequirePolar verifies that the Polar OAuth credentials are configured,
// naming every missing variable. The server is allowed to start without them;
// the OAuth endpoints report the problem instead.
func (c *Config) RequirePolar() error {
	var missing []string
	if c.PolarClientID == "" {
		missing = append(missing, "POLAR_CLIENT_ID")
	}
	if c.PolarClientSecret == "" {
		missing = append(missing, "POLAR_CLIENT_SECRET")
	}
	if c.PolarRedirectURI == "" {
		missing = append(missing, "POLAR_REDIRECT_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// MemberID returns the member id used for AccessLink user registration.
func (c *Config) MemberID() string {
	if c.PolarMemberID != "" {
		return c.PolarMemberID
	}
	return DefaultMemberID
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
