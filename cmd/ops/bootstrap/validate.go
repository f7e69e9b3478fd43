package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ValidationResult is the outcome of checking one operator input.
type ValidationResult struct {
	Valid   bool
	Message string
}

// HTTPClient is used by validators that probe a platform API.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DatabaseConnector verifies that a DSN is reachable. Implementations must
// close the connection before returning.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector opens and immediately closes a pgx connection.
type PgxConnector struct{}

// Connect implements DatabaseConnector.
func (c *PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

const (
	defaultYouTubeAPIBase = "https://www.googleapis.com"
	defaultMetaGraphBase  = "https://graph.facebook.com"
	defaultGraphVersion   = "v19.0"

	// validateTimeout bounds a single active probe.
	validateTimeout = 15 * time.Second
)

// Validator checks operator input, probing the platform APIs where a token
// can be verified without side effects.
type Validator struct {
	httpClient HTTPClient
	dbConn     DatabaseConnector

	youTubeBase string
	metaBase    string
}

// NewValidator returns a Validator that talks to the real platform APIs.
func NewValidator() *Validator {
	return NewValidatorWithDeps(&http.Client{Timeout: 10 * time.Second}, &PgxConnector{})
}

// NewValidatorWithDeps returns a Validator with injected dependencies.
func NewValidatorWithDeps(httpClient HTTPClient, dbConn DatabaseConnector) *Validator {
	return &Validator{
		httpClient:  httpClient,
		dbConn:      dbConn,
		youTubeBase: defaultYouTubeAPIBase,
		metaBase:    defaultMetaGraphBase,
	}
}

// ValidateDatabaseURL checks the analytics database DSN and connects to it.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, rawURL string) ValidationResult {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return ValidationResult{Message: fmt.Sprintf("expected postgres:// or postgresql:// scheme, got %q", parsed.Scheme)}
	}
	if parsed.Hostname() == "" {
		return ValidationResult{Message: "database URL has no host"}
	}
	if v.dbConn == nil {
		return ValidationResult{Valid: true, Message: "format accepted (connection not checked)"}
	}

	connCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.dbConn.Connect(connCtx, rawURL); err != nil {
		return ValidationResult{Message: fmt.Sprintf("connection failed: %v", err)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("database connection verified (host=%s)", parsed.Hostname())}
}

// ValidateSiteURL requires an absolute https URL without a trailing path.
func (v *Validator) ValidateSiteURL(_ context.Context, rawURL string) ValidationResult {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "https" || parsed.Host == "" {
		return ValidationResult{Message: "site URL must be an absolute https:// URL"}
	}
	if p := strings.TrimSuffix(parsed.Path, "/"); strings.HasSuffix(p, "/wp-json") || strings.Contains(p, "/wp-admin") {
		return ValidationResult{Message: "use the site root, not an API or admin path"}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("site URL accepted (%s)", parsed.Host)}
}

// ValidateYouTubeToken calls channels.list?mine=true with the token.
func (v *Validator) ValidateYouTubeToken(ctx context.Context, token string) ValidationResult {
	endpoint := v.youTubeBase + "/youtube/v3/channels?part=id&mine=true"

	var body struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	status, err := v.probe(ctx, endpoint, token, &body)
	if err != nil {
		return ValidationResult{Message: err.Error()}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ValidationResult{Message: fmt.Sprintf("YouTube rejected the token (HTTP %d)", status)}
	case status != http.StatusOK:
		return ValidationResult{Message: fmt.Sprintf("unexpected YouTube response (HTTP %d)", status)}
	case len(body.Items) == 0:
		return ValidationResult{Message: "token is valid but has no YouTube channel"}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("YouTube channel verified: %s", body.Items[0].ID)}
}

// ValidateMetaToken calls the Graph API /me endpoint with the token.
func (v *Validator) ValidateMetaToken(ctx context.Context, token string) ValidationResult {
	endpoint := fmt.Sprintf("%s/%s/me?fields=id,name", v.metaBase, defaultGraphVersion)

	var body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	status, err := v.probe(ctx, endpoint, token, &body)
	if err != nil {
		return ValidationResult{Message: err.Error()}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusBadRequest:
		return ValidationResult{Message: fmt.Sprintf("Meta rejected the token (HTTP %d)", status)}
	case status != http.StatusOK:
		return ValidationResult{Message: fmt.Sprintf("unexpected Meta response (HTTP %d)", status)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("Meta token verified: %s (%s)", body.Name, body.ID)}
}

// ValidateRegex checks input against pattern.
func (v *Validator) ValidateRegex(_ context.Context, input, pattern, fieldName string) ValidationResult {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("internal error: bad pattern for %s: %v", fieldName, err)}
	}
	if !re.MatchString(strings.TrimSpace(input)) {
		return ValidationResult{Message: fmt.Sprintf("%s has an unexpected format", fieldName)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%s format accepted", fieldName)}
}

// probe issues an authenticated GET and decodes a 200 body into out.
func (v *Validator) probe(ctx context.Context, endpoint, token string, out any) (int, error) {
	if v.httpClient == nil {
		return 0, fmt.Errorf("no HTTP client configured")
	}
	probeCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %v", err)
	}
	return resp.StatusCode, nil
}
