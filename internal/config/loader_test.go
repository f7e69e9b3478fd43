package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"contentpilot/internal/types"
)

// clearEnv unsets variables the tests depend on so that values from the
// developer's shell do not leak into assertions. Originals are restored.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if orig, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
		os.Unsetenv(k)
	}
}

var configKeys = []string{
	"APP_ENV", "LOG_LEVEL", "PORT", "SCHEDULER_TIMEZONE", "SCHEDULER_PLATFORMS",
	"SCHEDULER_SEED", "PUBLISH_TIMEOUT", "PUBLISH_MAX_RETRIES", "AUTOPILOT_VELOCITY",
	"AUTOPILOT_TOPICS", "AUTOPILOT_CONTENT_TYPES", "AUTOPILOT_ENABLED",
	"WORDPRESS_SITE_URL", "WORDPRESS_APP_PASSWORD", "DATABASE_URL",
	"SQS_PUBLISH_EVENTS", "METRICS_BACKEND",
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t, configKeys...)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want local", cfg.Environment)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Scheduler.Timezone != "UTC" {
		t.Errorf("Scheduler.Timezone = %q, want UTC", cfg.Scheduler.Timezone)
	}
	wantPlatforms := []types.Platform{types.PlatformWordPress, types.PlatformYouTube, types.PlatformInstagram, types.PlatformFacebook}
	if len(cfg.Scheduler.Platforms) != len(wantPlatforms) {
		t.Fatalf("Scheduler.Platforms = %v, want %v", cfg.Scheduler.Platforms, wantPlatforms)
	}
	for i, p := range wantPlatforms {
		if cfg.Scheduler.Platforms[i] != p {
			t.Errorf("Scheduler.Platforms[%d] = %q, want %q", i, cfg.Scheduler.Platforms[i], p)
		}
	}
	if cfg.Queue.PublishTimeout != 30*time.Second {
		t.Errorf("Queue.PublishTimeout = %v, want 30s", cfg.Queue.PublishTimeout)
	}
	if cfg.Queue.MaxRetries != 2 {
		t.Errorf("Queue.MaxRetries = %d, want 2", cfg.Queue.MaxRetries)
	}
	if cfg.Autopilot.Velocity != types.VelocityMedium {
		t.Errorf("Autopilot.Velocity = %q, want medium", cfg.Autopilot.Velocity)
	}
	if len(cfg.Autopilot.Topics) != 3 {
		t.Errorf("Autopilot.Topics = %v, want 3 defaults", cfg.Autopilot.Topics)
	}
	if cfg.Observability.MetricsBackend != "prometheus" {
		t.Errorf("MetricsBackend = %q, want prometheus", cfg.Observability.MetricsBackend)
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want dev", cfg.Build.Version)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t, configKeys...)
	t.Setenv("SCHEDULER_TIMEZONE", "America/New_York")
	t.Setenv("SCHEDULER_PLATFORMS", "instagram,tiktok")
	t.Setenv("AUTOPILOT_VELOCITY", "high")
	t.Setenv("AUTOPILOT_CONTENT_TYPES", "youtube-short")
	t.Setenv("PUBLISH_TIMEOUT", "5s")
	t.Setenv("WORDPRESS_SITE_URL", "https://blog.example.com")
	t.Setenv("WORDPRESS_APP_PASSWORD", "abcd efgh")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if got := cfg.Scheduler.Location().String(); got != "America/New_York" {
		t.Errorf("Location() = %q", got)
	}
	if len(cfg.Scheduler.Platforms) != 2 || cfg.Scheduler.Platforms[1] != types.PlatformTikTok {
		t.Errorf("Scheduler.Platforms = %v", cfg.Scheduler.Platforms)
	}
	if cfg.Autopilot.Velocity.PostsPerWeek() != 14 {
		t.Errorf("velocity high should map to 14 posts/week")
	}
	if cfg.Queue.PublishTimeout != 5*time.Second {
		t.Errorf("PublishTimeout = %v", cfg.Queue.PublishTimeout)
	}
	if cfg.Platforms.WordPressPassword.Unmask() != "abcd efgh" {
		t.Error("WordPress password not loaded")
	}
	if cfg.Platforms.WordPressPassword.String() != "***REDACTED***" {
		t.Error("WordPress password must be redacted when printed")
	}
}

func TestLoadConfigValidationFailure(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown environment", "APP_ENV", "qa"},
		{"unknown platform", "SCHEDULER_PLATFORMS", "wordpress,myspace"},
		{"unknown velocity", "AUTOPILOT_VELOCITY", "ludicrous"},
		{"unknown content type", "AUTOPILOT_CONTENT_TYPES", "podcast"},
		{"bad site url", "WORDPRESS_SITE_URL", "not a url"},
		{"bad metrics backend", "METRICS_BACKEND", "statsd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, configKeys...)
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Type != ErrValidation {
				t.Errorf("Type = %q, want %q", cfgErr.Type, ErrValidation)
			}
		})
	}
}

func TestLoadConfigInvalidTimezone(t *testing.T) {
	clearEnv(t, configKeys...)
	t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus_Mons")

	_, err := LoadConfig()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrValidation {
		t.Fatalf("expected timezone validation error, got %v", err)
	}
}

func TestLoadConfigParsingFailure(t *testing.T) {
	clearEnv(t, configKeys...)
	t.Setenv("PUBLISH_MAX_RETRIES", "many")

	_, err := LoadConfig()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrParsing {
		t.Fatalf("expected parsing error, got %v", err)
	}
}

// TestLoadConfigDotenvFile verifies values are read from .env and that the
// OS environment takes priority over them.
func TestLoadConfigDotenvFile(t *testing.T) {
	clearEnv(t, configKeys...)

	tmpDir := t.TempDir()
	envContent := "LOG_LEVEL=debug\nPORT=9090\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(envContent), 0644); err != nil {
		t.Fatalf("failed to write .env file: %v", err)
	}

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(origDir)
	})

	t.Setenv("PORT", "7070")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig with .env file returned error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want value from .env", cfg.LogLevel)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Port = %q, want OS environment to win over .env", cfg.Server.Port)
	}
}

func TestConfigErrorError(t *testing.T) {
	withCause := &ConfigError{Type: ErrParsing, Message: "bad", Err: errors.New("boom")}
	if got := withCause.Error(); got != "[PARSING_FAILED] bad: boom" {
		t.Errorf("Error() = %q", got)
	}
	bare := &ConfigError{Type: ErrValidation, Message: "bad"}
	if got := bare.Error(); got != "[VALIDATION_FAILED] bad" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(withCause, withCause.Err) {
		t.Error("Unwrap should expose the cause")
	}
}
