// Package config defines the configuration structure for the Content Pilot
// service. Configuration is loaded once at process start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any invalid value causes LoadConfig to return a ConfigError so main can
// fail fast.
package config

import (
	"time"

	"contentpilot/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// for platform credentials.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"contentpilot"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Scheduler     SchedulerConfig
	Queue         QueueConfig
	Autopilot     AutopilotConfig
	Platforms     PlatformCredentials
	Database      DatabaseConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// SchedulerConfig configures the smart scheduler.
type SchedulerConfig struct {
	// Timezone is the IANA zone in which day-of-week and hour slots are
	// interpreted.
	Timezone  string           `envconfig:"SCHEDULER_TIMEZONE" default:"UTC" validate:"required"`
	Platforms []types.Platform `envconfig:"SCHEDULER_PLATFORMS" default:"wordpress,youtube,instagram,facebook" validate:"min=1,dive,oneof=wordpress youtube instagram facebook twitter linkedin tiktok"`
	// Seed drives the slot jitter. Zero means seed from the clock.
	Seed uint64 `envconfig:"SCHEDULER_SEED" default:"0"`
}

// QueueConfig configures the publishing queue and its dispatch policy.
type QueueConfig struct {
	ProcessInterval time.Duration `envconfig:"QUEUE_PROCESS_INTERVAL" default:"1m" validate:"gt=0"`
	PublishTimeout  time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxRetries      int           `envconfig:"PUBLISH_MAX_RETRIES" default:"2" validate:"min=0,max=10"`
	RetryMinWait    time.Duration `envconfig:"PUBLISH_RETRY_MIN_WAIT" default:"1s"`
	RetryMaxWait    time.Duration `envconfig:"PUBLISH_RETRY_MAX_WAIT" default:"30s"`
}

// AutopilotConfig configures the gap-filling loop.
type AutopilotConfig struct {
	Enabled      bool                `envconfig:"AUTOPILOT_ENABLED" default:"false"`
	Velocity     types.VelocityLevel `envconfig:"AUTOPILOT_VELOCITY" default:"medium" validate:"oneof=low medium high"`
	Topics       []string            `envconfig:"AUTOPILOT_TOPICS" default:"product updates,industry news,how-to guides"`
	ContentTypes []types.ContentType `envconfig:"AUTOPILOT_CONTENT_TYPES" default:"blog,instagram-reel" validate:"min=1,dive,oneof=blog youtube-short instagram-reel facebook-story"`
	AutoApprove  bool                `envconfig:"AUTOPILOT_AUTO_APPROVE" default:"false"`
	Interval     time.Duration       `envconfig:"AUTOPILOT_INTERVAL" default:"1h" validate:"gt=0"`
	// MediaBaseURL prefixes the video_url given to produced video content.
	MediaBaseURL string `envconfig:"CONTENT_MEDIA_BASE_URL" validate:"omitempty,url"`
}

// PlatformCredentials holds the transport credentials. A platform whose
// credentials are left empty is treated as not configured.
type PlatformCredentials struct {
	WordPressSiteURL  string       `envconfig:"WORDPRESS_SITE_URL" validate:"omitempty,url"`
	WordPressUsername string       `envconfig:"WORDPRESS_USERNAME"`
	WordPressPassword SecretString `envconfig:"WORDPRESS_APP_PASSWORD"`

	YouTubeAccessToken SecretString `envconfig:"YOUTUBE_ACCESS_TOKEN"`
	YouTubeChannelID   string       `envconfig:"YOUTUBE_CHANNEL_ID"`

	MetaPageAccessToken SecretString `envconfig:"META_PAGE_ACCESS_TOKEN"`
	MetaPageID          string       `envconfig:"META_PAGE_ID"`
	InstagramAccountID  string       `envconfig:"INSTAGRAM_ACCOUNT_ID"`
	MetaGraphVersion    string       `envconfig:"META_GRAPH_VERSION" default:"v19.0"`

	// StubMode replaces every transport with a logging stub that always
	// succeeds. For local development only.
	StubMode bool `envconfig:"PLATFORM_STUB_MODE" default:"false"`

	HTTPTimeout time.Duration `envconfig:"PLATFORM_HTTP_TIMEOUT" default:"20s"`
	UserAgent   string        `envconfig:"PLATFORM_USER_AGENT" default:"ContentPilot/1.0"`
}

// DatabaseConfig holds the optional analytics database connection.
type DatabaseConfig struct {
	// URL points at the analytics warehouse holding historical engagement.
	// Empty disables historical scoring.
	URL             SecretString  `envconfig:"DATABASE_URL" validate:"omitempty,url"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// PublishEventsQueue receives one message per finished publish task.
	// Empty disables event emission.
	PublishEventsQueue string `envconfig:"SQS_PUBLISH_EVENTS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=none prometheus cloudwatch"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ContentPilot"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
