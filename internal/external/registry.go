package external

import (
	"log/slog"
	"net/http"
	"time"

	"contentpilot/internal/config"
	"contentpilot/internal/security"
	"contentpilot/internal/types"
)

// mediaFetchTimeout bounds a source video download.
const mediaFetchTimeout = 5 * time.Minute

// ---------------------------------------------------------------------------
// Publisher Registry
//
// Central factory that instantiates one publisher per platform whose
// credentials are configured. A platform missing from the registry is
// reported as "not configured" by the queue. In stub mode every supported
// platform gets a StubPublisher instead.
// ---------------------------------------------------------------------------

// PublisherRegistry maps platforms to their publishers.
type PublisherRegistry struct {
	publishers map[types.Platform]Publisher
}

// NewRegistry builds a registry from ready-made publishers. Later entries
// for the same platform win.
func NewRegistry(publishers ...Publisher) *PublisherRegistry {
	r := &PublisherRegistry{publishers: make(map[types.Platform]Publisher, len(publishers))}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

// NewPublisherRegistry initializes the publishers that cfg has credentials
// for. Each platform gets its own BaseClient so one failing platform cannot
// trip another's circuit breaker.
func NewPublisherRegistry(cfg config.PlatformCredentials, logger *slog.Logger) *PublisherRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.StubMode {
		logger.Info("initializing platform publishers in STUB mode")
		stubLogger := logger.With("mode", "stub")
		return NewRegistry(
			NewStubPublisher(types.PlatformWordPress, stubLogger),
			NewStubPublisher(types.PlatformYouTube, stubLogger),
			NewStubPublisher(types.PlatformInstagram, stubLogger),
			NewStubPublisher(types.PlatformFacebook, stubLogger),
		)
	}

	newBase := func(name string) *BaseClient {
		return NewBaseClient(&http.Client{Timeout: cfg.HTTPTimeout}, name, DefaultRetryPolicy(), cfg.UserAgent)
	}

	var publishers []Publisher

	if cfg.WordPressSiteURL != "" && cfg.WordPressUsername != "" && cfg.WordPressPassword.IsSet() {
		publishers = append(publishers, NewWordPressClient(newBase("wordpress"), WordPressClientConfig{
			SiteURL:     cfg.WordPressSiteURL,
			Username:    cfg.WordPressUsername,
			AppPassword: cfg.WordPressPassword.Unmask(),
			Logger:      logger.With("client", "wordpress"),
		}))
	}

	if cfg.YouTubeAccessToken.IsSet() {
		publishers = append(publishers, NewYouTubeClient(newBase("youtube"), YouTubeClientConfig{
			AccessToken: cfg.YouTubeAccessToken.Unmask(),
			ChannelID:   cfg.YouTubeChannelID,
			MediaClient: security.NewMediaClient(mediaFetchTimeout),
			Logger:      logger.With("client", "youtube"),
		}))
	}

	if cfg.MetaPageAccessToken.IsSet() {
		metaCfg := MetaClientConfig{
			PageAccessToken:    cfg.MetaPageAccessToken.Unmask(),
			PageID:             cfg.MetaPageID,
			InstagramAccountID: cfg.InstagramAccountID,
			GraphVersion:       cfg.MetaGraphVersion,
		}
		if cfg.InstagramAccountID != "" {
			igCfg := metaCfg
			igCfg.Logger = logger.With("client", "instagram")
			publishers = append(publishers, NewInstagramClient(newBase("instagram"), igCfg))
		}
		if cfg.MetaPageID != "" {
			fbCfg := metaCfg
			fbCfg.Logger = logger.With("client", "facebook")
			publishers = append(publishers, NewFacebookClient(newBase("facebook"), fbCfg))
		}
	}

	r := NewRegistry(publishers...)
	logger.Info("platform publishers initialized", "configured", r.Configured())
	return r
}

// Get returns the publisher for platform.
func (r *PublisherRegistry) Get(platform types.Platform) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

// Configured lists the platforms with a publisher, in types.AllPlatforms
// order.
func (r *PublisherRegistry) Configured() []types.Platform {
	out := make([]types.Platform, 0, len(r.publishers))
	for _, p := range types.AllPlatforms {
		if _, ok := r.publishers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
