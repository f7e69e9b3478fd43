package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"contentpilot/internal/types"
)

// metaGraphBase is the default Graph API host.
// Overridable in tests via MetaClientConfig.BaseURL.
const metaGraphBase = "https://graph.facebook.com"

// MetaClientConfig holds the configuration shared by the Instagram and
// Facebook publishers.
type MetaClientConfig struct {
	PageAccessToken    string
	PageID             string
	InstagramAccountID string
	GraphVersion       string
	BaseURL            string // Override for testing; defaults to metaGraphBase

	// ContainerPollInterval and ContainerPollAttempts bound the wait for an
	// Instagram media container to finish processing.
	ContainerPollInterval time.Duration
	ContainerPollAttempts int

	Logger *slog.Logger
}

// metaGraph is the Graph API plumbing shared by both Meta publishers.
type metaGraph struct {
	base     *BaseClient
	token    string
	endpoint string // base URL with the version segment
	sleepFn  func(context.Context, time.Duration) error
}

type graphErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func newMetaGraph(base *BaseClient, cfg MetaClientConfig) metaGraph {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = metaGraphBase
	}
	version := cfg.GraphVersion
	if version == "" {
		version = "v19.0"
	}
	return metaGraph{
		base:     base,
		token:    cfg.PageAccessToken,
		endpoint: strings.TrimSuffix(baseURL, "/") + "/" + version,
		sleepFn:  sleepCtx,
	}
}

func (g metaGraph) call(ctx context.Context, platform types.Platform, method, path string, body, out any) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+g.token)

	url := path
	if !strings.HasPrefix(path, "http") {
		url = g.endpoint + path
	}
	return g.base.doJSON(ctx, method, url, header, body, out, func(status int, respBody []byte) error {
		var gErr graphErrorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &gErr) == nil && gErr.Error.Message != "" {
			msg = gErr.Error.Message
		}
		return platformError(platform, status, msg)
	})
}

// ---------------------------------------------------------------------------
// Instagram Reels
// ---------------------------------------------------------------------------

// InstagramClient publishes Reels through the Instagram Graph API: it creates
// a media container, waits for it to finish processing, then publishes it.
type InstagramClient struct {
	graph        metaGraph
	accountID    string
	pollInterval time.Duration
	pollAttempts int
	logger       *slog.Logger
}

// NewInstagramClient creates an InstagramClient on top of base.
func NewInstagramClient(base *BaseClient, cfg MetaClientConfig) *InstagramClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.ContainerPollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	attempts := cfg.ContainerPollAttempts
	if attempts <= 0 {
		attempts = 20
	}
	return &InstagramClient{
		graph:        newMetaGraph(base, cfg),
		accountID:    cfg.InstagramAccountID,
		pollInterval: interval,
		pollAttempts: attempts,
		logger:       logger,
	}
}

// Platform implements Publisher.
func (c *InstagramClient) Platform() types.Platform { return types.PlatformInstagram }

type igContainerRequest struct {
	MediaType    string `json:"media_type"`
	VideoURL     string `json:"video_url"`
	Caption      string `json:"caption"`
	ShareToFeed  bool   `json:"share_to_feed"`
	ThumbnailURL string `json:"cover_url,omitempty"`
}

type graphIDResponse struct {
	ID string `json:"id"`
}

type igContainerStatus struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type igPermalink struct {
	Permalink string `json:"permalink"`
}

// Publish implements Publisher.
func (c *InstagramClient) Publish(ctx context.Context, item types.ContentItem) (types.PublishReceipt, error) {
	videoURL := item.Metadata[MetaVideoURL]
	if videoURL == "" {
		return types.PublishReceipt{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"Instagram Reels require a video_url", nil)
	}

	var container graphIDResponse
	err := c.graph.call(ctx, types.PlatformInstagram, http.MethodPost, "/"+c.accountID+"/media",
		igContainerRequest{
			MediaType:    "REELS",
			VideoURL:     videoURL,
			Caption:      caption(item),
			ShareToFeed:  true,
			ThumbnailURL: item.Metadata[MetaThumbnailURL],
		}, &container)
	if err != nil {
		return types.PublishReceipt{}, err
	}

	if err := c.waitForContainer(ctx, container.ID); err != nil {
		return types.PublishReceipt{}, err
	}

	var media graphIDResponse
	err = c.graph.call(ctx, types.PlatformInstagram, http.MethodPost, "/"+c.accountID+"/media_publish",
		map[string]string{"creation_id": container.ID}, &media)
	if err != nil {
		return types.PublishReceipt{}, err
	}

	receipt := types.PublishReceipt{PostID: media.ID}
	var link igPermalink
	if err := c.graph.call(ctx, types.PlatformInstagram, http.MethodGet, "/"+media.ID+"?fields=permalink", nil, &link); err != nil {
		// The reel is live; a missing permalink only degrades the result.
		c.logger.WarnContext(ctx, "instagram permalink lookup failed", "media_id", media.ID, "error", err)
	} else {
		receipt.PostURL = link.Permalink
	}

	c.logger.InfoContext(ctx, "instagram reel published", "content_id", item.ID, "media_id", media.ID)
	return receipt, nil
}

func (c *InstagramClient) waitForContainer(ctx context.Context, containerID string) error {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		var st igContainerStatus
		if err := c.graph.call(ctx, types.PlatformInstagram, http.MethodGet,
			"/"+containerID+"?fields=status_code,status", nil, &st); err != nil {
			return err
		}
		switch st.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return types.NewAppError(types.ErrCodeUpstreamPlatform,
				fmt.Sprintf("Instagram media processing failed: %s", strings.TrimSpace(st.Status)), nil)
		}
		if err := c.graph.sleepFn(ctx, c.pollInterval); err != nil {
			return types.NewAppError(types.ErrCodePublishTimeout, "timed out waiting for Instagram media processing", err)
		}
	}
	return types.NewAppError(types.ErrCodePublishTimeout, "Instagram media was not ready in time", nil)
}

// ---------------------------------------------------------------------------
// Facebook Stories
// ---------------------------------------------------------------------------

// FacebookClient publishes video Stories to a Facebook Page using the
// three-phase video_stories upload.
type FacebookClient struct {
	graph  metaGraph
	pageID string
	logger *slog.Logger
}

// NewFacebookClient creates a FacebookClient on top of base.
func NewFacebookClient(base *BaseClient, cfg MetaClientConfig) *FacebookClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FacebookClient{
		graph:  newMetaGraph(base, cfg),
		pageID: cfg.PageID,
		logger: logger,
	}
}

// Platform implements Publisher.
func (c *FacebookClient) Platform() types.Platform { return types.PlatformFacebook }

type fbStoryStart struct {
	VideoID   string `json:"video_id"`
	UploadURL string `json:"upload_url"`
}

type fbStoryFinish struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id"`
}

// Publish implements Publisher.
func (c *FacebookClient) Publish(ctx context.Context, item types.ContentItem) (types.PublishReceipt, error) {
	videoURL := item.Metadata[MetaVideoURL]
	if videoURL == "" {
		return types.PublishReceipt{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"Facebook Stories require a video_url", nil)
	}

	path := "/" + c.pageID + "/video_stories"

	var start fbStoryStart
	if err := c.graph.call(ctx, types.PlatformFacebook, http.MethodPost, path,
		map[string]string{"upload_phase": "start"}, &start); err != nil {
		return types.PublishReceipt{}, err
	}

	// The upload endpoint pulls the hosted file itself.
	header := http.Header{}
	header.Set("Authorization", "OAuth "+c.graph.token)
	header.Set("file_url", videoURL)
	if err := c.graph.base.doJSON(ctx, http.MethodPost, start.UploadURL, header, nil, nil,
		func(status int, body []byte) error {
			return platformError(types.PlatformFacebook, status, strings.TrimSpace(string(body)))
		}); err != nil {
		return types.PublishReceipt{}, err
	}

	var finish fbStoryFinish
	if err := c.graph.call(ctx, types.PlatformFacebook, http.MethodPost, path,
		map[string]string{"upload_phase": "finish", "video_id": start.VideoID}, &finish); err != nil {
		return types.PublishReceipt{}, err
	}
	if !finish.Success {
		return types.PublishReceipt{}, types.NewAppError(types.ErrCodeUpstreamPlatform,
			"Facebook did not confirm the story", nil)
	}

	c.logger.InfoContext(ctx, "facebook story published", "content_id", item.ID, "post_id", finish.PostID)
	return types.PublishReceipt{
		PostID:  finish.PostID,
		PostURL: "https://www.facebook.com/" + finish.PostID,
	}, nil
}

// caption joins the title and body for platforms with a single text field.
func caption(item types.ContentItem) string {
	parts := make([]string, 0, 3)
	if item.Title != "" {
		parts = append(parts, item.Title)
	}
	if item.Content != "" {
		parts = append(parts, item.Content)
	}
	if tags := splitTags(item.Metadata[MetaTags]); len(tags) > 0 {
		hashtags := make([]string, len(tags))
		for i, t := range tags {
			hashtags[i] = "#" + strings.ReplaceAll(t, " ", "")
		}
		parts = append(parts, strings.Join(hashtags, " "))
	}
	return strings.Join(parts, "\n\n")
}

// Compile-time assertions.
var (
	_ Publisher = (*InstagramClient)(nil)
	_ Publisher = (*FacebookClient)(nil)
)
