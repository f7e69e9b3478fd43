package external

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"contentpilot/internal/types"
)

// WordPressClientConfig holds the configuration for creating a WordPressClient.
type WordPressClientConfig struct {
	SiteURL     string
	Username    string
	AppPassword string
	Logger      *slog.Logger
}

// WordPressClient implements Publisher against the WordPress REST API using
// application-password basic auth.
type WordPressClient struct {
	base        *BaseClient
	siteURL     string
	username    string
	appPassword string
	logger      *slog.Logger
}

// NewWordPressClient creates a WordPressClient on top of base.
func NewWordPressClient(base *BaseClient, cfg WordPressClientConfig) *WordPressClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WordPressClient{
		base:        base,
		siteURL:     strings.TrimSuffix(cfg.SiteURL, "/"),
		username:    cfg.Username,
		appPassword: cfg.AppPassword,
		logger:      logger,
	}
}

// Platform implements Publisher.
func (c *WordPressClient) Platform() types.Platform { return types.PlatformWordPress }

type wpPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
	Excerpt string `json:"excerpt,omitempty"`
}

type wpPostResponse struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

type wpErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Publish creates a post via POST /wp-json/wp/v2/posts.
func (c *WordPressClient) Publish(ctx context.Context, item types.ContentItem) (types.PublishReceipt, error) {
	status := item.Metadata[MetaWordPressStatus]
	if status == "" {
		status = "publish"
	}

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.username+":"+c.appPassword)))

	var out wpPostResponse
	err := c.base.doJSON(ctx, http.MethodPost, c.siteURL+"/wp-json/wp/v2/posts", header,
		wpPostRequest{
			Title:   item.Title,
			Content: item.Content,
			Status:  status,
			Excerpt: item.Metadata["excerpt"],
		},
		&out,
		func(code int, body []byte) error {
			var wpErr wpErrorResponse
			msg := strings.TrimSpace(string(body))
			if json.Unmarshal(body, &wpErr) == nil && wpErr.Message != "" {
				msg = wpErr.Message
			}
			return platformError(types.PlatformWordPress, code, msg)
		},
	)
	if err != nil {
		return types.PublishReceipt{}, err
	}

	c.logger.InfoContext(ctx, "wordpress post created", "content_id", item.ID, "wp_post_id", out.ID)
	return types.PublishReceipt{
		PostID:  strconv.FormatInt(out.ID, 10),
		PostURL: out.Link,
	}, nil
}

// Compile-time assertion that WordPressClient satisfies Publisher.
var _ Publisher = (*WordPressClient)(nil)
