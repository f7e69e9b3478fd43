package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"contentpilot/internal/types"
)

// youTubeAPIBase is the default Google API base URL.
// Overridable in tests via YouTubeClientConfig.BaseURL.
const youTubeAPIBase = "https://www.googleapis.com"

// maxVideoBytes caps how much of a source video the client will buffer.
const maxVideoBytes = 256 << 20

// YouTubeClientConfig holds the configuration for creating a YouTubeClient.
type YouTubeClientConfig struct {
	AccessToken string
	ChannelID   string
	BaseURL     string // Override for testing; defaults to youTubeAPIBase
	// MediaClient downloads the source video. Nil uses the base client.
	MediaClient *http.Client
	Logger      *slog.Logger
}

// YouTubeClient implements Publisher for YouTube Shorts using the Data API v3
// resumable upload flow: the metadata call opens an upload session, then the
// video fetched from the item's video_url is sent to that session.
type YouTubeClient struct {
	base        *BaseClient
	accessToken string
	channelID   string
	baseURL     string
	media       *http.Client
	logger      *slog.Logger
}

// NewYouTubeClient creates a YouTubeClient on top of base.
func NewYouTubeClient(base *BaseClient, cfg YouTubeClientConfig) *YouTubeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = youTubeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &YouTubeClient{
		base:        base,
		accessToken: cfg.AccessToken,
		channelID:   cfg.ChannelID,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		media:       cfg.MediaClient,
		logger:      logger,
	}
}

// Platform implements Publisher.
func (c *YouTubeClient) Platform() types.Platform { return types.PlatformYouTube }

type ytVideoResource struct {
	ID      string         `json:"id,omitempty"`
	Snippet ytVideoSnippet `json:"snippet"`
	Status  ytVideoStatus  `json:"status"`
}

type ytVideoSnippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	ChannelID   string   `json:"channelId,omitempty"`
	CategoryID  string   `json:"categoryId,omitempty"`
}

type ytVideoStatus struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
}

type ytErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Publish uploads the item as a Short and returns the video id and its
// shorts URL.
func (c *YouTubeClient) Publish(ctx context.Context, item types.ContentItem) (types.PublishReceipt, error) {
	videoURL := item.Metadata[MetaVideoURL]
	if videoURL == "" {
		return types.PublishReceipt{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"YouTube Shorts require a video_url", nil)
	}

	uploadURL, err := c.openUploadSession(ctx, item)
	if err != nil {
		return types.PublishReceipt{}, err
	}

	video, err := c.fetchVideo(ctx, videoURL)
	if err != nil {
		return types.PublishReceipt{}, err
	}

	var out ytVideoResource
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(video))
	if err != nil {
		return types.PublishReceipt{}, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to create YouTube upload request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "video/*")
	if err := c.send(req, &out); err != nil {
		return types.PublishReceipt{}, err
	}

	c.logger.InfoContext(ctx, "youtube short uploaded", "content_id", item.ID, "video_id", out.ID)
	return types.PublishReceipt{
		PostID:  out.ID,
		PostURL: "https://www.youtube.com/shorts/" + out.ID,
	}, nil
}

// openUploadSession sends the video metadata and returns the session URL
// from the Location header.
func (c *YouTubeClient) openUploadSession(ctx context.Context, item types.ContentItem) (string, error) {
	title := item.Title
	if !strings.Contains(strings.ToLower(title), "#shorts") {
		title = strings.TrimSpace(title + " #Shorts")
	}
	privacy := item.Metadata[MetaYouTubePrivacy]
	if privacy == "" {
		privacy = "public"
	}

	meta := ytVideoResource{
		Snippet: ytVideoSnippet{
			Title:       title,
			Description: item.Content,
			Tags:        splitTags(item.Metadata[MetaTags]),
			ChannelID:   c.channelID,
			CategoryID:  "22",
		},
		Status: ytVideoStatus{PrivacyStatus: privacy},
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal YouTube metadata", err)
	}

	reqURL := c.baseURL + "/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create YouTube metadata request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "video/*")

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.decodeError(resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamPlatform, "YouTube did not return an upload session", nil)
	}
	return location, nil
}

func (c *YouTubeClient) fetchVideo(ctx context.Context, videoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidContent, "invalid video_url", err)
	}
	var resp *http.Response
	if c.media != nil {
		resp, err = c.media.Do(req)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidContent, "video_url could not be fetched", err)
		}
	} else if resp, err = c.base.Do(req); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeUpstreamPlatform,
			fmt.Sprintf("failed to fetch video (%d)", resp.StatusCode), nil)
	}
	video, err := io.ReadAll(io.LimitReader(resp.Body, maxVideoBytes+1))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamPlatform, "failed to read video", err)
	}
	if len(video) > maxVideoBytes {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidContent, "video exceeds upload size limit", nil)
	}
	return video, nil
}

func (c *YouTubeClient) send(req *http.Request, out any) error {
	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPlatform, "failed to decode YouTube response", err)
	}
	return nil
}

func (c *YouTubeClient) decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var ytErr ytErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &ytErr) == nil && ytErr.Error.Message != "" {
		msg = ytErr.Error.Message
	}
	return platformError(types.PlatformYouTube, resp.StatusCode, msg)
}

// splitTags parses a comma separated tag list, dropping blanks.
func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Compile-time assertion that YouTubeClient satisfies Publisher.
var _ Publisher = (*YouTubeClient)(nil)
