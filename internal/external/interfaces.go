package external

import (
	"context"

	"contentpilot/internal/types"
)

// ---------------------------------------------------------------------------
// Publishing Integration
// ---------------------------------------------------------------------------

// Publisher abstracts one publishing platform. Implementations translate a
// content item into the platform's API calls and report where it landed.
//
// Publish must honor ctx cancellation; the queue bounds each call with a
// deadline. Errors should be *types.AppError whose Message is safe to show
// to users.
type Publisher interface {
	// Platform returns the platform this publisher delivers to.
	Platform() types.Platform

	// Publish delivers the item and returns the platform's identifiers for
	// the new post.
	Publish(ctx context.Context, item types.ContentItem) (types.PublishReceipt, error)
}

// Metadata keys read from types.ContentItem.Metadata by the publishers.
const (
	// MetaVideoURL is a publicly reachable video file for reels, shorts and
	// stories.
	MetaVideoURL = "video_url"
	// MetaThumbnailURL is an optional cover image.
	MetaThumbnailURL = "thumbnail_url"
	// MetaTags is a comma separated tag list.
	MetaTags = "tags"
	// MetaWordPressStatus overrides the WordPress post status (default "publish").
	MetaWordPressStatus = "wp_status"
	// MetaYouTubePrivacy overrides the YouTube privacy status (default "public").
	MetaYouTubePrivacy = "youtube_privacy"
)
