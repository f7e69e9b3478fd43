package types

import "strings"

// Platform identifies a publishing destination.
type Platform string

const (
	PlatformWordPress Platform = "wordpress"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
)

// AllPlatforms lists every known platform in a stable order.
var AllPlatforms = []Platform{
	PlatformWordPress,
	PlatformYouTube,
	PlatformInstagram,
	PlatformFacebook,
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformTikTok,
}

// platformDisplayNames holds the human-facing names used in error messages.
var platformDisplayNames = map[Platform]string{
	PlatformWordPress: "WordPress",
	PlatformYouTube:   "YouTube",
	PlatformInstagram: "Instagram",
	PlatformFacebook:  "Facebook",
	PlatformTwitter:   "Twitter",
	PlatformLinkedIn:  "LinkedIn",
	PlatformTikTok:    "TikTok",
}

// IsValid reports whether p is one of the known platforms.
func (p Platform) IsValid() bool {
	_, ok := platformDisplayNames[p]
	return ok
}

// DisplayName returns the branded name of the platform. Unknown platforms are
// title-cased from their identifier.
func (p Platform) DisplayName() string {
	if name, ok := platformDisplayNames[p]; ok {
		return name
	}
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ContentType identifies the shape of a content item.
type ContentType string

const (
	ContentBlog          ContentType = "blog"
	ContentYouTubeShort  ContentType = "youtube-short"
	ContentInstagramReel ContentType = "instagram-reel"
	ContentFacebookStory ContentType = "facebook-story"
)

// IsValid reports whether t is a known content type.
func (t ContentType) IsValid() bool {
	switch t {
	case ContentBlog, ContentYouTubeShort, ContentInstagramReel, ContentFacebookStory:
		return true
	}
	return false
}

// NativePlatform returns the platform a content type is produced for.
func (t ContentType) NativePlatform() Platform {
	switch t {
	case ContentYouTubeShort:
		return PlatformYouTube
	case ContentInstagramReel:
		return PlatformInstagram
	case ContentFacebookStory:
		return PlatformFacebook
	default:
		return PlatformWordPress
	}
}

// ContentStatus is the editorial state of a content item.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPending   ContentStatus = "pending"
	ContentStatusApproved  ContentStatus = "approved"
	ContentStatusPublished ContentStatus = "published"
)

// PostStatus is the lifecycle state of a ScheduledPost.
type PostStatus string

const (
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// TaskStatus is the lifecycle state of a PublishTask.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// VelocityLevel is the configured autopilot publishing cadence.
type VelocityLevel string

const (
	VelocityLow    VelocityLevel = "low"
	VelocityMedium VelocityLevel = "medium"
	VelocityHigh   VelocityLevel = "high"
)

// PostsPerWeek returns the weekly target for the velocity level. Unknown
// levels fall back to the medium cadence.
func (v VelocityLevel) PostsPerWeek() int {
	switch v {
	case VelocityLow:
		return 3
	case VelocityHigh:
		return 14
	default:
		return 7
	}
}

// IsValid reports whether v is a known velocity level.
func (v VelocityLevel) IsValid() bool {
	switch v {
	case VelocityLow, VelocityMedium, VelocityHigh:
		return true
	}
	return false
}
