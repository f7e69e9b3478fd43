package external

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"contentpilot/internal/security"
	"contentpilot/internal/types"
)

func newPublisherBase() *BaseClient {
	return NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-publisher",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"ContentPilot-Test/1.0",
		WithSleepFunc(noopSleep),
	)
}

func decodeJSONBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	return body
}

func requireAppErr(t *testing.T, err error) *types.AppError {
	t.Helper()
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	return appErr
}

// ---------------------------------------------------------------------------
// WordPress
// ---------------------------------------------------------------------------

func TestWordPressClient_Publish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/wp-json/wp/v2/posts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("editor:app pass"))
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("Authorization = %q, want %q", got, wantAuth)
		}
		body := decodeJSONBody(t, r)
		if body["title"] != "Hello" || body["content"] != "<p>World</p>" || body["status"] != "publish" {
			t.Errorf("unexpected payload: %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":42,"link":"https://blog.example.com/hello"}`))
	}))
	defer server.Close()

	client := NewWordPressClient(newPublisherBase(), WordPressClientConfig{
		SiteURL:     server.URL + "/",
		Username:    "editor",
		AppPassword: "app pass",
		Logger:      testLogger(),
	})

	receipt, err := client.Publish(context.Background(), types.ContentItem{
		ID: "c1", Title: "Hello", Content: "<p>World</p>", Type: types.ContentBlog,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.PostID != "42" || receipt.PostURL != "https://blog.example.com/hello" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
}

func TestWordPressClient_StatusOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body := decodeJSONBody(t, r); body["status"] != "draft" {
			t.Errorf("status = %v, want draft", body["status"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1,"link":"x"}`))
	}))
	defer server.Close()

	client := NewWordPressClient(newPublisherBase(), WordPressClientConfig{SiteURL: server.URL})
	_, err := client.Publish(context.Background(), types.ContentItem{
		Title: "t", Metadata: map[string]string{MetaWordPressStatus: "draft"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWordPressClient_ErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"rest_cannot_create","message":"Sorry, you are not allowed to create posts as this user."}`))
	}))
	defer server.Close()

	client := NewWordPressClient(newPublisherBase(), WordPressClientConfig{SiteURL: server.URL})
	_, err := client.Publish(context.Background(), types.ContentItem{Title: "t"})

	appErr := requireAppErr(t, err)
	if appErr.Code != types.ErrCodeUpstreamPlatform {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodeUpstreamPlatform)
	}
	want := "WordPress API error (401): Sorry, you are not allowed to create posts as this user."
	if appErr.Message != want {
		t.Errorf("message = %q, want %q", appErr.Message, want)
	}
}

// ---------------------------------------------------------------------------
// YouTube
// ---------------------------------------------------------------------------

func TestYouTubeClient_Publish(t *testing.T) {
	var (
		mu       sync.Mutex
		uploaded []byte
		meta     map[string]any
	)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/youtube/v3/videos":
			if r.URL.Query().Get("uploadType") != "resumable" {
				t.Errorf("expected resumable upload, got %q", r.URL.RawQuery)
			}
			if r.Header.Get("Authorization") != "Bearer ya29.token" {
				t.Errorf("unexpected Authorization %q", r.Header.Get("Authorization"))
			}
			mu.Lock()
			meta = decodeJSONBody(t, r)
			mu.Unlock()
			w.Header().Set("Location", server.URL+"/upload/session/abc")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Path == "/media/short.mp4":
			w.Write([]byte("VIDEO-BYTES"))
		case r.Method == http.MethodPut && r.URL.Path == "/upload/session/abc":
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			uploaded = body
			mu.Unlock()
			w.Write([]byte(`{"id":"vid123","snippet":{"title":"x"},"status":{"privacyStatus":"public"}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewYouTubeClient(newPublisherBase(), YouTubeClientConfig{
		AccessToken: "ya29.token",
		ChannelID:   "UC123",
		BaseURL:     server.URL,
		Logger:      testLogger(),
	})

	receipt, err := client.Publish(context.Background(), types.ContentItem{
		ID:      "c1",
		Title:   "Three tips",
		Content: "Quick tips",
		Type:    types.ContentYouTubeShort,
		Metadata: map[string]string{
			MetaVideoURL: server.URL + "/media/short.mp4",
			MetaTags:     "tips, , growth",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.PostID != "vid123" || receipt.PostURL != "https://www.youtube.com/shorts/vid123" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}

	mu.Lock()
	defer mu.Unlock()
	if string(uploaded) != "VIDEO-BYTES" {
		t.Errorf("uploaded %q", uploaded)
	}
	snippet := meta["snippet"].(map[string]any)
	if snippet["title"] != "Three tips #Shorts" {
		t.Errorf("title = %v", snippet["title"])
	}
	tags := snippet["tags"].([]any)
	if len(tags) != 2 || tags[0] != "tips" || tags[1] != "growth" {
		t.Errorf("tags = %v", tags)
	}
}

func TestYouTubeClient_RequiresVideoURL(t *testing.T) {
	client := NewYouTubeClient(newPublisherBase(), YouTubeClientConfig{BaseURL: "http://127.0.0.1:0"})

	_, err := client.Publish(context.Background(), types.ContentItem{Title: "t"})
	appErr := requireAppErr(t, err)
	if appErr.Message != "YouTube Shorts require a video_url" {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestYouTubeClient_MediaClientRefusesInternalVideoURL(t *testing.T) {
	var uploads int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload/youtube/v3/videos":
			w.Header().Set("Location", "http://"+r.Host+"/upload/session/abc")
			w.WriteHeader(http.StatusOK)
		default:
			uploads++
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	client := NewYouTubeClient(newPublisherBase(), YouTubeClientConfig{
		AccessToken: "ya29.token",
		BaseURL:     server.URL,
		MediaClient: security.NewMediaClient(time.Second),
		Logger:      testLogger(),
	})

	_, err := client.Publish(context.Background(), types.ContentItem{
		ID:       "c1",
		Title:    "t",
		Type:     types.ContentYouTubeShort,
		Metadata: map[string]string{MetaVideoURL: server.URL + "/media/short.mp4"},
	})
	appErr := requireAppErr(t, err)
	if appErr.Code != types.ErrCodeValidationInvalidContent {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodeValidationInvalidContent)
	}
	if !errors.Is(err, security.ErrBlockedAddress) {
		t.Errorf("expected ErrBlockedAddress in chain, got %v", err)
	}
	if uploads != 0 {
		t.Errorf("video fetched or uploaded %d times from a loopback address", uploads)
	}
}

func TestYouTubeClient_QuotaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"The request cannot be completed because you have exceeded your quota."}}`))
	}))
	defer server.Close()

	client := NewYouTubeClient(newPublisherBase(), YouTubeClientConfig{BaseURL: server.URL})
	_, err := client.Publish(context.Background(), types.ContentItem{
		Title: "t", Metadata: map[string]string{MetaVideoURL: server.URL + "/v.mp4"},
	})

	appErr := requireAppErr(t, err)
	if !strings.Contains(appErr.Message, "exceeded your quota") {
		t.Errorf("message = %q", appErr.Message)
	}
}

// ---------------------------------------------------------------------------
// Instagram
// ---------------------------------------------------------------------------

func TestInstagramClient_Publish(t *testing.T) {
	var statusCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer EAAB" {
			t.Errorf("unexpected Authorization %q", r.Header.Get("Authorization"))
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v19.0/456/media":
			body := decodeJSONBody(t, r)
			if body["media_type"] != "REELS" || body["video_url"] != "https://cdn.example.com/reel.mp4" {
				t.Errorf("unexpected container payload: %v", body)
			}
			if body["caption"] != "Launch day\n\nWe shipped\n\n#product #biglaunch" {
				t.Errorf("caption = %q", body["caption"])
			}
			w.Write([]byte(`{"id":"container-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v19.0/container-1":
			statusCalls++
			if statusCalls == 1 {
				w.Write([]byte(`{"status_code":"IN_PROGRESS"}`))
				return
			}
			w.Write([]byte(`{"status_code":"FINISHED"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v19.0/456/media_publish":
			if body := decodeJSONBody(t, r); body["creation_id"] != "container-1" {
				t.Errorf("creation_id = %v", body["creation_id"])
			}
			w.Write([]byte(`{"id":"media-9"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v19.0/media-9":
			w.Write([]byte(`{"permalink":"https://www.instagram.com/reel/xyz/"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewInstagramClient(newPublisherBase(), MetaClientConfig{
		PageAccessToken:       "EAAB",
		InstagramAccountID:    "456",
		BaseURL:               server.URL,
		ContainerPollInterval: time.Millisecond,
		Logger:                testLogger(),
	})

	receipt, err := client.Publish(context.Background(), types.ContentItem{
		ID:      "c1",
		Title:   "Launch day",
		Content: "We shipped",
		Type:    types.ContentInstagramReel,
		Metadata: map[string]string{
			MetaVideoURL: "https://cdn.example.com/reel.mp4",
			MetaTags:     "product, big launch",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.PostID != "media-9" || receipt.PostURL != "https://www.instagram.com/reel/xyz/" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if statusCalls != 2 {
		t.Errorf("expected 2 status polls, got %d", statusCalls)
	}
}

func TestInstagramClient_ContainerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v19.0/456/media":
			w.Write([]byte(`{"id":"container-1"}`))
		case "/v19.0/container-1":
			w.Write([]byte(`{"status_code":"ERROR","status":"Unsupported video codec"}`))
		default:
			t.Errorf("publish must not be attempted, got %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewInstagramClient(newPublisherBase(), MetaClientConfig{
		InstagramAccountID: "456", BaseURL: server.URL, ContainerPollInterval: time.Millisecond,
	})
	_, err := client.Publish(context.Background(), types.ContentItem{
		Metadata: map[string]string{MetaVideoURL: "https://cdn.example.com/reel.mp4"},
	})

	appErr := requireAppErr(t, err)
	if appErr.Message != "Instagram media processing failed: Unsupported video codec" {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestInstagramClient_ContainerNeverReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v19.0/456/media" {
			w.Write([]byte(`{"id":"container-1"}`))
			return
		}
		w.Write([]byte(`{"status_code":"IN_PROGRESS"}`))
	}))
	defer server.Close()

	client := NewInstagramClient(newPublisherBase(), MetaClientConfig{
		InstagramAccountID:    "456",
		BaseURL:               server.URL,
		ContainerPollInterval: time.Millisecond,
		ContainerPollAttempts: 3,
	})
	_, err := client.Publish(context.Background(), types.ContentItem{
		Metadata: map[string]string{MetaVideoURL: "https://cdn.example.com/reel.mp4"},
	})

	if appErr := requireAppErr(t, err); appErr.Code != types.ErrCodePublishTimeout {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodePublishTimeout)
	}
}

func TestInstagramClient_GraphErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`))
	}))
	defer server.Close()

	client := NewInstagramClient(newPublisherBase(), MetaClientConfig{InstagramAccountID: "456", BaseURL: server.URL})
	_, err := client.Publish(context.Background(), types.ContentItem{
		Metadata: map[string]string{MetaVideoURL: "https://cdn.example.com/reel.mp4"},
	})

	appErr := requireAppErr(t, err)
	if appErr.Message != "Instagram API error (400): Invalid OAuth access token." {
		t.Errorf("message = %q", appErr.Message)
	}
}

// ---------------------------------------------------------------------------
// Facebook
// ---------------------------------------------------------------------------

func TestFacebookClient_Publish(t *testing.T) {
	var phases []string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v20.0/123/video_stories":
			body := decodeJSONBody(t, r)
			phase, _ := body["upload_phase"].(string)
			phases = append(phases, phase)
			if phase == "start" {
				w.Write([]byte(`{"video_id":"v-1","upload_url":"` + server.URL + `/rupload/v-1"}`))
				return
			}
			if body["video_id"] != "v-1" {
				t.Errorf("video_id = %v", body["video_id"])
			}
			w.Write([]byte(`{"success":true,"post_id":"123_789"}`))
		case "/rupload/v-1":
			if r.Header.Get("Authorization") != "OAuth EAAB" {
				t.Errorf("upload Authorization = %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("file_url") != "https://cdn.example.com/story.mp4" {
				t.Errorf("file_url = %q", r.Header.Get("file_url"))
			}
			phases = append(phases, "upload")
			w.Write([]byte(`{"success":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewFacebookClient(newPublisherBase(), MetaClientConfig{
		PageAccessToken: "EAAB",
		PageID:          "123",
		GraphVersion:    "v20.0",
		BaseURL:         server.URL,
		Logger:          testLogger(),
	})

	receipt, err := client.Publish(context.Background(), types.ContentItem{
		ID:       "c1",
		Type:     types.ContentFacebookStory,
		Metadata: map[string]string{MetaVideoURL: "https://cdn.example.com/story.mp4"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.PostID != "123_789" || receipt.PostURL != "https://www.facebook.com/123_789" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if strings.Join(phases, ",") != "start,upload,finish" {
		t.Errorf("phases = %v", phases)
	}
}

func TestFacebookClient_FinishNotConfirmed(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rupload/v-1" {
			w.Write([]byte(`{"success":true}`))
			return
		}
		if body := decodeJSONBody(t, r); body["upload_phase"] == "start" {
			w.Write([]byte(`{"video_id":"v-1","upload_url":"` + server.URL + `/rupload/v-1"}`))
			return
		}
		w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	client := NewFacebookClient(newPublisherBase(), MetaClientConfig{PageID: "123", BaseURL: server.URL})
	_, err := client.Publish(context.Background(), types.ContentItem{
		Metadata: map[string]string{MetaVideoURL: "https://cdn.example.com/story.mp4"},
	})

	if appErr := requireAppErr(t, err); appErr.Message != "Facebook did not confirm the story" {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestCaption(t *testing.T) {
	got := caption(types.ContentItem{Title: "A", Content: "B"})
	if got != "A\n\nB" {
		t.Errorf("caption = %q", got)
	}
	if got := caption(types.ContentItem{}); got != "" {
		t.Errorf("empty caption = %q", got)
	}
}
