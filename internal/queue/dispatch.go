package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"contentpilot/internal/external"
	"contentpilot/internal/types"
)

const (
	defaultPublishTimeout = 2 * time.Minute
	defaultRetryMinWait   = time.Second
	defaultRetryMaxWait   = 30 * time.Second
)

// requiredContentType lists the only content type each transport accepts.
var requiredContentType = map[types.Platform]types.ContentType{
	types.PlatformWordPress: types.ContentBlog,
	types.PlatformYouTube:   types.ContentYouTubeShort,
	types.PlatformInstagram: types.ContentInstagramReel,
	types.PlatformFacebook:  types.ContentFacebookStory,
}

var contentTypeLabel = map[types.ContentType]string{
	types.ContentBlog:          "blog",
	types.ContentYouTubeShort:  "YouTube Short",
	types.ContentInstagramReel: "Instagram Reel",
	types.ContentFacebookStory: "Facebook Story",
}

type dispatchConfig struct {
	publishers PublisherLookup
	timeout    time.Duration
	maxRetries int
	minWait    time.Duration
	maxWait    time.Duration
	metrics    Metrics
	logger     *slog.Logger
}

// dispatcher turns one (item, platform) pair into a PublishResult. It never
// returns an error: every failure is folded into the result.
type dispatcher struct {
	publishers PublisherLookup
	timeout    time.Duration
	executor   failsafe.Executor[types.PublishReceipt]
	metrics    Metrics
	logger     *slog.Logger
}

func newDispatcher(cfg dispatchConfig) *dispatcher {
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	minWait := cfg.minWait
	if minWait <= 0 {
		minWait = defaultRetryMinWait
	}
	maxWait := cfg.maxWait
	if maxWait <= minWait {
		maxWait = max(defaultRetryMaxWait, 2*minWait)
	}
	retries := max(cfg.maxRetries, 0)

	retry := retrypolicy.NewBuilder[types.PublishReceipt]().
		WithBackoff(minWait, maxWait).
		WithMaxRetries(retries).
		WithJitterFactor(0.1).
		HandleIf(func(_ types.PublishReceipt, err error) bool {
			return isTimeout(err)
		}).
		Build()

	return &dispatcher{
		publishers: cfg.publishers,
		timeout:    timeout,
		executor:   failsafe.With(retry),
		metrics:    cfg.metrics,
		logger:     cfg.logger,
	}
}

// publish runs the credential and content-type checks, then calls the
// platform's publisher. Only timed out attempts are retried; a platform
// rejection is final.
func (d *dispatcher) publish(ctx context.Context, item types.ContentItem, platform types.Platform) types.PublishResult {
	publisher, ok := d.publishers.Get(platform)
	if !ok {
		return failure(platform, fmt.Sprintf("%s not configured", platform.DisplayName()))
	}

	if msg, mismatch := contentMismatch(item, platform); mismatch {
		return failure(platform, msg)
	}

	var (
		lastErr   error
		attempts  int
		delivered *types.PublishReceipt
	)
	start := time.Now()
	receipt, err := d.executor.WithContext(ctx).Get(func() (types.PublishReceipt, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		r, err := callPublisher(attemptCtx, publisher, item)
		if err == nil {
			delivered = &r
		} else if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = types.NewAppError(types.ErrCodePublishTimeout,
				fmt.Sprintf("%s publish timed out after %s", platform.DisplayName(), d.timeout), err)
			d.logger.WarnContext(ctx, "publish attempt timed out",
				"platform", platform,
				"content_id", item.ID,
				"attempt", attempts,
			)
		}
		lastErr = err
		return r, err
	})
	latency := time.Since(start)

	// The post went out even if the executor reports ctx's error afterwards.
	if delivered != nil {
		receipt, err = *delivered, nil
	}

	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		d.metrics.RecordPublish(ctx, platform, false, latency)
		return failure(platform, errorMessage(err))
	}

	d.metrics.RecordPublish(ctx, platform, true, latency)
	return types.PublishResult{
		Platform: platform,
		Success:  true,
		PostID:   receipt.PostID,
		PostURL:  receipt.PostURL,
	}
}

// callPublisher invokes p and converts a panic into an error so one broken
// transport cannot strand a task in processing.
func callPublisher(ctx context.Context, p external.Publisher, item types.ContentItem) (receipt types.PublishReceipt, err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("%s publisher panicked: %v", p.Platform().DisplayName(), rvr)
		}
	}()
	return p.Publish(ctx, item)
}

// contentMismatch reports whether item's type cannot go to platform.
// Platforms without a transport-level type rule accept anything.
func contentMismatch(item types.ContentItem, platform types.Platform) (string, bool) {
	want, ok := requiredContentType[platform]
	if !ok || item.Type == want {
		return "", false
	}
	return fmt.Sprintf("Only %s content can be published to %s", contentTypeLabel[want], platform.DisplayName()), true
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodePublishTimeout
}

// errorMessage extracts the human-readable part of err for a result.
func errorMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

func failure(platform types.Platform, msg string) types.PublishResult {
	return types.PublishResult{Platform: platform, Success: false, Error: msg}
}
