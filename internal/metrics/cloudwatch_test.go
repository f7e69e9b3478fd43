package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"contentpilot/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCloudWatch_RecordPublish_Success(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatch(cw, "", testLogger())

	m.RecordPublish(context.Background(), types.PlatformWordPress, true, 1500*time.Millisecond)

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}

	input := cw.calls[0]
	if *input.Namespace != types.MetricNamespace {
		t.Errorf("expected namespace %q, got %q", types.MetricNamespace, *input.Namespace)
	}
	if len(input.MetricData) != 2 {
		t.Fatalf("expected 2 metric data, got %d", len(input.MetricData))
	}

	attempt := input.MetricData[0]
	if *attempt.MetricName != types.MetricPublishAttempt {
		t.Errorf("expected metric name %q, got %q", types.MetricPublishAttempt, *attempt.MetricName)
	}
	if *attempt.Value != 1.0 {
		t.Errorf("expected value 1.0, got %f", *attempt.Value)
	}
	if attempt.Unit != cwtypes.StandardUnitCount {
		t.Errorf("expected unit Count, got %s", attempt.Unit)
	}
	assertDimension(t, attempt.Dimensions, types.DimPlatform, "wordpress")
	assertDimension(t, attempt.Dimensions, types.DimResult, ResultSuccess)

	latency := input.MetricData[1]
	if *latency.MetricName != types.MetricPublishLatency {
		t.Errorf("expected metric name %q, got %q", types.MetricPublishLatency, *latency.MetricName)
	}
	if *latency.Value != 1500 {
		t.Errorf("expected 1500ms, got %f", *latency.Value)
	}
	if latency.Unit != cwtypes.StandardUnitMilliseconds {
		t.Errorf("expected unit Milliseconds, got %s", latency.Unit)
	}
	assertDimension(t, latency.Dimensions, types.DimPlatform, "wordpress")
}

func TestCloudWatch_RecordPublish_Failed(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatch(cw, "Custom", testLogger())

	m.RecordPublish(context.Background(), types.PlatformInstagram, false, time.Second)

	input := cw.calls[0]
	if *input.Namespace != "Custom" {
		t.Errorf("expected namespace Custom, got %q", *input.Namespace)
	}
	assertDimension(t, input.MetricData[0].Dimensions, types.DimResult, ResultFailed)
}

func TestCloudWatch_RecordTaskFinished(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatch(cw, "", testLogger())

	m.RecordTaskFinished(context.Background(), types.TaskStatusCompleted)

	datum := cw.calls[0].MetricData[0]
	if *datum.MetricName != types.MetricTaskCompleted {
		t.Errorf("expected metric name %q, got %q", types.MetricTaskCompleted, *datum.MetricName)
	}
	assertDimension(t, datum.Dimensions, types.DimStatus, "completed")
}

func TestCloudWatch_RecordPostScheduled(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatch(cw, "", testLogger())

	m.RecordPostScheduled(context.Background(), types.PlatformYouTube)

	datum := cw.calls[0].MetricData[0]
	if *datum.MetricName != types.MetricPostScheduled {
		t.Errorf("expected metric name %q, got %q", types.MetricPostScheduled, *datum.MetricName)
	}
	assertDimension(t, datum.Dimensions, types.DimPlatform, "youtube")
}

func TestCloudWatch_ErrorIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: fmt.Errorf("throttled")}
	m := NewCloudWatch(cw, "", testLogger())

	// Must not panic.
	m.RecordPublish(context.Background(), types.PlatformFacebook, true, time.Millisecond)
	m.RecordTaskFinished(context.Background(), types.TaskStatusFailed)

	if len(cw.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(cw.calls))
	}
}

func TestMulti_FansOut(t *testing.T) {
	a := &mockCloudWatchClient{}
	b := &mockCloudWatchClient{}
	m := Multi{NewCloudWatch(a, "", testLogger()), Nop{}, NewCloudWatch(b, "", testLogger())}

	m.RecordPublish(context.Background(), types.PlatformWordPress, true, time.Millisecond)
	m.RecordTaskFinished(context.Background(), types.TaskStatusCompleted)
	m.RecordPostScheduled(context.Background(), types.PlatformWordPress)

	if len(a.calls) != 3 || len(b.calls) != 3 {
		t.Errorf("expected 3 calls on each backend, got %d and %d", len(a.calls), len(b.calls))
	}
}

// assertDimension checks that a dimension with the given name exists and has
// the expected value.
func assertDimension(t *testing.T, dims []cwtypes.Dimension, name, expectedValue string) {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			if *d.Value != expectedValue {
				t.Errorf("dimension %q: expected %q, got %q", name, expectedValue, *d.Value)
			}
			return
		}
	}
	t.Errorf("dimension %q not found", name)
}
