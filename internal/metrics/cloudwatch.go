package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"contentpilot/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch pushes one datum per call to CloudWatch.
//
// Metrics emitted:
//   - PublishAttempt: Dims {Platform, Result}
//   - PublishLatency: Dims {Platform}, milliseconds
//   - TaskCompleted: Dims {Status}
//   - PostScheduled: Dims {Platform}
//
// Push failures are logged and dropped.
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ Recorder = (*CloudWatch)(nil)

// NewCloudWatch creates a CloudWatch recorder. An empty namespace falls back
// to types.MetricNamespace.
func NewCloudWatch(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatch {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordPublish emits PublishAttempt and PublishLatency in one request.
func (m *CloudWatch) RecordPublish(ctx context.Context, platform types.Platform, success bool, latency time.Duration) {
	platformDim := cwtypes.Dimension{
		Name:  aws.String(types.DimPlatform),
		Value: aws.String(string(platform)),
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricPublishAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					platformDim,
					{
						Name:  aws.String(types.DimResult),
						Value: aws.String(resultLabel(success)),
					},
				},
			},
			{
				MetricName: aws.String(types.MetricPublishLatency),
				Value:      aws.Float64(float64(latency.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{platformDim},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record publish metric",
			"error", err.Error(),
			"platform", string(platform),
			"result", resultLabel(success),
		)
	}
}

// RecordTaskFinished emits TaskCompleted with the Status dimension.
func (m *CloudWatch) RecordTaskFinished(ctx context.Context, status types.TaskStatus) {
	m.count(ctx, types.MetricTaskCompleted, types.DimStatus, string(status))
}

// RecordPostScheduled emits PostScheduled with the Platform dimension.
func (m *CloudWatch) RecordPostScheduled(ctx context.Context, platform types.Platform) {
	m.count(ctx, types.MetricPostScheduled, types.DimPlatform, string(platform))
}

func (m *CloudWatch) count(ctx context.Context, name, dim, value string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(dim), Value: aws.String(value)},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", name,
			dim, value,
		)
	}
}
