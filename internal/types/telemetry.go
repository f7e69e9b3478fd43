package types

// Telemetry metric names shared by the CloudWatch and Prometheus recorders.
const (
	// Metric Names
	MetricPublishAttempt = "PublishAttempt"
	MetricPublishLatency = "PublishLatency"
	MetricTaskCompleted  = "TaskCompleted"
	MetricPostScheduled  = "PostScheduled"

	// Dimension Keys
	DimPlatform = "Platform"
	DimResult   = "Result"
	DimStatus   = "Status"

	// Metric Namespace
	MetricNamespace = "ContentPilot"
)
