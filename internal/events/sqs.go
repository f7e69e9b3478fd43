// Package events emits publish-task lifecycle events to SQS so downstream
// consumers (analytics ingestion, notifications) can react to finished
// tasks without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"contentpilot/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EventTaskFinished is the only event type emitted today.
const EventTaskFinished = "publish_task.finished"

// TaskEvent is the JSON body of a task lifecycle message.
type TaskEvent struct {
	EventID     string                `json:"event_id"`
	Type        string                `json:"type"`
	TaskID      string                `json:"task_id"`
	ContentID   string                `json:"content_id"`
	ContentType types.ContentType     `json:"content_type"`
	Status      types.TaskStatus      `json:"status"`
	Results     []types.PublishResult `json:"results"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	EmittedAt   time.Time             `json:"emitted_at"`
}

// SQSNotifier sends one TaskEvent per finished publish task. It satisfies
// queue.TaskObserver.
type SQSNotifier struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewSQSNotifier creates a notifier that sends to queueURL.
func NewSQSNotifier(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *SQSNotifier {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSNotifier{
		client:   client,
		queueURL: queueURL,
		clock:    clock,
		logger:   logger,
	}
}

// OnTaskFinished sends the event and logs delivery failures. Event delivery
// never affects the task outcome.
func (n *SQSNotifier) OnTaskFinished(ctx context.Context, task types.PublishTask) {
	if err := n.NotifyTaskFinished(ctx, task); err != nil {
		n.logger.ErrorContext(ctx, "failed to emit task event",
			"task_id", task.ID,
			"error", err,
		)
	}
}

// NotifyTaskFinished serializes task into a TaskEvent and sends it.
func (n *SQSNotifier) NotifyTaskFinished(ctx context.Context, task types.PublishTask) error {
	evt := TaskEvent{
		EventID:     "evt_" + uuid.New().String(),
		Type:        EventTaskFinished,
		TaskID:      task.ID,
		ContentID:   task.ContentItem.ID,
		ContentType: task.ContentItem.Type,
		Status:      task.Status,
		Results:     task.Results,
		CompletedAt: task.CompletedAt,
		EmittedAt:   n.clock.Now(),
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: failed to marshal TaskEvent: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.Type),
			},
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(evt.Status)),
			},
		},
	}

	if _, err := n.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("events: failed to send TaskEvent to %s: %w", n.queueURL, err)
	}

	n.logger.InfoContext(ctx, "task event sent",
		"queue_url", n.queueURL,
		"event_id", evt.EventID,
		"task_id", evt.TaskID,
		"status", string(evt.Status),
	)
	return nil
}
