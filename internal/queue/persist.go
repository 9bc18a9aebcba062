package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"muhasibi/pkg/store"

	"github.com/rabbitmq/amqp091-go"
)

// RunTracePublisher publishes finished run records to the trace queue. It
// satisfies the engine's RunPublisher; the worker does the actual append.
type RunTracePublisher struct {
	ch *amqp091.Channel
}

// NewRunTracePublisher wraps a channel.
func NewRunTracePublisher(ch *amqp091.Channel) *RunTracePublisher {
	return &RunTracePublisher{ch: ch}
}

// PublishRun enqueues the run record.
func (p *RunTracePublisher) PublishRun(_ context.Context, run store.RunRecord) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}
	return Publish(p.ch, RunTraceQueue, body)
}

// PublishFeedback enqueues a feedback record.
func (p *RunTracePublisher) PublishFeedback(_ context.Context, feedback store.FeedbackRecord) error {
	body, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("encode feedback record: %w", err)
	}
	return Publish(p.ch, FeedbackQueue, body)
}

// ProcessRunTrace appends one run record from the trace queue.
func ProcessRunTrace(ctx context.Context, runs store.RunStore, body []byte) error {
	var run store.RunRecord
	if err := json.Unmarshal(body, &run); err != nil {
		return fmt.Errorf("decode run record: %w", err)
	}
	if run.RequestID == "" {
		return fmt.Errorf("run record missing request_id")
	}
	return runs.AppendRun(ctx, run)
}

// ProcessFeedback appends one feedback record from the feedback queue.
func ProcessFeedback(ctx context.Context, runs store.RunStore, body []byte) error {
	var feedback store.FeedbackRecord
	if err := json.Unmarshal(body, &feedback); err != nil {
		return fmt.Errorf("decode feedback record: %w", err)
	}
	if feedback.RequestID == "" {
		return fmt.Errorf("feedback record missing request_id")
	}
	if feedback.Rating < -1 || feedback.Rating > 1 {
		return fmt.Errorf("feedback rating out of range: %d", feedback.Rating)
	}
	return runs.AppendFeedback(ctx, feedback)
}
