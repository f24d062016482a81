package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// WatermillQueue adapts a Watermill Publisher/Subscriber pair to the
// Queue contract, giving embedders a drop-in durable queue (backed by
// whichever Watermill pub/sub implementation they wire in — Kafka, SQL,
// AMQP, or the in-memory gochannel transport for single-instance
// deployments) instead of a bespoke one.
type WatermillQueue struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topic      string
}

// NewWatermillQueue constructs a WatermillQueue over topic.
func NewWatermillQueue(pub message.Publisher, sub message.Subscriber, topic string) *WatermillQueue {
	return &WatermillQueue{Publisher: pub, Subscriber: sub, Topic: topic}
}

// Enqueue publishes job, delaying publication by delaySeconds when
// positive. Watermill's core Publisher contract has no native delay
// primitive, so a delayed enqueue is scheduled locally and republished
// once the delay elapses; ctx cancellation drops the scheduled publish.
func (q *WatermillQueue) Enqueue(ctx context.Context, job DeliveryJob, delaySeconds float64) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("outbox: marshal delivery job: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)

	if delaySeconds <= 0 {
		return q.Publisher.Publish(q.Topic, msg)
	}

	go func() {
		select {
		case <-time.After(time.Duration(delaySeconds * float64(time.Second))):
			if err := q.Publisher.Publish(q.Topic, msg); err != nil {
				slog.Error("outbox: delayed publish failed", "inbox", job.Inbox, "error", err)
			}
		case <-ctx.Done():
		}
	}()
	return nil
}

// Handler processes one dequeued delivery job. Subscribe logs a returned
// error and acknowledges the message either way; a handler that wants a
// retry enqueues a new job itself (as Worker does), and one that drops a
// job reports it via its own error sink.
type Handler func(ctx context.Context, job DeliveryJob) error

// Subscribe drains the queue's topic, invoking handler for each message
// and Ack'ing it regardless of outcome (at-least-once semantics, per
// spec.md §4.J step 6 — retries are modeled as new enqueued jobs with an
// incremented attempt count, not as Nack/redelivery).
func (q *WatermillQueue) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := q.Subscriber.Subscribe(ctx, q.Topic)
	if err != nil {
		return fmt.Errorf("outbox: subscribe to %s: %w", q.Topic, err)
	}
	go func() {
		for msg := range messages {
			var job DeliveryJob
			if err := json.Unmarshal(msg.Payload, &job); err != nil {
				slog.Error("outbox: malformed delivery job, dropping", "error", err)
				msg.Ack()
				continue
			}
			if err := handler(msg.Context(), job); err != nil {
				slog.Warn("outbox: delivery handler returned an error", "inbox", job.Inbox, "error", err)
			}
			msg.Ack()
		}
	}()
	return nil
}

// BackoffPolicy controls retry scheduling for failed deliveries.
type BackoffPolicy struct {
	// Base is the unit backoff duration; attempt n waits
	// min(2^n * Base, Cap) plus up to 10% jitter.
	Base time.Duration
	Cap  time.Duration
	// MaxAttempts bounds retries; spec.md §4.J default is 10.
	MaxAttempts int
}

// DefaultBackoffPolicy matches spec.md §4.J step 5's defaults.
var DefaultBackoffPolicy = BackoffPolicy{Base: 30 * time.Second, Cap: 6 * time.Hour, MaxAttempts: 10}

func (b BackoffPolicy) maxAttempts() int {
	if b.MaxAttempts <= 0 {
		return DefaultBackoffPolicy.MaxAttempts
	}
	return b.MaxAttempts
}

// next computes the delay before attempt (1-indexed), in seconds, with
// up to 10% jitter.
func (b BackoffPolicy) next(attempt int) float64 {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoffPolicy.Base
	}
	cap := b.Cap
	if cap <= 0 {
		cap = DefaultBackoffPolicy.Cap
	}

	backoff := base * time.Duration(1<<uint(attempt))
	if backoff <= 0 || backoff > cap {
		backoff = cap
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return (backoff + jitter).Seconds()
}
