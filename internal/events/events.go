// Package events carries testimony lifecycle notifications over the
// message queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/internal/mq"
	"github.com/mymiscarriage/apiserver/types"
)

const (
	ChannelSubmitted = "testimony.submitted"
	ChannelModerated = "testimony.moderated"
)

// TestimonyEvent is the JSON payload published on both channels.
// It carries identifiers and states only, never the story text.
type TestimonyEvent struct {
	Type           string       `json:"type"`
	TestimonyID    string       `json:"testimony_id"`
	Status         types.Status `json:"status"`
	PreviousStatus types.Status `json:"previous_status,omitempty"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// Publisher sends testimony events. A Publisher without a queue drops
// every event, so callers never need to check whether messaging is on.
type Publisher struct {
	queue *mq.MQ
	log   logging.Logger
	now   func() time.Time
}

func NewPublisher(queue *mq.MQ, log logging.Logger) *Publisher {
	if log == nil {
		log = logging.Nop()
	}
	return &Publisher{queue: queue, log: log, now: time.Now}
}

// TestimonySubmitted announces a new pending testimony.
func (p *Publisher) TestimonySubmitted(ctx context.Context, testimony types.Testimony) {
	p.publish(ctx, ChannelSubmitted, TestimonyEvent{
		Type:        ChannelSubmitted,
		TestimonyID: testimony.ID,
		Status:      testimony.Status,
	})
}

// TestimonyModerated announces a status change made by a moderator.
func (p *Publisher) TestimonyModerated(ctx context.Context, testimony types.Testimony, previous types.Status) {
	p.publish(ctx, ChannelModerated, TestimonyEvent{
		Type:           ChannelModerated,
		TestimonyID:    testimony.ID,
		Status:         testimony.Status,
		PreviousStatus: previous,
	})
}

// publish is best-effort: failures are logged and never returned.
func (p *Publisher) publish(ctx context.Context, channel string, event TestimonyEvent) {
	if p == nil || p.queue == nil {
		return
	}
	event.OccurredAt = p.now().UTC()

	id, err := p.queue.PublishJSON(ctx, channel, event, map[string]string{
		"event-type":       event.Type,
		mq.OrderingKeyAttr: event.TestimonyID,
	})
	if err != nil {
		p.log.Warn(ctx, "publish event failed", "channel", channel, "testimony_id", event.TestimonyID, "error", err)
		return
	}
	p.log.Debug(ctx, "event published", "channel", channel, "message_id", id, "testimony_id", event.TestimonyID)
}

// Decode parses a queue message into a TestimonyEvent.
func Decode(msg mq.Message) (TestimonyEvent, error) {
	var event TestimonyEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return TestimonyEvent{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	return event, nil
}

// Subscribe consumes events from channel until ctx is done. Malformed
// messages are logged and acknowledged so they are not redelivered forever.
func Subscribe(ctx context.Context, queue *mq.MQ, channel string, log logging.Logger, handle func(context.Context, TestimonyEvent) error) error {
	if log == nil {
		log = logging.Nop()
	}
	return queue.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		event, err := Decode(msg)
		if err != nil {
			log.Warn(ctx, "dropping malformed event", "channel", channel, "error", err)
			return nil
		}
		return handle(ctx, event)
	})
}
