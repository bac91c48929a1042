// Package notify converts domain events into channel-agnostic messages and
// hands them to an external sink. Delivery is fire-and-forget, at most once
// per trigger cycle; the sink owns any retrying.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
	"github.com/pantrywatch/pantrywatch/internal/metrics"
)

// Message is the delivery-agnostic notification payload.
type Message struct {
	Subject    string           `json:"subject"`
	Body       string           `json:"body"`
	Type       models.EventType `json:"type"`
	ItemID     string           `json:"item_id"`
	Platform   string           `json:"platform,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Sink delivers messages to the external channel.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// Discard is the sink used when no notification channel is configured.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Deliver(context.Context, Message) error { return nil }

// DedupCache guards at-most-once delivery per trigger cycle. MarkDelivered
// returns true the first time a key is seen within its TTL.
type DedupCache interface {
	MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Router fans events out to the sink.
type Router struct {
	sink    Sink
	dedup   DedupCache
	ttl     time.Duration
	metrics *metrics.Registry
	logger  *zap.Logger

	wg sync.WaitGroup
}

// NewRouter wires a notification router. ttl bounds the dedup window and
// should cover one cycle interval.
func NewRouter(sink Sink, dedup DedupCache, ttl time.Duration, m *metrics.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Router{sink: sink, dedup: dedup, ttl: ttl, metrics: m, logger: logger}
}

// Dispatch routes one cycle's events. Delivery happens in the background;
// the caller never blocks on delivery success and errors are only counted
// and logged. A dedup cache failure degrades to best-effort delivery since
// consumers must tolerate redelivery anyway.
func (r *Router) Dispatch(ctx context.Context, cycleID string, events []models.Event) {
	for _, event := range events {
		key := dedupKey(cycleID, event)
		first, err := r.dedup.MarkDelivered(ctx, key, r.ttl)
		if err != nil {
			r.logger.Warn("dedup cache unavailable, delivering anyway", zap.String("key", key), zap.Error(err))
			first = true
		}
		if !first {
			continue
		}

		if r.metrics != nil {
			r.metrics.EventsEmitted.WithLabelValues(string(event.Type)).Inc()
		}

		msg := render(event)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()

			deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := r.sink.Deliver(deliverCtx, msg); err != nil {
				if r.metrics != nil {
					r.metrics.NotifyDeliveryErrors.Inc()
				}
				r.logger.Warn("notification delivery failed",
					zap.String("type", string(msg.Type)),
					zap.String("item_id", msg.ItemID),
					zap.Error(err))
			}
		}()
	}
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and in
// tests.
func (r *Router) Wait() {
	r.wg.Wait()
}

func dedupKey(cycleID string, e models.Event) string {
	return fmt.Sprintf("notify:%s:%s:%s:%s", cycleID, e.Type, e.ItemID, e.Platform)
}

func render(e models.Event) Message {
	msg := Message{
		Type:       e.Type,
		ItemID:     e.ItemID,
		Platform:   e.Platform,
		OccurredAt: e.OccurredAt,
	}

	switch e.Type {
	case models.EventPriceDrop:
		msg.Subject = fmt.Sprintf("Price drop: %s", e.ItemName)
		msg.Body = fmt.Sprintf("%s dropped %.1f%% on %s: %.2f -> %.2f per unit.",
			e.ItemName, e.ChangePercent, e.Platform, e.OldPrice, e.NewPrice)
	case models.EventBackInStock:
		msg.Subject = fmt.Sprintf("Back in stock: %s", e.ItemName)
		msg.Body = fmt.Sprintf("%s is available again on %s at %.2f per unit.",
			e.ItemName, e.Platform, e.NewPrice)
	case models.EventOutOfStock:
		msg.Subject = fmt.Sprintf("Out of stock: %s", e.ItemName)
		msg.Body = fmt.Sprintf("%s went out of stock on %s.", e.ItemName, e.Platform)
	case models.EventRestockNeeded:
		msg.Subject = fmt.Sprintf("Restock needed: %s", e.ItemName)
		if e.DepletionDate != nil {
			msg.Body = fmt.Sprintf("%s is down to %.1f and is forecast to run out by %s.",
				e.ItemName, e.Quantity, e.DepletionDate.Format("2006-01-02"))
		} else {
			msg.Body = fmt.Sprintf("%s is down to %.1f, below its minimum level.",
				e.ItemName, e.Quantity)
		}
	default:
		msg.Subject = fmt.Sprintf("Notification: %s", e.ItemName)
		msg.Body = fmt.Sprintf("Event %s for %s.", e.Type, e.ItemName)
	}

	return msg
}
