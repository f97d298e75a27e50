package mykafka

import (
	"context"
	"strconv"

	"github.com/Skotchmaster/stone_shop/internal/logging"
)

// Publish sends ev and only logs a failure. Event delivery never fails a request.
func Publish(ctx context.Context, p Publisher, topic string, ev Event) {
	if p == nil {
		return
	}
	key := strconv.FormatUint(uint64(ev.UserID), 10)
	if ev.UserID == 0 {
		key = strconv.FormatUint(uint64(ev.ProductID), 10)
	}
	if err := p.PublishEvent(ctx, topic, key, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "topic", topic, "event", ev.Type, "error", err)
	}
}
