package services

import (
	"context"

	"github.com/feed-system/warbler/pkg/logger"
	"github.com/feed-system/warbler/pkg/queue"
)

// publishEvent 在事务提交后发送事件，失败只记录日志
func publishEvent(ctx context.Context, producer queue.Publisher, log *logger.Logger, event queue.Event) {
	if producer == nil {
		return
	}
	if err := producer.Publish(ctx, event); err != nil {
		log.WithError(err).WithField("event_type", event.Type).Error("Failed to publish event")
	}
}
