package queue

import (
	"go.uber.org/zap"

	"github.com/unclebandit/message-scheduler/internal/logging"
	"github.com/unclebandit/message-scheduler/internal/model"
)

// StartDispatchLogSubscriber records every dispatch outcome in the log. It
// is the default consumer when no broker is configured.
func StartDispatchLogSubscriber(q Queue, logger *zap.Logger) error {
	logger = logging.OrNop(logger)
	return q.Subscribe(TopicDispatched, func(payload any) error {
		ev, ok := payload.(model.DispatchEvent)
		if !ok {
			logger.Warn("invalid payload type on dispatch topic", zap.Any("payload", payload))
			return nil
		}
		logger.Info("scheduled message dispatched",
			zap.String("message_id", ev.MessageID),
			zap.String("tenant_id", ev.TenantID),
			zap.Int64("conversation_id", ev.ConversationID),
			zap.String("status", string(ev.Status)),
			zap.String("error_log", ev.ErrorLog),
			zap.Time("occurred_at", ev.OccurredAt),
		)
		return nil
	})
}
