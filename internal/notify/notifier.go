// README: Fire-and-forget notification dispatch.
package notify

import (
	"context"

	"go.uber.org/zap"

	"sokoni/internal/logger"
)

// Notifier fans transition events out to the surrounding notification
// system. Implementations must never propagate failures back into the
// transition path.
type Notifier interface {
	Notify(ctx context.Context, actor, event string, payload map[string]any)
}

// LogNotifier is the default sink: it records the event through the
// structured logger. The real push/SMS dispatcher lives outside this
// service and consumes the same call shape.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, actor, event string, payload map[string]any) {
	logger.Get().Info("notify",
		zap.String("actor", actor),
		zap.String("event", event),
		zap.Any("payload", payload),
	)
}
