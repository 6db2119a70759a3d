package collab

import (
	"context"

	"go.uber.org/zap"

	"prospector/internal/ports"
)

// LogTransport pretends to deliver mail by logging it. Dev mode only.
type LogTransport struct {
	Log *zap.Logger
}

func (t *LogTransport) Send(ctx context.Context, email ports.OutboundEmail) error {
	t.Log.Info("outbound email (dev transport, not delivered)",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.Int("bytes", len(email.HTML)))
	return nil
}

// LogNotifier writes pipeline events to the log instead of a dashboard.
type LogNotifier struct {
	Log *zap.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, event string, fields map[string]any) {
	n.Log.Info("event", zap.String("event", event), zap.Any("fields", fields))
}
