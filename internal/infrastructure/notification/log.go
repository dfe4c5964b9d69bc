// Package notification holds notification senders that need no external service.
package notification

import (
	"context"
	"fmt"

	"medreminder/internal/pkg/logger"
)

// LogNotifier writes reminders to the log instead of delivering them.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Send logs the reminder. It only fails when ctx is already done.
func (n *LogNotifier) Send(ctx context.Context, target, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info(fmt.Sprintf("NOTIFY to=%s title=%q body=%q", target, title, body))
	return nil
}
