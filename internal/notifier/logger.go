package notifier

import (
	"context"
	"log"
	"strings"
)

// LogNotifier writes notifications to the process log. Used for dry runs and
// as a fallback when no webhook is configured.
type LogNotifier struct{}

// NewLogNotifier creates a new log notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Name returns "log".
func (l *LogNotifier) Name() string {
	return "log"
}

// Send logs the notification. Always succeeds.
func (l *LogNotifier) Send(_ context.Context, n *Notification) ([]RecipientResult, error) {
	recipients := "admins"
	if len(n.Recipients) > 0 {
		recipients = strings.Join(n.Recipients, ",")
	}
	log.Printf("notification [%s] to %s: %s: %s", n.Priority, recipients, n.Title, n.Message)
	return acceptedResults(n.Recipients), nil
}

// Close is a no-op.
func (l *LogNotifier) Close() error {
	return nil
}
