// Package notifier pushes order outcome messages to an external channel.
package notifier

// Notifier delivers human-facing notifications about order outcomes.
type Notifier interface {
	Send(msg string) error
	SendWithRetry(msg string) error
}

// Noop is used when no notification channel is configured.
type Noop struct{}

func (Noop) Send(string) error          { return nil }
func (Noop) SendWithRetry(string) error { return nil }
