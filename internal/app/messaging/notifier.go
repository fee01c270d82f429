package messaging

import (
	"context"

	domain "github.com/Bonshal/swapspot/internal/domain/messaging"
)

// Notifier is an optional push channel announcing sent messages, e.g. to a
// broker feeding live clients. Polling remains the baseline contract; the
// store treats notification failures as non-fatal and only logs them.
type Notifier interface {
	MessageSent(ctx context.Context, message domain.Message) error
}

// NopNotifier is the default when no push channel is configured.
type NopNotifier struct{}

func (NopNotifier) MessageSent(context.Context, domain.Message) error { return nil }

var _ Notifier = NopNotifier{}
