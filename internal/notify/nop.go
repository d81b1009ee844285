package notify

import "github.com/book-expert/storybook-service/internal/core"

// Nop is a core.Notifier that discards every event. It serves callers that
// run without a broker, such as one-shot CLI invocations.
type Nop struct{}

// NewNop creates a no-op notifier.
func NewNop() *Nop {
	return &Nop{}
}

// PublishPage discards the event.
func (n *Nop) PublishPage(_ core.PageEvent) {}

// PublishBalance discards the event.
func (n *Nop) PublishBalance(_ core.BalanceEvent) {}

// PublishRun discards the event.
func (n *Nop) PublishRun(_ core.RunEvent) {}
