// Package notify publishes state-change events for collaborators that want
// progressive progress: page reveals during a run, balance mutations, and
// run state transitions. One event is published per mutation, in order.
package notify

import (
	"encoding/json"
	"errors"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/storybook-service/internal/core"
)

// ErrConnectionNil indicates the NATS connection is missing.
var ErrConnectionNil = errors.New("nats connection cannot be nil")

// Subjects names the NATS subjects events are published to.
type Subjects struct {
	Page    string
	Balance string
	Run     string
}

// NatsNotifier implements core.Notifier by publishing JSON events to NATS
// subjects. Publish failures are logged, never propagated: notification is
// best-effort and must not fail the mutation it reports.
type NatsNotifier struct {
	conn     *nats.Conn
	subjects Subjects
	log      *logger.Logger
}

// NewNatsNotifier creates a notifier over an established NATS connection.
func NewNatsNotifier(conn *nats.Conn, subjects Subjects, log *logger.Logger) (*NatsNotifier, error) {
	if conn == nil {
		return nil, ErrConnectionNil
	}

	return &NatsNotifier{
		conn:     conn,
		subjects: subjects,
		log:      log,
	}, nil
}

// PublishPage publishes a page-ready event.
func (n *NatsNotifier) PublishPage(event core.PageEvent) {
	n.publish(n.subjects.Page, event)
}

// PublishBalance publishes a balance-change event.
func (n *NatsNotifier) PublishBalance(event core.BalanceEvent) {
	n.publish(n.subjects.Balance, event)
}

// PublishRun publishes a run state transition event.
func (n *NatsNotifier) PublishRun(event core.RunEvent) {
	n.publish(n.subjects.Run, event)
}

func (n *NatsNotifier) publish(subject string, event any) {
	if subject == "" {
		return
	}

	data, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		n.log.Error("Failed to marshal event for subject '%s': %v", subject, marshalErr)

		return
	}

	publishErr := n.conn.Publish(subject, data)
	if publishErr != nil {
		n.log.Warn("Failed to publish event to subject '%s': %v", subject, publishErr)
	}
}
