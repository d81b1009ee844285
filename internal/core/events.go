package core

import (
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
)

// Run lifecycle states reported through RunEvent.
const (
	RunStateCostChecked   = "cost_checked"
	RunStateSpent         = "spent"
	RunStateTextGenerated = "text_generated"
	RunStateIllustrating  = "illustrating"
	RunStateComplete      = "complete"
	RunStateFailed        = "failed"
)

// PageEvent announces that a page of the current run is ready for display.
// Exactly one PageEvent is published per page, after its image step, whether
// or not a fresh illustration was generated for it.
type PageEvent struct {
	Header     events.EventHeader `json:"header"`
	Page       StoryPage          `json:"page"`
	TotalPages int                `json:"total_pages"`
	FreshImage bool               `json:"fresh_image"`
}

// BalanceEvent announces a credit balance mutation. Exactly one BalanceEvent
// is published per mutation, carrying the new balance.
type BalanceEvent struct {
	Header  events.EventHeader `json:"header"`
	Balance int                `json:"balance"`
	Delta   int                `json:"delta"`
}

// RunEvent announces a state transition of a generation run.
type RunEvent struct {
	Header events.EventHeader `json:"header"`
	State  string             `json:"state"`
	Reason string             `json:"reason,omitempty"`
}

// NewEventHeader builds the envelope header shared by all published events.
func NewEventHeader(workflowID string) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		EventID:    uuid.NewString(),
		UserID:     "",
		TenantID:   "",
	}
}
