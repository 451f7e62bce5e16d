// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// Ticket represents an issue fetched from the tracker, together with the
// one-hop relationship data gathered during enrichment. It is a read-only
// snapshot: once assembled it is only rendered, never mutated.
type Ticket struct {
	// ID is the stable, team-prefixed identifier (e.g. "LIN-42")
	ID string

	// Title is the ticket's summary line
	Title string

	// Description is the full body text, may contain Markdown
	Description string

	// State is the workflow state name (e.g. "In Progress")
	State string

	// Priority is a small ordinal; 0 means no priority
	Priority int

	// Estimate is the point/hour estimate, nil when the ticket is not estimated
	Estimate *float64

	// URL is the canonical link to the ticket in the tracker
	URL string

	// Labels holds label names in the order the tracker returned them
	Labels []string

	// CreatedAt is the timestamp when the ticket was created
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the ticket was last updated
	UpdatedAt time.Time

	// Assignee is the display name of the assigned user, empty when unassigned
	Assignee string

	// Comments holds all comments in chronological order
	Comments []Comment

	// Parent references the parent ticket, nil when the ticket has none
	Parent *RelatedTicket

	// Children references sub-tickets of this ticket
	Children []RelatedTicket

	// Related references tickets linked to this one
	Related []RelatedTicket
}

// Comment is a single comment on a ticket.
type Comment struct {
	// Author is the commenter's display name, empty when unknown
	Author string

	// Body is the comment text
	Body string

	// CreatedAt is the timestamp when the comment was posted
	CreatedAt time.Time
}

// RelatedTicket is a one-hop reference to another ticket. It deliberately
// carries no relationship data of its own: related links in the tracker can
// be symmetric or cyclic, and truncating at one hop keeps enrichment bounded.
type RelatedTicket struct {
	// ID is the referenced ticket's identifier
	ID string

	// Title is the referenced ticket's summary line
	Title string

	// State is the referenced ticket's workflow state name
	State string

	// Assignee is the referenced ticket's assignee, empty when unassigned
	Assignee string
}

// ListFilter narrows a ticket listing. Empty fields impose no constraint.
type ListFilter struct {
	// Assignee filters by the assigned user's display name
	Assignee string

	// Team filters by team/project name
	Team string

	// States filters by workflow state names
	States []string
}

// Plan is the implementation plan generated for one ticket.
type Plan struct {
	// TicketID is the identifier of the originating ticket
	TicketID string

	// Body is the plan text as returned by the model
	Body string
}
