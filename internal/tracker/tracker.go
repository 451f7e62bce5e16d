// Package tracker defines the contract every issue-tracker backend
// implements, plus the enrichment assembler shared between them.
package tracker

import (
	"context"
	"sort"

	"github.com/danielolaszy/linear-agent/pkg/models"
)

// Client is the read-only view of an issue tracker. Every call is a fresh
// network round trip: there is no caching and no retry beyond the single
// attempt, errors propagate immediately to the caller.
type Client interface {
	// TestConnection verifies the credentials and returns the display name
	// of the authenticated account.
	TestConnection(ctx context.Context) (string, error)

	// ListIssues returns the tickets matching every non-empty filter field.
	// The returned tickets are not enriched; pass them to Enrich before
	// rendering.
	ListIssues(ctx context.Context, filter models.ListFilter) ([]models.Ticket, error)

	// FetchIssue fetches one ticket by identifier, fully enriched.
	FetchIssue(ctx context.Context, id string) (*models.Ticket, error)

	// Enrich resolves the one-hop relationship data (labels, comments,
	// parent, children, related) for a previously listed ticket.
	Enrich(ctx context.Context, ticket models.Ticket) (models.Ticket, error)
}

// Enrichment holds the relationship records fetched for one ticket, in the
// order the tracker returned them.
type Enrichment struct {
	Labels   []string
	Comments []models.Comment
	Parent   *models.RelatedTicket
	Children []models.RelatedTicket
	Related  []models.RelatedTicket
}

// Assemble combines a raw ticket with its fetched relationship records into
// the enriched snapshot used for rendering. It is deterministic and performs
// no I/O. Label order is preserved as returned by the tracker; comments are
// sorted into chronological order. Relationship references stay truncated at
// one hop: a RelatedTicket never carries relationships of its own, so cyclic
// related links across issues cannot cause unbounded traversal.
func Assemble(ticket models.Ticket, extra Enrichment) models.Ticket {
	enriched := ticket

	enriched.Labels = extra.Labels
	enriched.Parent = extra.Parent
	enriched.Children = extra.Children
	enriched.Related = extra.Related

	comments := make([]models.Comment, len(extra.Comments))
	copy(comments, extra.Comments)
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	enriched.Comments = comments

	return enriched
}
