// Package jira implements the tracker contract on top of the Jira REST API.
package jira

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/internal/config"
	"github.com/danielolaszy/linear-agent/internal/logging"
	"github.com/danielolaszy/linear-agent/internal/tracker"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

// commentTimeFormat is the timestamp layout Jira uses on comment bodies.
const commentTimeFormat = "2006-01-02T15:04:05.000-0700"

// Client handles interactions with the Jira API.
type Client struct {
	client  *jira.Client
	baseURL string
}

// NewClient creates a new Jira client from the resolved configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.Jira.URL == "" || cfg.Jira.Username == "" || cfg.Jira.Token == "" {
		return nil, fmt.Errorf("jira credentials are not configured: %w", apperrors.ErrAuth)
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Jira.Username,
		Password: cfg.Jira.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.Jira.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	return &Client{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.Jira.URL, "/"),
	}, nil
}

// TestConnection verifies the credentials by fetching the authenticated user.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	user, resp, err := c.client.User.GetSelfWithContext(ctx)
	if err != nil {
		return "", c.mapError("get current user", resp, err)
	}
	return user.DisplayName, nil
}

// ListIssues returns the tickets matching the filter, translated to JQL.
func (c *Client) ListIssues(ctx context.Context, filter models.ListFilter) ([]models.Ticket, error) {
	jql := buildJQL(filter)
	logging.Debug("jira search", "jql", jql)

	issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{MaxResults: 50})
	if err != nil {
		return nil, c.mapError("search issues", resp, err)
	}

	tickets := make([]models.Ticket, 0, len(issues))
	for i := range issues {
		tickets = append(tickets, c.toTicket(&issues[i]))
	}
	return tickets, nil
}

// FetchIssue fetches one ticket by key and enriches it.
func (c *Client) FetchIssue(ctx context.Context, id string) (*models.Ticket, error) {
	issue, resp, err := c.client.Issue.GetWithContext(ctx, id, nil)
	if err != nil {
		return nil, c.mapError(fmt.Sprintf("get issue %s", id), resp, err)
	}

	ticket := c.toTicket(issue)
	enriched, err := c.Enrich(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return &enriched, nil
}

// Enrich resolves labels, comments, parent, subtasks and issue links for a
// ticket. Jira returns all of these on the issue resource, so a single fetch
// covers everything except the parent's title, which needs one extra lookup.
func (c *Client) Enrich(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	issue, resp, err := c.client.Issue.GetWithContext(ctx, ticket.ID, nil)
	if err != nil {
		return models.Ticket{}, c.mapError(fmt.Sprintf("get issue %s", ticket.ID), resp, err)
	}

	extra := tracker.Enrichment{}
	if issue.Fields == nil {
		return tracker.Assemble(ticket, extra), nil
	}

	extra.Labels = issue.Fields.Labels
	extra.Comments = toComments(issue.Fields.Comments)
	extra.Children = toChildren(issue.Fields.Subtasks)
	extra.Related = toRelated(issue.Fields.IssueLinks)

	if issue.Fields.Parent != nil && issue.Fields.Parent.Key != "" {
		parent, err := c.fetchReference(ctx, issue.Fields.Parent.Key)
		if err != nil {
			return models.Ticket{}, err
		}
		extra.Parent = parent
	}

	return tracker.Assemble(ticket, extra), nil
}

// fetchReference fetches just enough of an issue to build a one-hop
// reference.
func (c *Client) fetchReference(ctx context.Context, key string) (*models.RelatedTicket, error) {
	issue, resp, err := c.client.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{Fields: "summary,status,assignee"})
	if err != nil {
		return nil, c.mapError(fmt.Sprintf("get issue %s", key), resp, err)
	}

	reference := models.RelatedTicket{
		ID: issue.Key,
	}
	if issue.Fields != nil {
		reference.Title = issue.Fields.Summary
		if issue.Fields.Status != nil {
			reference.State = issue.Fields.Status.Name
		}
		if issue.Fields.Assignee != nil {
			reference.Assignee = issue.Fields.Assignee.DisplayName
		}
	}
	return &reference, nil
}

// mapError translates go-jira errors into the application taxonomy.
func (c *Client) mapError(op string, resp *jira.Response, err error) error {
	if resp == nil {
		return &apperrors.NetworkError{Op: "jira " + op, Err: err}
	}

	switch resp.StatusCode {
	case 401, 403:
		return fmt.Errorf("jira API rejected the request (status %d): %w", resp.StatusCode, apperrors.ErrAuth)
	case 404:
		return fmt.Errorf("jira %s: %w", op, apperrors.ErrNotFound)
	case 400:
		// Jira reports unknown projects and users in JQL as a bad request.
		return fmt.Errorf("jira %s: %v: %w", op, err, apperrors.ErrNotFound)
	default:
		return fmt.Errorf("jira %s failed (status %d): %v", op, resp.StatusCode, err)
	}
}

// buildJQL translates a ListFilter into a JQL query. Empty fields impose no
// constraint.
func buildJQL(filter models.ListFilter) string {
	var clauses []string

	if filter.Team != "" {
		clauses = append(clauses, fmt.Sprintf("project = %s", quoteJQL(filter.Team)))
	}
	if filter.Assignee != "" {
		clauses = append(clauses, fmt.Sprintf("assignee = %s", quoteJQL(filter.Assignee)))
	}
	if len(filter.States) > 0 {
		quoted := make([]string, len(filter.States))
		for i, state := range filter.States {
			quoted[i] = quoteJQL(state)
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(quoted, ", ")))
	}

	jql := strings.Join(clauses, " AND ")
	if jql != "" {
		jql += " "
	}
	return jql + "ORDER BY created ASC"
}

func quoteJQL(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

func (c *Client) toTicket(issue *jira.Issue) models.Ticket {
	ticket := models.Ticket{
		ID:  issue.Key,
		URL: fmt.Sprintf("%s/browse/%s", c.baseURL, issue.Key),
	}

	fields := issue.Fields
	if fields == nil {
		return ticket
	}

	ticket.Title = fields.Summary
	ticket.Description = fields.Description
	ticket.CreatedAt = time.Time(fields.Created)
	ticket.UpdatedAt = time.Time(fields.Updated)

	if fields.Status != nil {
		ticket.State = fields.Status.Name
	}
	if fields.Priority != nil {
		if ordinal, err := strconv.Atoi(fields.Priority.ID); err == nil {
			ticket.Priority = ordinal
		}
	}
	if fields.Assignee != nil {
		ticket.Assignee = fields.Assignee.DisplayName
	}
	if fields.TimeOriginalEstimate > 0 {
		hours := float64(fields.TimeOriginalEstimate) / 3600
		ticket.Estimate = &hours
	}

	return ticket
}

func toComments(comments *jira.Comments) []models.Comment {
	if comments == nil {
		return nil
	}

	result := make([]models.Comment, 0, len(comments.Comments))
	for _, comment := range comments.Comments {
		if comment == nil {
			continue
		}
		created, err := time.Parse(commentTimeFormat, comment.Created)
		if err != nil {
			logging.Warn("failed to parse jira comment timestamp", "value", comment.Created, "error", err)
		}
		result = append(result, models.Comment{
			Author:    comment.Author.DisplayName,
			Body:      comment.Body,
			CreatedAt: created,
		})
	}
	return result
}

func toChildren(subtasks []*jira.Subtasks) []models.RelatedTicket {
	result := make([]models.RelatedTicket, 0, len(subtasks))
	for _, subtask := range subtasks {
		if subtask == nil {
			continue
		}
		child := models.RelatedTicket{
			ID:    subtask.Key,
			Title: subtask.Fields.Summary,
		}
		if subtask.Fields.Status != nil {
			child.State = subtask.Fields.Status.Name
		}
		result = append(result, child)
	}
	return result
}

func toRelated(links []*jira.IssueLink) []models.RelatedTicket {
	var result []models.RelatedTicket
	for _, link := range links {
		if link == nil {
			continue
		}
		linked := link.OutwardIssue
		if linked == nil {
			linked = link.InwardIssue
		}
		if linked == nil {
			continue
		}
		reference := models.RelatedTicket{
			ID: linked.Key,
		}
		if linked.Fields != nil {
			reference.Title = linked.Fields.Summary
			if linked.Fields.Status != nil {
				reference.State = linked.Fields.Status.Name
			}
			if linked.Fields.Assignee != nil {
				reference.Assignee = linked.Fields.Assignee.DisplayName
			}
		}
		result = append(result, reference)
	}
	return result
}
