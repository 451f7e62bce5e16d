// Package linear implements the tracker contract on top of the Linear
// GraphQL API.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/internal/config"
	"github.com/danielolaszy/linear-agent/internal/logging"
	"github.com/danielolaszy/linear-agent/internal/tracker"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

const defaultBaseURL = "https://api.linear.app/graphql"

const viewerQuery = `query {
  viewer {
    name
  }
}`

const issueFields = `identifier
title
description
priority
estimate
url
state { name }
createdAt
updatedAt
assignee { name }`

var (
	issueByIDQuery = fmt.Sprintf(`query TicketByID($id: String!) {
  issue(id: $id) {
    %s
  }
}`, issueFields)

	userIssuesQuery = fmt.Sprintf(`query UserTickets($assignee: String!, $filter: IssueFilter) {
  users(filter: { name: { eq: $assignee } }) {
    nodes {
      name
      assignedIssues(filter: $filter, first: 50) {
        nodes {
          %s
        }
      }
    }
  }
}`, issueFields)

	issuesQuery = fmt.Sprintf(`query Tickets($filter: IssueFilter) {
  issues(filter: $filter, first: 50) {
    nodes {
      %s
    }
  }
}`, issueFields)
)

const teamsQuery = `query TeamByName($team: String!) {
  teams(filter: { name: { eq: $team } }) {
    nodes {
      name
    }
  }
}`

const labelsQuery = `query TicketLabels($id: String!) {
  issue(id: $id) {
    labels {
      nodes {
        name
      }
    }
  }
}`

const commentsQuery = `query TicketComments($id: String!) {
  issue(id: $id) {
    comments {
      nodes {
        body
        createdAt
        user { name }
      }
    }
  }
}`

const parentQuery = `query TicketParent($id: String!) {
  issue(id: $id) {
    parent {
      identifier
      title
      state { name }
      assignee { name }
    }
  }
}`

const childrenQuery = `query TicketChildren($id: String!) {
  issue(id: $id) {
    children {
      nodes {
        identifier
        title
        state { name }
        assignee { name }
      }
    }
  }
}`

const relationsQuery = `query TicketRelations($id: String!) {
  issue(id: $id) {
    relations {
      nodes {
        relatedIssue {
          identifier
          title
          state { name }
          assignee { name }
        }
      }
    }
  }
}`

// Client handles interactions with the Linear GraphQL API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a new Linear API client from the resolved configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.LinearAPIKey == "" {
		return nil, fmt.Errorf("linear api key is not configured: %w", apperrors.ErrAuth)
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     cfg.LinearAPIKey,
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type nameNode struct {
	Name string `json:"name"`
}

type issueNode struct {
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Priority    *int      `json:"priority"`
	Estimate    *float64  `json:"estimate"`
	URL         string    `json:"url"`
	State       nameNode  `json:"state"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Assignee    *nameNode `json:"assignee"`
}

type referenceNode struct {
	Identifier string    `json:"identifier"`
	Title      string    `json:"title"`
	State      nameNode  `json:"state"`
	Assignee   *nameNode `json:"assignee"`
}

// TestConnection verifies the API key by querying the authenticated viewer.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	var result struct {
		Viewer nameNode `json:"viewer"`
	}
	if err := c.execute(ctx, viewerQuery, nil, &result); err != nil {
		return "", err
	}
	return result.Viewer.Name, nil
}

// ListIssues returns the tickets matching the filter. When an assignee is
// given the query goes through the user's assigned issues so that an unknown
// user name can be reported as not found; otherwise issues are queried
// directly.
func (c *Client) ListIssues(ctx context.Context, filter models.ListFilter) ([]models.Ticket, error) {
	if filter.Team != "" {
		if err := c.resolveTeam(ctx, filter.Team); err != nil {
			return nil, err
		}
	}

	issueFilter := buildIssueFilter(filter.Team, filter.States)

	if filter.Assignee != "" {
		var result struct {
			Users struct {
				Nodes []struct {
					Name           string `json:"name"`
					AssignedIssues struct {
						Nodes []issueNode `json:"nodes"`
					} `json:"assignedIssues"`
				} `json:"nodes"`
			} `json:"users"`
		}
		variables := map[string]any{"assignee": filter.Assignee}
		if issueFilter != nil {
			variables["filter"] = issueFilter
		}
		if err := c.execute(ctx, userIssuesQuery, variables, &result); err != nil {
			return nil, err
		}
		if len(result.Users.Nodes) == 0 {
			return nil, fmt.Errorf("user %q: %w", filter.Assignee, apperrors.ErrNotFound)
		}

		user := result.Users.Nodes[0]
		tickets := make([]models.Ticket, 0, len(user.AssignedIssues.Nodes))
		for _, node := range user.AssignedIssues.Nodes {
			ticket := toTicket(node)
			if ticket.Assignee == "" {
				ticket.Assignee = user.Name
			}
			tickets = append(tickets, ticket)
		}
		return tickets, nil
	}

	var result struct {
		Issues struct {
			Nodes []issueNode `json:"nodes"`
		} `json:"issues"`
	}
	variables := map[string]any{}
	if issueFilter != nil {
		variables["filter"] = issueFilter
	}
	if err := c.execute(ctx, issuesQuery, variables, &result); err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, len(result.Issues.Nodes))
	for _, node := range result.Issues.Nodes {
		tickets = append(tickets, toTicket(node))
	}
	return tickets, nil
}

// resolveTeam verifies the team name exists, so a misspelled team is
// reported instead of silently matching nothing.
func (c *Client) resolveTeam(ctx context.Context, team string) error {
	var result struct {
		Teams struct {
			Nodes []nameNode `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.execute(ctx, teamsQuery, map[string]any{"team": team}, &result); err != nil {
		return err
	}
	if len(result.Teams.Nodes) == 0 {
		return fmt.Errorf("team %q: %w", team, apperrors.ErrNotFound)
	}
	return nil
}

// FetchIssue fetches one ticket by identifier and enriches it.
func (c *Client) FetchIssue(ctx context.Context, id string) (*models.Ticket, error) {
	var result struct {
		Issue *issueNode `json:"issue"`
	}
	if err := c.execute(ctx, issueByIDQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}
	if result.Issue == nil {
		return nil, fmt.Errorf("ticket %q: %w", id, apperrors.ErrNotFound)
	}

	ticket := toTicket(*result.Issue)
	enriched, err := c.Enrich(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return &enriched, nil
}

// Enrich fetches the one-hop relationship data for a ticket and assembles
// the enriched snapshot. Only direct references are resolved: the relations
// of a related ticket are never followed.
func (c *Client) Enrich(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	labels, err := c.fetchLabels(ctx, ticket.ID)
	if err != nil {
		return models.Ticket{}, err
	}

	comments, err := c.fetchComments(ctx, ticket.ID)
	if err != nil {
		return models.Ticket{}, err
	}

	parent, err := c.fetchParent(ctx, ticket.ID)
	if err != nil {
		return models.Ticket{}, err
	}

	children, err := c.fetchChildren(ctx, ticket.ID)
	if err != nil {
		return models.Ticket{}, err
	}

	related, err := c.fetchRelated(ctx, ticket.ID)
	if err != nil {
		return models.Ticket{}, err
	}

	return tracker.Assemble(ticket, tracker.Enrichment{
		Labels:   labels,
		Comments: comments,
		Parent:   parent,
		Children: children,
		Related:  related,
	}), nil
}

func (c *Client) fetchLabels(ctx context.Context, id string) ([]string, error) {
	var result struct {
		Issue struct {
			Labels struct {
				Nodes []nameNode `json:"nodes"`
			} `json:"labels"`
		} `json:"issue"`
	}
	if err := c.execute(ctx, labelsQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(result.Issue.Labels.Nodes))
	for _, node := range result.Issue.Labels.Nodes {
		labels = append(labels, node.Name)
	}
	return labels, nil
}

func (c *Client) fetchComments(ctx context.Context, id string) ([]models.Comment, error) {
	var result struct {
		Issue struct {
			Comments struct {
				Nodes []struct {
					Body      string    `json:"body"`
					CreatedAt time.Time `json:"createdAt"`
					User      *nameNode `json:"user"`
				} `json:"nodes"`
			} `json:"comments"`
		} `json:"issue"`
	}
	if err := c.execute(ctx, commentsQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}

	comments := make([]models.Comment, 0, len(result.Issue.Comments.Nodes))
	for _, node := range result.Issue.Comments.Nodes {
		comment := models.Comment{
			Body:      node.Body,
			CreatedAt: node.CreatedAt,
		}
		if node.User != nil {
			comment.Author = node.User.Name
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

func (c *Client) fetchParent(ctx context.Context, id string) (*models.RelatedTicket, error) {
	var result struct {
		Issue struct {
			Parent *referenceNode `json:"parent"`
		} `json:"issue"`
	}
	if err := c.execute(ctx, parentQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}
	if result.Issue.Parent == nil {
		return nil, nil
	}

	parent := toReference(*result.Issue.Parent)
	return &parent, nil
}

func (c *Client) fetchChildren(ctx context.Context, id string) ([]models.RelatedTicket, error) {
	var result struct {
		Issue struct {
			Children struct {
				Nodes []referenceNode `json:"nodes"`
			} `json:"children"`
		} `json:"issue"`
	}
	if err := c.execute(ctx, childrenQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}

	children := make([]models.RelatedTicket, 0, len(result.Issue.Children.Nodes))
	for _, node := range result.Issue.Children.Nodes {
		children = append(children, toReference(node))
	}
	return children, nil
}

func (c *Client) fetchRelated(ctx context.Context, id string) ([]models.RelatedTicket, error) {
	var result struct {
		Issue struct {
			Relations struct {
				Nodes []struct {
					RelatedIssue referenceNode `json:"relatedIssue"`
				} `json:"nodes"`
			} `json:"relations"`
		} `json:"issue"`
	}
	if err := c.execute(ctx, relationsQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}

	related := make([]models.RelatedTicket, 0, len(result.Issue.Relations.Nodes))
	for _, node := range result.Issue.Relations.Nodes {
		related = append(related, toReference(node.RelatedIssue))
	}
	return related, nil
}

// execute posts a GraphQL query and decodes the data portion of the
// response into out.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	if variables == nil {
		variables = map[string]any{}
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal linear request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create linear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperrors.NetworkError{Op: "linear query", Err: err}
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return &apperrors.NetworkError{Op: "linear response read", Err: err}
	}

	logging.Debug("linear api response",
		"status", resp.StatusCode,
		"body", logging.Truncate(string(body), 1000))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("linear API rejected the request (status %d): %w", resp.StatusCode, apperrors.ErrAuth)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("linear API returned status %d: %s", resp.StatusCode, logging.Truncate(string(body), 200))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse linear response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, gqlErr := range envelope.Errors {
			messages[i] = gqlErr.Message
		}
		joined := strings.Join(messages, "; ")
		if strings.Contains(strings.ToLower(joined), "not found") {
			return fmt.Errorf("linear API: %s: %w", joined, apperrors.ErrNotFound)
		}
		if strings.Contains(strings.ToLower(joined), "authentication") {
			return fmt.Errorf("linear API: %s: %w", joined, apperrors.ErrAuth)
		}
		return fmt.Errorf("linear API returned errors: %s", joined)
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode linear response: %w", err)
		}
	}
	return nil
}

// buildIssueFilter constructs a GraphQL IssueFilter from the optional team
// and state constraints. Returns nil when no constraint applies.
func buildIssueFilter(team string, states []string) map[string]any {
	filter := map[string]any{}

	if team != "" {
		filter["team"] = map[string]any{
			"name": map[string]any{
				"eq": team,
			},
		}
	}
	if len(states) > 0 {
		filter["state"] = map[string]any{
			"name": map[string]any{
				"in": states,
			},
		}
	}

	if len(filter) == 0 {
		return nil
	}
	return filter
}

func toTicket(node issueNode) models.Ticket {
	ticket := models.Ticket{
		ID:        node.Identifier,
		Title:     node.Title,
		State:     node.State.Name,
		URL:       node.URL,
		Estimate:  node.Estimate,
		CreatedAt: node.CreatedAt,
		UpdatedAt: node.UpdatedAt,
	}
	if node.Description != nil {
		ticket.Description = *node.Description
	}
	if node.Priority != nil {
		ticket.Priority = *node.Priority
	}
	if node.Assignee != nil {
		ticket.Assignee = node.Assignee.Name
	}
	return ticket
}

func toReference(node referenceNode) models.RelatedTicket {
	reference := models.RelatedTicket{
		ID:    node.Identifier,
		Title: node.Title,
		State: node.State.Name,
	}
	if node.Assignee != nil {
		reference.Assignee = node.Assignee.Name
	}
	return reference
}
