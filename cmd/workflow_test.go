package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/internal/config"
	"github.com/danielolaszy/linear-agent/internal/markdown"
	"github.com/danielolaszy/linear-agent/internal/ui"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

type fakeTracker struct {
	tickets   []models.Ticket
	enrichErr map[string]error
	enriched  []string
}

func (f *fakeTracker) TestConnection(ctx context.Context) (string, error) {
	return "fake", nil
}

func (f *fakeTracker) ListIssues(ctx context.Context, filter models.ListFilter) ([]models.Ticket, error) {
	return f.tickets, nil
}

func (f *fakeTracker) FetchIssue(ctx context.Context, id string) (*models.Ticket, error) {
	for _, ticket := range f.tickets {
		if ticket.ID == id {
			enriched, err := f.Enrich(ctx, ticket)
			if err != nil {
				return nil, err
			}
			return &enriched, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeTracker) Enrich(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	if err := f.enrichErr[ticket.ID]; err != nil {
		return models.Ticket{}, err
	}
	f.enriched = append(f.enriched, ticket.ID)
	ticket.Labels = append(ticket.Labels, "enriched")
	return ticket, nil
}

type fakePlanner struct {
	err   error
	calls []string
}

func (f *fakePlanner) GeneratePlan(ctx context.Context, ticket models.Ticket, model string) (*models.Plan, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, ticket.ID)
	return &models.Plan{TicketID: ticket.ID, Body: "1. Do the work."}, nil
}

func testTickets() []models.Ticket {
	return []models.Ticket{
		{ID: "LIN-1", Title: "First task", State: "Open", CreatedAt: time.Now()},
		{ID: "LIN-2", Title: "Second task", State: "Open", CreatedAt: time.Now()},
		{ID: "LIN-3", Title: "Third task", State: "In Progress", CreatedAt: time.Now()},
	}
}

func newTestWorkflow(t *testing.T, trk *fakeTracker, input string) (*workflow, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	var out bytes.Buffer
	return &workflow{
		tracker:    trk,
		prompter:   ui.NewPrompter(strings.NewReader(input), &out),
		cfg:        &config.Config{Team: "Engineering", States: []string{"Open", "In Progress"}, Model: config.DefaultModel},
		ticketsDir: filepath.Join(dir, "tickets"),
		plansDir:   filepath.Join(dir, "plans"),
	}, &out
}

func TestRunInteractiveBatchSelection(t *testing.T) {
	trk := &fakeTracker{tickets: testTickets()}
	w, _ := newTestWorkflow(t, trk, "1,3\n")

	require.NoError(t, w.runInteractive(context.Background()))

	entries, err := os.ReadDir(w.ticketsDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"LIN-1", "LIN-3"}, trk.enriched)

	content, err := os.ReadFile(filepath.Join(w.ticketsDir, "LIN-1-First_task.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Ticket: First task")
	assert.Contains(t, string(content), "**Labels:** enriched")
}

func TestRunInteractiveNoMatches(t *testing.T) {
	trk := &fakeTracker{}
	w, out := newTestWorkflow(t, trk, "")

	require.NoError(t, w.runInteractive(context.Background()))
	assert.Contains(t, out.String(), "No tickets matched")
}

func TestRunInteractiveAuthFailureAborts(t *testing.T) {
	trk := &fakeTracker{
		tickets:   testTickets(),
		enrichErr: map[string]error{"LIN-1": apperrors.ErrAuth},
	}
	w, _ := newTestWorkflow(t, trk, "all\n")

	err := w.runInteractive(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuth)

	// Processing stopped before the remaining tickets.
	assert.Empty(t, trk.enriched)
}

func TestRunInteractiveSkipsFailedTicket(t *testing.T) {
	trk := &fakeTracker{
		tickets:   testTickets(),
		enrichErr: map[string]error{"LIN-2": apperrors.ErrNotFound},
	}
	w, out := newTestWorkflow(t, trk, "all\n")

	err := w.runInteractive(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrAuth)

	assert.Equal(t, []string{"LIN-1", "LIN-3"}, trk.enriched)
	assert.Contains(t, out.String(), "2 processed, 1 failed")
}

func TestRunSingle(t *testing.T) {
	trk := &fakeTracker{tickets: testTickets()}
	w, _ := newTestWorkflow(t, trk, "")

	require.NoError(t, w.runSingle(context.Background(), "LIN-2"))

	_, err := os.Stat(filepath.Join(w.ticketsDir, "LIN-2-Second_task.md"))
	assert.NoError(t, err)
}

func TestRunSingleNotFound(t *testing.T) {
	trk := &fakeTracker{tickets: testTickets()}
	w, _ := newTestWorkflow(t, trk, "")

	err := w.runSingle(context.Background(), "LIN-99")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRunInteractiveWithPlans(t *testing.T) {
	trk := &fakeTracker{tickets: testTickets()}
	pln := &fakePlanner{}
	w, _ := newTestWorkflow(t, trk, "2\n")
	w.planner = pln
	w.generatePlans = true

	require.NoError(t, w.runInteractive(context.Background()))

	assert.Equal(t, []string{"LIN-2"}, pln.calls)
	content, err := os.ReadFile(filepath.Join(w.plansDir, "LIN-2-Second_task.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Implementation Plan: Second task")
	assert.Contains(t, string(content), "1. Do the work.")
}

// A plan failure must not lose the already written ticket file.
func TestPlanFailureKeepsTicketFile(t *testing.T) {
	trk := &fakeTracker{tickets: testTickets()}
	w, _ := newTestWorkflow(t, trk, "1\n")
	w.planner = &fakePlanner{err: apperrors.ErrRateLimit}
	w.generatePlans = true

	err := w.runInteractive(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(w.ticketsDir, "LIN-1-First_task.md"))
	assert.NoError(t, statErr)
}

func TestRunFromFile(t *testing.T) {
	estimate := 2.0
	ticket := models.Ticket{
		ID:       "LIN-42",
		Title:    "Fix login bug",
		State:    "Open",
		Estimate: &estimate,
		URL:      "https://linear.app/acme/issue/LIN-42",
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "LIN-42-Fix_login_bug.md")
	require.NoError(t, os.WriteFile(path, []byte(markdown.RenderTicket(ticket)), 0o644))

	trk := &fakeTracker{}
	pln := &fakePlanner{}
	w, _ := newTestWorkflow(t, trk, "")
	w.planner = pln
	w.generatePlans = true

	require.NoError(t, w.runFromFile(context.Background(), path))

	assert.Equal(t, []string{"LIN-42"}, pln.calls)
	content, err := os.ReadFile(filepath.Join(w.plansDir, "LIN-42-Fix_login_bug.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Implementation Plan: Fix login bug")
	// The tracker is never contacted in this mode.
	assert.Empty(t, trk.enriched)
}

func TestRunFromFileParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.md")
	require.NoError(t, os.WriteFile(path, []byte("not a ticket"), 0o644))

	w, _ := newTestWorkflow(t, &fakeTracker{}, "")
	w.planner = &fakePlanner{}
	w.generatePlans = true

	err := w.runFromFile(context.Background(), path)
	require.Error(t, err)
	var parseErr *apperrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.Path)
}

func TestRunFromFileMissingFile(t *testing.T) {
	w, _ := newTestWorkflow(t, &fakeTracker{}, "")
	w.planner = &fakePlanner{}

	err := w.runFromFile(context.Background(), filepath.Join(t.TempDir(), "absent.md"))
	require.Error(t, err)
}
