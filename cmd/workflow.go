package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/internal/config"
	"github.com/danielolaszy/linear-agent/internal/logging"
	"github.com/danielolaszy/linear-agent/internal/markdown"
	"github.com/danielolaszy/linear-agent/internal/tracker"
	"github.com/danielolaszy/linear-agent/internal/ui"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

// planner is the slice of the Anthropic client the workflow needs.
type planner interface {
	GeneratePlan(ctx context.Context, ticket models.Ticket, model string) (*models.Plan, error)
}

// workflow runs the end-to-end pipeline: list or fetch tickets, enrich,
// write Markdown, optionally generate plans. Tickets are processed
// sequentially; an authentication failure aborts the run, any other
// per-ticket failure is reported and the run continues.
type workflow struct {
	tracker       tracker.Client
	planner       planner
	prompter      *ui.Prompter
	cfg           *config.Config
	ticketsDir    string
	plansDir      string
	generatePlans bool
}

// runInteractive lists matching tickets, lets the user pick, and processes
// the selection in the order it was typed.
func (w *workflow) runInteractive(ctx context.Context) error {
	filter := models.ListFilter{
		Assignee: w.cfg.User,
		Team:     w.cfg.Team,
		States:   w.cfg.States,
	}
	logging.Info("listing tickets", "team", filter.Team, "assignee", filter.Assignee, "states", filter.States)

	tickets, err := w.tracker.ListIssues(ctx, filter)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		w.prompter.Infof("No tickets matched team %q, assignee %q, states %v.", filter.Team, filter.Assignee, filter.States)
		return nil
	}

	indices, err := w.prompter.SelectTickets(tickets)
	if err != nil {
		return err
	}

	var processed, failed int
	for _, i := range indices {
		if err := w.processTicket(ctx, tickets[i]); err != nil {
			if errors.Is(err, apperrors.ErrAuth) {
				return err
			}
			failed++
			w.prompter.Errorf("%s: %v", tickets[i].ID, err)
			continue
		}
		processed++
	}

	w.prompter.Infof("Done: %d processed, %d failed.", processed, failed)
	if failed > 0 {
		return fmt.Errorf("%d ticket(s) failed", failed)
	}
	return nil
}

// runSingle processes one ticket by identifier.
func (w *workflow) runSingle(ctx context.Context, id string) error {
	ticket, err := w.tracker.FetchIssue(ctx, id)
	if err != nil {
		return err
	}
	if err := w.writeTicket(ctx, *ticket); err != nil {
		return err
	}
	w.prompter.Infof("Done: 1 processed, 0 failed.")
	return nil
}

// runFromFile parses a previously saved ticket file and generates a plan for
// it without contacting the tracker.
func (w *workflow) runFromFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return &apperrors.ParseError{Path: path, Message: err.Error()}
	}
	ticket, err := markdown.ParseTicket(string(content))
	if err != nil {
		var parseErr *apperrors.ParseError
		if errors.As(err, &parseErr) && parseErr.Path == "" {
			parseErr.Path = path
		}
		return err
	}

	if err := w.writePlan(ctx, *ticket); err != nil {
		return err
	}
	return nil
}

// processTicket enriches a listed ticket and writes its outputs.
func (w *workflow) processTicket(ctx context.Context, ticket models.Ticket) error {
	enriched, err := w.tracker.Enrich(ctx, ticket)
	if err != nil {
		return err
	}
	return w.writeTicket(ctx, enriched)
}

// writeTicket renders the enriched ticket to the tickets directory and, when
// plan generation is on, writes the plan as well. The ticket file is written
// first so a later plan failure never loses the fetched data.
func (w *workflow) writeTicket(ctx context.Context, ticket models.Ticket) error {
	path := filepath.Join(w.ticketsDir, markdown.Filename(ticket.ID, ticket.Title))
	if err := writeFile(path, markdown.RenderTicket(ticket)); err != nil {
		return err
	}
	w.prompter.Successf("Saved %s", path)

	if !w.generatePlans {
		return nil
	}
	return w.writePlan(ctx, ticket)
}

func (w *workflow) writePlan(ctx context.Context, ticket models.Ticket) error {
	logging.Info("generating plan", "ticket", ticket.ID, "model", w.cfg.Model)
	plan, err := w.planner.GeneratePlan(ctx, ticket, w.cfg.Model)
	if err != nil {
		return err
	}

	path := filepath.Join(w.plansDir, markdown.Filename(ticket.ID, ticket.Title))
	if err := writeFile(path, markdown.RenderPlan(*plan, ticket)); err != nil {
		return err
	}
	w.prompter.Successf("Saved %s", path)
	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
