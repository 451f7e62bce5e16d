// Package ui implements the interactive terminal surface: the ticket list,
// the selection prompt, and the first-run setup wizard.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/internal/config"
	"github.com/danielolaszy/linear-agent/internal/markdown"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7aa2f7"))

	styleID = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#e0af68"))

	styleMuted = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89"))

	styleSuccess = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ece6a"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f7768e"))
)

// Prompter reads user input from in and writes prompts and output to out.
// Both are injectable so tests can script a session.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// DisplayTickets prints the numbered ticket list users pick from.
func (p *Prompter) DisplayTickets(tickets []models.Ticket) {
	fmt.Fprintln(p.out, styleTitle.Render(fmt.Sprintf("Found %d ticket(s):", len(tickets))))
	fmt.Fprintln(p.out)
	for i, ticket := range tickets {
		line := fmt.Sprintf("  %2d. %s %s", i+1, styleID.Render(ticket.ID), ticket.Title)
		fmt.Fprintln(p.out, line)
		fmt.Fprintln(p.out, styleMuted.Render(fmt.Sprintf("      %s | Priority %d | Estimate %s",
			ticket.State, ticket.Priority, markdown.FormatEstimate(ticket.Estimate))))
	}
	fmt.Fprintln(p.out)
}

// SelectTickets displays the list and prompts until the user enters a valid
// selection. It returns zero-based indices into tickets.
func (p *Prompter) SelectTickets(tickets []models.Ticket) ([]int, error) {
	p.DisplayTickets(tickets)

	for {
		fmt.Fprint(p.out, "Select tickets to process (e.g. 1,3 or all): ")
		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			return nil, &apperrors.InputError{Token: "", Reason: "input closed before a selection was made"}
		}

		indices, errs := ParseSelection(strings.TrimSpace(line), len(tickets))
		for _, selErr := range errs {
			fmt.Fprintln(p.out, styleError.Render(selErr.Error()))
		}
		if len(errs) == 0 && len(indices) > 0 {
			return indices, nil
		}
		if len(errs) == 0 {
			fmt.Fprintln(p.out, styleError.Render("nothing selected"))
		}
	}
}

// ParseSelection parses a selection expression against a list of count
// items. "all" selects everything; otherwise the input is comma-separated
// one-based indices. The returned indices are zero-based, deduplicated, and
// keep the order the user typed them in. Invalid tokens are reported but do
// not hide valid ones.
func ParseSelection(input string, count int) ([]int, []error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "all") {
		indices := make([]int, count)
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	var indices []int
	var errs []error
	seen := make(map[int]bool)
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			errs = append(errs, &apperrors.InputError{Token: token, Reason: "not a number"})
			continue
		}
		if n < 1 || n > count {
			errs = append(errs, &apperrors.InputError{Token: token, Reason: fmt.Sprintf("out of range 1-%d", count)})
			continue
		}
		if !seen[n-1] {
			seen[n-1] = true
			indices = append(indices, n-1)
		}
	}
	return indices, errs
}

// Successf prints a highlighted success line.
func (p *Prompter) Successf(format string, args ...any) {
	fmt.Fprintln(p.out, styleSuccess.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints a highlighted error line.
func (p *Prompter) Errorf(format string, args ...any) {
	fmt.Fprintln(p.out, styleError.Render(fmt.Sprintf(format, args...)))
}

// Infof prints a plain informational line.
func (p *Prompter) Infof(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// ask prompts for a single value, returning def when the user just presses
// enter.
func (p *Prompter) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", &apperrors.InputError{Token: "", Reason: "input closed during setup"}
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return def, nil
	}
	return value, nil
}

// RunSetupWizard walks through every configurable value and writes the
// result to path. Existing values from cfg are offered as defaults, so
// re-running the wizard edits the current configuration instead of starting
// over.
func (p *Prompter) RunSetupWizard(cfg *config.Config, path string) error {
	fmt.Fprintln(p.out, styleTitle.Render("Setup"))
	fmt.Fprintln(p.out, styleMuted.Render(fmt.Sprintf("Values are saved to %s. Press enter to keep the shown default.", path)))
	fmt.Fprintln(p.out)

	var err error
	if cfg.LinearAPIKey, err = p.ask("Linear API key", cfg.LinearAPIKey); err != nil {
		return err
	}
	if cfg.AnthropicAPIKey, err = p.ask("Anthropic API key", cfg.AnthropicAPIKey); err != nil {
		return err
	}
	if cfg.Team, err = p.ask("Team name", cfg.Team); err != nil {
		return err
	}
	if cfg.User, err = p.ask("Agent user (assignee filter, blank for all)", cfg.User); err != nil {
		return err
	}
	states, err := p.ask("Workflow states (comma-separated)", strings.Join(cfg.States, ","))
	if err != nil {
		return err
	}
	cfg.States = config.SplitStates(states)
	if cfg.Model, err = p.ask("Anthropic model", cfg.Model); err != nil {
		return err
	}

	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save configuration: %v", err)
	}
	p.Successf("Configuration saved to %s", path)
	return nil
}
