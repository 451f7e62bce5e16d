package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/internal/config"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

func sampleTickets() []models.Ticket {
	return []models.Ticket{
		{ID: "LIN-1", Title: "First", State: "Open", CreatedAt: time.Now()},
		{ID: "LIN-2", Title: "Second", State: "Open", CreatedAt: time.Now()},
		{ID: "LIN-3", Title: "Third", State: "In Progress", CreatedAt: time.Now()},
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		count    int
		want     []int
		wantErrs int
	}{
		{name: "single", input: "2", count: 3, want: []int{1}},
		{name: "comma separated", input: "1,3", count: 3, want: []int{0, 2}},
		{name: "spaces tolerated", input: " 1 , 2 ", count: 3, want: []int{0, 1}},
		{name: "all", input: "all", count: 3, want: []int{0, 1, 2}},
		{name: "all uppercase", input: "ALL", count: 2, want: []int{0, 1}},
		{name: "duplicates collapsed", input: "2,2,1", count: 3, want: []int{1, 0}},
		{name: "out of range", input: "4", count: 3, want: nil, wantErrs: 1},
		{name: "zero", input: "0", count: 3, want: nil, wantErrs: 1},
		{name: "not a number", input: "two", count: 3, want: nil, wantErrs: 1},
		{name: "mixed valid and invalid", input: "1,nope,3", count: 3, want: []int{0, 2}, wantErrs: 1},
		{name: "empty", input: "", count: 3, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := ParseSelection(tt.input, tt.count)
			assert.Equal(t, tt.want, got)
			assert.Len(t, errs, tt.wantErrs)
			for _, err := range errs {
				var inputErr *apperrors.InputError
				assert.ErrorAs(t, err, &inputErr)
			}
		})
	}
}

func TestSelectTicketsRetriesUntilValid(t *testing.T) {
	in := strings.NewReader("nope\n1,3\n")
	var out bytes.Buffer
	prompter := NewPrompter(in, &out)

	indices, err := prompter.SelectTickets(sampleTickets())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, indices)
	assert.Contains(t, out.String(), "LIN-2")
	assert.Contains(t, out.String(), "not a number")
}

func TestSelectTicketsInputClosed(t *testing.T) {
	in := strings.NewReader("")
	var out bytes.Buffer
	prompter := NewPrompter(in, &out)

	_, err := prompter.SelectTickets(sampleTickets())
	require.Error(t, err)
	var inputErr *apperrors.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestRunSetupWizard(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	in := strings.NewReader("lin_key\nant_key\nPlatform\nagent@example.com\nOpen,Blocked\n\n")
	var out bytes.Buffer
	prompter := NewPrompter(in, &out)

	cfg := &config.Config{Model: "claude-3-7-sonnet-20250219"}
	require.NoError(t, prompter.RunSetupWizard(cfg, path))

	assert.Equal(t, "lin_key", cfg.LinearAPIKey)
	assert.Equal(t, "Platform", cfg.Team)
	assert.Equal(t, []string{"Open", "Blocked"}, cfg.States)
	// Blank answer keeps the default.
	assert.Equal(t, "claude-3-7-sonnet-20250219", cfg.Model)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "LINEAR_API_KEY=lin_key")
	assert.Contains(t, string(saved), "ANTHROPIC_MODEL=claude-3-7-sonnet-20250219")
}
