// Package markdown renders enriched tickets and implementation plans as
// deterministic Markdown documents, and parses ticket documents back.
//
// The ticket format doubles as a serialization format: a saved ticket file
// can be re-parsed later to regenerate a plan without re-contacting the
// tracker. Because of that, rendering is total: every field has a defined
// textual representation including the empty case ("Not estimated", "None"),
// and ParseTicket is the strict inverse of RenderTicket.
package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

const (
	ticketHeader = "# Ticket: "
	planHeader   = "# Implementation Plan: "

	sectionDescription = "## Description"
	sectionComments    = "## Comments"
	sectionRelated     = "## Related Tickets"
	sectionChildren    = "## Child Tickets"

	noEstimate = "Not estimated"
	noItems    = "None"

	dateFormat = "2006-01-02"

	// maxSlugLength bounds the title part of derived filenames so the full
	// name stays well under filesystem path-length limits on every platform.
	maxSlugLength = 50
)

var (
	slugPattern      = regexp.MustCompile(`[^A-Za-z0-9]+`)
	commentPattern   = regexp.MustCompile(`^- (.*?) \((\d{4}-\d{2}-\d{2})\): (.*)$`)
	referencePattern = regexp.MustCompile(`^- (\S+): (.*)$`)
	statePattern     = regexp.MustCompile(`^(.*) \(State: (.*)\)$`)
)

// metadataKeys lists the metadata block lines in their required order.
var metadataKeys = []string{
	"**Ticket ID:**",
	"**State:**",
	"**Priority:**",
	"**Estimate:**",
	"**URL:**",
	"**Labels:**",
}

// RenderTicket serializes an enriched ticket. Calling it twice on the same
// ticket yields byte-identical output.
func RenderTicket(ticket models.Ticket) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s%s\n\n", ticketHeader, ticket.Title)
	writeMetadata(&b, ticket)
	fmt.Fprintf(&b, "**Labels:** %s\n", formatLabels(ticket.Labels))

	fmt.Fprintf(&b, "\n%s\n\n%s\n", sectionDescription, ticket.Description)

	fmt.Fprintf(&b, "\n%s\n\n", sectionComments)
	if len(ticket.Comments) == 0 {
		b.WriteString(noItems + "\n")
	} else {
		for _, comment := range ticket.Comments {
			author := comment.Author
			if author == "" {
				author = "Unknown"
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", author, comment.CreatedAt.Format(dateFormat), flatten(comment.Body))
		}
	}

	writeReferenceSection(&b, sectionRelated, ticket.Related)
	writeReferenceSection(&b, sectionChildren, ticket.Children)

	return b.String()
}

// RenderPlan serializes an implementation plan together with the metadata of
// its originating ticket.
func RenderPlan(plan models.Plan, ticket models.Ticket) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s%s\n\n", planHeader, ticket.Title)
	writeMetadata(&b, ticket)
	fmt.Fprintf(&b, "\n---\n\n%s\n", plan.Body)

	return b.String()
}

func writeMetadata(b *strings.Builder, ticket models.Ticket) {
	fmt.Fprintf(b, "**Ticket ID:** %s\n", ticket.ID)
	fmt.Fprintf(b, "**State:** %s\n", ticket.State)
	fmt.Fprintf(b, "**Priority:** %d\n", ticket.Priority)
	fmt.Fprintf(b, "**Estimate:** %s\n", FormatEstimate(ticket.Estimate))
	fmt.Fprintf(b, "**URL:** %s\n", ticket.URL)
}

func writeReferenceSection(b *strings.Builder, header string, references []models.RelatedTicket) {
	fmt.Fprintf(b, "\n%s\n\n", header)
	if len(references) == 0 {
		b.WriteString(noItems + "\n")
		return
	}
	for _, reference := range references {
		fmt.Fprintf(b, "- %s: %s (State: %s)\n", reference.ID, flatten(reference.Title), reference.State)
	}
}

// FormatEstimate renders an optional estimate, using an explicit marker for
// the absent case so the line is never omitted.
func FormatEstimate(estimate *float64) string {
	if estimate == nil {
		return noEstimate
	}
	return strconv.FormatFloat(*estimate, 'f', -1, 64)
}

func formatLabels(labels []string) string {
	if len(labels) == 0 {
		return noItems
	}
	return strings.Join(labels, ", ")
}

// flatten collapses newlines so list items stay on a single line, keeping
// the document parseable.
func flatten(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}

// Filename derives the deterministic file name for a ticket: the identifier
// followed by a slug of the title, truncated to a bounded length. Two
// tickets with the same identifier map to the same name; the caller
// overwrites in that case.
func Filename(id, title string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(title, "_"), "_")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "_")
	}
	if slug == "" {
		return id + ".md"
	}
	return fmt.Sprintf("%s-%s.md", id, slug)
}

// ParseTicket parses a document produced by RenderTicket back into a ticket.
// A missing section, metadata line out of order, or unparseable list item
// yields a ParseError.
func ParseTicket(content string) (*models.Ticket, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], ticketHeader) {
		return nil, &apperrors.ParseError{Message: fmt.Sprintf("first line must start with %q", ticketHeader)}
	}

	ticket := &models.Ticket{
		Title: strings.TrimPrefix(lines[0], ticketHeader),
	}

	i := 1
	var err error
	if i, err = parseMetadata(lines, i, ticket); err != nil {
		return nil, err
	}

	var description []string
	if i, err = collectSection(lines, i, sectionDescription, sectionComments, &description); err != nil {
		return nil, err
	}
	ticket.Description = strings.Join(trimBlankEdges(description), "\n")

	var commentLines []string
	if i, err = collectSection(lines, i, sectionComments, sectionRelated, &commentLines); err != nil {
		return nil, err
	}
	if ticket.Comments, err = parseComments(commentLines); err != nil {
		return nil, err
	}

	var relatedLines []string
	if i, err = collectSection(lines, i, sectionRelated, sectionChildren, &relatedLines); err != nil {
		return nil, err
	}
	if ticket.Related, err = parseReferences(relatedLines); err != nil {
		return nil, err
	}

	var childLines []string
	if _, err = collectSection(lines, i, sectionChildren, "", &childLines); err != nil {
		return nil, err
	}
	if ticket.Children, err = parseReferences(childLines); err != nil {
		return nil, err
	}

	return ticket, nil
}

// parseMetadata consumes the metadata block, requiring every key in its
// fixed order.
func parseMetadata(lines []string, start int, ticket *models.Ticket) (int, error) {
	i := start
	for _, key := range metadataKeys {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) || !strings.HasPrefix(lines[i], key) {
			return 0, &apperrors.ParseError{Message: fmt.Sprintf("expected metadata line %q", key)}
		}
		value := strings.TrimSpace(strings.TrimPrefix(lines[i], key))
		if err := setMetadata(ticket, key, value); err != nil {
			return 0, err
		}
		i++
	}
	return i, nil
}

func setMetadata(ticket *models.Ticket, key, value string) error {
	switch key {
	case "**Ticket ID:**":
		ticket.ID = value
	case "**State:**":
		ticket.State = value
	case "**Priority:**":
		priority, err := strconv.Atoi(value)
		if err != nil {
			return &apperrors.ParseError{Message: fmt.Sprintf("invalid priority %q", value)}
		}
		ticket.Priority = priority
	case "**Estimate:**":
		if value == noEstimate {
			ticket.Estimate = nil
			break
		}
		estimate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &apperrors.ParseError{Message: fmt.Sprintf("invalid estimate %q", value)}
		}
		ticket.Estimate = &estimate
	case "**URL:**":
		ticket.URL = value
	case "**Labels:**":
		if value != noItems && value != "" {
			ticket.Labels = strings.Split(value, ", ")
		}
	}
	return nil
}

// collectSection consumes the header line for section, then accumulates
// lines until the next section header (or EOF when next is empty).
func collectSection(lines []string, start int, section, next string, out *[]string) (int, error) {
	i := start
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) || strings.TrimSpace(lines[i]) != section {
		return 0, &apperrors.ParseError{Message: fmt.Sprintf("missing section %q", section)}
	}
	i++

	for i < len(lines) {
		line := lines[i]
		if next != "" && strings.TrimSpace(line) == next {
			return i, nil
		}
		if next == "" && strings.HasPrefix(strings.TrimSpace(line), "## ") {
			return i, nil
		}
		*out = append(*out, line)
		i++
	}
	if next != "" {
		return 0, &apperrors.ParseError{Message: fmt.Sprintf("missing section %q", next)}
	}
	return i, nil
}

func parseComments(lines []string) ([]models.Comment, error) {
	var comments []models.Comment
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == noItems {
			continue
		}
		match := commentPattern.FindStringSubmatch(trimmed)
		if match == nil {
			return nil, &apperrors.ParseError{Message: fmt.Sprintf("unparseable comment line %q", trimmed)}
		}
		createdAt, err := time.Parse(dateFormat, match[2])
		if err != nil {
			return nil, &apperrors.ParseError{Message: fmt.Sprintf("invalid comment date %q", match[2])}
		}
		comments = append(comments, models.Comment{
			Author:    match[1],
			CreatedAt: createdAt,
			Body:      match[3],
		})
	}
	return comments, nil
}

func parseReferences(lines []string) ([]models.RelatedTicket, error) {
	var references []models.RelatedTicket
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == noItems {
			continue
		}
		match := referencePattern.FindStringSubmatch(trimmed)
		if match == nil {
			return nil, &apperrors.ParseError{Message: fmt.Sprintf("unparseable ticket reference %q", trimmed)}
		}
		reference := models.RelatedTicket{
			ID:    match[1],
			Title: match[2],
		}
		if stateMatch := statePattern.FindStringSubmatch(reference.Title); stateMatch != nil {
			reference.Title = stateMatch[1]
			reference.State = stateMatch[2]
		}
		references = append(references, reference)
	}
	return references, nil
}

// trimBlankEdges drops leading and trailing blank lines, keeping interior
// blank lines intact.
func trimBlankEdges(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
