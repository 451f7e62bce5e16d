package anthropic

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/linear-agent/pkg/models"
)

const planPromptHeader = `You are a software engineering expert helping to create implementation plans for software development tickets.

I'm going to provide you with a ticket from our project management system. Based on the ticket details,
generate a detailed implementation plan. The plan should include:

1. An overview of the task
2. Technical requirements and considerations
3. Step-by-step implementation approach
4. Potential challenges and solutions
5. Testing strategy
6. Estimated effort (in hours or story points)

Here's the ticket information:

`

// buildPlanPrompt embeds the full enriched ticket into the fixed prompt
// template.
func buildPlanPrompt(ticket models.Ticket) string {
	var b strings.Builder
	b.WriteString(planPromptHeader)

	fmt.Fprintf(&b, "Title: %s\n", ticket.Title)
	fmt.Fprintf(&b, "Description: %s\n", ticket.Description)
	fmt.Fprintf(&b, "Priority: %d\n", ticket.Priority)
	fmt.Fprintf(&b, "Estimate: %s\n", formatEstimate(ticket.Estimate))
	fmt.Fprintf(&b, "State: %s\n", ticket.State)
	fmt.Fprintf(&b, "Labels: %s\n", formatLabels(ticket.Labels))
	fmt.Fprintf(&b, "Created: %s\n", ticket.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Updated: %s\n\n", ticket.UpdatedAt.Format("2006-01-02"))

	b.WriteString("Comments:\n")
	if len(ticket.Comments) == 0 {
		b.WriteString("No comments\n")
	} else {
		for _, comment := range ticket.Comments {
			author := comment.Author
			if author == "" {
				author = "Unknown"
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", author, comment.CreatedAt.Format("2006-01-02"), comment.Body)
		}
	}
	b.WriteString("\n")

	if ticket.Parent != nil {
		fmt.Fprintf(&b, "Parent Ticket: %s (State: %s)\n\n", ticket.Parent.Title, ticket.Parent.State)
	} else {
		b.WriteString("No parent ticket\n\n")
	}

	b.WriteString("Child Tickets:\n")
	if len(ticket.Children) == 0 {
		b.WriteString("No child tickets\n")
	} else {
		for _, child := range ticket.Children {
			fmt.Fprintf(&b, "- %s (State: %s)\n", child.Title, child.State)
		}
	}
	b.WriteString("\n")

	b.WriteString("Related Tickets:\n")
	if len(ticket.Related) == 0 {
		b.WriteString("No related tickets\n")
	} else {
		for _, related := range ticket.Related {
			assignee := related.Assignee
			if assignee == "" {
				assignee = "Unassigned"
			}
			fmt.Fprintf(&b, "- %s (State: %s, Assignee: %s)\n", related.Title, related.State, assignee)
		}
	}
	b.WriteString("\n")

	b.WriteString("Please provide a detailed implementation plan for this ticket.")
	return b.String()
}

func formatEstimate(estimate *float64) string {
	if estimate == nil {
		return "Not estimated"
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", *estimate), "0"), ".")
}

func formatLabels(labels []string) string {
	if len(labels) == 0 {
		return "None"
	}
	return strings.Join(labels, ", ")
}
