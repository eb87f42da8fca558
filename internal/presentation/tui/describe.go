package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/hsmgrid/pkg/domain"
)

// Describe renders a definition as a markdown summary.
func Describe(name string, def *domain.Definition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", name)
	fmt.Fprintf(&sb, "Initial state: **%s**\n\n", def.Initial)

	if len(def.Ports) > 0 {
		sb.WriteString("## Ports\n\n")
		for _, p := range def.Ports {
			fmt.Fprintf(&sb, "- `%s.%s`\n", name, p.Name)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## States\n\n")
	for _, s := range def.States {
		line := "- " + s.Name
		if s.Parent != "" {
			line += " (in " + s.Parent + ")"
		}
		if s.Initial != "" {
			line += ", starts in " + s.Initial
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")

	if len(def.Transitions) > 0 {
		sb.WriteString("## Transitions\n\n")
		sb.WriteString("| From | Event | To | Actions |\n")
		sb.WriteString("|------|-------|----|---------|\n")
		for _, t := range def.Transitions {
			fmt.Fprintf(&sb, "| %s | `%s` | %s | %s |\n", t.From, t.Event, t.To, actionList(t.Actions))
		}
		sb.WriteString("\n")
	}

	if len(def.Links) > 0 {
		sb.WriteString("## Links\n\n")
		for _, l := range def.Links {
			fmt.Fprintf(&sb, "- %s\n", l.PortLink())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func actionList(actions []domain.ActionDef) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		switch a.Kind {
		case domain.ActionSend:
			parts = append(parts, fmt.Sprintf("send %s!%s", a.Port, a.Action))
		case domain.ActionSchedule:
			parts = append(parts, fmt.Sprintf("schedule %s after %s", a.Event, a.After))
		case domain.ActionCall:
			parts = append(parts, "call "+a.Name)
		}
	}
	return strings.Join(parts, ", ")
}
