// Package graph renders machine definitions and grid topologies as Mermaid
// flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// GraphOverlay carries the runtime state to highlight on a statechart.
type GraphOverlay struct {
	// Configuration lists the active states from the outermost to the leaf.
	Configuration []string
}

// GenerateMermaid produces a Mermaid flowchart of a definition. Composite
// states become subgraphs, the initial state is drawn as a circle and
// transitions are labelled with their event, followed by the port actions
// they send.
func GenerateMermaid(def *domain.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	children := make(map[string][]domain.StateDef)
	for _, s := range def.States {
		children[s.Parent] = append(children[s.Parent], s)
	}
	writeStates(&sb, def, children, "", 1)

	for _, t := range def.Transitions {
		label := t.Event
		for _, a := range t.Actions {
			if a.Kind == domain.ActionSend {
				label += fmt.Sprintf(" / %s!%s", a.Port, a.Action)
			}
		}
		label = strings.ReplaceAll(label, "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", sanitizeMermaidID(t.From), label, sanitizeMermaidID(t.To)))
	}

	if overlay != nil && len(overlay.Configuration) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef active fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		last := len(overlay.Configuration) - 1
		for i, name := range overlay.Configuration {
			class := "active"
			if i == last {
				class = "current"
			}
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", sanitizeMermaidID(name), class))
		}
	}

	return sb.String()
}

func writeStates(sb *strings.Builder, def *domain.Definition, children map[string][]domain.StateDef, parent string, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, s := range children[parent] {
		safeID := sanitizeMermaidID(s.Name)
		if len(children[s.Name]) > 0 {
			sb.WriteString(fmt.Sprintf("%ssubgraph %s[\"%s\"]\n", indent, safeID, s.Name))
			writeStates(sb, def, children, s.Name, depth+1)
			sb.WriteString(indent + "end\n")
			continue
		}

		opener, closer := "[", "]"
		if isInitial(def, s) {
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("%s%s%s\"%s\"%s\n", indent, safeID, opener, s.Name, closer))
	}
}

// isInitial reports whether s is entered by default from its parent.
func isInitial(def *domain.Definition, s domain.StateDef) bool {
	if s.Parent == "" {
		return def.Initial == s.Name
	}
	parent, ok := def.State(s.Parent)
	return ok && parent.Initial == s.Name
}

// GenerateTopology produces a Mermaid flowchart of the grid: one node per
// machine and one edge per resolved source port, labelled "out → in".
func GenerateTopology(machines []ports.Machine, resolver ports.PortNetwork) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, m := range machines {
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", sanitizeMermaidID(m.Name()), m.Name()))
	}
	for _, m := range machines {
		for _, p := range m.Ports() {
			for _, src := range resolver.ResolveSourcePorts(m.Name(), p.Name) {
				sb.WriteString(fmt.Sprintf("    %s -- \"%s → %s\" --> %s\n",
					sanitizeMermaidID(src.Owner), src.Name, p.Name, sanitizeMermaidID(m.Name())))
			}
		}
	}
	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
