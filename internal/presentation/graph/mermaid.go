package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Overlay marks anchors to highlight on the graph.
type Overlay struct {
	Visited []domain.ID
	Current domain.ID
}

// GenerateMermaid produces a Mermaid flowchart from stored anchor records.
// Node records become vertices and edge records become links; walkers and
// objects are not part of the graph and are left out. Shapes:
// - Root: ((Circle))
// - Other nodes: [Rectangle]
// Undirected edges are drawn without an arrow head.
func GenerateMermaid(records []*domain.Record, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var nodes, edges []*domain.Record
	for _, rec := range records {
		switch rec.Kind {
		case domain.KindNode:
			nodes = append(nodes, rec)
		case domain.KindEdge:
			edges = append(edges, rec)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	for _, n := range nodes {
		opener, closer := "[", "]"
		if n.Type == domain.RootType {
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", mermaidID(n.ID), opener, label(n), closer))
	}

	for _, e := range edges {
		if e.Source.IsZero() || e.Target.IsZero() {
			continue
		}
		arrow := "-->"
		if e.Undirected {
			arrow = "---"
		}
		if e.Type != domain.GenericEdgeType {
			arrow = fmt.Sprintf("%s|%s|", arrow, escape(e.Type))
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", mermaidID(e.Source), arrow, mermaidID(e.Target)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.ID]bool)
		for _, id := range overlay.Visited {
			if !seen[id] && !id.IsZero() {
				seen[id] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", mermaidID(id)))
			}
		}
		if !overlay.Current.IsZero() {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", mermaidID(overlay.Current)))
		}
	}

	return sb.String()
}

// label prefers a "name" field and falls back to the type and a short id.
func label(rec *domain.Record) string {
	if name, ok := rec.Fields["name"].(string); ok && name != "" {
		return escape(name)
	}
	id := string(rec.ID)
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return fmt.Sprintf("%s %s", escape(rec.Type), id)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func mermaidID(id domain.ID) string {
	return "a_" + strings.ReplaceAll(string(id), "-", "_")
}
