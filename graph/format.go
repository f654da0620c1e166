package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/albertocavalcante/go-bzlshard/label"
)

// jsonGraph is the JSON document produced by ToJSON.
type jsonGraph struct {
	Roots   []label.Label `json:"roots"`
	Targets []*TargetInfo `json:"targets"`
}

// ToJSON outputs the graph with targets in canonical order.
func (g *Graph) ToJSON() ([]byte, error) {
	return json.MarshalIndent(jsonGraph{
		Roots:   g.RootTargets(),
		Targets: sortedInfos(g.targets),
	}, "", "  ")
}

// ToDOT outputs the graph in Graphviz DOT format.
// Root targets are drawn bold; edges to targets outside the graph are dashed.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph targets {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	nodes := sortedInfos(g.targets)
	for _, node := range nodes {
		attrs := fmt.Sprintf("label=%q", node.ID.String())
		if g.IsRoot(node.ID) {
			attrs += ", style=bold"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", node.ID.String(), attrs)
	}
	buf.WriteString("\n")

	for _, node := range nodes {
		for _, dep := range node.Dependencies {
			if g.Contains(dep) {
				fmt.Fprintf(&buf, "  %q -> %q;\n", node.ID.String(), dep.String())
			} else {
				fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", node.ID.String(), dep.String())
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}
