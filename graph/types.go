package graph

import (
	"sort"

	"github.com/albertocavalcante/go-bzlshard/label"
)

// Graph is a frozen adjacency structure over target infos.
type Graph struct {
	// rootTargets are the targets that become their own modules.
	rootTargets map[label.Label]struct{}

	// targets contains all nodes in the graph, keyed by label.
	targets map[label.Label]*TargetInfo
}

// TargetInfo is a node in the dependency graph.
type TargetInfo struct {
	// ID uniquely identifies the target.
	ID label.Label `json:"id"`

	// Kind is the rule class, e.g. "java_library".
	Kind string `json:"kind,omitempty"`

	// Dependencies are the direct dependencies. They may reference targets
	// that are not part of the graph.
	Dependencies []label.Label `json:"dependencies,omitempty"`

	// Sources are the source files of the target.
	Sources []string `json:"sources,omitempty"`

	// Tags are the rule's tags attribute.
	Tags []string `json:"tags,omitempty"`
}

// clone returns a deep copy of t. A nil t yields nil.
func (t *TargetInfo) clone() *TargetInfo {
	if t == nil {
		return nil
	}
	return &TargetInfo{
		ID:           t.ID,
		Kind:         t.Kind,
		Dependencies: append([]label.Label(nil), t.Dependencies...),
		Sources:      append([]string(nil), t.Sources...),
		Tags:         append([]string(nil), t.Tags...),
	}
}

// TargetsAtDepth is the result of a depth-bounded reachability query.
type TargetsAtDepth struct {
	// Targets are the nodes within the depth bound, plus the full closure of
	// every always-expanded node.
	Targets []*TargetInfo

	// DirectDependencies are neighbors of Targets that the depth bound cut off.
	DirectDependencies []*TargetInfo
}

// IDs returns the labels of the included targets.
func (t TargetsAtDepth) IDs() []label.Label {
	return ids(t.Targets)
}

// DirectDependencyIDs returns the labels of the frontier.
func (t TargetsAtDepth) DirectDependencyIDs() []label.Label {
	return ids(t.DirectDependencies)
}

// IsExternal reports whether a label lives outside the main repository.
// It is the usual predicate for AllTargetsAtDepth.
func IsExternal(l label.Label) bool {
	return !l.IsMainRepo()
}

func ids(infos []*TargetInfo) []label.Label {
	out := make([]label.Label, len(infos))
	for i, info := range infos {
		out[i] = info.ID
	}
	return out
}

// sortedInfos returns copies of the values of m ordered by label.
func sortedInfos(m map[label.Label]*TargetInfo) []*TargetInfo {
	out := make([]*TargetInfo, 0, len(m))
	for _, info := range m {
		out = append(out, info.clone())
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i].ID, out[j].ID) })
	return out
}
