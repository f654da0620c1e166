package graph

import (
	"sort"

	"github.com/albertocavalcante/go-bzlshard/label"
)

// Get returns a copy of the node for a label, or nil if not found.
func (g *Graph) Get(id label.Label) *TargetInfo {
	return g.targets[id].clone()
}

// Contains returns true if the graph contains the given target.
func (g *Graph) Contains(id label.Label) bool {
	_, ok := g.targets[id]
	return ok
}

// IsRoot reports whether id is one of the root targets.
func (g *Graph) IsRoot(id label.Label) bool {
	_, ok := g.rootTargets[id]
	return ok
}

// RootTargets returns the root targets in canonical order.
func (g *Graph) RootTargets() []label.Label {
	out := make([]label.Label, 0, len(g.rootTargets))
	for r := range g.rootTargets {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i], out[j]) })
	return out
}

// Len returns the number of targets in the graph.
func (g *Graph) Len() int {
	return len(g.targets)
}

// DirectDependencies returns the direct dependencies of id that are present in the graph.
func (g *Graph) DirectDependencies(id label.Label) []*TargetInfo {
	node := g.targets[id]
	if node == nil {
		return nil
	}
	var out []*TargetInfo
	for _, dep := range node.Dependencies {
		if info := g.targets[dep]; info != nil {
			out = append(out, info.clone())
		}
	}
	return out
}

// TransitiveDependenciesWithoutRootTargets returns the libraries that target
// id needs beyond its module-to-module edges.
//
// Direct dependencies that are root targets are skipped together with their
// subtrees: they become module dependencies elsewhere. Every other direct
// dependency is included and expanded without restriction, root targets
// included, because the intermediate node has no module to carry its edges.
// The result is ordered by label. An unknown id yields nil.
func (g *Graph) TransitiveDependenciesWithoutRootTargets(id label.Label) []*TargetInfo {
	node := g.targets[id]
	if node == nil {
		return nil
	}

	var stack []label.Label
	for _, dep := range node.Dependencies {
		if !g.IsRoot(dep) {
			stack = append(stack, dep)
		}
	}

	visited := make(map[label.Label]bool)
	result := make(map[label.Label]*TargetInfo)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true

		info := g.targets[current]
		if info == nil {
			continue
		}
		result[current] = info
		for _, dep := range info.Dependencies {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return sortedInfos(result)
}

// AllTargetsAtDepth runs a breadth-first search from all roots at once.
//
// Targets collects every node at distance <= depth (every reachable node when
// depth < 0). DirectDependencies collects nodes adjacent to Targets that the
// bound cut off. Nodes for which alwaysExpand returns true ignore the bound:
// they and their entire closure are added to Targets and never show up in
// DirectDependencies. A nil alwaysExpand never matches.
func (g *Graph) AllTargetsAtDepth(depth int, roots []label.Label, alwaysExpand func(label.Label) bool) TargetsAtDepth {
	if alwaysExpand == nil {
		alwaysExpand = func(label.Label) bool { return false }
	}

	included := make(map[label.Label]*TargetInfo)
	frontier := make(map[label.Label]*TargetInfo)
	expanded := make(map[label.Label]bool)
	seen := make(map[label.Label]bool)

	var level []*TargetInfo
	for _, r := range roots {
		if info := g.targets[r]; info != nil && !seen[r] {
			seen[r] = true
			level = append(level, info)
		}
	}

	for d := 0; len(level) > 0; d++ {
		atBound := depth >= 0 && d >= depth
		var next []*TargetInfo
		for _, node := range level {
			if alwaysExpand(node.ID) {
				g.expandClosure(node.ID, included, expanded, seen)
				continue
			}
			included[node.ID] = node
			for _, dep := range node.Dependencies {
				info := g.targets[dep]
				if info == nil || seen[dep] {
					continue
				}
				switch {
				case alwaysExpand(dep):
					g.expandClosure(dep, included, expanded, seen)
				case atBound:
					frontier[dep] = info
				default:
					seen[dep] = true
					next = append(next, info)
				}
			}
		}
		level = next
	}

	for id := range included {
		delete(frontier, id)
	}
	return TargetsAtDepth{
		Targets:            sortedInfos(included),
		DirectDependencies: sortedInfos(frontier),
	}
}

// expandClosure adds start and everything reachable from it to included.
func (g *Graph) expandClosure(start label.Label, included map[label.Label]*TargetInfo, expanded, seen map[label.Label]bool) {
	stack := []label.Label{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if expanded[current] {
			continue
		}
		expanded[current] = true
		seen[current] = true

		info := g.targets[current]
		if info == nil {
			continue
		}
		included[current] = info
		for _, dep := range info.Dependencies {
			if !expanded[dep] {
				stack = append(stack, dep)
			}
		}
	}
}

// Path finds the shortest dependency path from one target to another.
// Returns nil if no path exists.
func (g *Graph) Path(from, to label.Label) []label.Label {
	if from == to {
		return []label.Label{from}
	}

	type queueItem struct {
		id   label.Label
		path []label.Label
	}

	visited := map[label.Label]bool{from: true}
	queue := []queueItem{{id: from, path: []label.Label{from}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.targets[current.id]
		if node == nil {
			continue
		}

		for _, dep := range node.Dependencies {
			if dep == to {
				return append(current.path, dep)
			}
			if !visited[dep] {
				visited[dep] = true
				newPath := make([]label.Label, len(current.path)+1)
				copy(newPath, current.path)
				newPath[len(current.path)] = dep
				queue = append(queue, queueItem{id: dep, path: newPath})
			}
		}
	}

	return nil
}
