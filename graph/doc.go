// Package graph provides an in-memory Bazel target dependency graph and the
// closure queries used to compute a target's effective library set.
//
// A Graph is built once from a flat list of TargetInfos and is read-only
// afterwards, so it is safe for concurrent queries. Nodes returned by queries
// are copies; modifying them does not affect the graph.
//
// # Building a Graph
//
//	g := graph.New(rootTargets, targetInfos)
//
// Root targets are the labels that become independently resolved modules.
// Dependencies that reference labels absent from the graph are treated as
// leaves.
//
// # Querying the Graph
//
//	// Libraries a module needs, skipping edges that become module-to-module deps
//	libs := g.TransitiveDependenciesWithoutRootTargets(id)
//
//	// Everything within two hops of the roots, external repos fully expanded
//	res := g.AllTargetsAtDepth(2, roots, graph.IsExternal)
//
//	// Shortest dependency path between two targets
//	path := g.Path(from, to)
//
// # Output Formats
//
//	jsonBytes, _ := g.ToJSON()
//	dotString := g.ToDOT()
package graph
