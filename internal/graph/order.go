package graph

import "sort"

// topoOrder computes a topological ordering over every node using Kahn's
// algorithm. Ready nodes are dequeued in lexicographic ID order so the
// ordering is stable across runs despite map iteration randomness.
//
// If the produced order is shorter than the node set, the remaining
// nodes form at least one cycle and the whole build fails.
func topoOrder(g *Graph) ([]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	successors := make(map[string][]string, len(g.Nodes))
	for id := range g.Nodes {
		indegree[id] = 0
	}
	for _, e := range g.Edges {
		indegree[e.To]++
		successors[e.From] = append(successors[e.From], e.To)
	}

	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var unlocked []string
		for _, succ := range successors[id] {
			indegree[succ]--
			if indegree[succ] == 0 {
				unlocked = append(unlocked, succ)
			}
		}
		if len(unlocked) > 0 {
			sort.Strings(unlocked)
			ready = mergeSorted(ready, unlocked)
		}
	}

	if len(order) != len(g.Nodes) {
		cycle := make([]string, 0, len(g.Nodes)-len(order))
		for id, d := range indegree {
			if d > 0 {
				cycle = append(cycle, id)
			}
		}
		sort.Strings(cycle)
		return nil, &Error{
			Code:    ErrCodeCycle,
			Message: "dependency cycle prevents topological ordering",
			Cycle:   cycle,
		}
	}

	return order, nil
}

// mergeSorted merges two sorted string slices into one sorted slice.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
