package graph

import "fmt"

// CycleError reports a cycle detected while validating a dependency
// graph supplied at runtime (e.g. from a custom agent plugin set).
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: dependency cycle detected at %q", e.Node)
}

// TopologicalSort orders nodes such that every dependency of a node
// appears before it, using Kahn's algorithm. edges maps a node to the
// nodes it depends on (must run before it). The static Sequence above
// is already topologically valid; this exists for validating
// alternate or plugin-supplied agent sets at startup.
func TopologicalSort(nodes []string, dependsOn map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		inDegree[n] = 0
	}
	for _, n := range nodes {
		for _, dep := range dependsOn[n] {
			inDegree[n]++
			dependents[dep] = append(dependents[dep], n)
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dependent := range dependents[n] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(nodes) {
		for _, n := range nodes {
			if inDegree[n] > 0 {
				return nil, &CycleError{Node: n}
			}
		}
		return nil, &CycleError{Node: "unknown"}
	}
	return order, nil
}
