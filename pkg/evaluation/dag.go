package evaluation

import (
	"fmt"
)

// startNode is the synthetic root every dependency-free criterion hangs off.
const startNode = "__start__"

// node is one compiled DAG vertex.
type node struct {
	criterion *Criterion
	preds     []string
	succs     []string
}

// dag is the compiled form of a suite.
type dag struct {
	nodes map[string]*node
}

// compile derives the dependency graph: START → every root criterion,
// dep → criterion for each declared dependency. Cycles are rejected here,
// before anything executes.
func compile(s *Suite) (*dag, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	d := &dag{nodes: make(map[string]*node, len(s.Criteria)+1)}
	d.nodes[startNode] = &node{}

	for _, c := range s.Criteria {
		d.nodes[c.Name] = &node{criterion: c}
	}
	for _, c := range s.Criteria {
		n := d.nodes[c.Name]
		if len(c.DependsOn) == 0 {
			n.preds = []string{startNode}
			d.nodes[startNode].succs = append(d.nodes[startNode].succs, c.Name)
			continue
		}
		for _, dep := range c.DependsOn {
			n.preds = append(n.preds, dep)
			d.nodes[dep].succs = append(d.nodes[dep].succs, c.Name)
		}
	}

	if cycle := d.findCycle(); cycle != "" {
		return nil, fmt.Errorf("suite '%s' has a dependency cycle through '%s'", s.ID, cycle)
	}
	return d, nil
}

// findCycle runs a three-color DFS and returns a node on a cycle, or "".
func (d *dag) findCycle() string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(d.nodes))

	var visit func(name string) string
	visit = func(name string) string {
		color[name] = gray
		for _, succ := range d.nodes[name].succs {
			switch color[succ] {
			case gray:
				return succ
			case white:
				if hit := visit(succ); hit != "" {
					return hit
				}
			}
		}
		color[name] = black
		return ""
	}

	for name := range d.nodes {
		if color[name] == white {
			if hit := visit(name); hit != "" {
				return hit
			}
		}
	}
	return ""
}
