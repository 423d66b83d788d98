// Package gc decides what to evict, when, and why. The engine never
// mutates the segment store directly: it computes reachability, scores
// candidates, and returns pruning plans for the store to execute.
package gc

// Graph is a directed reference graph between segment ids, stored as
// adjacency sets keyed by id. It records "derived from" and topical
// links and is used only for reachability; it is not an ownership
// relation, so a node with zero in-edges is still a valid segment.
type Graph struct {
	out map[string]map[string]struct{}
	in  map[string]map[string]struct{}
}

// NewGraph creates an empty reference graph.
func NewGraph() *Graph {
	return &Graph{
		out: make(map[string]map[string]struct{}),
		in:  make(map[string]map[string]struct{}),
	}
}

// AddEdge records a directed reference from -> to. Self-loops and
// duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	if from == to {
		return
	}
	addAdj(g.out, from, to)
	addAdj(g.in, to, from)
}

// RemoveNode drops the node and every edge touching it.
func (g *Graph) RemoveNode(id string) {
	for to := range g.out[id] {
		delete(g.in[to], id)
		if len(g.in[to]) == 0 {
			delete(g.in, to)
		}
	}
	for from := range g.in[id] {
		delete(g.out[from], id)
		if len(g.out[from]) == 0 {
			delete(g.out, from)
		}
	}
	delete(g.out, id)
	delete(g.in, id)
}

// InDegree returns the number of references pointing at id.
func (g *Graph) InDegree(id string) int {
	return len(g.in[id])
}

// Reachable computes the transitive closure of the graph from the
// given roots. BFS with a visited set, O(V+E), terminates on cyclic
// graphs. The result always contains the roots themselves.
func (g *Graph) Reachable(roots []string) map[string]struct{} {
	visited := make(map[string]struct{}, len(roots))
	queue := make([]string, 0, len(roots))

	for _, r := range roots {
		if _, ok := visited[r]; ok {
			continue
		}
		visited[r] = struct{}{}
		queue = append(queue, r)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for next := range g.out[id] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return visited
}

func addAdj(adj map[string]map[string]struct{}, key, val string) {
	set, ok := adj[key]
	if !ok {
		set = make(map[string]struct{})
		adj[key] = set
	}
	set[val] = struct{}{}
}
