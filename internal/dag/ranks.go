package dag

// Edge is a dependency from From to To: To runs after From.
type Edge struct {
	From string
	To   string
}

// Ranks assigns each id its longest-path depth: ids without incoming edges
// are rank 0 and every other id sits one rank below its deepest predecessor.
// Edges naming unknown ids are ignored. Ids caught in a cycle keep the rank
// reached before the cycle.
func Ranks(ids []string, edges []Edge) map[string]int {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	children := make(map[string][]string, len(ids))
	inDegree := make(map[string]int, len(ids))
	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		if !known[e.From] || !known[e.To] || seen[e] {
			continue
		}
		seen[e] = true
		children[e.From] = append(children[e.From], e.To)
		inDegree[e.To]++
	}

	ranks := make(map[string]int, len(ids))
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		ranks[id] = 0
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if r := ranks[cur] + 1; r > ranks[child] {
				ranks[child] = r
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	return ranks
}

// Levels groups ids by rank, keeping the input order inside each level.
func Levels(ids []string, ranks map[string]int) [][]string {
	maxRank := -1
	for _, id := range ids {
		if ranks[id] > maxRank {
			maxRank = ranks[id]
		}
	}
	levels := make([][]string, maxRank+1)
	for _, id := range ids {
		r := ranks[id]
		levels[r] = append(levels[r], id)
	}
	return levels
}
