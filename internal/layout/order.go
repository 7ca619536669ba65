package layout

import "sort"

// order groups nodes by rank and orders each rank. Rank 0 is sorted by
// label (then id). Every later rank is stably sorted by the mean column of
// its parents in the previous rank; a node with no such parent weighs 0.
func (g *layered) order() [][]string {
	maxRank := 0
	for _, r := range g.rank {
		if r > maxRank {
			maxRank = r
		}
	}

	columns := make([][]string, maxRank+1)
	for _, id := range g.ids {
		r := g.rank[id]
		columns[r] = append(columns[r], id)
	}

	sort.SliceStable(columns[0], func(i, j int) bool {
		a, b := columns[0][i], columns[0][j]
		if g.labels[a] != g.labels[b] {
			return g.labels[a] < g.labels[b]
		}
		return a < b
	})

	for r := 1; r < len(columns); r++ {
		prev := make(map[string]int, len(columns[r-1]))
		for col, id := range columns[r-1] {
			prev[id] = col
		}

		weight := make(map[string]float64, len(columns[r]))
		for _, id := range columns[r] {
			weight[id] = barycenter(g.in[id], prev)
		}
		sort.SliceStable(columns[r], func(i, j int) bool {
			return weight[columns[r][i]] < weight[columns[r][j]]
		})
	}
	return columns
}

// barycenter is the mean column of the parents placed in the previous rank.
func barycenter(parents []string, prev map[string]int) float64 {
	sum, n := 0, 0
	for _, p := range parents {
		if col, ok := prev[p]; ok {
			sum += col
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
