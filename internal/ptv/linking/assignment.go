package linking

import "math"

// minCostAssignment solves the rectangular assignment problem for a
// rows×cols cost matrix with the Kuhn–Munkres method (shortest augmenting
// paths with row/column potentials). It returns assign[r] = column for
// every row, or -1 where the row is left unassigned or could only be
// assigned through a forbidden entry.
//
// Entries with forbidden[r][c] set are priced at a penalty larger than
// the sum of all allowed costs, so the solver first maximises the number
// of allowed pairs and then minimises their total cost.
func minCostAssignment(cost [][]float64, forbidden [][]bool) []int {
	rows := len(cost)
	if rows == 0 {
		return nil
	}
	cols := len(cost[0])
	assign := make([]int, rows)
	for r := range assign {
		assign[r] = -1
	}
	if cols == 0 {
		return assign
	}

	penalty := 1.0
	for r := range cost {
		for c := range cost[r] {
			if !forbidden[r][c] {
				penalty += math.Abs(cost[r][c])
			}
		}
	}
	penalty *= float64(rows + cols + 1)

	// The solver needs n <= m; transpose when there are more rows.
	transposed := rows > cols
	n, m := rows, cols
	if transposed {
		n, m = cols, rows
	}
	at := func(i, j int) float64 {
		r, c := i, j
		if transposed {
			r, c = j, i
		}
		if forbidden[r][c] {
			return penalty
		}
		return cost[r][c]
	}

	// 1-indexed potentials; p[j] is the row matched to column j.
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)
	way := make([]int, m+1)
	minv := make([]float64, m+1)
	used := make([]bool, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := at(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	for j := 1; j <= m; j++ {
		if p[j] == 0 {
			continue
		}
		i, jj := p[j]-1, j-1
		r, c := i, jj
		if transposed {
			r, c = jj, i
		}
		if !forbidden[r][c] {
			assign[r] = c
		}
	}
	return assign
}
