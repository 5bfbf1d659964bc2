package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxAssignment solves the linear sum assignment problem on profit,
// maximizing the total. Rectangular inputs are padded with zero rows or
// columns. The result maps every row to a distinct column; rows matched only
// to padding get -1.
//
// This is the shortest augmenting path form of the Hungarian method with
// row and column potentials, O(n^3) for n = max(rows, cols).
func MaxAssignment(profit mat.Matrix) ([]int, float64) {
	rows, cols := profit.Dims()
	n := rows
	if cols > n {
		n = cols
	}
	if n == 0 {
		return []int{}, 0
	}

	cost := func(i, j int) float64 {
		if i < rows && j < cols {
			return -profit.At(i, j)
		}
		return 0
	}

	// 1-based potentials, column 0 is the virtual root
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	match := make([]int, n+1) // match[j] = row matched to column j
	way := make([]int, n+1)
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		match[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := match[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[match[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if match[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			match[j0] = match[j1]
			j0 = j1
		}
	}

	assignment := make([]int, rows)
	for i := range assignment {
		assignment[i] = -1
	}
	total := 0.0
	for j := 1; j <= n; j++ {
		i := match[j] - 1
		if i < 0 || i >= rows || j-1 >= cols {
			continue
		}
		assignment[i] = j - 1
		total += profit.At(i, j-1)
	}
	return assignment, total
}
