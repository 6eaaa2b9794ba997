package eda

import "math"

// QualityScore is a heuristic 0-100 dataset score. It starts at 100, subtracts
// the rounded percentage of missing cells and up to 20 points for duplicate
// rows, and never drops below 0. It is not a statistically validated metric.
func QualityScore(totalMissing, rows, cols, duplicates int) int {
	score := 100
	if cells := rows * cols; cells > 0 {
		ratio := float64(totalMissing) / float64(cells)
		score -= int(math.Round(ratio * 100))
	}
	if duplicates > 0 {
		score -= min(20, duplicates)
	}
	return max(score, 0)
}
