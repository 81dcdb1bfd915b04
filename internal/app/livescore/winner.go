package livescore

import "math"

// MaxScore is the largest score the durable store can hold.
const MaxScore = math.MaxInt32

// ComputeWinner is the single place a winner is derived from a final score.
func ComputeWinner(scoreA, scoreB int) string {
	switch {
	case scoreA > scoreB:
		return WinnerA
	case scoreB > scoreA:
		return WinnerB
	default:
		return WinnerDraw
	}
}

// applyDelta adds delta to score, clamping the result to [0, MaxScore].
func applyDelta(score, delta int) int {
	score = min(max(score, 0), MaxScore)
	if delta > MaxScore-score {
		return MaxScore
	}
	return max(score+delta, 0)
}
