package services

import "github.com/lumiere-studio/backend/internal/models"

// LevelThresholds is the points required to enter each tier above ROOKIE
// (which always starts at 0). Thresholds are expected to be strictly
// increasing; the progress computation tolerates degenerate equal values.
type LevelThresholds struct {
	Pro    int
	Expert int
	VIP    int
}

// DefaultThresholds is the platform progression table.
var DefaultThresholds = LevelThresholds{Pro: 1000, Expert: 5000, VIP: 15000}

// LevelFor returns the highest tier whose threshold is <= points. Negative
// point totals classify as ROOKIE.
func LevelFor(points int, t LevelThresholds) string {
	switch {
	case points >= t.VIP:
		return models.LevelVIP
	case points >= t.Expert:
		return models.LevelExpert
	case points >= t.Pro:
		return models.LevelPro
	default:
		return models.LevelRookie
	}
}

// ProgressPct returns progress toward the next tier as a percentage in
// [0, 100]. At VIP there is no next tier and progress is 100. A degenerate
// table where the next threshold equals the current one also reports 100
// rather than dividing by zero.
func ProgressPct(points int, t LevelThresholds) float64 {
	if points < 0 {
		points = 0
	}
	var current, next int
	switch LevelFor(points, t) {
	case models.LevelVIP:
		return 100
	case models.LevelExpert:
		current, next = t.Expert, t.VIP
	case models.LevelPro:
		current, next = t.Pro, t.Expert
	default:
		current, next = 0, t.Pro
	}
	if next <= current {
		return 100
	}
	pct := float64(points-current) / float64(next-current) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// PointsForDifficulty is the per-validation point award table.
var PointsForDifficulty = map[string]int{
	models.DifficultyEasy:   10,
	models.DifficultyMedium: 25,
	models.DifficultyHard:   50,
}
