package services

import "github.com/lumiere-studio/backend/internal/models"

// Badge cut points over the 0-100 reputation score.
const (
	badgeSilverMin   = 50
	badgeGoldMin     = 70
	badgePlatinumMin = 85
)

// BadgeFor maps a reputation score to its badge tier. Total over all real
// inputs: scores outside [0, 100] are clamped before classification.
func BadgeFor(score float64) string {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	switch {
	case score >= badgePlatinumMin:
		return models.BadgePlatinum
	case score >= badgeGoldMin:
		return models.BadgeGold
	case score >= badgeSilverMin:
		return models.BadgeSilver
	default:
		return models.BadgeBronze
	}
}
