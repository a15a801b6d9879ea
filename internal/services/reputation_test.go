package services

import (
	"testing"

	"github.com/lumiere-studio/backend/internal/models"
)

func TestBadgeFor(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0, models.BadgeBronze},
		{49.9, models.BadgeBronze},
		{50, models.BadgeSilver}, // boundary enters the higher tier
		{69.9, models.BadgeSilver},
		{70, models.BadgeGold},
		{84.9, models.BadgeGold},
		{85, models.BadgePlatinum},
		{100, models.BadgePlatinum},
	}
	for _, c := range cases {
		if got := BadgeFor(c.score); got != c.want {
			t.Errorf("BadgeFor(%v): got %s, want %s", c.score, got, c.want)
		}
	}
}

func TestBadgeFor_Clamping(t *testing.T) {
	if got := BadgeFor(-12); got != models.BadgeBronze {
		t.Errorf("negative score: got %s, want %s", got, models.BadgeBronze)
	}
	if got := BadgeFor(250); got != models.BadgePlatinum {
		t.Errorf("over-100 score: got %s, want %s", got, models.BadgePlatinum)
	}
}

func TestBadgeFor_Deterministic(t *testing.T) {
	for _, score := range []float64{0, 49.999, 50, 84.999, 85, 100} {
		first := BadgeFor(score)
		for i := 0; i < 10; i++ {
			if got := BadgeFor(score); got != first {
				t.Fatalf("BadgeFor(%v) changed between calls: %s then %s", score, first, got)
			}
		}
	}
}
