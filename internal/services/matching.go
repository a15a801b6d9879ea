package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lumiere-studio/backend/internal/models"
)

// CreatorDirectory is the minimal interface required for partner matching.
type CreatorDirectory interface {
	ListActiveCreators(ctx context.Context, excludeID uuid.UUID) ([]*models.User, error)
}

// Matcher suggests collaboration partners for a creator.
type Matcher struct {
	Directory CreatorDirectory
}

func NewMatcher(directory CreatorDirectory) *Matcher {
	return &Matcher{Directory: directory}
}

// partnerCandidate holds a creator, its normalized scoring inputs, and the
// blended score they produce.
type partnerCandidate struct {
	user       *models.User
	reputation float64 // 0-1
	levelRank  float64 // 0-1
	activity   float64 // 0-1, validated tasks against the pool max
	score      float64
}

func levelRank(level string) float64 {
	switch level {
	case models.LevelVIP:
		return 1.0
	case models.LevelExpert:
		return 2.0 / 3.0
	case models.LevelPro:
		return 1.0 / 3.0
	default:
		return 0
	}
}

// buildCandidates normalizes scoring inputs across the candidate pool.
func buildCandidates(creators []*models.User) []partnerCandidate {
	maxValidated := 0
	for _, u := range creators {
		if u.TasksValidated > maxValidated {
			maxValidated = u.TasksValidated
		}
	}
	if maxValidated <= 0 {
		maxValidated = 1
	}
	candidates := make([]partnerCandidate, 0, len(creators))
	for _, u := range creators {
		rep := u.ReputationScore / 100
		if rep > 1 {
			rep = 1
		}
		if rep < 0 {
			rep = 0
		}
		candidates = append(candidates, partnerCandidate{
			user:       u,
			reputation: rep,
			levelRank:  levelRank(u.Level),
			activity:   float64(u.TasksValidated) / float64(maxValidated),
		})
	}
	return candidates
}

// scoreAndSort orders candidates best first by a weighted blend of
// reputation, level, and recent activity. The score lives on the candidate so
// it travels with it through the sort's swaps.
func scoreAndSort(candidates []partnerCandidate) {
	for i := range candidates {
		c := &candidates[i]
		c.score = c.reputation*0.45 + c.levelRank*0.30 + c.activity*0.25
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

// SuggestPartners returns up to limit creators ranked as collab partners for
// forUserID, excluding that user.
func (m *Matcher) SuggestPartners(ctx context.Context, forUserID uuid.UUID, limit int) ([]*models.User, error) {
	creators, err := m.Directory.ListActiveCreators(ctx, forUserID)
	if err != nil {
		return nil, err
	}
	candidates := buildCandidates(creators)
	if len(candidates) == 0 {
		return nil, nil
	}
	scoreAndSort(candidates)
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]*models.User, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, candidates[i].user)
	}
	return out, nil
}
