package game

import (
	"context"
	"fmt"
	"sort"
)

// PlayerStats is a player's profile with derived standing.
type PlayerStats struct {
	Profile      *UserProfile  `json:"profile"`
	Accuracy     int           `json:"accuracy"`
	Title        string        `json:"title"`
	Achievements []Achievement `json:"achievements"`
	Progress     string        `json:"progress"`
}

// RankTitle names a player's standing from their accuracy percentage.
func RankTitle(accuracy int) string {
	switch {
	case accuracy >= 80:
		return "Elite Guesser"
	case accuracy >= 60:
		return "Great Guesser"
	case accuracy >= 40:
		return "Good progress"
	default:
		return "Keep practicing"
	}
}

// GetStats returns the stats for username.
func (m *Manager) GetStats(ctx context.Context, username string) (*PlayerStats, error) {
	const op = "Manager.GetStats"
	ctx, span := m.telemetry.StartSpan(ctx, "game.get_stats")
	defer span.End()

	if username == "" {
		return nil, m.fail(ctx, span, op, unauthenticated(op, "view stats"))
	}

	profile, _, err := m.loadProfile(ctx, username)
	if err != nil {
		return nil, m.fail(ctx, span, op, err)
	}
	if profile == nil {
		return nil, m.fail(ctx, span, op,
			rejection(op, "not_found", username, "No stats yet! Start playing to track your progress.", ErrProfileNotFound))
	}

	achievements := []Achievement{}
	for _, id := range profile.Achievements {
		if a, ok := AchievementByID(id); ok {
			achievements = append(achievements, a)
		}
	}

	accuracy := profile.AccuracyPercent()
	return &PlayerStats{
		Profile:      profile,
		Accuracy:     accuracy,
		Title:        RankTitle(accuracy),
		Achievements: achievements,
		Progress:     fmt.Sprintf("%d of %d", len(achievements), len(catalog)),
	}, nil
}

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Username       string `json:"username"`
	TotalPoints    int    `json:"totalPoints"`
	Accuracy       int    `json:"accuracy"`
	ReceiptsPosted int    `json:"receiptsPosted"`
}

// Leaderboard holds both rankings.
type Leaderboard struct {
	TopPoints   []LeaderboardEntry `json:"topPoints"`
	TopAccuracy []LeaderboardEntry `json:"topAccuracy"`
}

// GetLeaderboard ranks every registered player by points, and players with
// enough guesses by accuracy. Ties break by username. Profiles that cannot
// be read are skipped.
func (m *Manager) GetLeaderboard(ctx context.Context) (*Leaderboard, error) {
	const op = "Manager.GetLeaderboard"
	ctx, span := m.telemetry.StartSpan(ctx, "game.get_leaderboard")
	defer span.End()

	users, err := m.listUsers(ctx)
	if err != nil {
		return nil, m.fail(ctx, span, op, err)
	}

	profiles := make([]*UserProfile, 0, len(users))
	for _, u := range users {
		p, _, err := m.loadProfile(ctx, u)
		if err != nil {
			m.logger.WarnWithContext(ctx, "Skipping unreadable profile", map[string]interface{}{
				"operation": "leaderboard",
				"user":      u,
				"error":     err,
			})
			continue
		}
		if p != nil {
			profiles = append(profiles, p)
		}
	}

	byPoints := append([]*UserProfile(nil), profiles...)
	sort.SliceStable(byPoints, func(i, j int) bool {
		if byPoints[i].TotalPoints != byPoints[j].TotalPoints {
			return byPoints[i].TotalPoints > byPoints[j].TotalPoints
		}
		return byPoints[i].Username < byPoints[j].Username
	})

	var accurate []*UserProfile
	for _, p := range profiles {
		if p.TotalGuesses >= m.rules.AccuracyMinGuesses {
			accurate = append(accurate, p)
		}
	}
	sort.SliceStable(accurate, func(i, j int) bool {
		// cross-multiplied to compare correct/total exactly
		a := accurate[i].CorrectGuesses * accurate[j].TotalGuesses
		b := accurate[j].CorrectGuesses * accurate[i].TotalGuesses
		if a != b {
			return a > b
		}
		return accurate[i].Username < accurate[j].Username
	})

	return &Leaderboard{
		TopPoints:   m.entries(byPoints),
		TopAccuracy: m.entries(accurate),
	}, nil
}

func (m *Manager) entries(profiles []*UserProfile) []LeaderboardEntry {
	n := len(profiles)
	if n > m.rules.LeaderboardSize {
		n = m.rules.LeaderboardSize
	}
	out := make([]LeaderboardEntry, n)
	for i := 0; i < n; i++ {
		p := profiles[i]
		out[i] = LeaderboardEntry{
			Username:       p.Username,
			TotalPoints:    p.TotalPoints,
			Accuracy:       p.AccuracyPercent(),
			ReceiptsPosted: p.ReceiptsPosted,
		}
	}
	return out
}

// HowToPlay is the short rules text shown to new players.
const HowToPlay = "🛒 Post grocery receipts with their prices\n" +
	"🎯 Guess the USD total of other players' receipts\n" +
	"📊 Earn up to 100 points for a guess within 1%\n" +
	"🏆 Compete on the leaderboards and unlock achievements!"
