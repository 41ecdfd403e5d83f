package game

// Achievement is a one-time milestone unlocked from cumulative profile counters.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`

	unlocked func(UserProfile) bool
}

// Unlocked reports whether the profile's counters satisfy the achievement.
func (a Achievement) Unlocked(p UserProfile) bool {
	return a.unlocked(p)
}

var catalog = []Achievement{
	{"first_haul", "First Haul", "Post your first grocery receipt", "🛒",
		func(p UserProfile) bool { return p.ReceiptsPosted >= 1 }},
	{"first_guess", "First Guess", "Make your first guess", "🎯",
		func(p UserProfile) bool { return p.TotalGuesses >= 1 }},
	{"perfect_guesser", "Perfect Guesser", "Get your first guess within 1%", "🎯",
		func(p UserProfile) bool { return p.CorrectGuesses >= 1 }},
	{"serial_poster", "Serial Poster", "Post 5 grocery receipts", "📄",
		func(p UserProfile) bool { return p.ReceiptsPosted >= 5 }},
	{"guess_machine", "Guess Machine", "Make 25 guesses", "🤖",
		func(p UserProfile) bool { return p.TotalGuesses >= 25 }},
	{"sharp_shooter", "Sharp Shooter", "Get 10 correct guesses (within 1%)", "🎯",
		func(p UserProfile) bool { return p.CorrectGuesses >= 10 }},
	{"high_roller", "High Roller", "Earn 1000 total points", "💎",
		func(p UserProfile) bool { return p.TotalPoints >= 1000 }},
	{"accuracy_ace", "Accuracy Ace", "Maintain 80%+ accuracy with 20+ guesses", "🏆",
		// integer form of correct/total >= 0.80
		func(p UserProfile) bool { return p.TotalGuesses >= 20 && p.CorrectGuesses*5 >= p.TotalGuesses*4 }},
	{"grocery_guru", "Grocery Guru", "Post 10 receipts and earn 2000 points", "🧠",
		func(p UserProfile) bool { return p.ReceiptsPosted >= 10 && p.TotalPoints >= 2000 }},
	{"community_champion", "Community Champion", "Make 100 guesses", "👑",
		func(p UserProfile) bool { return p.TotalGuesses >= 100 }},
}

// Catalog returns the achievements in declaration order.
func Catalog() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

// AchievementByID looks up a catalog entry.
func AchievementByID(id string) (Achievement, bool) {
	for _, a := range catalog {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// CheckAchievements returns, in catalog order, the achievements that
// updated satisfies and old had not yet unlocked. A nil old profile counts
// as having none. updated is not modified; see MergeAchievements.
func CheckAchievements(old *UserProfile, updated UserProfile) []Achievement {
	var unlocked []Achievement
	for _, a := range catalog {
		if old != nil && old.HasAchievement(a.ID) {
			continue
		}
		if a.unlocked(updated) {
			unlocked = append(unlocked, a)
		}
	}
	return unlocked
}

// MergeAchievements appends the ids of unlocked to the profile, skipping
// ids it already holds.
func MergeAchievements(p *UserProfile, unlocked []Achievement) {
	for _, a := range unlocked {
		if !p.HasAchievement(a.ID) {
			p.Achievements = append(p.Achievements, a.ID)
		}
	}
}
