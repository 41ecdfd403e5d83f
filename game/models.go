// Package game is the Grocery Guessr rules engine: currency conversion,
// validation, scoring, achievements, rate limiting and the state manager
// that applies create-post and submit-guess actions to the store.
package game

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one receipt line as stored on a post.
type Item struct {
	Item  string          `json:"item"`
	Qty   int64           `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// LineTotal is qty * price in the post's original currency.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Qty))
}

// ItemDraft is a receipt line as submitted, before validation. Qty is a
// decimal so fractional quantities can be reported instead of truncated.
type ItemDraft struct {
	Item  string          `json:"item"`
	Qty   decimal.Decimal `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// PostDraft is the input to CreatePost.
type PostDraft struct {
	Items    []ItemDraft `json:"items"`
	Currency string      `json:"currency"`
	// Location is "City, Country". City and Country, when set, take precedence.
	Location string `json:"location,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}

// GroceryPost is the persisted receipt under post:<id>.
type GroceryPost struct {
	ID                string                     `json:"id"`
	OriginalCurrency  string                     `json:"originalCurrency"`
	OriginalPrices    []Item                     `json:"originalPrices"`
	ConvertedTotalUSD decimal.Decimal            `json:"convertedTotalUSD"`
	Location          string                     `json:"location"`
	PosterUsername    string                     `json:"posterUsername"`
	Guesses           map[string]decimal.Decimal `json:"guesses"`
	CreatedAt         time.Time                  `json:"createdAt"`
	Revealed          bool                       `json:"revealed"`
	// Version increments on every write and guards compare-and-swap updates.
	Version int64 `json:"version"`
}

// OriginalTotal sums the line totals in the original currency.
func (p *GroceryPost) OriginalTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.OriginalPrices {
		total = total.Add(item.LineTotal())
	}
	return total
}

// HasGuessed reports whether username already has an entry in Guesses.
func (p *GroceryPost) HasGuessed(username string) bool {
	_, ok := p.Guesses[username]
	return ok
}

// UserProfile is the persisted per-player record under user:<username>.
type UserProfile struct {
	Username       string     `json:"username"`
	TotalPoints    int        `json:"totalPoints"`
	ReceiptsPosted int        `json:"receiptsPosted"`
	TotalGuesses   int        `json:"totalGuesses"`
	CorrectGuesses int        `json:"correctGuesses"`
	Achievements   []string   `json:"achievements"`
	LastPostDate   *time.Time `json:"lastPostDate,omitempty"`
	JoinedDate     time.Time  `json:"joinedDate"`
}

func newProfile(username string, now time.Time) *UserProfile {
	return &UserProfile{
		Username:     username,
		Achievements: []string{},
		JoinedDate:   now,
	}
}

// Clone returns a deep copy so before/after snapshots never share slices.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	c.Achievements = append([]string(nil), u.Achievements...)
	if u.LastPostDate != nil {
		t := *u.LastPostDate
		c.LastPostDate = &t
	}
	return &c
}

// HasAchievement reports whether id is already unlocked.
func (u *UserProfile) HasAchievement(id string) bool {
	for _, a := range u.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// AccuracyRatio is correctGuesses / totalGuesses, or 0 with no guesses.
func (u *UserProfile) AccuracyRatio() float64 {
	if u.TotalGuesses == 0 {
		return 0
	}
	return float64(u.CorrectGuesses) / float64(u.TotalGuesses)
}

// AccuracyPercent is AccuracyRatio as a whole percentage, rounded half up.
func (u *UserProfile) AccuracyPercent() int {
	return int(u.AccuracyRatio()*100 + 0.5)
}

// RateLimitRecord is the counter behind a rate limit key.
type RateLimitRecord struct {
	LastAction time.Time `json:"lastAction"`
	Count      int       `json:"count"`
}
