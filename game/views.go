package game

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ItemView is a receipt line as shown to a viewer. Price and LineTotal are
// nil while the total is still hidden from them.
type ItemView struct {
	Item      string           `json:"item"`
	Qty       int64            `json:"qty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	LineTotal *decimal.Decimal `json:"lineTotal,omitempty"`
}

// PostView is the public face of a post.
type PostView struct {
	ID                string           `json:"id"`
	Location          string           `json:"location"`
	Currency          string           `json:"currency"`
	PosterUsername    string           `json:"posterUsername"`
	Items             []ItemView       `json:"items"`
	GuessCount        int              `json:"guessCount"`
	CreatedAt         time.Time        `json:"createdAt"`
	Revealed          bool             `json:"revealed"`
	IsPoster          bool             `json:"isPoster"`
	HasGuessed        bool             `json:"hasGuessed"`
	ViewerGuess       *decimal.Decimal `json:"viewerGuess,omitempty"`
	ConvertedTotalUSD *decimal.Decimal `json:"convertedTotalUSD,omitempty"`
}

// GetPost returns a post as viewer may see it. Prices and the total stay
// hidden unless viewer is the poster or has already guessed. viewer may be
// empty for anonymous reads.
func (m *Manager) GetPost(ctx context.Context, postID, viewer string) (*PostView, error) {
	const op = "Manager.GetPost"
	ctx, span := m.telemetry.StartSpan(ctx, "game.get_post")
	defer span.End()

	post, _, err := m.loadPost(ctx, op, postID)
	if err != nil {
		return nil, m.fail(ctx, span, op, err)
	}

	view := &PostView{
		ID:             post.ID,
		Location:       post.Location,
		Currency:       post.OriginalCurrency,
		PosterUsername: post.PosterUsername,
		GuessCount:     len(post.Guesses),
		CreatedAt:      post.CreatedAt,
		Revealed:       post.Revealed,
		IsPoster:       viewer != "" && viewer == post.PosterUsername,
		HasGuessed:     viewer != "" && post.HasGuessed(viewer),
	}
	unlocked := view.IsPoster || view.HasGuessed

	for _, item := range post.OriginalPrices {
		iv := ItemView{Item: item.Item, Qty: item.Qty}
		if unlocked {
			price, line := item.Price, item.LineTotal()
			iv.Price, iv.LineTotal = &price, &line
		}
		view.Items = append(view.Items, iv)
	}
	if unlocked {
		total := post.ConvertedTotalUSD
		view.ConvertedTotalUSD = &total
	}
	if view.HasGuessed {
		g := post.Guesses[viewer]
		view.ViewerGuess = &g
	}
	return view, nil
}

// ClosestGuess is the community guess nearest the actual total.
type ClosestGuess struct {
	Username string          `json:"username"`
	Guess    decimal.Decimal `json:"guess"`
	Accuracy float64         `json:"accuracy"`
}

// CommunityStats summarises every guess on a post.
type CommunityStats struct {
	GuessCount      int             `json:"guessCount"`
	AverageGuess    decimal.Decimal `json:"averageGuess"`
	AverageAccuracy float64         `json:"averageAccuracy"`
	Closest         *ClosestGuess   `json:"closest,omitempty"`
}

// Reveal is the full breakdown of a post once its total is revealed.
type Reveal struct {
	PostID                 string          `json:"postId"`
	Location               string          `json:"location"`
	Currency               string          `json:"currency"`
	Items                  []ItemView      `json:"items"`
	OriginalTotal          decimal.Decimal `json:"originalTotal"`
	OriginalTotalFormatted string          `json:"originalTotalFormatted"`
	ConvertedTotalUSD      decimal.Decimal `json:"convertedTotalUSD"`
	ConvertedFormatted     string          `json:"convertedTotalFormatted"`

	ViewerGuess     *decimal.Decimal `json:"viewerGuess,omitempty"`
	ViewerAccuracy  *float64         `json:"viewerAccuracy,omitempty"`
	AccuracyMessage string           `json:"accuracyMessage,omitempty"`

	Community CommunityStats `json:"community"`
	// PosterPoints previews CalculatePosterPoints; only set for the poster.
	PosterPoints *int `json:"posterPoints,omitempty"`
}

// RevealPost shows the itemised receipt and how everyone did. Only the
// poster or a player who has guessed may reveal; a reveal by the poster
// marks the post revealed.
func (m *Manager) RevealPost(ctx context.Context, postID, viewer string) (*Reveal, error) {
	const op = "Manager.RevealPost"
	ctx, span := m.telemetry.StartSpan(ctx, "game.reveal_post")
	defer span.End()

	if viewer == "" {
		return nil, m.fail(ctx, span, op, unauthenticated(op, "see the reveal"))
	}

	post, raw, err := m.loadPost(ctx, op, postID)
	if err != nil {
		return nil, m.fail(ctx, span, op, err)
	}
	isPoster := viewer == post.PosterUsername
	if !isPoster && !post.HasGuessed(viewer) {
		return nil, m.fail(ctx, span, op,
			rejection(op, "forbidden", postID, "Make a guess before revealing the total!", ErrRevealLocked))
	}

	if isPoster && !post.Revealed {
		if err := m.markRevealed(ctx, op, post, raw); err != nil {
			// the reveal itself is still valid
			m.logger.WarnWithContext(ctx, "Failed to mark post revealed", map[string]interface{}{
				"operation": "reveal_post",
				"post_id":   postID,
				"error":     err,
			})
		}
	}

	actual := post.ConvertedTotalUSD
	original := post.OriginalTotal()
	reveal := &Reveal{
		PostID:                 post.ID,
		Location:               post.Location,
		Currency:               post.OriginalCurrency,
		OriginalTotal:          original,
		OriginalTotalFormatted: FormatCurrency(original, post.OriginalCurrency),
		ConvertedTotalUSD:      actual,
		ConvertedFormatted:     FormatCurrency(actual, "USD"),
		Community:              communityStats(post),
	}
	for _, item := range post.OriginalPrices {
		price, line := item.Price, item.LineTotal()
		reveal.Items = append(reveal.Items, ItemView{Item: item.Item, Qty: item.Qty, Price: &price, LineTotal: &line})
	}

	if g, ok := post.Guesses[viewer]; ok {
		acc := GuessAccuracy(g, actual)
		reveal.ViewerGuess = &g
		reveal.ViewerAccuracy = &acc
		reveal.AccuracyMessage = RevealMessage(g, actual)
	}
	if isPoster {
		pts := CalculatePosterPoints(reveal.Community.GuessCount, reveal.Community.AverageAccuracy)
		reveal.PosterPoints = &pts
	}

	return reveal, nil
}

func (m *Manager) markRevealed(ctx context.Context, op string, post *GroceryPost, raw string) error {
	return m.retry(ctx, func(attempt int) error {
		current, currentRaw := post, raw
		if attempt > 1 {
			var err error
			if current, currentRaw, err = m.loadPost(ctx, op, post.ID); err != nil {
				return err
			}
		}
		if current.Revealed {
			return nil
		}
		current.Revealed = true
		return m.swapPost(ctx, current, currentRaw, true)
	})
}

func communityStats(post *GroceryPost) CommunityStats {
	stats := CommunityStats{GuessCount: len(post.Guesses), AverageGuess: decimal.Zero}
	if stats.GuessCount == 0 {
		return stats
	}

	// sorted so the closest-guess tie-break is deterministic
	users := make([]string, 0, len(post.Guesses))
	for u := range post.Guesses {
		users = append(users, u)
	}
	sort.Strings(users)

	actual := post.ConvertedTotalUSD
	sum := decimal.Zero
	accSum := 0.0
	var bestOff decimal.Decimal
	for _, u := range users {
		g := post.Guesses[u]
		sum = sum.Add(g)
		accSum += GuessAccuracy(g, actual)

		off := g.Sub(actual).Abs()
		if stats.Closest == nil || off.LessThan(bestOff) {
			bestOff = off
			stats.Closest = &ClosestGuess{Username: u, Guess: g, Accuracy: GuessAccuracy(g, actual)}
		}
	}
	stats.AverageGuess = sum.Div(decimal.NewFromInt(int64(stats.GuessCount))).Round(2)
	stats.AverageAccuracy = accSum / float64(stats.GuessCount)
	return stats
}
