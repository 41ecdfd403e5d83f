package game

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/resilience"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Manager applies player actions to the store. Each call is one unit of
// work whose steps run in order; steps touching different keys are not
// atomic together, and a failure between them is logged as a consistency
// risk rather than hidden.
type Manager struct {
	store     core.Store
	limiter   *RateLimiter
	logger    core.Logger
	telemetry core.Telemetry
	now       func() time.Time
	newID     func() string
	rules     core.GameConfig
	retryCfg  *resilience.RetryConfig
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; component-aware loggers are tagged "game".
func WithLogger(logger core.Logger) Option {
	return func(m *Manager) {
		if logger == nil {
			return
		}
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			logger = cal.WithComponent("game")
		}
		m.logger = logger
	}
}

// WithTelemetry sets the span and metric sink.
func WithTelemetry(t core.Telemetry) Option {
	return func(m *Manager) {
		if t != nil {
			m.telemetry = t
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator replaces the post id generator.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// WithRules overrides the game rules; zero fields keep their defaults.
func WithRules(rules core.GameConfig) Option {
	return func(m *Manager) {
		if rules.PostCooldown > 0 {
			m.rules.PostCooldown = rules.PostCooldown
		}
		if rules.GuessCap > 0 {
			m.rules.GuessCap = rules.GuessCap
		}
		if rules.PostPoints > 0 {
			m.rules.PostPoints = rules.PostPoints
		}
		if rules.LeaderboardSize > 0 {
			m.rules.LeaderboardSize = rules.LeaderboardSize
		}
		if rules.AccuracyMinGuesses > 0 {
			m.rules.AccuracyMinGuesses = rules.AccuracyMinGuesses
		}
		if rules.MaxWriteAttempts > 0 {
			m.rules.MaxWriteAttempts = rules.MaxWriteAttempts
		}
	}
}

// NewManager builds a Manager over store.
func NewManager(store core.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		rules: core.GameConfig{
			PostCooldown:       DefaultPostCooldown,
			GuessCap:           DefaultGuessCap,
			PostPoints:         50,
			LeaderboardSize:    10,
			AccuracyMinGuesses: 10,
			MaxWriteAttempts:   5,
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.limiter = NewRateLimiter(store, m.logger, m.now).WithLimits(m.rules.PostCooldown, m.rules.GuessCap)
	m.retryCfg = &resilience.RetryConfig{
		MaxAttempts:   m.rules.MaxWriteAttempts,
		InitialDelay:  2 * time.Millisecond,
		MaxDelay:      50 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: true,
		// only lost compare-and-swap races; a timed out write may have landed
		ShouldRetry: func(err error) bool { return errors.Is(err, core.ErrConflict) },
		Logger:      m.logger,
	}
	return m
}

// Limiter exposes the rate limiter the manager enforces.
func (m *Manager) Limiter() *RateLimiter { return m.limiter }

// Ping checks the backing store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// CreatePostResult is returned by CreatePost.
type CreatePostResult struct {
	PostID          string        `json:"postId"`
	PointsAwarded   int           `json:"pointsAwarded"`
	NewAchievements []Achievement `json:"newAchievements"`
	Profile         *UserProfile  `json:"profile"`
}

// CreatePost validates the draft, enforces the posting cooldown, stores a
// new post with its USD total fixed at creation and credits the poster.
func (m *Manager) CreatePost(ctx context.Context, poster string, draft PostDraft) (*CreatePostResult, error) {
	const op = "Manager.CreatePost"
	ctx, span := m.telemetry.StartSpan(ctx, "game.create_post")
	defer span.End()

	if poster == "" {
		return nil, m.fail(ctx, span, op, unauthenticated(op, "post"))
	}
	span.SetAttribute("guessr.user", poster)

	location, verrs := ValidatePostDraft(draft)
	if len(verrs) > 0 {
		return nil, m.fail(ctx, span, op, validationRejection(op, verrs))
	}

	items := make([]Item, len(draft.Items))
	subtotal := decimal.Zero
	for i, d := range draft.Items {
		items[i] = Item{Item: d.Item, Qty: d.Qty.IntPart(), Price: d.Price}
		subtotal = subtotal.Add(items[i].LineTotal())
	}
	// ValidatePostDraft has already rejected unsupported currencies.
	total, _ := ConvertToUSD(subtotal, draft.Currency)
	// Scoring divides by the total, so it must survive rounding to cents.
	if !total.IsPositive() {
		return nil, m.fail(ctx, span, op, validationRejection(op, []ValidationError{
			{Field: "items", Message: "Receipt total is too small to convert"},
		}))
	}

	if !m.limiter.CanPost(ctx, poster) {
		return nil, m.fail(ctx, span, op, postCooldown(op, poster, m.limiter.Cooldown()))
	}

	now := m.now()
	post := &GroceryPost{
		ID:                m.newID(),
		OriginalCurrency:  draft.Currency,
		OriginalPrices:    items,
		ConvertedTotalUSD: total,
		Location:          location,
		PosterUsername:    poster,
		Guesses:           map[string]decimal.Decimal{},
		CreatedAt:         now,
	}
	if err := m.swapPost(ctx, post, "", false); err != nil {
		return nil, m.fail(ctx, span, op, err)
	}
	span.SetAttribute("guessr.post_id", post.ID)

	m.logger.InfoWithContext(ctx, "Grocery post created", map[string]interface{}{
		"operation":  "create_post",
		"post_id":    post.ID,
		"user":       poster,
		"currency":   post.OriginalCurrency,
		"item_count": len(items),
	})

	if err := m.limiter.RecordPost(ctx, poster); err != nil {
		m.logger.WarnWithContext(ctx, "Failed to record post cooldown", map[string]interface{}{
			"operation": "create_post",
			"post_id":   post.ID,
			"user":      poster,
			"error":     err,
		})
	}
	m.register(ctx, "create_post", poster)

	upd, err := m.updateProfile(ctx, poster, func(p *UserProfile) {
		p.ReceiptsPosted++
		p.TotalPoints += m.rules.PostPoints
		t := now
		p.LastPostDate = &t
	})
	if err != nil {
		m.consistencyRisk(ctx, "create_post", "Post stored but poster profile not credited", map[string]interface{}{
			"post_id": post.ID,
			"user":    poster,
			"error":   err,
		})
		return nil, m.fail(ctx, span, op, err)
	}

	m.telemetry.RecordMetric("guessr.posts.created", 1, map[string]string{"currency": post.OriginalCurrency})
	m.recordUnlocks(ctx, poster, upd.unlocked)

	return &CreatePostResult{
		PostID:          post.ID,
		PointsAwarded:   m.rules.PostPoints,
		NewAchievements: nonNil(upd.unlocked),
		Profile:         upd.updated,
	}, nil
}

// GuessResult is returned by SubmitGuess.
type GuessResult struct {
	PointsAwarded   int           `json:"pointsAwarded"`
	IsCorrect       bool          `json:"isCorrect"`
	FeedbackMessage string        `json:"feedbackMessage"`
	NewAchievements []Achievement `json:"newAchievements"`
	Profile         *UserProfile  `json:"profile"`
}

// SubmitGuess records guesser's single guess on a post and scores it.
// The guess is written with compare-and-swap against the post version, so
// concurrent guesses on one post never overwrite each other; on a lost
// race the owner, duplicate and cap checks run again on the fresh post.
func (m *Manager) SubmitGuess(ctx context.Context, postID, guesser, rawGuess string) (*GuessResult, error) {
	const op = "Manager.SubmitGuess"
	ctx, span := m.telemetry.StartSpan(ctx, "game.submit_guess")
	defer span.End()
	span.SetAttribute("guessr.post_id", postID)

	if guesser == "" {
		return nil, m.fail(ctx, span, op, unauthenticated(op, "guess"))
	}
	span.SetAttribute("guessr.user", guesser)

	guess, verrs := ParseGuess(rawGuess)
	if len(verrs) > 0 {
		return nil, m.fail(ctx, span, op, validationRejection(op, verrs))
	}

	var post *GroceryPost
	err := m.retry(ctx, func(attempt int) error {
		p, raw, err := m.loadPost(ctx, op, postID)
		if err != nil {
			return err
		}
		if p.PosterUsername == guesser {
			return rejection(op, "conflict", postID, "You cannot guess on your own post!", ErrOwnerGuess)
		}
		if p.HasGuessed(guesser) {
			return rejection(op, "conflict", postID, "You have already made a guess on this post!", ErrDuplicateGuess)
		}
		if !m.limiter.CanGuess(ctx, guesser, postID) {
			return guessCapReached(op, postID, m.limiter.GuessCap())
		}

		p.Guesses[guesser] = guess
		if err := m.swapPost(ctx, p, raw, true); err != nil {
			return err
		}
		post = p
		return nil
	})
	if err != nil {
		return nil, m.fail(ctx, span, op, err)
	}

	actual := post.ConvertedTotalUSD
	points := CalculatePoints(guess, actual)
	correct := IsCorrectGuess(guess, actual)
	feedback := GetAccuracyFeedback(guess, actual)

	m.logger.InfoWithContext(ctx, "Guess recorded", map[string]interface{}{
		"operation": "submit_guess",
		"post_id":   postID,
		"user":      guesser,
		"points":    points,
		"correct":   correct,
	})

	m.register(ctx, "submit_guess", guesser)

	upd, err := m.updateProfile(ctx, guesser, func(p *UserProfile) {
		p.TotalGuesses++
		p.TotalPoints += points
		if correct {
			p.CorrectGuesses++
		}
	})
	if err != nil {
		m.consistencyRisk(ctx, "submit_guess", "Guess stored but guesser profile not credited", map[string]interface{}{
			"post_id": postID,
			"user":    guesser,
			"points":  points,
			"error":   err,
		})
		return nil, m.fail(ctx, span, op, err)
	}

	if err := m.limiter.RecordGuess(ctx, guesser, postID); err != nil {
		m.logger.WarnWithContext(ctx, "Failed to record guess count", map[string]interface{}{
			"operation": "submit_guess",
			"post_id":   postID,
			"user":      guesser,
			"error":     err,
		})
	}

	m.telemetry.RecordMetric("guessr.guesses.submitted", 1, map[string]string{"correct": strconv.FormatBool(correct)})
	m.telemetry.RecordMetric("guessr.points.awarded", float64(points), map[string]string{"source": "guess"})
	m.recordUnlocks(ctx, guesser, upd.unlocked)

	return &GuessResult{
		PointsAwarded:   points,
		IsCorrect:       correct,
		FeedbackMessage: feedback,
		NewAchievements: nonNil(upd.unlocked),
		Profile:         upd.updated,
	}, nil
}

func (m *Manager) retry(ctx context.Context, fn func(attempt int) error) error {
	err := resilience.Retry(ctx, m.retryCfg, fn)
	if errors.Is(err, core.ErrMaxRetriesExceeded) {
		return &core.GuessrError{
			Op:      "Manager.retry",
			Kind:    "conflict",
			Message: "This post is busy right now. Please try again.",
			Err:     err,
		}
	}
	return err
}

// register adds the user to users:list. The list only feeds the
// leaderboard, so a failure is logged and the action continues.
func (m *Manager) register(ctx context.Context, operation, username string) {
	if err := m.registerUser(ctx, username); err != nil {
		m.consistencyRisk(ctx, operation, "User not added to users list", map[string]interface{}{
			"user":  username,
			"error": err,
		})
	}
}

func (m *Manager) consistencyRisk(ctx context.Context, operation, msg string, fields map[string]interface{}) {
	fields["operation"] = operation
	fields["consistency_risk"] = true
	m.logger.ErrorWithContext(ctx, msg, fields)
}

func (m *Manager) recordUnlocks(ctx context.Context, username string, unlocked []Achievement) {
	for _, a := range unlocked {
		m.logger.InfoWithContext(ctx, "Achievement unlocked", map[string]interface{}{
			"operation":   "check_achievements",
			"user":        username,
			"achievement": a.ID,
		})
		m.telemetry.RecordMetric("guessr.achievements.unlocked", 1, map[string]string{"achievement": a.ID})
	}
}

// fail records err on the span and logs it at a level matching its cause.
func (m *Manager) fail(ctx context.Context, span core.Span, op string, err error) error {
	span.RecordError(err)

	var ge *core.GuessrError
	if !errors.As(err, &ge) {
		err = &core.GuessrError{Op: op, Kind: "store", Err: err}
	}

	fields := map[string]interface{}{
		"operation": op,
		"error":     err,
	}
	if IsUserError(err) {
		m.logger.DebugWithContext(ctx, "Action rejected", fields)
		m.telemetry.RecordMetric("guessr.rejections", 1, map[string]string{"op": op})
		return err
	}
	m.logger.ErrorWithContext(ctx, "Action failed", fields)
	return err
}

func nonNil(a []Achievement) []Achievement {
	if a == nil {
		return []Achievement{}
	}
	return a
}
