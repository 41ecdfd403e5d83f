package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictStore loses every compare-and-swap race on the matching keys.
type conflictStore struct {
	*store.MemoryStore
	prefix string
}

func (c *conflictStore) CompareAndSwap(ctx context.Context, key, expected string, expectedFound bool, value string) (bool, error) {
	if strings.HasPrefix(key, c.prefix) {
		return false, nil
	}
	return c.MemoryStore.CompareAndSwap(ctx, key, expected, expectedFound, value)
}

func userMessage(t *testing.T, err error) string {
	t.Helper()
	var ge *core.GuessrError
	require.True(t, errors.As(err, &ge), "expected GuessrError, got %T", err)
	return ge.Message
}

func TestScenarioA_CreatePost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	res, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	assert.Equal(t, "post-1", res.PostID)
	assert.Equal(t, 50, res.PointsAwarded)
	assert.Equal(t, []string{"first_haul"}, achievementIDs(res.NewAchievements))

	post := h.post(t, "post-1")
	assert.Equal(t, "3.50", post.ConvertedTotalUSD.StringFixed(2))
	assert.Equal(t, "NY, US", post.Location)
	assert.Equal(t, "alice", post.PosterUsername)
	assert.Empty(t, post.Guesses)
	assert.False(t, post.Revealed)
	assert.Equal(t, int64(1), post.Version)
	assert.True(t, h.clock.Now().Equal(post.CreatedAt))

	profile := h.profile(t, "alice")
	require.NotNil(t, profile)
	assert.Equal(t, 50, profile.TotalPoints)
	assert.Equal(t, 1, profile.ReceiptsPosted)
	assert.Equal(t, []string{"first_haul"}, profile.Achievements)
	require.NotNil(t, profile.LastPostDate)
	assert.True(t, h.clock.Now().Equal(*profile.LastPostDate))

	users, _ := h.raw(t, usersListKey)
	assert.JSONEq(t, `["alice"]`, users)

	_, found := h.raw(t, postRateKey("alice"))
	assert.True(t, found, "cooldown recorded")

	assert.Equal(t, 1, h.tel.count("guessr.posts.created"))
	assert.Equal(t, 1, h.tel.count("guessr.achievements.unlocked"))
	assert.Contains(t, h.tel.spans, "game.create_post")
}

func TestScenarioB_CorrectGuess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	res, err := h.manager.SubmitGuess(ctx, "post-1", "bob", "3.50")
	require.NoError(t, err)

	assert.True(t, res.IsCorrect)
	assert.Equal(t, 100, res.PointsAwarded)
	assert.Equal(t, "Correct! 🎉 Amazing guess!", res.FeedbackMessage)
	assert.Equal(t, []string{"first_guess", "perfect_guesser"}, achievementIDs(res.NewAchievements))

	profile := h.profile(t, "bob")
	require.NotNil(t, profile)
	assert.Equal(t, 1, profile.TotalGuesses)
	assert.Equal(t, 1, profile.CorrectGuesses)
	assert.Equal(t, 100, profile.TotalPoints)

	post := h.post(t, "post-1")
	require.Contains(t, post.Guesses, "bob")
	assert.Equal(t, "3.50", post.Guesses["bob"].StringFixed(2))
	assert.Equal(t, int64(2), post.Version)

	users, _ := h.raw(t, usersListKey)
	assert.JSONEq(t, `["alice","bob"]`, users)

	rec, found := h.raw(t, guessRateKey("bob", "post-1"))
	require.True(t, found)
	assert.Contains(t, rec, `"count":1`)

	assert.Equal(t, 1, h.tel.count("guessr.guesses.submitted"))
	assert.Equal(t, 1, h.tel.count("guessr.points.awarded"))
}

func TestScenarioC_WayOffGuess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	res, err := h.manager.SubmitGuess(ctx, "post-1", "carol", "10.00")
	require.NoError(t, err)

	assert.False(t, res.IsCorrect)
	assert.Equal(t, 5, res.PointsAwarded)
	assert.Equal(t, "Wrong! 📉 Too High! Way off!", res.FeedbackMessage)
	assert.Equal(t, []string{"first_guess"}, achievementIDs(res.NewAchievements))

	profile := h.profile(t, "carol")
	assert.Equal(t, 0, profile.CorrectGuesses)
	assert.Equal(t, 5, profile.TotalPoints)
}

func TestScenarioD_GuessCapReached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	prior, err := json.Marshal(RateLimitRecord{LastAction: h.clock.Now(), Count: 3})
	require.NoError(t, err)
	require.NoError(t, h.store.Set(ctx, guessRateKey("bob", "post-1"), string(prior)))

	_, err = h.manager.SubmitGuess(ctx, "post-1", "bob", "3.50")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.Equal(t, "You can only make 3 guesses per post.", userMessage(t, err))

	assert.Empty(t, h.post(t, "post-1").Guesses)
	assert.Nil(t, h.profile(t, "bob"))
	assert.Equal(t, 1, h.tel.count("guessr.rejections"))
}

func TestScenarioE_OwnerCannotGuess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	postBefore, _ := h.raw(t, postKey("post-1"))
	profileBefore, _ := h.raw(t, userKey("alice"))

	_, err = h.manager.SubmitGuess(ctx, "post-1", "alice", "3.50")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOwnerGuess))
	assert.Equal(t, "You cannot guess on your own post!", userMessage(t, err))

	postAfter, _ := h.raw(t, postKey("post-1"))
	profileAfter, _ := h.raw(t, userKey("alice"))
	assert.Equal(t, postBefore, postAfter)
	assert.Equal(t, profileBefore, profileAfter)

	_, found := h.raw(t, guessRateKey("alice", "post-1"))
	assert.False(t, found)
}

func TestSubmitGuess_DuplicateLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)
	_, err = h.manager.SubmitGuess(ctx, "post-1", "bob", "3.00")
	require.NoError(t, err)

	before := h.profile(t, "bob")

	_, err = h.manager.SubmitGuess(ctx, "post-1", "bob", "3.50")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateGuess))
	assert.Equal(t, "You have already made a guess on this post!", userMessage(t, err))

	assert.Equal(t, before, h.profile(t, "bob"))
	assert.Equal(t, "3.00", h.post(t, "post-1").Guesses["bob"].StringFixed(2), "first guess is immutable")
}

func TestSubmitGuess_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := h.manager.SubmitGuess(ctx, "post-1", "", "3.50")
		assert.True(t, errors.Is(err, ErrUnauthenticated))
		assert.Equal(t, "You must be logged in to guess.", userMessage(t, err))
	})

	t.Run("invalid guess", func(t *testing.T) {
		_, err := h.manager.SubmitGuess(ctx, "post-1", "bob", "abc")
		assert.True(t, errors.Is(err, ErrValidation))
		require.Len(t, ValidationErrors(err), 1)
		assert.Equal(t, "guess", ValidationErrors(err)[0].Field)
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := h.manager.SubmitGuess(ctx, "nope", "bob", "3.50")
		assert.True(t, errors.Is(err, ErrPostNotFound))
		assert.True(t, core.IsNotFound(err))
		assert.Equal(t, "Could not find grocery post data.", userMessage(t, err))
	})

	assert.Nil(t, h.profile(t, "bob"))
}

func TestCreatePost_ConvertsCurrency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	draft := PostDraft{
		Items: []ItemDraft{
			{Item: "Baguette", Qty: dec("2"), Price: dec("1.20")},
			{Item: "Cheese", Qty: dec("1"), Price: dec("1.58")},
		},
		Currency: "EUR",
		City:     "Paris",
		Country:  "FR",
	}
	_, err := h.manager.CreatePost(ctx, "alice", draft)
	require.NoError(t, err)

	post := h.post(t, "post-1")
	assert.Equal(t, "3.98", post.OriginalTotal().StringFixed(2))
	assert.Equal(t, "4.26", post.ConvertedTotalUSD.StringFixed(2))
	assert.Equal(t, "Paris, FR", post.Location)
	assert.Equal(t, "EUR", post.OriginalCurrency)
}

func TestCreatePost_SubCentTotals(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		price    string
		wantUSD  string
	}{
		{"yen rounds to zero", "JPY", "0.50", ""},
		{"yen just under a cent", "JPY", "0.74", ""},
		{"rupee rounds to zero", "INR", "0.41", ""},
		{"smallest yen total", "JPY", "0.75", "0.01"},
		{"smallest rupee total", "INR", "0.42", "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, nil)
			draft := PostDraft{
				Items:    []ItemDraft{{Item: "Gum", Qty: dec("1"), Price: dec(tt.price)}},
				Currency: tt.currency,
				Location: "Tokyo, JP",
			}

			_, err := h.manager.CreatePost(ctx, "alice", draft)
			if tt.wantUSD == "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				assert.Equal(t, "Receipt total is too small to convert", userMessage(t, err))
				assert.Equal(t, []ValidationError{{"items", "Receipt total is too small to convert"}}, ValidationErrors(err))

				_, found := h.raw(t, postKey("post-1"))
				assert.False(t, found)
				_, found = h.raw(t, postRateKey("alice"))
				assert.False(t, found, "a rejected post does not start the cooldown")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUSD, h.post(t, "post-1").ConvertedTotalUSD.StringFixed(2))
		})
	}
}

func TestSubmitGuess_SmallestTotal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.manager.CreatePost(ctx, "alice", PostDraft{
		Items:    []ItemDraft{{Item: "Gum", Qty: dec("1"), Price: dec("0.75")}},
		Currency: "JPY",
		Location: "Tokyo, JP",
	})
	require.NoError(t, err)

	exact, err := h.manager.SubmitGuess(ctx, "post-1", "bob", "0.01")
	require.NoError(t, err)
	assert.True(t, exact.IsCorrect)
	assert.Equal(t, 100, exact.PointsAwarded)

	far, err := h.manager.SubmitGuess(ctx, "post-1", "carol", "0.02")
	require.NoError(t, err)
	assert.False(t, far.IsCorrect)
	assert.Equal(t, 5, far.PointsAwarded)

	reveal, err := h.manager.RevealPost(ctx, "post-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, reveal.Community.GuessCount)
	require.NotNil(t, reveal.Community.Closest)
	assert.Equal(t, "bob", reveal.Community.Closest.Username)
}

func TestCreatePost_ValidationFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	draft := milkDraft()
	draft.Items = nil

	_, err := h.manager.CreatePost(ctx, "alice", draft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "At least one item is required", userMessage(t, err))

	_, found := h.raw(t, postKey("post-1"))
	assert.False(t, found)
	_, found = h.raw(t, postRateKey("alice"))
	assert.False(t, found, "a rejected post does not start the cooldown")
	assert.Nil(t, h.profile(t, "alice"))
}

func TestCreatePost_Unauthenticated(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.manager.CreatePost(context.Background(), "", milkDraft())
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.Equal(t, "You must be logged in to post.", userMessage(t, err))
}

func TestCreatePost_Cooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	_, err = h.manager.CreatePost(ctx, "alice", milkDraft())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.Equal(t, "Please wait 5 minutes before posting again.", userMessage(t, err))

	h.clock.Advance(5 * time.Minute)
	res, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)
	assert.Equal(t, "post-2", res.PostID)
	assert.Equal(t, 2, h.profile(t, "alice").ReceiptsPosted)
	assert.Empty(t, res.NewAchievements)
}

func TestCreatePost_CustomRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, WithRules(core.GameConfig{PostCooldown: 30 * time.Second, PostPoints: 20}))

	res, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)
	assert.Equal(t, 20, res.PointsAwarded)

	_, err = h.manager.CreatePost(ctx, "alice", milkDraft())
	assert.Equal(t, "Please wait 30 seconds before posting again.", userMessage(t, err))
	assert.Equal(t, 30*time.Second, h.manager.Limiter().Cooldown())
}

func TestCreatePost_PostWriteFailure(t *testing.T) {
	ctx := context.Background()
	fs := newFaultyStore()
	fs.failCAS = []string{"post:"}
	h := newHarness(t, fs)

	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.Error(t, err)
	assert.True(t, core.IsStoreError(err))
	assert.Equal(t, "The game is temporarily unavailable. Please try again.", core.UserMessage(err))

	assert.Nil(t, h.profile(t, "alice"))
	_, found := h.raw(t, postRateKey("alice"))
	assert.False(t, found)
	assert.Contains(t, h.logs.String(), "Action failed")
}

func TestCreatePost_UsersListFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	fs := newFaultyStore()
	fs.failCAS = []string{usersListKey}
	h := newHarness(t, fs)

	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	assert.NotNil(t, h.profile(t, "alice"))
	assert.Contains(t, h.logs.String(), "User not added to users list")
	assert.Contains(t, h.logs.String(), `"consistency_risk":true`)
}

func TestSubmitGuess_ProfileWriteFailureIsReported(t *testing.T) {
	ctx := context.Background()
	fs := newFaultyStore()
	h := newHarness(t, fs)
	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	fs.failCAS = []string{userKey("bob")}
	_, err = h.manager.SubmitGuess(ctx, "post-1", "bob", "3.50")
	require.Error(t, err)
	assert.True(t, core.IsStoreError(err))

	// the guess itself landed; the gap is logged, not hidden
	assert.Contains(t, h.post(t, "post-1").Guesses, "bob")
	assert.Nil(t, h.profile(t, "bob"))
	assert.Contains(t, h.logs.String(), "Guess stored but guesser profile not credited")
	assert.Contains(t, h.logs.String(), `"consistency_risk":true`)
}

func TestSubmitGuess_BusyPost(t *testing.T) {
	ctx := context.Background()
	cs := &conflictStore{MemoryStore: store.NewMemoryStore(), prefix: "post:"}
	h := newHarness(t, cs, WithRules(core.GameConfig{MaxWriteAttempts: 3}))

	// seed the post directly since every post write conflicts
	post := GroceryPost{
		ID:                "p1",
		OriginalCurrency:  "USD",
		OriginalPrices:    []Item{{Item: "Milk", Qty: 1, Price: dec("3.50")}},
		ConvertedTotalUSD: dec("3.50"),
		Location:          "NY, US",
		PosterUsername:    "alice",
		Version:           1,
	}
	data, err := json.Marshal(post)
	require.NoError(t, err)
	require.NoError(t, cs.Set(ctx, postKey("p1"), string(data)))

	_, err = h.manager.SubmitGuess(ctx, "p1", "bob", "3.50")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMaxRetriesExceeded))
	assert.Equal(t, "This post is busy right now. Please try again.", core.UserMessage(err))
	assert.Nil(t, h.profile(t, "bob"))
}

func TestSubmitGuess_ConcurrentGuessersAllKept(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, WithRules(core.GameConfig{MaxWriteAttempts: 50}))
	_, err := h.manager.CreatePost(ctx, "alice", milkDraft())
	require.NoError(t, err)

	const guessers = 20
	var wg sync.WaitGroup
	errs := make(chan error, guessers)
	for i := 0; i < guessers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.manager.SubmitGuess(ctx, "post-1", fmt.Sprintf("guesser-%02d", i), "3.40")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	post := h.post(t, "post-1")
	assert.Len(t, post.Guesses, guessers)
	assert.Equal(t, int64(guessers+1), post.Version)

	users, err := h.manager.listUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, guessers+1)
}

func TestManager_Ping(t *testing.T) {
	h := newHarness(t, nil)
	assert.NoError(t, h.manager.Ping(context.Background()))
}
