package game

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type tier struct {
	maxPctOff decimal.Decimal
	points    int
	feedback  string
	reveal    string
}

// Accuracy tiers, best first. A pctOff equal to a bound lands in that tier.
var tiers = []tier{
	{decimal.NewFromInt(1), 100, "", "Incredible accuracy! 🎯"},
	{decimal.NewFromInt(3), 75, "But very close!", "Excellent guess! 🎉"},
	{decimal.NewFromInt(5), 50, "Close guess!", "Great job! 👏"},
	{decimal.NewFromInt(10), 25, "Not bad!", "Not bad! 👍"},
	{decimal.NewFromInt(20), 10, "Getting warmer...", "Close enough! 😊"},
}

var participation = tier{points: 5, feedback: "Way off!", reveal: "Better luck next time! 🤞"}

// PercentOff is |guess - actual| / actual * 100. actual must be positive;
// post totals always are, so anything else is a programming error.
func PercentOff(guess, actual decimal.Decimal) decimal.Decimal {
	if !actual.IsPositive() {
		panic(fmt.Sprintf("game: percent off against non-positive actual %s", actual))
	}
	return guess.Sub(actual).Abs().Div(actual).Mul(hundred)
}

func tierFor(guess, actual decimal.Decimal) tier {
	pct := PercentOff(guess, actual)
	for _, t := range tiers {
		if pct.LessThanOrEqual(t.maxPctOff) {
			return t
		}
	}
	return participation
}

// CalculatePoints awards 100/75/50/25/10 by accuracy tier and never less than 5.
func CalculatePoints(guess, actual decimal.Decimal) int {
	return tierFor(guess, actual).points
}

// IsCorrectGuess reports whether guess is within 1% of actual.
func IsCorrectGuess(guess, actual decimal.Decimal) bool {
	return PercentOff(guess, actual).LessThanOrEqual(tiers[0].maxPctOff)
}

// GetAccuracyFeedback returns the player-facing verdict for a guess.
func GetAccuracyFeedback(guess, actual decimal.Decimal) string {
	t := tierFor(guess, actual)
	if t.points == tiers[0].points {
		return "Correct! 🎉 Amazing guess!"
	}
	direction := "Too Low!"
	if guess.GreaterThan(actual) {
		direction = "Too High!"
	}
	return fmt.Sprintf("Wrong! 📉 %s %s", direction, t.feedback)
}

// RevealMessage is the tone line shown next to a guess once the total is revealed.
func RevealMessage(guess, actual decimal.Decimal) string {
	return tierFor(guess, actual).reveal
}

// GuessAccuracy is 100 - pctOff, floored at 0.
func GuessAccuracy(guess, actual decimal.Decimal) float64 {
	acc := hundred.Sub(PercentOff(guess, actual))
	if acc.IsNegative() {
		return 0
	}
	return acc.Round(1).InexactFloat64()
}

// CalculatePosterPoints scores a post by engagement and difficulty: 50 base,
// +25 at 5 guesses, +25 more at 10 and +50 more at 20, then +30/+20/+10 when
// the average guess accuracy is under 50/70/85 percent.
func CalculatePosterPoints(numGuesses int, avgAccuracy float64) int {
	points := 50

	if numGuesses >= 5 {
		points += 25
	}
	if numGuesses >= 10 {
		points += 25
	}
	if numGuesses >= 20 {
		points += 50
	}

	switch {
	case avgAccuracy < 50:
		points += 30
	case avgAccuracy < 70:
		points += 20
	case avgAccuracy < 85:
		points += 10
	}

	return points
}
