package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/shopspring/decimal"
)

const usersListKey = "users:list"

func postKey(id string) string       { return "post:" + id }
func userKey(username string) string { return "user:" + username }

// loadPost returns the decoded post plus the raw value for compare-and-swap.
func (m *Manager) loadPost(ctx context.Context, op, id string) (*GroceryPost, string, error) {
	raw, found, err := m.store.Get(ctx, postKey(id))
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", postNotFound(op, id)
	}

	var post GroceryPost
	if err := json.Unmarshal([]byte(raw), &post); err != nil {
		return nil, "", &core.GuessrError{Op: op, Kind: "store", ID: id, Err: fmt.Errorf("%v: %w", err, core.ErrCorruptRecord)}
	}
	if post.Guesses == nil {
		post.Guesses = map[string]decimal.Decimal{}
	}
	return &post, raw, nil
}

// swapPost writes post over raw, bumping its version. A lost race returns core.ErrConflict.
func (m *Manager) swapPost(ctx context.Context, post *GroceryPost, raw string, existed bool) error {
	post.Version++
	data, err := json.Marshal(post)
	if err != nil {
		return err
	}
	ok, err := m.store.CompareAndSwap(ctx, postKey(post.ID), raw, existed, string(data))
	if err != nil {
		return err
	}
	if !ok {
		post.Version--
		return fmt.Errorf("post %s: %w", post.ID, core.ErrConflict)
	}
	return nil
}

// loadProfile returns the profile (nil when absent) and its raw value.
func (m *Manager) loadProfile(ctx context.Context, username string) (*UserProfile, string, error) {
	raw, found, err := m.store.Get(ctx, userKey(username))
	if err != nil || !found {
		return nil, "", err
	}
	var profile UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, "", &core.GuessrError{Op: "Manager.loadProfile", Kind: "store", ID: username, Err: fmt.Errorf("%v: %w", err, core.ErrCorruptRecord)}
	}
	if profile.Achievements == nil {
		profile.Achievements = []string{}
	}
	return &profile, raw, nil
}

// profileUpdate is the committed before/after pair from updateProfile.
type profileUpdate struct {
	old     *UserProfile
	updated *UserProfile
	// unlocked lists achievements newly merged by this update
	unlocked []Achievement
}

// updateProfile loads or initialises the profile, applies mutate, merges
// newly unlocked achievements and writes it back with compare-and-swap,
// retrying from a fresh read on conflict. Achievements are evaluated
// against the snapshot that is actually replaced, so each is awarded once.
func (m *Manager) updateProfile(ctx context.Context, username string, mutate func(*UserProfile)) (*profileUpdate, error) {
	var result *profileUpdate

	err := m.retry(ctx, func(int) error {
		old, raw, err := m.loadProfile(ctx, username)
		if err != nil {
			return err
		}

		updated := old.Clone()
		if updated == nil {
			updated = newProfile(username, m.now())
		}
		mutate(updated)

		unlocked := CheckAchievements(old, *updated)
		MergeAchievements(updated, unlocked)

		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		ok, err := m.store.CompareAndSwap(ctx, userKey(username), raw, old != nil, string(data))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("profile %s: %w", username, core.ErrConflict)
		}

		result = &profileUpdate{old: old, updated: updated, unlocked: unlocked}
		return nil
	})
	return result, err
}

// registerUser appends username to users:list if missing.
func (m *Manager) registerUser(ctx context.Context, username string) error {
	return m.retry(ctx, func(int) error {
		raw, found, err := m.store.Get(ctx, usersListKey)
		if err != nil {
			return err
		}

		var users []string
		if found {
			if err := json.Unmarshal([]byte(raw), &users); err != nil {
				return fmt.Errorf("users list: %v: %w", err, core.ErrCorruptRecord)
			}
		}
		for _, u := range users {
			if u == username {
				return nil
			}
		}

		data, err := json.Marshal(append(users, username))
		if err != nil {
			return err
		}
		ok, err := m.store.CompareAndSwap(ctx, usersListKey, raw, found, string(data))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("users list: %w", core.ErrConflict)
		}
		return nil
	})
}

// listUsers returns every registered username in registration order.
func (m *Manager) listUsers(ctx context.Context) ([]string, error) {
	raw, found, err := m.store.Get(ctx, usersListKey)
	if err != nil || !found {
		return nil, err
	}
	var users []string
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("users list: %v: %w", err, core.ErrCorruptRecord)
	}
	return users, nil
}
