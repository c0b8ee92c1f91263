package economy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"goldbot/internal/cache"
	"goldbot/internal/store"
)

// RawLevel derives the progression level from prestige and experience.
// Each prestige is worth a full hundred levels.
func RawLevel(prestige int, xp int64) int {
	return prestige*100 + int(xp/250)
}

// RequiredBetForXP is the minimum stake below which a gamble earns no
// experience. Grows with level so high-level players cannot farm xp on
// token bets.
func RequiredBetForXP(level int) int64 {
	return 1000 + int64(level)*50
}

// MaxBet is the per-user stake ceiling, driven by prestige and premium
// tier.
func MaxBet(user *store.User) int64 {
	prestige := user.Prestige
	if prestige > 15 {
		prestige = 15
	}
	max := int64(100000) + int64(prestige)*25000
	if user.Premium {
		max += int64(user.PremiumTier) * 50000
	}
	return max
}

// Balance reads the current wallet balance straight from the store.
func (e *Economy) Balance(ctx context.Context, userID int64) (int64, error) {
	rec, err := e.store.GetEconomy(ctx, userID)
	if err != nil {
		return 0, err
	}
	return rec.Balance, nil
}

// AddBalance adjusts the wallet by delta and returns the new balance.
func (e *Economy) AddBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	rec, err := e.store.GetEconomy(ctx, userID)
	if err != nil {
		return 0, err
	}
	balance := rec.Balance + delta
	if err := e.store.UpdateBalance(ctx, userID, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// NetWorth returns the cached valuation when fresh, otherwise
// recomputes, persists and caches it.
func (e *Economy) NetWorth(ctx context.Context, userID int64) (int64, error) {
	key := cache.NetWorthKey(userID)
	if raw, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		if worth, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return worth, nil
		}
	} else if err != nil {
		log.Printf("networth: cache read for %d: %v", userID, err)
	}
	return e.RefreshNetWorth(ctx, userID)
}

// RefreshNetWorth recomputes the aggregate valuation of a user's
// holdings: wallet, bank and inventory at sell value. The result is
// persisted with a computed-at stamp and cached.
func (e *Economy) RefreshNetWorth(ctx context.Context, userID int64) (int64, error) {
	rec, err := e.store.GetEconomy(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("networth: record for %d: %w", userID, err)
	}

	inv, err := e.store.Inventory(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("networth: inventory for %d: %w", userID, err)
	}

	worth := rec.Balance + rec.Bank
	for item, amount := range inv {
		if it, ok := GetItem(item); ok {
			worth += it.Sell * amount
		}
	}

	if err := e.store.UpdateNetWorth(ctx, userID, worth, e.now()); err != nil {
		return 0, fmt.Errorf("networth: persist for %d: %w", userID, err)
	}
	if err := e.cache.Set(ctx, cache.NetWorthKey(userID), strconv.FormatInt(worth, 10), netWorthCacheTTL); err != nil {
		log.Printf("networth: cache populate for %d: %v", userID, err)
	}

	return worth, nil
}
