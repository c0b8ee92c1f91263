package economy

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"

	"goldbot/internal/cache"
	"goldbot/internal/store"
)

// XP reads the user's experience cache-aside. The cached value is plain
// text; experience has no expiry semantics of its own, so the hit path
// needs no re-validation.
func (e *Economy) XP(ctx context.Context, userID int64) (int64, error) {
	key := cache.XPKey(userID)

	raw, hit, err := e.cache.Get(ctx, key)
	if err != nil {
		log.Printf("xp: cache read for %d: %v", userID, err)
	} else if hit {
		if xp, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return xp, nil
		}
		log.Printf("xp: bad cache entry for %d: %q", userID, raw)
	}

	rec, err := e.store.GetEconomy(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := e.cache.Set(ctx, key, strconv.FormatInt(rec.XP, 10), xpCacheTTL); err != nil {
		log.Printf("xp: cache populate for %d: %v", userID, err)
	}

	return rec.XP, nil
}

// SetXP writes experience through to the store and invalidates the
// cache entry before returning, so a read that follows a write can
// never observe the pre-write value. The level check runs after the
// invalidation; level-up handling itself is a collaborator concern.
func (e *Economy) SetXP(ctx context.Context, userID int64, xp int64, levelCheck bool) error {
	if xp < 0 {
		xp = 0
	}
	if err := e.store.UpdateXP(ctx, userID, xp); err != nil {
		return err
	}
	if err := e.cache.Delete(ctx, cache.XPKey(userID)); err != nil {
		// A stale cache entry here would break read-after-write, so
		// this failure is not swallowed.
		return fmt.Errorf("xp: cache invalidate for %d: %w", userID, err)
	}
	if levelCheck && e.LevelCheck != nil {
		e.LevelCheck(ctx, userID)
	}
	return nil
}

// AddXP is a read-modify-write convenience over XP/SetXP.
func (e *Economy) AddXP(ctx context.Context, userID int64, delta int64, levelCheck bool) error {
	xp, err := e.XP(ctx, userID)
	if err != nil {
		return err
	}
	return e.SetXP(ctx, userID, xp+delta, levelCheck)
}

// GambleXP computes the experience earned from a gamble of bet at the
// given payout multiplier. Returns 0 when the bet is under the per-user
// floor, unless the global infinite-max-bet flag is set in the cache.
// The result is never below the computed base minimum and never
// negative.
func (e *Economy) GambleXP(ctx context.Context, userID int64, bet int64, multiplier float64) (int64, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	xp, err := e.XP(ctx, userID)
	if err != nil {
		return 0, err
	}
	level := RawLevel(user.Prestige, xp)

	override, err := e.cache.Exists(ctx, cache.KeyInfiniteMaxBet)
	if err != nil {
		log.Printf("xp: override flag read: %v", err)
		override = false
	}
	if bet < RequiredBetForXP(level) && !override {
		return 0, nil
	}

	inv, err := e.store.Inventory(ctx, userID)
	if err != nil {
		return 0, err
	}
	boosters, err := e.ActiveBoosters(ctx, userID)
	if err != nil {
		return 0, err
	}
	upgrades, err := e.store.ListUpgrades(ctx, userID)
	if err != nil {
		return 0, err
	}

	min := 1.0

	levelTerm := float64(level) / 25
	if levelTerm > 40 {
		levelTerm = 40
	}
	min += levelTerm

	if user.BoosterStatus {
		min += 5
	}
	min += float64(user.PremiumTier) * 2.7

	if inv[ItemCrystalHeart] > 0 {
		min += float64(e.randInt(10))
	}
	if inv[ItemWhiteGem] > 0 {
		if e.randInt(10) < 2 {
			min -= float64(e.randInt(7))
		} else {
			e.gemBreak(ctx, userID, 0.007, ItemWhiteGem)
			min += float64(e.randInt(17) + 1)
		}
	}

	pct := float64(bet) / float64(MaxBet(user))
	if pct < 0.25 {
		pct = 0.25
	}
	min *= pct
	min *= multiplier * 0.7

	max := min * 1.3

	earned := math.Floor(e.randFloat()*(max-min)) + min
	if earned < min {
		earned = min
	}

	earned += e.xpBoostFraction(boosters, upgrades) * earned

	if earned < 0 {
		earned = 0
	}
	return int64(math.Floor(earned)), nil
}

// ActivityXP is the reward curve for gathering actions: piecewise on
// whether more than 30 items were collected, with a level-derived upper
// bound. Clamped at zero.
func (e *Economy) ActivityXP(ctx context.Context, userID int64, itemCount int) (int64, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	xp, err := e.XP(ctx, userID)
	if err != nil {
		return 0, err
	}
	level := RawLevel(user.Prestige, xp)

	boosters, err := e.ActiveBoosters(ctx, userID)
	if err != nil {
		return 0, err
	}
	upgrades, err := e.store.ListUpgrades(ctx, userID)
	if err != nil {
		return 0, err
	}

	min := 0.0
	n := itemCount
	if n > 30 {
		min += e.randFloat()*15 + 15
		n -= 30
		min += float64(n) * 0.369
	} else {
		min += e.randFloat()*(float64(n)/2) + float64(n)/2
	}
	min *= 1.369

	headroom := float64(level) / 50
	if headroom > 30 {
		headroom = 30
	}
	max := min + headroom

	earned := e.randFloat()*(max-min) + min
	earned += e.xpBoostFraction(boosters, upgrades) * earned

	if earned < 0 {
		earned = 0
	}
	return int64(math.Floor(earned)), nil
}

// xpBoostFraction sums the xp effect of every active booster whose
// catalog entry boosts experience, plus any permanent xp upgrade.
func (e *Economy) xpBoostFraction(boosters map[string][]store.Booster, upgrades []store.Upgrade) float64 {
	frac := 0.0

	for _, up := range upgrades {
		if up.Kind == BoostXP {
			frac += float64(up.Amount) * UpgradeEffect(BoostXP)
		}
	}

	for kind, list := range boosters {
		if kind == ItemBeginnerBooster {
			// Flat +100%, not per stack.
			frac += 1
			continue
		}
		item, ok := GetItem(kind)
		if !ok || item.Booster == nil {
			continue
		}
		for _, category := range item.Booster.Boosts {
			if category == BoostXP {
				frac += item.Booster.Effect * float64(len(list))
				break
			}
		}
	}

	return frac
}

// gemBreak probabilistically consumes one of the user's gems as a side
// effect of using it. Failures only lose the break, never the reward.
func (e *Economy) gemBreak(ctx context.Context, userID int64, chance float64, item string) {
	if e.randFloat() >= chance {
		return
	}
	if err := e.store.AddInventory(ctx, userID, item, -1); err != nil {
		log.Printf("xp: gem break for %d: %v", userID, err)
		return
	}
	name := item
	if it, ok := GetItem(item); ok {
		name = it.Emoji + " " + it.Name
	}
	if err := e.notify.Notify(ctx, userID, fmt.Sprintf("your %s has shattered", name)); err != nil {
		log.Printf("xp: gem break notification for %d: %v", userID, err)
	}
}
