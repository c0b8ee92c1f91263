package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"goldbot/internal/cache"
	"goldbot/internal/metrics"
	"goldbot/internal/store"
)

// ActiveBoosters returns the user's non-expired boosters grouped by
// kind. Kinds with no live boosters are absent from the map. The active
// set is served cache-aside, but expiry is always re-checked against the
// wall clock: the cache TTL and booster expiry are independent timers,
// so a cache hit is never trusted to have pruned expired entries.
//
// Every booster observed expired is deleted from the store. A failed
// delete is logged and the booster is still excluded from the returned
// set.
func (e *Economy) ActiveBoosters(ctx context.Context, userID int64) (map[string][]store.Booster, error) {
	key := cache.BoostersKey(userID)

	raw, hit, err := e.cache.Get(ctx, key)
	if err != nil {
		log.Printf("boosters: cache read for %d: %v", userID, err)
		hit = false
	}

	if hit {
		var cached map[string][]store.Booster
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			log.Printf("boosters: bad cache entry for %d: %v", userID, err)
		} else {
			swept, expired := e.sweep(ctx, userID, cached)
			if len(expired) > 0 {
				if err := e.cache.Delete(ctx, key); err != nil {
					log.Printf("boosters: cache invalidate for %d: %v", userID, err)
				}
				e.notifyExpired(ctx, userID, expired)
			}
			return swept, nil
		}
	}

	rows, err := e.store.ListBoosters(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("boosters: list for %d: %w", userID, err)
	}

	grouped := make(map[string][]store.Booster)
	for _, b := range rows {
		grouped[b.Kind] = append(grouped[b.Kind], b)
	}

	swept, expired := e.sweep(ctx, userID, grouped)

	data, err := json.Marshal(swept)
	if err == nil {
		if err := e.cache.Set(ctx, key, string(data), boosterCacheTTL); err != nil {
			log.Printf("boosters: cache populate for %d: %v", userID, err)
		}
	}

	if len(expired) > 0 {
		e.notifyExpired(ctx, userID, expired)
	}

	return swept, nil
}

// AddBooster activates one booster of the given kind. Stacking is free:
// many boosters of the same kind may coexist.
func (e *Economy) AddBooster(ctx context.Context, userID int64, kind string) (store.Booster, error) {
	item, ok := GetItem(kind)
	if !ok || item.Booster == nil {
		return store.Booster{}, fmt.Errorf("boosters: unknown kind %q", kind)
	}

	b := store.Booster{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: e.now().Add(item.Booster.Duration),
	}
	if err := e.store.CreateBooster(ctx, b); err != nil {
		return store.Booster{}, fmt.Errorf("boosters: add %q for %d: %w", kind, userID, err)
	}
	if err := e.cache.Delete(ctx, cache.BoostersKey(userID)); err != nil {
		log.Printf("boosters: cache invalidate for %d: %v", userID, err)
	}
	return b, nil
}

// sweep removes expired boosters from the mapping and from the store,
// returning the live set and a per-kind count of what expired.
func (e *Economy) sweep(ctx context.Context, userID int64, boosters map[string][]store.Booster) (map[string][]store.Booster, map[string]int) {
	now := e.now()
	live := make(map[string][]store.Booster, len(boosters))
	expired := make(map[string]int)

	for kind, list := range boosters {
		var keep []store.Booster
		for _, b := range list {
			if b.Expired(now) {
				expired[kind]++
				metrics.BoostersExpired.Inc()
				if err := e.store.DeleteBooster(ctx, b.ID); err != nil {
					log.Printf("boosters: delete expired %s for %d: %v", b.ID, userID, err)
				}
				continue
			}
			keep = append(keep, b)
		}
		if len(keep) > 0 {
			live[kind] = keep
		}
	}

	return live, expired
}

// notifyExpired sends one aggregated message per sweep, never one per
// booster. Skipped entirely when the user disabled booster DMs.
func (e *Economy) notifyExpired(ctx context.Context, userID int64, expired map[string]int) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		log.Printf("boosters: dm prefs for %d: %v", userID, err)
		return
	}
	if !user.DMBooster {
		return
	}

	kinds := make([]string, 0, len(expired))
	for kind := range expired {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	total := 0
	lines := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		name := kind
		if item, ok := GetItem(kind); ok {
			name = item.Emoji + " " + item.Name
		}
		lines = append(lines, fmt.Sprintf("%dx %s", expired[kind], name))
		total += expired[kind]
	}

	text := fmt.Sprintf("%d of your boosters have expired:\n%s", total, strings.Join(lines, "\n"))
	if total == 1 {
		text = fmt.Sprintf("your %s has expired", strings.TrimPrefix(lines[0], "1x "))
	}

	if err := e.notify.Notify(ctx, userID, text); err != nil {
		log.Printf("boosters: expiry notification for %d: %v", userID, err)
	}
}
