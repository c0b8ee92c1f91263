package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"goldbot/internal/cache"
	"goldbot/internal/economy"
	"goldbot/internal/metrics"
	"goldbot/internal/store"
)

// NetWorthJob recomputes net worth for users who have been inactive
// longer than stale. Users whose net-worth cache entry still exists are
// skipped without reading the value: a live cache key means the figure
// was refreshed recently enough.
func NetWorthJob(st economy.Store, c economy.Cache, eco *economy.Economy, every, stale time.Duration) *Job {
	return &Job{
		Name:  "networth",
		Every: every,
		Run: func(ctx context.Context, progress func(string)) error {
			start := time.Now()

			users, err := st.StaleUsers(ctx, time.Now().Add(-stale))
			if err != nil {
				return fmt.Errorf("stale users: %w", err)
			}

			count := 0
			for _, userID := range users {
				fresh, err := c.Exists(ctx, cache.NetWorthKey(userID))
				if err != nil {
					log.Printf("jobs: networth cache check for %d: %v", userID, err)
				} else if fresh {
					continue
				}

				if _, err := eco.RefreshNetWorth(ctx, userID); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					log.Printf("jobs: networth refresh for %d: %v", userID, err)
					continue
				}
				metrics.NetWorthRefreshed.Inc()
				count++
			}

			progress(fmt.Sprintf("net worth updated for %d members in %s", count, time.Since(start).Round(time.Millisecond)))
			return nil
		},
	}
}
