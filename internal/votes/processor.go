// Package votes grants rewards for third-party vote events, at most
// once per cooldown window per user.
package votes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"goldbot/internal/cache"
	"goldbot/internal/economy"
	"goldbot/internal/metrics"
	"goldbot/internal/store"
)

const (
	karmaPerVote   = 10
	ticketsPerVote = 3
	ticketCapCeil  = 50
)

type Processor struct {
	store    economy.Store
	cache    economy.Cache
	eco      *economy.Economy
	notify   economy.Notifier
	cooldown time.Duration
	now      func() time.Time

	// Per-user locks serialize the cooldown check against the
	// last-vote write inside this process. The store-level conditional
	// update covers redeliveries across processes; together they make
	// the grant exactly-once.
	locks *xsync.MapOf[int64, *sync.Mutex]
}

func NewProcessor(st economy.Store, c economy.Cache, eco *economy.Economy, n economy.Notifier, cooldown time.Duration) *Processor {
	return &Processor{
		store:    st,
		cache:    c,
		eco:      eco,
		notify:   n,
		cooldown: cooldown,
		now:      time.Now,
		locks:    xsync.NewMapOf[int64, *sync.Mutex](),
	}
}

// SetClock pins time in tests.
func (p *Processor) SetClock(now func() time.Time) { p.now = now }

// Result reports what a processed vote granted.
type Result struct {
	Granted bool
	Amount  int64
	Crates  int
	Tickets bool
}

// Process runs the reward sequence for one vote event. The cooldown
// decision reads the persistent store, never the cache: the vote source
// may redeliver the same event and the cache is not a source of truth.
// Steps after the last-vote write are not atomic as a unit; a failed
// critical write aborts the remainder (accepted at-least-once risk).
func (p *Processor) Process(ctx context.Context, userID int64, receivedAt time.Time) (*Result, error) {
	exists, err := p.store.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("vote: user lookup %d: %w", userID, err)
	}
	if !exists {
		log.Printf("vote: %d does not exist", userID)
		metrics.VotesRejected.WithLabelValues("unknown_user").Inc()
		return &Result{}, nil
	}

	mu, _ := p.locks.LoadOrStore(userID, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	rec, err := p.store.GetEconomy(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("vote: %d has no economy record", userID)
			metrics.VotesRejected.WithLabelValues("unknown_user").Inc()
			return &Result{}, nil
		}
		return nil, fmt.Errorf("vote: record for %d: %w", userID, err)
	}

	if receivedAt.Sub(rec.LastVote) < p.cooldown {
		log.Printf("vote: %d already voted", userID)
		metrics.VotesRejected.WithLabelValues("cooldown").Inc()
		return &Result{}, nil
	}

	ok, err := p.store.SetLastVote(ctx, userID, receivedAt, p.cooldown)
	if err != nil {
		return nil, fmt.Errorf("vote: last-vote write for %d: %w", userID, err)
	}
	if !ok {
		// A concurrent delivery won the conditional update.
		log.Printf("vote: %d already voted (concurrent)", userID)
		metrics.VotesRejected.WithLabelValues("cooldown").Inc()
		return &Result{}, nil
	}

	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("vote: user %d: %w", userID, err)
	}

	prestige := user.Prestige
	if prestige > 15 {
		prestige = 15
	}
	amount := int64(math.Floor(15000 * (float64(prestige)/2 + 1)))

	if _, err := p.eco.AddBalance(ctx, userID, amount); err != nil {
		return nil, fmt.Errorf("vote: balance grant for %d: %w", userID, err)
	}
	if err := p.store.AddKarma(ctx, userID, karmaPerVote); err != nil {
		return nil, fmt.Errorf("vote: karma grant for %d: %w", userID, err)
	}
	if _, err := p.eco.AddBooster(ctx, userID, economy.ItemVoteBooster); err != nil {
		return nil, fmt.Errorf("vote: booster grant for %d: %w", userID, err)
	}

	if err := p.cache.Delete(ctx, cache.VoteKey(userID), cache.BoostersKey(userID)); err != nil {
		log.Printf("vote: cache invalidate for %d: %v", userID, err)
	}

	ticketsGranted := false
	if rec.Tickets <= ticketCap(user)-ticketsPerVote {
		if err := p.store.AddTickets(ctx, userID, ticketsPerVote); err != nil {
			return nil, fmt.Errorf("vote: ticket grant for %d: %w", userID, err)
		}
		ticketsGranted = true
	}

	crates := int(math.Floor(float64(prestige)/1.5 + 1))
	if crates > 5 {
		crates = 5
	}
	if err := p.store.AddInventory(ctx, userID, economy.ItemVoteCrate, int64(crates)); err != nil {
		return nil, fmt.Errorf("vote: crate grant for %d: %w", userID, err)
	}

	if user.DMVote {
		text := fmt.Sprintf(
			"thank you for voting! you received:\n+ $%d\n+ %d karma\n+ a 2 hour vote booster\n+ %d vote crates",
			amount, karmaPerVote, crates)
		if ticketsGranted {
			text += fmt.Sprintf("\n+ %d lottery tickets", ticketsPerVote)
		}
		if err := p.notify.Notify(ctx, userID, text); err != nil {
			log.Printf("vote: confirmation for %d: %v", userID, err)
		}
	}

	metrics.VotesProcessed.Inc()
	log.Printf("vote: processed for %d", userID)

	return &Result{Granted: true, Amount: amount, Crates: crates, Tickets: ticketsGranted}, nil
}

// ticketCap is the tier-derived lottery ticket ceiling.
func ticketCap(user *store.User) int {
	prestige := user.Prestige
	if prestige > 20 {
		prestige = 20
	}
	prestigeBonus := int(math.Floor(float64(prestige) / 2.5))

	premiumBonus := 0
	if user.Premium {
		premiumBonus = user.PremiumTier
	}

	karmaBonus := int(user.Karma / 100)

	cap := 15 + 4*(prestigeBonus+premiumBonus+karmaBonus)
	if cap > ticketCapCeil {
		cap = ticketCapCeil
	}
	return cap
}
