// Package economy implements the cache-aside economy core: the booster
// ledger, the experience accumulator and net-worth valuation. All reads
// go through the fast cache when possible; every time-sensitive value is
// re-validated against the wall clock after a cache hit, because cache
// TTLs and domain expiry are independent timers.
package economy

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"goldbot/internal/store"
)

// Store is the persistent-store capability surface the economy core
// consumes.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*store.User, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	GetEconomy(ctx context.Context, userID int64) (*store.EconomyRecord, error)
	UpdateXP(ctx context.Context, userID int64, xp int64) error
	UpdateBalance(ctx context.Context, userID int64, balance int64) error
	UpdateNetWorth(ctx context.Context, userID int64, worth int64, at time.Time) error
	SetLastVote(ctx context.Context, userID int64, at time.Time, cooldown time.Duration) (bool, error)
	AddKarma(ctx context.Context, userID int64, amount int64) error
	AddTickets(ctx context.Context, userID int64, n int) error
	ListBoosters(ctx context.Context, userID int64) ([]store.Booster, error)
	CreateBooster(ctx context.Context, b store.Booster) error
	DeleteBooster(ctx context.Context, id string) error
	ListUpgrades(ctx context.Context, userID int64) ([]store.Upgrade, error)
	Inventory(ctx context.Context, userID int64) (map[string]int64, error)
	AddInventory(ctx context.Context, userID int64, item string, delta int64) error
	StaleUsers(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// Cache is the fast-cache capability surface. Absence of a key is a
// miss, never an error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Notifier enqueues a best-effort message to a user. Delivery semantics
// belong to the collaborator.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

const (
	boosterCacheTTL  = 5 * time.Minute
	xpCacheTTL       = time.Hour
	netWorthCacheTTL = time.Hour
)

type Economy struct {
	store  Store
	cache  Cache
	notify Notifier

	// LevelCheck is invoked after xp writes that request it. Level-up
	// handling is a collaborator concern.
	LevelCheck func(ctx context.Context, userID int64)

	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(st Store, c Cache, n Notifier) *Economy {
	return &Economy{
		store:  st,
		cache:  c,
		notify: n,
		now:    time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock and SetRand pin time and randomness in tests.
func (e *Economy) SetClock(now func() time.Time) { e.now = now }

func (e *Economy) SetRand(r *rand.Rand) { e.rnd = r }

func (e *Economy) randFloat() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Float64()
}

func (e *Economy) randInt(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(n)
}
