// Package testsupport provides in-memory fakes for the store, cache and
// notifier capabilities so the economy core can be tested without
// Postgres or redis.
package testsupport

import (
	"context"
	"errors"
	"sync"
	"time"

	"goldbot/internal/store"
)

// Clock is a controllable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// MemStore implements the economy and moderation store interfaces.
type MemStore struct {
	mu sync.Mutex

	Users    map[int64]*store.User
	Records  map[int64]*store.EconomyRecord
	Boosters map[string]store.Booster
	Upgrades map[int64][]store.Upgrade
	Inv      map[int64]map[string]int64
	Filters  map[int64][]string
	Mutes    map[[2]int64]store.Mute

	// FailBoosterDelete makes DeleteBooster return an error, for
	// exercising the fail-open sweep path.
	FailBoosterDelete bool
	DeletedBoosters   []string
}

func NewMemStore() *MemStore {
	return &MemStore{
		Users:    make(map[int64]*store.User),
		Records:  make(map[int64]*store.EconomyRecord),
		Boosters: make(map[string]store.Booster),
		Upgrades: make(map[int64][]store.Upgrade),
		Inv:      make(map[int64]map[string]int64),
		Filters:  make(map[int64][]string),
		Mutes:    make(map[[2]int64]store.Mute),
	}
}

// AddUser seeds a user with an empty economy record.
func (m *MemStore) AddUser(u store.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[u.UserID] = &u
	if _, ok := m.Records[u.UserID]; !ok {
		m.Records[u.UserID] = &store.EconomyRecord{UserID: u.UserID}
	}
}

func (m *MemStore) GetUser(_ context.Context, userID int64) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) UserExists(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Users[userID]
	return ok, nil
}

func (m *MemStore) GetEconomy(_ context.Context, userID int64) (*store.EconomyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemStore) UpdateXP(_ context.Context, userID int64, xp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[userID]
	if !ok {
		return store.ErrNotFound
	}
	rec.XP = xp
	return nil
}

func (m *MemStore) UpdateBalance(_ context.Context, userID int64, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[userID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Balance = balance
	return nil
}

func (m *MemStore) UpdateNetWorth(_ context.Context, userID int64, worth int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[userID]
	if !ok {
		return store.ErrNotFound
	}
	rec.NetWorth = worth
	rec.NetWorthUpdatedAt = at
	return nil
}

func (m *MemStore) SetLastVote(_ context.Context, userID int64, at time.Time, cooldown time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[userID]
	if !ok {
		return false, store.ErrNotFound
	}
	if rec.LastVote.After(at.Add(-cooldown)) {
		return false, nil
	}
	rec.LastVote = at
	return true, nil
}

func (m *MemStore) AddKarma(_ context.Context, userID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Karma += amount
	return nil
}

func (m *MemStore) AddTickets(_ context.Context, userID int64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[userID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Tickets += n
	return nil
}

func (m *MemStore) ListBoosters(_ context.Context, userID int64) ([]store.Booster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Booster
	for _, b := range m.Boosters {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemStore) CreateBooster(_ context.Context, b store.Booster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Boosters[b.ID] = b
	return nil
}

func (m *MemStore) DeleteBooster(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailBoosterDelete {
		return errors.New("delete refused")
	}
	delete(m.Boosters, id)
	m.DeletedBoosters = append(m.DeletedBoosters, id)
	return nil
}

func (m *MemStore) ListUpgrades(_ context.Context, userID int64) ([]store.Upgrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Upgrade(nil), m.Upgrades[userID]...), nil
}

func (m *MemStore) Inventory(_ context.Context, userID int64) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.Inv[userID]))
	for k, v := range m.Inv[userID] {
		if v > 0 {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemStore) AddInventory(_ context.Context, userID int64, item string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Inv[userID] == nil {
		m.Inv[userID] = make(map[string]int64)
	}
	m.Inv[userID][item] += delta
	if m.Inv[userID][item] < 0 {
		m.Inv[userID][item] = 0
	}
	return nil
}

func (m *MemStore) StaleUsers(_ context.Context, cutoff time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for id, u := range m.Users {
		if u.LastCommand.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *MemStore) GetChatFilter(_ context.Context, chatID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Filters[chatID]...), nil
}

func (m *MemStore) SetChatFilter(_ context.Context, chatID int64, words []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Filters[chatID] = append([]string(nil), words...)
	return nil
}

func (m *MemStore) UpsertMute(_ context.Context, mu store.Mute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Mutes[[2]int64{mu.ChatID, mu.UserID}] = mu
	return nil
}

func (m *MemStore) GetMute(_ context.Context, chatID, userID int64) (*store.Mute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mu, ok := m.Mutes[[2]int64{chatID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &mu, nil
}

func (m *MemStore) DeleteMute(_ context.Context, chatID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Mutes, [2]int64{chatID, userID})
	return nil
}

func (m *MemStore) CountUsers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.Users)), nil
}

// MemCache is a TTL map honoring the fake clock.
type MemCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memEntry
}

type memEntry struct {
	value string
	exp   time.Time
}

func NewMemCache(now func() time.Time) *MemCache {
	return &MemCache{now: now, entries: make(map[string]memEntry)}
}

func (c *MemCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.exp.After(c.now()) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memEntry{value: value, exp: c.now().Add(ttl)}
	return nil
}

func (c *MemCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *MemCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.exp.After(c.now()), nil
}

// MemNotifier records every notification.
type MemNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

type Notification struct {
	UserID int64
	Text   string
}

func NewMemNotifier() *MemNotifier { return &MemNotifier{} }

func (n *MemNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Notification{UserID: userID, Text: text})
	return nil
}

func (n *MemNotifier) All() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.Sent...)
}
