package store

import "time"

// User is the profile row. Progression tiers and notification
// preferences live here; economy state lives in EconomyRecord.
type User struct {
	UserID        int64     `db:"user_id"`
	Username      string    `db:"username"`
	Prestige      int       `db:"prestige"`
	Karma         int64     `db:"karma"`
	Premium       bool      `db:"premium"`
	PremiumTier   int       `db:"premium_tier"`
	BoosterStatus bool      `db:"booster_status"`
	DMBooster     bool      `db:"dm_booster"`
	DMVote        bool      `db:"dm_vote"`
	LastCommand   time.Time `db:"last_command"`
	CreatedAt     time.Time `db:"created_at"`
}

// EconomyRecord is the single per-user economy row. Mutated only through
// the xp accumulator, the net-worth refresher and the vote processor.
type EconomyRecord struct {
	UserID            int64     `db:"user_id"`
	Balance           int64     `db:"balance"`
	Bank              int64     `db:"bank"`
	XP                int64     `db:"xp"`
	LastVote          time.Time `db:"last_vote"`
	NetWorth          int64     `db:"net_worth"`
	NetWorthUpdatedAt time.Time `db:"net_worth_updated_at"`
	Tickets           int       `db:"tickets"`
}

// Booster is a time-limited multiplier. Rows are deleted lazily, the
// moment any reader observes expires_at in the past.
type Booster struct {
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Kind      string    `db:"booster_kind" json:"kind"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

func (b Booster) Expired(now time.Time) bool {
	return !b.ExpiresAt.After(now)
}

// Upgrade is a purchased permanent effect, unlike a Booster it never
// expires.
type Upgrade struct {
	UserID int64  `db:"user_id"`
	Kind   string `db:"upgrade_kind"`
	Amount int    `db:"amount"`
}

type InventoryItem struct {
	UserID int64  `db:"user_id"`
	Item   string `db:"item"`
	Amount int64  `db:"amount"`
}

// Mute is a per-chat moderation entry. Expired rows are cleared lazily
// on read, the same way boosters are.
type Mute struct {
	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}
