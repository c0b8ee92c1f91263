// Package store is the Postgres source of truth for profiles, economy
// records, boosters, inventories and moderation state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a referenced user has no row. Callers
// treat it as a no-op or a logged warning, never a crash.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sqlx.DB
}

func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store connect: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func NewWithDB(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id        BIGINT PRIMARY KEY,
		username       TEXT NOT NULL DEFAULT '',
		prestige       INT NOT NULL DEFAULT 0,
		karma          BIGINT NOT NULL DEFAULT 0,
		premium        BOOLEAN NOT NULL DEFAULT FALSE,
		premium_tier   INT NOT NULL DEFAULT 0,
		booster_status BOOLEAN NOT NULL DEFAULT FALSE,
		dm_booster     BOOLEAN NOT NULL DEFAULT TRUE,
		dm_vote        BOOLEAN NOT NULL DEFAULT TRUE,
		last_command   TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS economy (
		user_id              BIGINT PRIMARY KEY REFERENCES users(user_id),
		balance              BIGINT NOT NULL DEFAULT 0,
		bank                 BIGINT NOT NULL DEFAULT 0,
		xp                   BIGINT NOT NULL DEFAULT 0 CHECK (xp >= 0),
		last_vote            TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
		net_worth            BIGINT NOT NULL DEFAULT 0,
		net_worth_updated_at TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
		tickets              INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS boosters (
		id           TEXT PRIMARY KEY,
		user_id      BIGINT NOT NULL REFERENCES users(user_id),
		booster_kind TEXT NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS boosters_user_idx ON boosters (user_id)`,
	`CREATE TABLE IF NOT EXISTS upgrades (
		user_id      BIGINT NOT NULL REFERENCES users(user_id),
		upgrade_kind TEXT NOT NULL,
		amount       INT NOT NULL DEFAULT 1,
		PRIMARY KEY (user_id, upgrade_kind)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		user_id BIGINT NOT NULL REFERENCES users(user_id),
		item    TEXT NOT NULL,
		amount  BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, item)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_filters (
		chat_id BIGINT PRIMARY KEY,
		words   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS mutes (
		chat_id    BIGINT NOT NULL,
		user_id    BIGINT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	)`,
}

func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store schema: %w", err)
		}
	}
	return nil
}

// ---- users ----

func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get user %d: %w", userID, err)
	}
	return &u, nil
}

func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("store user exists %d: %w", userID, err)
	}
	return n > 0, nil
}

// CreateUser inserts the profile and its economy row. Idempotent.
func (s *Store) CreateUser(ctx context.Context, userID int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username`,
		userID, username)
	if err != nil {
		return fmt.Errorf("store create user %d: %w", userID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO economy (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("store create economy %d: %w", userID, err)
	}
	return nil
}

func (s *Store) TouchLastCommand(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_command = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("store touch %d: %w", userID, err)
	}
	return nil
}

func (s *Store) SetDMPreferences(ctx context.Context, userID int64, booster, vote bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET dm_booster = $2, dm_vote = $3 WHERE user_id = $1`,
		userID, booster, vote)
	if err != nil {
		return fmt.Errorf("store dm prefs %d: %w", userID, err)
	}
	return nil
}

func (s *Store) AddKarma(ctx context.Context, userID int64, amount int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET karma = karma + $2 WHERE user_id = $1`, userID, amount)
	if err != nil {
		return fmt.Errorf("store add karma %d: %w", userID, err)
	}
	return nil
}

// StaleUsers returns users whose last command is older than cutoff.
// Feed for the net-worth refresher.
func (s *Store) StaleUsers(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM users WHERE last_command < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store stale users: %w", err)
	}
	return ids, nil
}

// ---- economy records ----

func (s *Store) GetEconomy(ctx context.Context, userID int64) (*EconomyRecord, error) {
	var rec EconomyRecord
	err := s.db.GetContext(ctx, &rec, `SELECT * FROM economy WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get economy %d: %w", userID, err)
	}
	return &rec, nil
}

func (s *Store) UpdateXP(ctx context.Context, userID int64, xp int64) error {
	if xp < 0 {
		xp = 0
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE economy SET xp = $2 WHERE user_id = $1`, userID, xp)
	if err != nil {
		return fmt.Errorf("store update xp %d: %w", userID, err)
	}
	return nil
}

func (s *Store) UpdateBalance(ctx context.Context, userID int64, balance int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE economy SET balance = $2 WHERE user_id = $1`, userID, balance)
	if err != nil {
		return fmt.Errorf("store update balance %d: %w", userID, err)
	}
	return nil
}

func (s *Store) UpdateNetWorth(ctx context.Context, userID int64, worth int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE economy SET net_worth = $2, net_worth_updated_at = $3 WHERE user_id = $1`,
		userID, worth, at)
	if err != nil {
		return fmt.Errorf("store update net worth %d: %w", userID, err)
	}
	return nil
}

// SetLastVote advances last_vote to at only when the stored value is at
// least cooldown in the past. The conditional update is the idempotency
// guard for redelivered vote events: concurrent deliveries race to one
// winning row update, everyone else sees false.
func (s *Store) SetLastVote(ctx context.Context, userID int64, at time.Time, cooldown time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE economy SET last_vote = $2 WHERE user_id = $1 AND last_vote <= $3`,
		userID, at, at.Add(-cooldown))
	if err != nil {
		return false, fmt.Errorf("store set last vote %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store set last vote %d: %w", userID, err)
	}
	return n > 0, nil
}

func (s *Store) AddTickets(ctx context.Context, userID int64, n int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE economy SET tickets = tickets + $2 WHERE user_id = $1`, userID, n)
	if err != nil {
		return fmt.Errorf("store add tickets %d: %w", userID, err)
	}
	return nil
}

// ---- boosters ----

func (s *Store) ListBoosters(ctx context.Context, userID int64) ([]Booster, error) {
	var out []Booster
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM boosters WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("store list boosters %d: %w", userID, err)
	}
	return out, nil
}

func (s *Store) CreateBooster(ctx context.Context, b Booster) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boosters (id, user_id, booster_kind, expires_at) VALUES ($1, $2, $3, $4)`,
		b.ID, b.UserID, b.Kind, b.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store create booster: %w", err)
	}
	return nil
}

func (s *Store) DeleteBooster(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM boosters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store delete booster %s: %w", id, err)
	}
	return nil
}

// ---- upgrades / inventory ----

func (s *Store) ListUpgrades(ctx context.Context, userID int64) ([]Upgrade, error) {
	var out []Upgrade
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM upgrades WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("store list upgrades %d: %w", userID, err)
	}
	return out, nil
}

func (s *Store) Inventory(ctx context.Context, userID int64) (map[string]int64, error) {
	var rows []InventoryItem
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM inventory WHERE user_id = $1 AND amount > 0`, userID)
	if err != nil {
		return nil, fmt.Errorf("store inventory %d: %w", userID, err)
	}
	inv := make(map[string]int64, len(rows))
	for _, r := range rows {
		inv[r.Item] = r.Amount
	}
	return inv, nil
}

// AddInventory adjusts an item count by delta, clamping at zero.
func (s *Store) AddInventory(ctx context.Context, userID int64, item string, delta int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inventory (user_id, item, amount) VALUES ($1, $2, GREATEST($3, 0))
		 ON CONFLICT (user_id, item) DO UPDATE SET amount = GREATEST(inventory.amount + $3, 0)`,
		userID, item, delta)
	if err != nil {
		return fmt.Errorf("store add inventory %d %s: %w", userID, item, err)
	}
	return nil
}

// ---- moderation ----

func (s *Store) GetChatFilter(ctx context.Context, chatID int64) ([]string, error) {
	var words string
	err := s.db.GetContext(ctx, &words,
		`SELECT words FROM chat_filters WHERE chat_id = $1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store chat filter %d: %w", chatID, err)
	}
	if words == "" {
		return nil, nil
	}
	return strings.Split(words, ","), nil
}

func (s *Store) SetChatFilter(ctx context.Context, chatID int64, words []string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_filters (chat_id, words) VALUES ($1, $2)
		 ON CONFLICT (chat_id) DO UPDATE SET words = EXCLUDED.words`,
		chatID, strings.Join(words, ","))
	if err != nil {
		return fmt.Errorf("store set chat filter %d: %w", chatID, err)
	}
	return nil
}

func (s *Store) UpsertMute(ctx context.Context, m Mute) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mutes (chat_id, user_id, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (chat_id, user_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		m.ChatID, m.UserID, m.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store upsert mute: %w", err)
	}
	return nil
}

func (s *Store) GetMute(ctx context.Context, chatID, userID int64) (*Mute, error) {
	var m Mute
	err := s.db.GetContext(ctx, &m,
		`SELECT * FROM mutes WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get mute: %w", err)
	}
	return &m, nil
}

func (s *Store) DeleteMute(ctx context.Context, chatID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM mutes WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("store delete mute: %w", err)
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM users`); err != nil {
		return 0, fmt.Errorf("store count users: %w", err)
	}
	return n, nil
}
