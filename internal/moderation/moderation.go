// Package moderation enforces per-chat mute state and chat filters.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"goldbot/internal/cache"
	"goldbot/internal/store"
)

var (
	ErrWordExists   = errors.New("moderation: word already in filter")
	ErrWordMissing  = errors.New("moderation: word not in filter")
	ErrWordInvalid  = errors.New("moderation: word must contain letters or numbers")
	ErrFilterBudget = errors.New("moderation: filter is full")
)

// filterBudget caps the combined length of all filter words per chat.
const filterBudget = 1000

const filterCacheTTL = 5 * time.Minute

type Store interface {
	GetChatFilter(ctx context.Context, chatID int64) ([]string, error)
	SetChatFilter(ctx context.Context, chatID int64, words []string) error
	UpsertMute(ctx context.Context, m store.Mute) error
	GetMute(ctx context.Context, chatID, userID int64) (*store.Mute, error)
	DeleteMute(ctx context.Context, chatID, userID int64) error
}

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type Service struct {
	store Store
	cache Cache
	now   func() time.Time
}

func New(st Store, c Cache) *Service {
	return &Service{store: st, cache: c, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Filter returns the chat's filter words, cache-aside.
func (s *Service) Filter(ctx context.Context, chatID int64) ([]string, error) {
	key := cache.ChatFilterKey(chatID)

	raw, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("moderation: filter cache read for %d: %v", chatID, err)
	} else if hit {
		var words []string
		if err := json.Unmarshal([]byte(raw), &words); err == nil {
			return words, nil
		}
		log.Printf("moderation: bad filter cache entry for %d", chatID)
	}

	words, err := s.store.GetChatFilter(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(words); err == nil {
		if err := s.cache.Set(ctx, key, string(data), filterCacheTTL); err != nil {
			log.Printf("moderation: filter cache populate for %d: %v", chatID, err)
		}
	}

	return words, nil
}

// NormalizeWord lowercases and strips everything but letters and
// digits, so casing or decoration cannot dodge the filter.
func NormalizeWord(word string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Service) AddFilterWord(ctx context.Context, chatID int64, word string) error {
	word = NormalizeWord(word)
	if word == "" {
		return ErrWordInvalid
	}

	words, err := s.store.GetChatFilter(ctx, chatID)
	if err != nil {
		return err
	}

	total := len(word)
	for _, w := range words {
		if w == word {
			return ErrWordExists
		}
		total += len(w)
	}
	if total > filterBudget {
		return ErrFilterBudget
	}

	words = append(words, word)
	if err := s.store.SetChatFilter(ctx, chatID, words); err != nil {
		return err
	}
	return s.invalidateFilter(ctx, chatID)
}

func (s *Service) RemoveFilterWord(ctx context.Context, chatID int64, word string) error {
	word = NormalizeWord(word)

	words, err := s.store.GetChatFilter(ctx, chatID)
	if err != nil {
		return err
	}

	kept := words[:0]
	found := false
	for _, w := range words {
		if w == word {
			found = true
			continue
		}
		kept = append(kept, w)
	}
	if !found {
		return ErrWordMissing
	}

	if err := s.store.SetChatFilter(ctx, chatID, kept); err != nil {
		return err
	}
	return s.invalidateFilter(ctx, chatID)
}

func (s *Service) invalidateFilter(ctx context.Context, chatID int64) error {
	if err := s.cache.Delete(ctx, cache.ChatFilterKey(chatID)); err != nil {
		return fmt.Errorf("moderation: filter cache invalidate for %d: %w", chatID, err)
	}
	return nil
}

// Mute silences a user in a chat for d. The cache entry carries the
// same TTL so the hot path usually never touches the store.
func (s *Service) Mute(ctx context.Context, chatID, userID int64, d time.Duration) error {
	until := s.now().Add(d)
	if err := s.store.UpsertMute(ctx, store.Mute{ChatID: chatID, UserID: userID, ExpiresAt: until}); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, cache.MuteKey(chatID, userID), "1", d); err != nil {
		log.Printf("moderation: mute cache for %d/%d: %v", chatID, userID, err)
	}
	return nil
}

func (s *Service) Unmute(ctx context.Context, chatID, userID int64) error {
	if err := s.store.DeleteMute(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cache.MuteKey(chatID, userID)); err != nil {
		log.Printf("moderation: unmute cache for %d/%d: %v", chatID, userID, err)
	}
	return nil
}

// IsMuted reports whether the user is muted, clearing an expired mute
// lazily the way expired boosters are cleared.
func (s *Service) IsMuted(ctx context.Context, chatID, userID int64) (bool, error) {
	if hit, err := s.cache.Exists(ctx, cache.MuteKey(chatID, userID)); err == nil && hit {
		return true, nil
	} else if err != nil {
		log.Printf("moderation: mute cache check for %d/%d: %v", chatID, userID, err)
	}

	m, err := s.store.GetMute(ctx, chatID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := s.now()
	if !m.ExpiresAt.After(now) {
		if err := s.store.DeleteMute(ctx, chatID, userID); err != nil {
			log.Printf("moderation: clear expired mute for %d/%d: %v", chatID, userID, err)
		}
		return false, nil
	}

	if err := s.cache.Set(ctx, cache.MuteKey(chatID, userID), "1", m.ExpiresAt.Sub(now)); err != nil {
		log.Printf("moderation: mute cache repopulate for %d/%d: %v", chatID, userID, err)
	}
	return true, nil
}

// ShouldDelete decides whether an incoming message must be removed:
// sender muted or text matching the chat filter.
func (s *Service) ShouldDelete(ctx context.Context, chatID, userID int64, text string) (bool, error) {
	muted, err := s.IsMuted(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if muted {
		return true, nil
	}

	words, err := s.Filter(ctx, chatID)
	if err != nil {
		return false, err
	}
	if len(words) == 0 {
		return false, nil
	}

	normalized := NormalizeWord(text)
	for _, w := range words {
		if strings.Contains(normalized, w) {
			return true, nil
		}
	}
	return false, nil
}
