package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"goldbot/internal/cache"
	"goldbot/internal/testsupport"
)

func newTestService(t *testing.T, clock *testsupport.Clock) (*Service, *testsupport.MemStore, *testsupport.MemCache) {
	t.Helper()
	st := testsupport.NewMemStore()
	c := testsupport.NewMemCache(clock.Now)
	svc := New(st, c)
	svc.SetClock(clock.Now)
	return svc, st, c
}

func TestNormalizeWord(t *testing.T) {
	cases := map[string]string{
		"Hello":       "hello",
		"b-a.d w0rd!": "badw0rd",
		"ПрИвЕт":      "привет",
		"!!!":         "",
	}
	for in, want := range cases {
		if got := NormalizeWord(in); got != want {
			t.Errorf("NormalizeWord(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAddFilterWord(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewClock(time.Now())
	svc, _, _ := newTestService(t, clock)

	if err := svc.AddFilterWord(ctx, 1, "SPAM!"); err != nil {
		t.Fatalf("AddFilterWord: %v", err)
	}
	// Same word after normalization.
	if err := svc.AddFilterWord(ctx, 1, "spam"); !errors.Is(err, ErrWordExists) {
		t.Fatalf("duplicate add: %v, want ErrWordExists", err)
	}
	if err := svc.AddFilterWord(ctx, 1, "..."); !errors.Is(err, ErrWordInvalid) {
		t.Fatalf("empty normalization: %v, want ErrWordInvalid", err)
	}

	words, err := svc.Filter(ctx, 1)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(words) != 1 || words[0] != "spam" {
		t.Fatalf("filter = %v, want [spam]", words)
	}
}

func TestFilterBudget(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewClock(time.Now())
	svc, st, _ := newTestService(t, clock)

	long := strings.Repeat("a", 999)
	st.Filters[1] = []string{long}

	if err := svc.AddFilterWord(ctx, 1, "bb"); !errors.Is(err, ErrFilterBudget) {
		t.Fatalf("over budget: %v, want ErrFilterBudget", err)
	}
	if err := svc.AddFilterWord(ctx, 1, "b"); err != nil {
		t.Fatalf("exactly at budget: %v", err)
	}
}

func TestRemoveFilterWordInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewClock(time.Now())
	svc, _, c := newTestService(t, clock)

	if err := svc.AddFilterWord(ctx, 1, "bad"); err != nil {
		t.Fatalf("AddFilterWord: %v", err)
	}
	if _, err := svc.Filter(ctx, 1); err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if ok, _ := c.Exists(ctx, cache.ChatFilterKey(1)); !ok {
		t.Fatal("filter not cached after read")
	}

	if err := svc.RemoveFilterWord(ctx, 1, "bad"); err != nil {
		t.Fatalf("RemoveFilterWord: %v", err)
	}
	if ok, _ := c.Exists(ctx, cache.ChatFilterKey(1)); ok {
		t.Fatal("cache entry survived removal")
	}
	if err := svc.RemoveFilterWord(ctx, 1, "bad"); !errors.Is(err, ErrWordMissing) {
		t.Fatalf("second removal: %v, want ErrWordMissing", err)
	}
}

func TestMuteLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, st, _ := newTestService(t, clock)

	if err := svc.Mute(ctx, 10, 1, time.Hour); err != nil {
		t.Fatalf("Mute: %v", err)
	}
	muted, err := svc.IsMuted(ctx, 10, 1)
	if err != nil || !muted {
		t.Fatalf("IsMuted = %v, %v, want true", muted, err)
	}

	// Past expiry the mute clears lazily, including the store row.
	clock.Advance(61 * time.Minute)
	muted, err = svc.IsMuted(ctx, 10, 1)
	if err != nil || muted {
		t.Fatalf("IsMuted after expiry = %v, %v, want false", muted, err)
	}
	if len(st.Mutes) != 0 {
		t.Fatal("expired mute not removed from store")
	}
}

func TestUnmute(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewClock(time.Now())
	svc, _, _ := newTestService(t, clock)

	if err := svc.Mute(ctx, 10, 1, time.Hour); err != nil {
		t.Fatalf("Mute: %v", err)
	}
	if err := svc.Unmute(ctx, 10, 1); err != nil {
		t.Fatalf("Unmute: %v", err)
	}
	muted, err := svc.IsMuted(ctx, 10, 1)
	if err != nil || muted {
		t.Fatalf("IsMuted after unmute = %v, %v, want false", muted, err)
	}
}

func TestShouldDelete(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewClock(time.Now())
	svc, _, _ := newTestService(t, clock)

	if err := svc.AddFilterWord(ctx, 10, "badword"); err != nil {
		t.Fatalf("AddFilterWord: %v", err)
	}

	cases := []struct {
		text string
		want bool
	}{
		{"perfectly fine message", false},
		{"this contains badword here", true},
		{"obfuscated B-A-D-W-O-R-D attempt", true},
		{"", false},
	}
	for _, tc := range cases {
		got, err := svc.ShouldDelete(ctx, 10, 1, tc.text)
		if err != nil {
			t.Fatalf("ShouldDelete(%q): %v", tc.text, err)
		}
		if got != tc.want {
			t.Errorf("ShouldDelete(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}

	// A muted user's messages are removed regardless of content.
	if err := svc.Mute(ctx, 10, 1, time.Hour); err != nil {
		t.Fatalf("Mute: %v", err)
	}
	got, err := svc.ShouldDelete(ctx, 10, 1, "perfectly fine message")
	if err != nil || !got {
		t.Fatalf("ShouldDelete for muted user = %v, %v, want true", got, err)
	}
}
