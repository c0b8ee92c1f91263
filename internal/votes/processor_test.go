package votes

import (
	"context"
	"sync"
	"testing"
	"time"

	"goldbot/internal/economy"
	"goldbot/internal/store"
	"goldbot/internal/testsupport"
)

func newTestProcessor(t *testing.T, clock *testsupport.Clock) (*Processor, *testsupport.MemStore, *testsupport.MemNotifier) {
	t.Helper()
	st := testsupport.NewMemStore()
	c := testsupport.NewMemCache(clock.Now)
	n := testsupport.NewMemNotifier()
	eco := economy.New(st, c, n)
	eco.SetClock(clock.Now)
	proc := NewProcessor(st, c, eco, n, 7*time.Hour)
	proc.SetClock(clock.Now)
	return proc, st, n
}

func TestProcessCooldownIdempotency(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := testsupport.NewClock(base)
	proc, st, _ := newTestProcessor(t, clock)

	st.AddUser(store.User{UserID: 1, DMVote: true})
	st.Records[1].LastVote = base

	res, err := proc.Process(ctx, 1, base.Add(7*time.Hour-time.Minute))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Granted {
		t.Fatal("grant inside the cooldown window")
	}
	if st.Records[1].Balance != 0 || !st.Records[1].LastVote.Equal(base) {
		t.Fatal("rejected vote mutated the record")
	}

	at := base.Add(7*time.Hour + time.Minute)
	clock.Advance(7*time.Hour + time.Minute)
	res, err = proc.Process(ctx, 1, at)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Granted {
		t.Fatal("vote past the cooldown not granted")
	}
	if !st.Records[1].LastVote.Equal(at) {
		t.Fatalf("last vote = %v, want %v", st.Records[1].LastVote, at)
	}

	// A redelivery of the same event must be a no-op.
	res, err = proc.Process(ctx, 1, at)
	if err != nil {
		t.Fatalf("Process redelivery: %v", err)
	}
	if res.Granted {
		t.Fatal("redelivered vote granted twice")
	}
}

func TestProcessPrestigeFourScenario(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := testsupport.NewClock(base)
	proc, st, notifier := newTestProcessor(t, clock)

	st.AddUser(store.User{UserID: 1, Prestige: 4, DMVote: true})
	// Last vote far in the past.
	st.Records[1].LastVote = base.Add(-30 * 24 * time.Hour)

	res, err := proc.Process(ctx, 1, base)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Granted {
		t.Fatal("vote not granted")
	}

	// floor(15000 * (4/2 + 1)) = 45000
	if res.Amount != 45000 || st.Records[1].Balance != 45000 {
		t.Fatalf("amount = %d, balance = %d, want 45000", res.Amount, st.Records[1].Balance)
	}
	if st.Users[1].Karma != 10 {
		t.Fatalf("karma = %d, want 10", st.Users[1].Karma)
	}

	var booster *store.Booster
	for _, b := range st.Boosters {
		b := b
		booster = &b
	}
	if booster == nil || booster.Kind != economy.ItemVoteBooster {
		t.Fatalf("vote booster missing: %+v", booster)
	}
	if !booster.ExpiresAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("booster expires %v, want %v", booster.ExpiresAt, base.Add(2*time.Hour))
	}

	// Cap with prestige 4, no premium, karma 0 at check time:
	// 15 + 4*floor(4/2.5) = 19; 0 <= 19-3, so tickets are granted.
	if !res.Tickets || st.Records[1].Tickets != 3 {
		t.Fatalf("tickets = %d (granted=%v), want 3", st.Records[1].Tickets, res.Tickets)
	}

	// floor(4/1.5 + 1) = 3 vote crates.
	if res.Crates != 3 || st.Inv[1][economy.ItemVoteCrate] != 3 {
		t.Fatalf("crates = %d, inventory = %d, want 3", res.Crates, st.Inv[1][economy.ItemVoteCrate])
	}

	if len(notifier.All()) != 1 {
		t.Fatalf("want one summary DM, got %d", len(notifier.All()))
	}
}

func TestProcessTicketCap(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := testsupport.NewClock(base)
	proc, st, _ := newTestProcessor(t, clock)

	st.AddUser(store.User{UserID: 1, Prestige: 4, DMVote: false})
	st.Records[1].LastVote = base.Add(-24 * time.Hour)
	st.Records[1].Tickets = 17 // cap is 19, 17 > 19-3

	res, err := proc.Process(ctx, 1, base)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Granted {
		t.Fatal("vote not granted")
	}
	if res.Tickets || st.Records[1].Tickets != 17 {
		t.Fatalf("tickets granted past the cap: %d", st.Records[1].Tickets)
	}
}

func TestProcessUnknownUser(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewClock(time.Now())
	proc, _, _ := newTestProcessor(t, clock)

	res, err := proc.Process(ctx, 404, time.Now())
	if err != nil {
		t.Fatalf("unknown user must not error: %v", err)
	}
	if res.Granted {
		t.Fatal("grant for unknown user")
	}
}

func TestProcessConcurrentDelivery(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := testsupport.NewClock(base)
	proc, st, _ := newTestProcessor(t, clock)

	st.AddUser(store.User{UserID: 1, DMVote: false})
	st.Records[1].LastVote = base.Add(-24 * time.Hour)

	const deliveries = 8
	var wg sync.WaitGroup
	granted := make(chan bool, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := proc.Process(ctx, 1, base)
			if err != nil {
				t.Errorf("Process: %v", err)
				return
			}
			granted <- res.Granted
		}()
	}
	wg.Wait()
	close(granted)

	grants := 0
	for g := range granted {
		if g {
			grants++
		}
	}
	if grants != 1 {
		t.Fatalf("grants = %d, want exactly 1", grants)
	}
	if st.Records[1].Balance != 15000 {
		t.Fatalf("balance = %d, want one grant of 15000", st.Records[1].Balance)
	}
}
