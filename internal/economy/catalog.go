package economy

import "time"

// BoosterEffect describes what a booster kind does while active.
type BoosterEffect struct {
	Duration time.Duration
	// Effect is the multiplier fraction added per active booster
	// (0.07 = +7%).
	Effect float64
	// Boosts lists the reward categories the effect applies to.
	Boosts []string
}

// Item is a static catalog entry. Items with a BoosterEffect can be
// activated into boosters; the rest are plain inventory.
type Item struct {
	ID      string
	Name    string
	Emoji   string
	Sell    int64
	Booster *BoosterEffect
}

const (
	BoostXP    = "xp"
	BoostMoney = "money"
)

const (
	ItemVoteBooster     = "vote_booster"
	ItemBeginnerBooster = "beginner_booster"
	ItemXPBooster       = "xp_booster"
	ItemMoneyBooster    = "money_booster"
	ItemVoteCrate       = "vote_crate"
	ItemCrystalHeart    = "crystal_heart"
	ItemWhiteGem        = "white_gem"
)

var items = map[string]Item{
	ItemVoteBooster: {
		ID:    ItemVoteBooster,
		Name:  "vote booster",
		Emoji: "🗳️",
		Booster: &BoosterEffect{
			Duration: 2 * time.Hour,
			Effect:   0.07,
			Boosts:   []string{BoostXP, BoostMoney},
		},
	},
	ItemBeginnerBooster: {
		ID:    ItemBeginnerBooster,
		Name:  "beginner booster",
		Emoji: "🐣",
		Booster: &BoosterEffect{
			Duration: 12 * time.Hour,
			Effect:   1,
			Boosts:   []string{BoostXP},
		},
	},
	ItemXPBooster: {
		ID:    ItemXPBooster,
		Name:  "xp booster",
		Emoji: "✨",
		Sell:  25000,
		Booster: &BoosterEffect{
			Duration: 30 * time.Minute,
			Effect:   0.25,
			Boosts:   []string{BoostXP},
		},
	},
	ItemMoneyBooster: {
		ID:    ItemMoneyBooster,
		Name:  "money booster",
		Emoji: "💸",
		Sell:  35000,
		Booster: &BoosterEffect{
			Duration: 30 * time.Minute,
			Effect:   0.2,
			Boosts:   []string{BoostMoney},
		},
	},
	ItemVoteCrate: {
		ID:    ItemVoteCrate,
		Name:  "vote crate",
		Emoji: "📦",
		Sell:  10000,
	},
	ItemCrystalHeart: {
		ID:    ItemCrystalHeart,
		Name:  "crystal heart",
		Emoji: "💠",
		Sell:  500000,
	},
	ItemWhiteGem: {
		ID:    ItemWhiteGem,
		Name:  "white gem",
		Emoji: "💎",
		Sell:  750000,
	},
}

// Items returns the static item catalog.
func Items() map[string]Item { return items }

func GetItem(id string) (Item, bool) {
	it, ok := items[id]
	return it, ok
}

// upgradeEffects maps a permanent upgrade kind to its per-level effect
// fraction.
var upgradeEffects = map[string]float64{
	BoostXP: 0.05,
}

func UpgradeEffect(kind string) float64 { return upgradeEffects[kind] }
