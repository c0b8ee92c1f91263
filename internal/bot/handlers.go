package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"goldbot/internal/economy"
	"goldbot/internal/moderation"
)

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	b.reply(msg, `available commands:
/balance - wallet balance
/xp - experience
/gamble <bet> - coinflip for double or nothing
/boosters - active boosters
/networth - your net worth
/item <name> - item info
/notifications on|off - booster and vote DMs
/filter add|del|list <word> - chat filter (admins)
/mute <user id> <duration> - mute a user (admins)
/unmute <user id> - lift a mute (admins)`)
}

func (b *Bot) handleBalance(ctx context.Context, msg *tgbotapi.Message) {
	balance, err := b.eco.Balance(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg, "could not read your balance")
		return
	}
	b.reply(msg, fmt.Sprintf("💰 $%d", balance))
}

func (b *Bot) handleXP(ctx context.Context, msg *tgbotapi.Message) {
	xp, err := b.eco.XP(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg, "could not read your xp")
		return
	}
	user, err := b.store.GetUser(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg, "could not read your profile")
		return
	}
	b.reply(msg, fmt.Sprintf("✨ %d xp (level %d)", xp, economy.RawLevel(user.Prestige, xp)))
}

func (b *Bot) handleGamble(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	if b.onCooldown(ctx, "gamble", userID, 10*time.Second) {
		b.reply(msg, "slow down, try again in a few seconds")
		return
	}

	bet, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil || bet <= 0 {
		b.reply(msg, "/gamble <bet>")
		return
	}

	balance, err := b.eco.Balance(ctx, userID)
	if err != nil {
		b.reply(msg, "could not read your balance")
		return
	}
	if bet > balance {
		b.reply(msg, "you cannot afford that bet")
		return
	}

	user, err := b.store.GetUser(ctx, userID)
	if err != nil {
		b.reply(msg, "could not read your profile")
		return
	}
	if bet > economy.MaxBet(user) {
		b.reply(msg, fmt.Sprintf("your max bet is $%d", economy.MaxBet(user)))
		return
	}

	if b.flipWin() {
		newBalance, err := b.eco.AddBalance(ctx, userID, bet)
		if err != nil {
			b.reply(msg, "something went wrong, try again later")
			return
		}
		earned, err := b.eco.GambleXP(ctx, userID, bet, 2)
		if err != nil {
			b.reply(msg, fmt.Sprintf("🎉 you won $%d! balance: $%d", bet, newBalance))
			return
		}
		if earned > 0 {
			if err := b.eco.AddXP(ctx, userID, earned, true); err != nil {
				earned = 0
			}
		}
		text := fmt.Sprintf("🎉 you won $%d! balance: $%d", bet, newBalance)
		if earned > 0 {
			text += fmt.Sprintf(" (+%d xp)", earned)
		}
		b.reply(msg, text)
		return
	}

	newBalance, err := b.eco.AddBalance(ctx, userID, -bet)
	if err != nil {
		b.reply(msg, "something went wrong, try again later")
		return
	}
	b.reply(msg, fmt.Sprintf("💀 you lost $%d. balance: $%d", bet, newBalance))
}

func (b *Bot) handleBoosters(ctx context.Context, msg *tgbotapi.Message) {
	active, err := b.eco.ActiveBoosters(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg, "could not read your boosters")
		return
	}
	if len(active) == 0 {
		b.reply(msg, "you have no active boosters")
		return
	}

	kinds := make([]string, 0, len(active))
	for kind := range active {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	now := time.Now()
	var sb strings.Builder
	sb.WriteString("active boosters:\n")
	for _, kind := range kinds {
		list := active[kind]
		name := kind
		if item, ok := economy.GetItem(kind); ok {
			name = item.Emoji + " " + item.Name
		}
		soonest := list[0].ExpiresAt
		for _, bo := range list[1:] {
			if bo.ExpiresAt.Before(soonest) {
				soonest = bo.ExpiresAt
			}
		}
		fmt.Fprintf(&sb, "%dx %s (next expires in %s)\n",
			len(list), name, soonest.Sub(now).Round(time.Minute))
	}
	b.reply(msg, sb.String())
}

func (b *Bot) handleNetWorth(ctx context.Context, msg *tgbotapi.Message) {
	worth, err := b.eco.NetWorth(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg, "could not compute your net worth")
		return
	}
	b.reply(msg, fmt.Sprintf("📊 net worth: $%d", worth))
}

func (b *Bot) handleItem(ctx context.Context, msg *tgbotapi.Message) {
	query := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if query == "" {
		b.reply(msg, "/item <name>")
		return
	}

	item, ok := economy.GetItem(query)
	if !ok {
		// Fall back to a name match.
		for _, it := range economy.Items() {
			if strings.Contains(it.Name, query) {
				item, ok = it, true
				break
			}
		}
	}
	if !ok {
		b.reply(msg, fmt.Sprintf("couldn't find %q", query))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", item.Emoji, item.Name)
	if item.Sell > 0 {
		fmt.Fprintf(&sb, "sell: $%d\n", item.Sell)
	}
	if item.Booster != nil {
		fmt.Fprintf(&sb, "booster: +%.0f%% %s for %s\n",
			item.Booster.Effect*100, strings.Join(item.Booster.Boosts, "/"), item.Booster.Duration)
	}

	inv, err := b.store.Inventory(ctx, msg.From.ID)
	if err == nil && inv[item.ID] > 0 {
		fmt.Fprintf(&sb, "you own %d", inv[item.ID])
	}
	b.reply(msg, sb.String())
}

func (b *Bot) handleFilter(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isChatAdmin(msg.Chat.ID, msg.From.ID) {
		b.reply(msg, "you need to be a chat admin to manage the filter")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 || args[0] == "list" {
		words, err := b.mod.Filter(ctx, msg.Chat.ID)
		if err != nil {
			b.reply(msg, "could not read the filter")
			return
		}
		if len(words) == 0 {
			b.reply(msg, "the chat filter is empty")
			return
		}
		b.reply(msg, "chat filter:\n"+strings.Join(words, "\n"))
		return
	}

	if len(args) < 2 {
		b.reply(msg, "/filter add|del <word>")
		return
	}

	var err error
	switch args[0] {
	case "add", "+":
		err = b.mod.AddFilterWord(ctx, msg.Chat.ID, args[1])
	case "del", "-":
		err = b.mod.RemoveFilterWord(ctx, msg.Chat.ID, args[1])
	default:
		b.reply(msg, "/filter add|del|list <word>")
		return
	}

	switch {
	case err == nil:
		b.reply(msg, "chat filter updated")
	case errors.Is(err, moderation.ErrWordExists):
		b.reply(msg, "that word is already filtered")
	case errors.Is(err, moderation.ErrWordMissing):
		b.reply(msg, "that word is not in the filter")
	case errors.Is(err, moderation.ErrWordInvalid):
		b.reply(msg, "word must contain letters or numbers")
	case errors.Is(err, moderation.ErrFilterBudget):
		b.reply(msg, "the filter is full, remove something first")
	default:
		b.reply(msg, "could not update the filter")
	}
}

func (b *Bot) handleMute(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isChatAdmin(msg.Chat.ID, msg.From.ID) {
		b.reply(msg, "you need to be a chat admin to mute users")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		b.reply(msg, "/mute <user id> <duration, e.g. 30m>")
		return
	}

	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(msg, "bad user id")
		return
	}
	d, err := time.ParseDuration(args[1])
	if err != nil || d <= 0 {
		b.reply(msg, "bad duration, try 30m or 2h")
		return
	}

	if err := b.mod.Mute(ctx, msg.Chat.ID, target, d); err != nil {
		b.reply(msg, "could not mute that user")
		return
	}
	b.reply(msg, fmt.Sprintf("muted %d for %s", target, d))
}

func (b *Bot) handleUnmute(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isChatAdmin(msg.Chat.ID, msg.From.ID) {
		b.reply(msg, "you need to be a chat admin to unmute users")
		return
	}

	target, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.reply(msg, "/unmute <user id>")
		return
	}

	if err := b.mod.Unmute(ctx, msg.Chat.ID, target); err != nil {
		b.reply(msg, "could not unmute that user")
		return
	}
	b.reply(msg, fmt.Sprintf("unmuted %d", target))
}

func (b *Bot) handleNotifications(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	var enabled bool
	switch arg {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		b.reply(msg, "/notifications on|off")
		return
	}

	if err := b.store.SetDMPreferences(ctx, msg.From.ID, enabled, enabled); err != nil {
		b.reply(msg, "could not update your preferences")
		return
	}
	if enabled {
		b.reply(msg, "booster and vote DMs enabled")
	} else {
		b.reply(msg, "booster and vote DMs disabled")
	}
}
