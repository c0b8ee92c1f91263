// Package bot is the Telegram front end: command handlers, the
// moderation message hook and DM delivery for the notification queue.
package bot

import (
	"context"
	"log"
	"math/rand"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"goldbot/internal/cache"
	"goldbot/internal/economy"
	"goldbot/internal/metrics"
	"goldbot/internal/moderation"
	"goldbot/internal/store"
)

type Bot struct {
	api     *tgbotapi.BotAPI
	store   *store.Store
	cache   *cache.Client
	eco     *economy.Economy
	mod     *moderation.Service
	adminID int64
}

func New(token string, st *store.Store, c *cache.Client, eco *economy.Economy, mod *moderation.Service, adminID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Bot{api: api, store: st, cache: c, eco: eco, mod: mod, adminID: adminID}, nil
}

// SendDM implements notify.Sender.
func (b *Bot) SendDM(userID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

// Start runs the long-poll update loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	log.Printf("bot: logged in as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			b.handleMessage(msgCtx, update.Message)
			cancel()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	// Moderation runs before anything else: muted users and filtered
	// words never reach a handler.
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		drop, err := b.mod.ShouldDelete(ctx, chatID, userID, msg.Text)
		if err != nil {
			log.Printf("bot: moderation check in %d: %v", chatID, err)
		} else if drop {
			if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
				log.Printf("bot: delete message in %d: %v", chatID, err)
			}
			return
		}
	}

	cmd := msg.Command()
	if cmd == "" {
		return
	}

	if err := b.store.CreateUser(ctx, userID, msg.From.UserName); err != nil {
		log.Printf("bot: create user %d: %v", userID, err)
		b.reply(msg, "something went wrong, try again later")
		return
	}
	if err := b.store.TouchLastCommand(ctx, userID, time.Now()); err != nil {
		log.Printf("bot: touch %d: %v", userID, err)
	}

	metrics.CommandsHandled.WithLabelValues(cmd).Inc()

	switch cmd {
	case "start", "help":
		b.handleHelp(msg)
	case "balance":
		b.handleBalance(ctx, msg)
	case "xp":
		b.handleXP(ctx, msg)
	case "gamble":
		b.handleGamble(ctx, msg)
	case "boosters":
		b.handleBoosters(ctx, msg)
	case "networth":
		b.handleNetWorth(ctx, msg)
	case "item":
		b.handleItem(ctx, msg)
	case "filter":
		b.handleFilter(ctx, msg)
	case "mute":
		b.handleMute(ctx, msg)
	case "unmute":
		b.handleUnmute(ctx, msg)
	case "notifications":
		b.handleNotifications(ctx, msg)
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		log.Printf("bot: reply in %d: %v", msg.Chat.ID, err)
	}
}

// onCooldown places a short per-command cooldown marker. Returns true
// when the user must wait.
func (b *Bot) onCooldown(ctx context.Context, command string, userID int64, d time.Duration) bool {
	ok, err := b.cache.SetNX(ctx, cache.CooldownKey(command, userID), "1", d)
	if err != nil {
		log.Printf("bot: cooldown check for %d: %v", userID, err)
		return false
	}
	return !ok
}

// flipWin is the house edge for /gamble.
func (b *Bot) flipWin() bool {
	return rand.Float64() < 0.45
}

// isChatAdmin reports whether the user may run moderation commands in
// the chat. The configured bot admin always may.
func (b *Bot) isChatAdmin(chatID, userID int64) bool {
	if userID == b.adminID && b.adminID != 0 {
		return true
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		log.Printf("bot: chat member lookup %d/%d: %v", chatID, userID, err)
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}
