package cache

import "fmt"

// Cache key layout. Per-user economy keys live under cache:economy so an
// operator can wipe the whole namespace without touching cooldowns or
// moderation state.
const (
	// KeyInfiniteMaxBet is a global override flag: while present, the
	// gamble xp bet floor is bypassed.
	KeyInfiniteMaxBet = "goldbot:infinitemaxbet"

	NotifyQueueKey = "goldbot:notifications"
)

func BoostersKey(userID int64) string {
	return fmt.Sprintf("cache:economy:boosters:%d", userID)
}

func XPKey(userID int64) string {
	return fmt.Sprintf("cache:economy:xp:%d", userID)
}

func NetWorthKey(userID int64) string {
	return fmt.Sprintf("cache:economy:networth:%d", userID)
}

// VoteKey marks a recently rewarded vote; other features read it for
// the active vote bonus.
func VoteKey(userID int64) string {
	return fmt.Sprintf("cache:vote:%d", userID)
}

func ChatFilterKey(chatID int64) string {
	return fmt.Sprintf("cache:chat:filter:%d", chatID)
}

func MuteKey(chatID, userID int64) string {
	return fmt.Sprintf("cache:chat:mute:%d:%d", chatID, userID)
}

func CooldownKey(command string, userID int64) string {
	return fmt.Sprintf("cooldown:%s:%d", command, userID)
}
