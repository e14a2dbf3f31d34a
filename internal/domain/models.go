package domain

import "time"

// User is a registered person with a birthday to celebrate.
type User struct {
	ChatID     int64
	Handle     string // Telegram username or a display fallback
	BirthMonth time.Month
	BirthDay   int
	BirthYear  int // 0 when the user did not share the year
	CreatedAt  time.Time
}

// Group is a chat the bot has seen activity in. Membership in this set is
// the sole criterion for receiving digest notifications.
type Group struct {
	ChatID       int64
	Title        string
	CreatedAt    time.Time
	LastDigestOn string // YYYY-MM-DD of the last delivered digest, "" if never
}

// GroupSettings holds the optional per-group notification time override.
type GroupSettings struct {
	ChatID     int64
	NotifyTime TimeOfDay
}

// Quote is one entry in the pool of birthday wishes.
type Quote struct {
	ID   int64
	Text string
}
