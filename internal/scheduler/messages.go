package scheduler

import (
	"strings"

	"github.com/ykvlv/birthday-bot/internal/domain"
)

// personalWish builds the private birthday message for one celebrant.
func personalWish(u domain.User, quote string) string {
	return "🎉 Happy Birthday, @" + u.Handle + "! 🎂\n" + quote
}

// groupDigest builds the aggregate birthday list for a group chat.
// Returns "" when there is nothing to announce.
func groupDigest(today, tomorrow []domain.User) string {
	var b strings.Builder
	if len(today) > 0 {
		b.WriteString("🎂 Today is the birthday of " + handleList(today) + "! Wish them well! 🎉")
	}
	if len(tomorrow) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("🎉 Reminder: tomorrow is the birthday of " + handleList(tomorrow) + "! Don't forget to wish them! 🎂")
	}
	return b.String()
}

func handleList(users []domain.User) string {
	handles := make([]string, 0, len(users))
	for _, u := range users {
		handles = append(handles, "@"+u.Handle)
	}
	return strings.Join(handles, ", ")
}
