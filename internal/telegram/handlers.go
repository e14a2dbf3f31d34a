package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/birthday-bot/internal/domain"
	"github.com/ykvlv/birthday-bot/internal/store"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

// handleOf returns the user's @handle or a display fallback.
func handleOf(from *tgbotapi.User) string {
	if from.UserName != "" {
		return from.UserName
	}
	return fmt.Sprintf("User_%d", from.ID)
}

// observeGroup upserts the group row on any observed activity.
func (r *Router) observeGroup(ctx context.Context, chat *tgbotapi.Chat) {
	g := &domain.Group{
		ChatID:    chat.ID,
		Title:     chat.Title,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.repo.UpsertGroup(ctx, g); err != nil {
		r.log.Error("upsert group failed", zap.Error(err), zap.Int64("chatID", chat.ID))
	}
}

// isGroupAdmin checks whether the user administers the chat. This is the
// authorization precondition for per-group mutations; the scheduler itself
// never checks permissions.
func (r *Router) isGroupAdmin(chatID, userID int64) bool {
	admins, err := r.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		r.log.Error("get chat administrators failed", zap.Error(err), zap.Int64("chatID", chatID))
		return false
	}
	for _, a := range admins {
		if a.User != nil && a.User.ID == userID {
			return true
		}
	}
	return false
}

// --- Core commands ---

func (r *Router) handleStart(_ context.Context, chatID int64) {
	r.sendText(chatID, startText)
}

func (r *Router) handleHelp(_ context.Context, chatID int64) {
	r.sendText(chatID, helpText)
}

// --- Birthday registration ---

func (r *Router) handleRegisterBirthday(ctx context.Context, msg *tgbotapi.Message, args string) {
	if args == "" {
		r.sendText(msg.Chat.ID, "Send your birthday as YYYY-MM-DD (e.g. 1995-07-14) or MM-DD:")
		r.setPending(msg.Chat.ID, pendingBirthday)
		return
	}
	r.registerBirthday(ctx, msg, args)
}

func (r *Router) registerBirthday(ctx context.Context, msg *tgbotapi.Message, arg string) {
	chatID := msg.Chat.ID
	month, day, year, err := domain.ParseBirthday(arg)
	if err != nil {
		r.sendText(chatID, "Invalid date. Please use YYYY-MM-DD, e.g. 1995-07-14.")
		return
	}

	u := &domain.User{
		ChatID:     msg.From.ID,
		Handle:     handleOf(msg.From),
		BirthMonth: month,
		BirthDay:   day,
		BirthYear:  year,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.repo.UpsertUser(ctx, u); err != nil {
		r.log.Error("upsert user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save your birthday. Please try again later.")
		return
	}
	r.sendText(chatID, fmt.Sprintf("Your birthday has been registered as %02d-%02d. 🎉", int(month), day))
}

func (r *Router) handleMyBirthday(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	u, err := r.repo.GetUser(ctx, msg.From.ID)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, "You have no birthday registered yet. Use /register_birthday YYYY-MM-DD.")
		return
	}
	if err != nil {
		r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Error reading your registration.")
		return
	}
	r.sendText(chatID, fmt.Sprintf("Your birthday is registered as %02d-%02d.", int(u.BirthMonth), u.BirthDay))
}

// --- Quotes ---

func (r *Router) handleAddQuote(ctx context.Context, chatID int64, args string) {
	if args == "" {
		r.sendText(chatID, "Send the quote text in a single message (max 512 chars):")
		r.setPending(chatID, pendingQuote)
		return
	}
	r.addQuote(ctx, chatID, args)
}

func (r *Router) addQuote(ctx context.Context, chatID int64, text string) {
	if len(text) > 512 {
		r.sendText(chatID, "Too long. Please keep it under 512 characters.")
		return
	}
	if err := r.repo.AddQuote(ctx, text); err != nil {
		r.log.Error("add quote failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save the quote.")
		return
	}
	r.sendText(chatID, "Quote added to the pool. 📝")
}

func (r *Router) handleQuote(ctx context.Context, chatID int64) {
	text, err := r.repo.RandomQuote(ctx)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, domain.FallbackQuote)
		return
	}
	if err != nil {
		r.log.Error("random quote failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Error reading the quote pool.")
		return
	}
	r.sendText(chatID, text)
}

// --- Birthday lookup ---

func (r *Router) handleBirthdays(ctx context.Context, chatID int64) {
	now := time.Now().In(r.loc)
	users, err := r.repo.FindUsersByBirthday(ctx, now.Month(), now.Day())
	if err != nil {
		r.log.Error("find birthdays failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Error reading birthdays.")
		return
	}
	if len(users) == 0 {
		r.sendText(chatID, "No birthdays today.")
		return
	}
	handles := make([]string, 0, len(users))
	for _, u := range users {
		handles = append(handles, "@"+u.Handle)
	}
	r.sendText(chatID, "🎂 Today is the birthday of "+strings.Join(handles, ", ")+"!")
}

// --- Notification time ---

func (r *Router) handleSetTime(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		r.sendText(chatID, "/set_time works in group chats. Use /set_default_time for the global time.")
		return
	}
	if !r.isGroupAdmin(chatID, msg.From.ID) {
		r.sendText(chatID, "Only group admins can change the notification time.")
		return
	}
	t, err := domain.ParseTimeOfDay(args)
	if err != nil {
		r.sendText(chatID, "Invalid time. Use HH:MM, e.g. /set_time 18:00.")
		return
	}
	if err := r.repo.SetGroupNotifyTime(ctx, chatID, t); err != nil {
		r.log.Error("set group notify time failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save the notification time.")
		return
	}
	r.sendText(chatID, "This group's notification time is now "+t.String()+".")
}

func (r *Router) handleSetDefaultTime(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if args == "" {
		r.sendText(chatID, "Current default notification time: "+r.cfg.DefaultTime().String())
		return
	}
	if (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) && !r.isGroupAdmin(chatID, msg.From.ID) {
		r.sendText(chatID, "Only group admins can change the default notification time.")
		return
	}
	t, err := domain.ParseTimeOfDay(args)
	if err != nil {
		r.sendText(chatID, "Invalid time. Use HH:MM, e.g. /set_default_time 09:00.")
		return
	}
	r.cfg.SetDefaultTime(t)
	r.sendText(chatID, "Default notification time is now "+t.String()+".")
}

// --- Free-form dispatcher (pending flows + group keyword nudge) ---

func (r *Router) handleFreeForm(ctx context.Context, msg *tgbotapi.Message, text string) {
	chatID := msg.Chat.ID
	switch r.getPending(chatID) {
	case pendingBirthday:
		r.clearPending(chatID)
		r.registerBirthday(ctx, msg, text)
	case pendingQuote:
		r.clearPending(chatID)
		r.addQuote(ctx, chatID, text)
	default:
		if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
			r.maybeNudge(msg, text)
		}
	}
}

// maybeNudge replies to birthday chatter in groups with a registration hint.
func (r *Router) maybeNudge(msg *tgbotapi.Message, text string) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "birthday") && !strings.Contains(lower, "bornday") {
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, nudgeText)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := r.bot.Send(reply); err != nil {
		r.log.Error("send nudge failed", zap.Error(err), zap.Int64("chatID", msg.Chat.ID))
	}
}
