package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/birthday-bot/internal/domain"
	"github.com/ykvlv/birthday-bot/internal/store"
)

// Pending state keys used in conversational flows.
const (
	pendingBirthday = "await_birthday_text"
	pendingQuote    = "await_quote_text"
)

// NotifyTimeConfig is the slice of the scheduler the router mutates when an
// operator changes the global default notification time.
type NotifyTimeConfig interface {
	DefaultTime() domain.TimeOfDay
	SetDefaultTime(t domain.TimeOfDay)
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot   *tgbotapi.BotAPI
	log   *zap.Logger
	repo  store.Repo
	cfg   NotifyTimeConfig
	loc   *time.Location
	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, cfg NotifyTimeConfig, loc *time.Location) *Router {
	return &Router{
		bot:   bot,
		log:   log,
		repo:  repo,
		cfg:   cfg,
		loc:   loc,
		state: make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := upd.Message
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	// Any group activity registers the group for digests.
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		r.observeGroup(ctx, msg.Chat)
	}

	cmd, args := splitCommand(text)
	switch cmd {
	case "/start":
		r.handleStart(ctx, chatID)
	case "/help":
		r.handleHelp(ctx, chatID)
	case "/register_birthday":
		r.handleRegisterBirthday(ctx, msg, args)
	case "/my_birthday":
		r.handleMyBirthday(ctx, msg)
	case "/add_quote":
		r.handleAddQuote(ctx, chatID, args)
	case "/quote":
		r.handleQuote(ctx, chatID)
	case "/birthdays":
		r.handleBirthdays(ctx, chatID)
	case "/set_time":
		r.handleSetTime(ctx, msg, args)
	case "/set_default_time":
		r.handleSetDefaultTime(ctx, msg, args)
	default:
		r.handleFreeForm(ctx, msg, text)
	}
}

// splitCommand separates "/cmd@BotName rest of args" into command and args.
func splitCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd = text
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmd, args = text[:i], strings.TrimSpace(text[i+1:])
	}
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, args
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
