package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/birthday-bot/internal/domain"
	"github.com/ykvlv/birthday-bot/internal/store"
)

// --- fakes ---

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type sentMsg struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMsg
	fail map[int64]bool // chatIDs whose delivery fails
}

func (s *fakeSender) SendMessage(chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[chatID] {
		return errors.New("recipient unreachable")
	}
	s.sent = append(s.sent, sentMsg{chatID: chatID, text: text})
	return nil
}

func (s *fakeSender) sentTo(chatID int64) []sentMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMsg
	for _, m := range s.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type fakeRepo struct {
	users          []domain.User
	groups         map[int64]*domain.Group
	settings       map[int64]domain.TimeOfDay
	quotes         []domain.Quote
	personalPassOn string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		groups:   make(map[int64]*domain.Group),
		settings: make(map[int64]domain.TimeOfDay),
	}
}

func (r *fakeRepo) UpsertUser(_ context.Context, u *domain.User) error {
	r.users = append(r.users, *u)
	return nil
}

func (r *fakeRepo) GetUser(_ context.Context, chatID int64) (*domain.User, error) {
	for i := range r.users {
		if r.users[i].ChatID == chatID {
			return &r.users[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) AllUsers(_ context.Context) ([]domain.User, error) {
	return append([]domain.User(nil), r.users...), nil
}

func (r *fakeRepo) FindUsersByBirthday(_ context.Context, month time.Month, day int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		if u.BirthMonth == month && u.BirthDay == day {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpsertGroup(_ context.Context, g *domain.Group) error {
	r.groups[g.ChatID] = g
	return nil
}

func (r *fakeRepo) AllGroups(_ context.Context) ([]domain.Group, error) {
	var out []domain.Group
	for _, g := range r.groups {
		out = append(out, *g)
	}
	return out, nil
}

func (r *fakeRepo) GroupSettings(_ context.Context, chatID int64) (*domain.GroupSettings, error) {
	t, ok := r.settings[chatID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &domain.GroupSettings{ChatID: chatID, NotifyTime: t}, nil
}

func (r *fakeRepo) SetGroupNotifyTime(_ context.Context, chatID int64, t domain.TimeOfDay) error {
	r.settings[chatID] = t
	return nil
}

func (r *fakeRepo) SetGroupDigestOn(_ context.Context, chatID int64, day string) error {
	if g, ok := r.groups[chatID]; ok {
		g.LastDigestOn = day
	}
	return nil
}

func (r *fakeRepo) AddQuote(_ context.Context, text string) error {
	r.quotes = append(r.quotes, domain.Quote{ID: int64(len(r.quotes) + 1), Text: text})
	return nil
}

func (r *fakeRepo) AllQuotes(_ context.Context) ([]domain.Quote, error) {
	return append([]domain.Quote(nil), r.quotes...), nil
}

func (r *fakeRepo) RandomQuote(_ context.Context) (string, error) {
	if len(r.quotes) == 0 {
		return "", store.ErrNotFound
	}
	return r.quotes[0].Text, nil
}

func (r *fakeRepo) PersonalPassOn(_ context.Context) (string, error) { return r.personalPassOn, nil }

func (r *fakeRepo) SetPersonalPassOn(_ context.Context, day string) error {
	r.personalPassOn = day
	return nil
}

func (r *fakeRepo) Close() error { return nil }

// --- helpers ---

func mustTime(t *testing.T, s string) domain.TimeOfDay {
	t.Helper()
	tod, err := domain.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse time of day: %v", err)
	}
	return tod
}

func newTestScheduler(t *testing.T, repo store.Repo, sender Sender, clk Clock, def string, opts func(*Options)) *Scheduler {
	t.Helper()
	o := Options{
		NotifyTime:        NewNotifyTime(mustTime(t, def)),
		AdvanceReminders:  true,
		QuotePerRecipient: true,
		Clock:             clk,
		Rand:              rand.New(rand.NewSource(1)),
	}
	if opts != nil {
		opts(&o)
	}
	return New(repo, zap.NewNop(), sender, o)
}

func alice() domain.User {
	return domain.User{ChatID: 1, Handle: "alice", BirthMonth: time.July, BirthDay: 14, BirthYear: 1995}
}

func bob() domain.User {
	return domain.User{ChatID: 2, Handle: "bob", BirthMonth: time.March, BirthDay: 2, BirthYear: 1990}
}

// --- tests ---

func TestRunPass_PersonalWishWithFallbackQuote(t *testing.T) {
	repo := newFakeRepo()
	repo.users = []domain.User{alice(), bob()}
	sender := &fakeSender{}
	clk := &fakeClock{t: time.Date(2024, time.July, 14, 10, 0, 0, 0, time.UTC)}

	s := newTestScheduler(t, repo, sender, clk, "09:00", nil)
	s.RunPass(context.Background())

	got := sender.sentTo(1)
	if len(got) != 1 {
		t.Fatalf("alice: want exactly one message, got %d", len(got))
	}
	if !strings.Contains(got[0].text, "alice") || !strings.Contains(got[0].text, domain.FallbackQuote) {
		t.Fatalf("wish must mention alice and use the fallback quote, got %q", got[0].text)
	}
	if n := len(sender.sentTo(2)); n != 0 {
		t.Fatalf("bob is not celebrating, got %d messages", n)
	}
}

func TestRunPass_IdempotentWithinDay(t *testing.T) {
	repo := newFakeRepo()
	repo.users = []domain.User{alice()}
	sender := &fakeSender{}
	clk := &fakeClock{t: time.Date(2024, time.July, 14, 9, 0, 0, 0, time.UTC)}

	s := newTestScheduler(t, repo, sender, clk, "09:00", nil)
	s.RunPass(context.Background())
	clk.t = clk.t.Add(30 * time.Minute)
	s.RunPass(context.Background())

	if n := len(sender.sentTo(1)); n != 1 {
		t.Fatalf("re-entering the pass on the same day must not double-send, got %d", n)
	}
}

func TestRunPass_DeliveryFailureDoesNotAbortFanOut(t *testing.T) {
	repo := newFakeRepo()
	second := alice()
	second.ChatID = 7
	second.Handle = "mallory"
	repo.users = []domain.User{alice(), second}
	sender := &fakeSender{fail: map[int64]bool{1: true}}
	clk := &fakeClock{t: time.Date(2024, time.July, 14, 9, 30, 0, 0, time.UTC)}

	s := newTestScheduler(t, repo, sender, clk, "09:00", nil)
	s.RunPass(context.Background())

	if n := len(sender.sentTo(7)); n != 1 {
		t.Fatalf("failure for one recipient must not abort the rest, got %d", n)
	}
	if repo.personalPassOn != "2024-07-14" {
		t.Fatalf("completion marker must be written after the fan-out, got %q", repo.personalPassOn)
	}
}

func TestGroupDigest_GatedByOverrideTime(t *testing.T) {
	repo := newFakeRepo()
	repo.users = []domain.User{alice()}
	repo.groups[100] = &domain.Group{ChatID: 100, Title: "friends"}
	repo.settings[100] = mustTime(t, "18:00")
	sender := &fakeSender{}
	clk := &fakeClock{t: time.Date(2024, time.July, 14, 10, 0, 0, 0, time.UTC)}

	s := newTestScheduler(t, repo, sender, clk, "09:00", nil)

	// 10:00 — personal wish goes out, group digest is gated until 18:00.
	s.RunPass(context.Background())
	if n := len(sender.sentTo(100)); n != 0 {
		t.Fatalf("digest before the override time, got %d messages", n)
	}

	// 18:01 — digest is due, exactly once.
	clk.t = time.Date(2024, time.July, 14, 18, 1, 0, 0, time.UTC)
	s.RunPass(context.Background())
	got := sender.sentTo(100)
	if len(got) != 1 {
		t.Fatalf("want exactly one digest, got %d", len(got))
	}
	if !strings.Contains(got[0].text, "alice") {
		t.Fatalf("digest must list the celebrant, got %q", got[0].text)
	}

	// Later the same day — no resend.
	clk.t = time.Date(2024, time.July, 14, 18, 30, 0, 0, time.UTC)
	s.RunPass(context.Background())
	if n := len(sender.sentTo(100)); n != 1 {
		t.Fatalf("digest must fire at most once per day, got %d", n)
	}
}

func TestGroupDigest_AdvanceReminder(t *testing.T) {
	repo := newFakeRepo()
	repo.users = []domain.User{bob()}
	repo.groups[100] = &domain.Group{ChatID: 100, Title: "friends"}
	sender := &fakeSender{}
	// March 1st: bob (March 2) is tomorrow's celebrant.
	clk := &fakeClock{t: time.Date(2024, time.March, 1, 9, 5, 0, 0, time.UTC)}

	s := newTestScheduler(t, repo, sender, clk, "09:00", nil)
	s.RunPass(context.Background())

	got := sender.sentTo(100)
	if len(got) != 1 {
		t.Fatalf("want one digest, got %d", len(got))
	}
	if !strings.Contains(got[0].text, "tomorrow") || !strings.Contains(got[0].text, "bob") {
		t.Fatalf("digest must carry the advance reminder for bob, got %q", got[0].text)
	}
}

func TestRunPass_SharedQuoteAcrossRecipients(t *testing.T) {
	repo := newFakeRepo()
	second := alice()
	second.ChatID = 7
	second.Handle = "mallory"
	repo.users = []domain.User{alice(), second}
	repo.quotes = []domain.Quote{{ID: 1, Text: "quote one"}, {ID: 2, Text: "quote two"}}
	sender := &fakeSender{}
	clk := &fakeClock{t: time.Date(2024, time.July, 14, 9, 0, 0, 0, time.UTC)}

	s := newTestScheduler(t, repo, sender, clk, "09:00", func(o *Options) {
		o.QuotePerRecipient = false
	})
	s.RunPass(context.Background())

	a, m := sender.sentTo(1), sender.sentTo(7)
	if len(a) != 1 || len(m) != 1 {
		t.Fatalf("want one wish each, got %d and %d", len(a), len(m))
	}
	quoteOf := func(text, handle string) string {
		return strings.TrimPrefix(text, "🎉 Happy Birthday, @"+handle+"! 🎂\n")
	}
	if quoteOf(a[0].text, "alice") != quoteOf(m[0].text, "mallory") {
		t.Fatalf("shared mode must reuse one quote per pass:\n%q\n%q", a[0].text, m[0].text)
	}
}

func TestNextTrigger_MissedTriggerFiresOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.users = []domain.User{alice()}
	repo.personalPassOn = "2024-07-13"
	sender := &fakeSender{}
	// Process resumed at 11:00, well past the 09:00 trigger.
	clk := &fakeClock{t: time.Date(2024, time.July, 14, 11, 0, 0, 0, time.UTC)}

	s := newTestScheduler(t, repo, sender, clk, "09:00", nil)
	ctx := context.Background()

	next := s.nextTrigger(ctx, clk.Now())
	if !next.Equal(clk.Now()) {
		t.Fatalf("overdue trigger must fire immediately, got %v", next)
	}

	s.RunPass(ctx)

	// Exactly one catch-up pass: the next trigger is tomorrow, not another
	// replay of the missed days.
	next = s.nextTrigger(ctx, clk.Now())
	want := time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("want next trigger %v, got %v", want, next)
	}
	if n := len(sender.sentTo(1)); n != 1 {
		t.Fatalf("want one catch-up wish, got %d", n)
	}
}

func TestNextTrigger_PicksEarliestPendingGroup(t *testing.T) {
	repo := newFakeRepo()
	repo.personalPassOn = "2024-07-14" // personal pass already done today
	repo.groups[100] = &domain.Group{ChatID: 100, Title: "friends"}
	repo.settings[100] = mustTime(t, "18:00")
	sender := &fakeSender{}
	clk := &fakeClock{t: time.Date(2024, time.July, 14, 12, 0, 0, 0, time.UTC)}

	s := newTestScheduler(t, repo, sender, clk, "09:00", nil)

	next := s.nextTrigger(context.Background(), clk.Now())
	want := time.Date(2024, time.July, 14, 18, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("want the group's 18:00 trigger, got %v", next)
	}
}

func TestRun_CancellationInterruptsWait(t *testing.T) {
	repo := newFakeRepo()
	sender := &fakeSender{}
	s := newTestScheduler(t, repo, sender, SystemClock{}, "09:00", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("cancellation must not trigger a partial pass, got %d sends", len(sender.sent))
	}
}
