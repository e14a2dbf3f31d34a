package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykvlv/birthday-bot/internal/domain"
	"github.com/ykvlv/birthday-bot/internal/store"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Router will implement this (method: SendMessage).
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// retryFloor bounds how soon the loop re-evaluates after a pass whose
// completion markers could not be persisted, so a failing store never
// turns the wait into a hot loop.
const retryFloor = time.Minute

// reevalInterval caps a single wait. Groups registered or a default time
// moved while the loop sleeps are picked up at the next slice boundary
// instead of after a full day.
const reevalInterval = 15 * time.Minute

// Scheduler drives the daily birthday notification cycle: personal wishes
// at the global default time, group digests at each group's effective time.
// One instance owns the whole timeline; no concurrent cycles.
type Scheduler struct {
	repo   store.Repo
	log    *zap.Logger
	sender Sender
	clock  Clock
	loc    *time.Location
	picker *domain.QuotePicker

	advance           bool
	quotePerRecipient bool
	notify            *NotifyTime
}

// Options configures a Scheduler.
type Options struct {
	NotifyTime        *NotifyTime // global default time, shared with the command layer
	Location          *time.Location
	AdvanceReminders  bool
	QuotePerRecipient bool
	Clock             Clock      // nil means SystemClock
	Rand              *rand.Rand // nil means a time-seeded source
}

// New creates a Scheduler.
func New(repo store.Repo, log *zap.Logger, sender Sender, opts Options) *Scheduler {
	clk := opts.Clock
	if clk == nil {
		clk = SystemClock{}
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		repo:              repo,
		log:               log,
		sender:            sender,
		clock:             clk,
		loc:               loc,
		picker:            domain.NewQuotePicker(rng),
		advance:           opts.AdvanceReminders,
		quotePerRecipient: opts.QuotePerRecipient,
		notify:            opts.NotifyTime,
	}
}

// DefaultTime returns the current global notification time.
func (s *Scheduler) DefaultTime() domain.TimeOfDay {
	return s.notify.DefaultTime()
}

// Run blocks until ctx is canceled, alternating between waiting for the
// next trigger instant and running a notification pass.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.clock.Now().In(s.loc)
		next := s.nextTrigger(ctx, now)

		if slice := now.Add(reevalInterval); next.After(slice) {
			// Nothing due soon; sleep a bounded slice and re-evaluate.
			if !s.waitUntil(ctx, slice) {
				s.log.Info("scheduler stopping")
				return
			}
			continue
		}

		if !s.waitUntil(ctx, next) {
			s.log.Info("scheduler stopping")
			return
		}
		s.RunPass(ctx)

		// If markers failed to persist the same trigger stays overdue;
		// keep a floor between consecutive passes.
		if after := s.nextTrigger(ctx, s.clock.Now().In(s.loc)); !after.After(s.clock.Now()) {
			if !s.waitUntil(ctx, s.clock.Now().Add(retryFloor)) {
				s.log.Info("scheduler stopping")
				return
			}
		}
	}
}

// nextTrigger computes the earliest pending trigger instant: the personal
// pass at the default time, and each group's digest at its effective time,
// all gated by the per-day completion markers. An overdue trigger yields
// "now" so exactly one catch-up pass fires after a suspension.
func (s *Scheduler) nextTrigger(ctx context.Context, now time.Time) time.Time {
	def := s.DefaultTime()

	personalDay := ""
	if day, err := s.repo.PersonalPassOn(ctx); err == nil {
		personalDay = day
	} else {
		s.log.Error("read personal pass marker failed", zap.Error(err))
	}
	next := domain.NextTrigger(now, def, personalDay)

	groups, err := s.repo.AllGroups(ctx)
	if err != nil {
		s.log.Error("list groups failed", zap.Error(err))
		return next
	}
	for _, g := range groups {
		eff := s.effectiveTime(ctx, g.ChatID, def)
		if t := domain.NextTrigger(now, eff, g.LastDigestOn); t.Before(next) {
			next = t
		}
	}
	return next
}

// effectiveTime resolves a group's notification time: override if set,
// else the default. A store failure falls back to the default for this round.
func (s *Scheduler) effectiveTime(ctx context.Context, chatID int64, def domain.TimeOfDay) domain.TimeOfDay {
	settings, err := s.repo.GroupSettings(ctx, chatID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("read group settings failed", zap.Error(err), zap.Int64("chatID", chatID))
		settings = nil
	}
	return domain.EffectiveNotifyTime(settings, def)
}

// waitUntil blocks until the instant t or ctx cancellation. It reports
// false when the wait was canceled. This is the loop's sole suspension point.
func (s *Scheduler) waitUntil(ctx context.Context, t time.Time) bool {
	d := t.Sub(s.clock.Now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RunPass executes one notification pass at the current clock reading:
// personal wishes for today's celebrants, then digests for every group
// whose effective time has elapsed. Steps already completed today are
// skipped, so re-entering on the same day never double-sends.
func (s *Scheduler) RunPass(ctx context.Context) {
	now := s.clock.Now().In(s.loc)
	day := domain.DayKey(now)
	log := s.log.With(zap.String("pass", uuid.NewString()), zap.String("day", day))

	users, err := s.repo.AllUsers(ctx)
	if err != nil {
		log.Error("list users failed, skipping pass", zap.Error(err))
		return
	}

	s.personalPass(ctx, log, users, now, day)
	s.groupDigests(ctx, log, users, now, day)
}

// personalPass sends a birthday wish to every user celebrating today.
func (s *Scheduler) personalPass(ctx context.Context, log *zap.Logger, users []domain.User, now time.Time, day string) {
	if !s.DefaultTime().Elapsed(now) {
		return
	}
	doneDay, err := s.repo.PersonalPassOn(ctx)
	if err != nil {
		log.Error("read personal pass marker failed", zap.Error(err))
		return
	}
	if doneDay == day {
		return
	}

	celebrants := domain.MatchBirthdays(users, now, 0)

	pool, err := s.repo.AllQuotes(ctx)
	if err != nil {
		// Fallback quote still applies; celebrants are not skipped.
		log.Error("list quotes failed", zap.Error(err))
		pool = nil
	}
	shared := s.picker.Pick(pool)

	sent := 0
	for _, u := range celebrants {
		if ctx.Err() != nil {
			// Shutdown mid-pass: no new deliveries for this pass.
			log.Info("pass interrupted", zap.Int("sent", sent))
			return
		}
		quote := shared
		if s.quotePerRecipient {
			quote = s.picker.Pick(pool)
		}
		if err := s.sender.SendMessage(u.ChatID, personalWish(u, quote)); err != nil {
			log.Error("send wish failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
			continue
		}
		sent++
	}

	// Completion marker goes last, after every delivery was attempted.
	if err := s.repo.SetPersonalPassOn(ctx, day); err != nil {
		log.Error("persist personal pass marker failed", zap.Error(err))
	}
	log.Info("personal pass complete", zap.Int("celebrants", len(celebrants)), zap.Int("sent", sent))
}

// groupDigests sends the aggregate birthday list to every group whose
// effective notification time has elapsed and whose digest is still
// pending today.
func (s *Scheduler) groupDigests(ctx context.Context, log *zap.Logger, users []domain.User, now time.Time, day string) {
	groups, err := s.repo.AllGroups(ctx)
	if err != nil {
		log.Error("list groups failed", zap.Error(err))
		return
	}
	if len(groups) == 0 {
		return
	}

	today := domain.MatchBirthdays(users, now, 0)
	var tomorrow []domain.User
	if s.advance {
		tomorrow = domain.MatchBirthdays(users, now, 1)
	}
	text := groupDigest(today, tomorrow)
	def := s.DefaultTime()

	for _, g := range groups {
		if ctx.Err() != nil {
			log.Info("digest fan-out interrupted")
			return
		}
		if g.LastDigestOn == day {
			continue
		}
		if !s.effectiveTime(ctx, g.ChatID, def).Elapsed(now) {
			continue
		}
		if text != "" {
			if err := s.sender.SendMessage(g.ChatID, text); err != nil {
				log.Error("send digest failed", zap.Error(err), zap.Int64("chatID", g.ChatID))
				// Fall through: the day is marked so this group is not
				// retried until tomorrow.
			}
		}
		if err := s.repo.SetGroupDigestOn(ctx, g.ChatID, day); err != nil {
			log.Error("persist digest marker failed", zap.Error(err), zap.Int64("chatID", g.ChatID))
		}
	}
	log.Info("group digests complete", zap.Int("groups", len(groups)), zap.Int("birthdaysToday", len(today)))
}
