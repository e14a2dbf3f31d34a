package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/birthday-bot/internal/config"
	"github.com/ykvlv/birthday-bot/internal/domain"
	"github.com/ykvlv/birthday-bot/internal/scheduler"
	"github.com/ykvlv/birthday-bot/internal/store"
	"github.com/ykvlv/birthday-bot/internal/telegram"
)

type App struct {
	cfg        config.Config
	log        *zap.Logger
	bot        *tgbotapi.BotAPI
	httpSrv    *http.Server
	loc        *time.Location
	notifyTime *scheduler.NotifyTime
	repo       store.Repo
	router     *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.TZ, err)
	}
	defTime, err := domain.ParseTimeOfDay(cfg.DefaultNotifyTime)
	if err != nil {
		return nil, fmt.Errorf("default notify time: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{
		cfg:        cfg,
		log:        log,
		bot:        bot,
		httpSrv:    srv,
		loc:        loc,
		notifyTime: scheduler.NewNotifyTime(defTime),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting birthday-bot",
		zap.String("mode", a.cfg.RunMode),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", a.cfg.TZ),
		zap.String("defaultNotifyTime", a.notifyTime.DefaultTime().String()),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	a.router = telegram.NewRouter(a.bot, a.log, a.repo, a.notifyTime, a.loc)

	sched := scheduler.New(a.repo, a.log, a.router, scheduler.Options{
		NotifyTime:        a.notifyTime,
		Location:          a.loc,
		AdvanceReminders:  a.cfg.AdvanceReminders,
		QuotePerRecipient: a.cfg.QuotePerRecipient,
	})

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			// Let the scheduler finish any in-flight pass before closing the store.
			wg.Wait()

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
