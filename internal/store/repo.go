package store

import (
	"context"
	"errors"
	"time"

	"github.com/ykvlv/birthday-bot/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for users, groups, quotes and the
// once-per-day cycle markers.
type Repo interface {
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	AllUsers(ctx context.Context) ([]domain.User, error)
	FindUsersByBirthday(ctx context.Context, month time.Month, day int) ([]domain.User, error)

	UpsertGroup(ctx context.Context, g *domain.Group) error
	AllGroups(ctx context.Context) ([]domain.Group, error)
	GroupSettings(ctx context.Context, chatID int64) (*domain.GroupSettings, error)
	SetGroupNotifyTime(ctx context.Context, chatID int64, t domain.TimeOfDay) error
	SetGroupDigestOn(ctx context.Context, chatID int64, day string) error

	AddQuote(ctx context.Context, text string) error
	AllQuotes(ctx context.Context) ([]domain.Quote, error)
	RandomQuote(ctx context.Context) (string, error)

	PersonalPassOn(ctx context.Context) (string, error)
	SetPersonalPassOn(ctx context.Context, day string) error

	Close() error
}
