// Package stockpicks собирает клиент: хранилище сессии, API-клиент и сессию, и выполняет команды CLI.
package stockpicks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/entitlement-session/internal/apiclient"
	"github.com/magabrotheeeer/entitlement-session/internal/config"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-session/internal/session"
	"github.com/magabrotheeeer/entitlement-session/internal/storage/kv"
)

// Драйверы хранилища сессии.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

var (
	// ErrSessionExpired сервер отклонил токен во время выполнения команды.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrNotLoggedIn команда требует входа.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrUnknownDriver в конфиге указан неизвестный драйвер хранилища.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// App клиентское приложение.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	store    kv.Store
	closers  []func() error
	client   *apiclient.Client
	session  *session.Session
	registry *prometheus.Registry
	validate *validator.Validate
	expired  atomic.Bool
}

// Option настраивает App.
type Option func(*App)

// WithOutput задаёт, куда команды пишут результат. По умолчанию os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// New создаёт приложение по конфигу.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	const op = "stockpicks.New"

	a := &App{
		cfg:      cfg,
		logger:   logger,
		out:      os.Stdout,
		registry: prometheus.NewRegistry(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	store, closer, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.store = store
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.client = apiclient.New(cfg.API, logger)

	sessOpts := []session.Option{
		session.WithMetrics(session.NewMetrics(a.registry)),
		session.WithAutoRefresh(cfg.AutoRefresh),
		session.WithRefreshTimeout(cfg.RefreshTimeout),
		session.WithMinRefreshInterval(cfg.MinRefreshInterval),
	}
	if cfg.DropExpiredTokens {
		sessOpts = append(sessOpts, session.WithTokenInspector(jwt.NewInspector()))
	}
	a.session = session.New(store, a.client, a.client, logger, sessOpts...)

	a.client.SetTokenSource(a.session)
	a.client.OnUnauthorized(a.session.HandleUnauthorized)
	a.session.OnInvalidated(func(reason session.Reason) {
		if reason == session.ReasonUnauthorized {
			a.expired.Store(true)
		}
	})

	return a, nil
}

// newStore выбирает хранилище сессии по драйверу.
func newStore(ctx context.Context, cfg config.Storage) (kv.Store, func() error, error) {
	switch cfg.Driver {
	case DriverMemory:
		return kv.NewMemory(), nil, nil
	case DriverFile, "":
		return kv.NewFile(cfg.Path), nil, nil
	case DriverRedis:
		r, err := kv.InitRedis(ctx, cfg.RedisConnection, cfg.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Session возвращает сессию приложения.
func (a *App) Session() *session.Session {
	return a.session
}

// Close дожидается фоновых обновлений и закрывает хранилище.
func (a *App) Close() error {
	a.session.Close()

	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
