// Package session реализует EntitlementSession: единственный источник правды
// о том, кто вошёл в систему и на что у него есть доступ.
//
// Сессия хранит идентичность, токен и снимок подписки, пишет их в kv.Store
// синхронно с изменением в памяти и восстанавливает при старте. Снимок подписки
// только подсказка для интерфейса: права на сервере проверяет сервер.
//
// Жизненный цикл: New -> Restore -> Login/Register/RefreshEntitlement -> Logout.
// Каждое изменение состава сессии увеличивает epoch; обновление подписки,
// начатое в старой эпохе, свой результат отбрасывает.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/entitlement-session/internal/apiclient"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
	"github.com/magabrotheeeer/entitlement-session/internal/storage/kv"
)

// Ключи, которыми владеет сессия. Остальные ключи хранилища не трогаются.
const (
	KeyToken        = "token"
	KeyUser         = "user"
	KeySubscription = "subscription"
)

var (
	// ErrEmptyToken сервер подтвердил вход, но не вернул токен.
	ErrEmptyToken = errors.New("auth response has no token")
	// ErrEmptyIdentity сервер подтвердил вход, но не вернул email пользователя.
	ErrEmptyIdentity = errors.New("auth response has no user email")
)

// AuthService внешний сервис аутентификации.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*apiclient.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*apiclient.AuthResponse, error)
}

// SubscriptionService внешний сервис подписок.
type SubscriptionService interface {
	// CurrentSubscription подробный запрос текущей подписки.
	CurrentSubscription(ctx context.Context) apiclient.Lookup
	// HasActiveSubscription грубая проверка, используется при сбое подробного запроса.
	HasActiveSubscription(ctx context.Context) (bool, error)
}

// TokenInspector определяет истёкшие токены при восстановлении сессии.
type TokenInspector interface {
	Expired(token string) bool
}

// Option настраивает Session.
type Option func(*Session)

// WithMetrics подключает prometheus счётчики.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithAutoRefresh включает фоновое обновление подписки после входа и восстановления.
func WithAutoRefresh(enabled bool) Option {
	return func(s *Session) { s.autoRefresh = enabled }
}

// WithRefreshTimeout ограничивает время фонового обновления.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Session) { s.refreshTimeout = d }
}

// WithMinRefreshInterval задаёт, как долго результат обновления считается свежим
// для вызовов RefreshEntitlement без force.
func WithMinRefreshInterval(d time.Duration) Option {
	return func(s *Session) { s.minRefreshInterval = d }
}

// WithTokenInspector отбрасывает истёкшие токены при Restore.
func WithTokenInspector(i TokenInspector) Option {
	return func(s *Session) { s.inspector = i }
}

// Session клиентская сессия с правами доступа.
type Session struct {
	store     kv.Store
	auth      AuthService
	subs      SubscriptionService
	log       *slog.Logger
	metrics   *Metrics
	inspector TokenInspector
	validate  *validator.Validate
	now       func() time.Time

	autoRefresh        bool
	refreshTimeout     time.Duration
	minRefreshInterval time.Duration

	mu           sync.RWMutex
	user         *models.UserIdentity
	token        string
	subscription *models.SubscriptionSnapshot
	resolved     bool
	resolvedAt   time.Time
	loading      bool
	epoch        uint64
	closed       bool

	listenersMu sync.Mutex
	listeners   map[int]func(Reason)
	nextID      int

	restoreOnce sync.Once
	flight      singleflight.Group
	wg          sync.WaitGroup
	bgCtx       context.Context
	bgCancel    context.CancelFunc
}

// New создаёт сессию в состоянии LOGGED_OUT. До вызова Restore или первого входа Loading возвращает true.
func New(store kv.Store, auth AuthService, subs SubscriptionService, log *slog.Logger, opts ...Option) *Session {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Session{
		store:          store,
		auth:           auth,
		subs:           subs,
		log:            log,
		validate:       validator.New(),
		now:            time.Now,
		refreshTimeout: 15 * time.Second,
		loading:        true,
		listeners:      make(map[int]func(Reason)),
		bgCtx:          bgCtx,
		bgCancel:       bgCancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View согласованный снимок состояния сессии для слоя представления.
type View struct {
	User                  *models.UserIdentity
	Token                 string
	Subscription          *models.SubscriptionSnapshot
	State                 State
	IsAuthenticated       bool
	HasActiveSubscription bool
	Loading               bool
}

// Snapshot возвращает копию текущего состояния.
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var user *models.UserIdentity
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return View{
		User:                  user,
		Token:                 s.token,
		Subscription:          s.subscription.Clone(),
		State:                 s.stateLocked(),
		IsAuthenticated:       s.token != "",
		HasActiveSubscription: s.subscription.Active(),
		Loading:               s.loading,
	}
}

// Token возвращает текущий токен или пустую строку.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User возвращает копию идентичности или nil.
func (s *Session) User() *models.UserIdentity {
	return s.Snapshot().User
}

// Subscription возвращает копию снимка подписки или nil.
func (s *Session) Subscription() *models.SubscriptionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscription.Clone()
}

// IsAuthenticated сообщает, есть ли у сессии токен.
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// HasActiveSubscription вычисляется из снимка при каждом вызове и нигде не хранится.
func (s *Session) HasActiveSubscription() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscription.Active()
}

// Loading true, пока не завершился Restore.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// State возвращает текущее состояние автомата.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.token == "":
		return StateLoggedOut
	case !s.resolved:
		return StateUnknownEntitlement
	case s.subscription.Active():
		return StateEntitled
	default:
		return StateNotEntitled
	}
}

// OnInvalidated подписывает fn на завершение сессии (выход или 401).
// fn вызывается после очистки состояния, вне блокировок сессии.
// Возвращает функцию отписки.
func (s *Session) OnInvalidated(fn func(Reason)) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) notify(reason Reason) {
	s.listenersMu.Lock()
	fns := make([]func(Reason), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(reason)
	}
}

// Close отменяет фоновые обновления и ждёт их завершения.
// После Close новые фоновые обновления не планируются.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.bgCancel()
	s.wg.Wait()
}
