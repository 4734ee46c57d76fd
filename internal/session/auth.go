package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-session/internal/apiclient"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// Login проверяет учётные данные и открывает сессию.
// Ошибка сервиса аутентификации возвращается без изменений, состояние сессии при этом не меняется.
func (s *Session) Login(ctx context.Context, email, password string) (models.UserIdentity, error) {
	const op = "session.Login"

	resp, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return models.UserIdentity{}, err
	}
	return s.establish(op, resp)
}

// Register создаёт учётную запись и открывает сессию. Запрос проверяется до обращения к серверу.
func (s *Session) Register(ctx context.Context, req models.RegisterRequest) (models.UserIdentity, error) {
	const op = "session.Register"

	if err := s.validate.Struct(req); err != nil {
		return models.UserIdentity{}, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := s.auth.Register(ctx, req)
	if err != nil {
		return models.UserIdentity{}, err
	}
	return s.establish(op, resp)
}

// establish записывает токен и пользователя в хранилище и в память.
// Предыдущий снимок подписки сбрасывается, права становятся неизвестны.
func (s *Session) establish(op string, resp *apiclient.AuthResponse) (models.UserIdentity, error) {
	log := s.log.With(slog.String("op", op))

	if resp == nil || resp.Token == "" {
		return models.UserIdentity{}, fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}
	identity := resp.Identity()
	if !identity.Valid() {
		return models.UserIdentity{}, fmt.Errorf("%s: %w", op, ErrEmptyIdentity)
	}
	userJSON, err := json.Marshal(identity)
	if err != nil {
		return models.UserIdentity{}, fmt.Errorf("%s: encode user: %w", op, err)
	}

	s.mu.Lock()
	s.epoch++
	s.loading = false
	if err := s.persistLoginLocked(resp.Token, string(userJSON)); err != nil {
		wasLoggedIn := s.token != ""
		s.clearLocked()
		s.purgeLocked(log)
		s.mu.Unlock()

		log.Error("failed to persist session", sl.Err(err))
		if wasLoggedIn {
			s.metrics.invalidation(ReasonStorage)
			s.notify(ReasonStorage)
		}
		return models.UserIdentity{}, fmt.Errorf("%s: %w", op, err)
	}
	s.token = resp.Token
	s.user = &identity
	s.subscription = nil
	s.resolved = false
	s.resolvedAt = time.Time{}
	s.mu.Unlock()

	log.Info("logged in", slog.String("email", identity.Email))
	s.scheduleRefresh()
	return identity, nil
}

func (s *Session) persistLoginLocked(token, userJSON string) error {
	if err := s.store.Set(KeyToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.store.Set(KeyUser, userJSON); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	if err := s.store.Remove(KeySubscription); err != nil {
		return fmt.Errorf("drop subscription: %w", err)
	}
	return nil
}

// Logout завершает сессию. Безопасен для повторного вызова, ошибок не возвращает.
func (s *Session) Logout() {
	s.invalidate(ReasonLogout, "", false)
}

// HandleUnauthorized вызывается API-клиентом, когда запрос с токеном token получил 401.
// Ответ на запрос со старым токеном новую сессию не закрывает.
func (s *Session) HandleUnauthorized(token string) {
	s.invalidate(ReasonUnauthorized, token, token != "")
}

func (s *Session) invalidate(reason Reason, token string, matchToken bool) {
	const op = "session.invalidate"
	log := s.log.With(slog.String("op", op), slog.String("reason", string(reason)))

	s.mu.Lock()
	if matchToken && s.token != token {
		s.mu.Unlock()
		log.Debug("ignoring unauthorized response for a stale token")
		return
	}
	wasLoggedIn := s.token != ""
	s.epoch++
	s.clearLocked()
	s.purgeLocked(log)
	s.mu.Unlock()

	if !wasLoggedIn {
		return
	}
	s.metrics.invalidation(reason)
	log.Info("session invalidated")
	s.notify(reason)
}

func (s *Session) clearLocked() {
	s.token = ""
	s.user = nil
	s.subscription = nil
	s.resolved = false
	s.resolvedAt = time.Time{}
}
