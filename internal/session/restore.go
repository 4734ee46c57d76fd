package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/entitlement-session/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
	"github.com/magabrotheeeer/entitlement-session/internal/storage/kv"
)

// undefinedLiteral записывался вместо отсутствующего значения. Такие данные считаются повреждёнными.
const undefinedLiteral = "undefined"

var (
	errCorruptUser         = errors.New("stored user is malformed")
	errCorruptSubscription = errors.New("stored subscription is malformed")
	errUnpaired            = errors.New("stored token and user are not paired")
	errTokenExpired        = errors.New("stored token is expired")
)

// stored содержимое хранилища после разбора.
type stored struct {
	token        string
	user         *models.UserIdentity
	subscription *models.SubscriptionSnapshot
}

// Restore восстанавливает сессию из хранилища. Выполняется один раз, повторные вызовы ничего не делают.
// Ошибок не возвращает: повреждённые данные удаляются, сессия остаётся LOGGED_OUT.
func (s *Session) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() { s.restore(ctx) })
}

func (s *Session) restore(_ context.Context) {
	const op = "session.Restore"
	log := s.log.With(slog.String("op", op))

	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	var (
		data     stored
		parseErr error
	)
	raw, readErr := s.load()
	if readErr == nil {
		data, parseErr = s.parse(raw)
	}

	s.mu.Lock()
	s.loading = false
	if s.epoch != epoch {
		// пока читали хранилище, сессию уже установил Login или Register
		s.mu.Unlock()
		log.Debug("restore superseded by a newer session")
		s.metrics.restore("superseded")
		return
	}

	var result string
	switch {
	case errors.Is(readErr, kv.ErrCorrupt):
		s.purgeLocked(log)
		result = "purged"
	case readErr != nil:
		result = "storage_error"
	case parseErr != nil:
		s.purgeLocked(log)
		result = "purged"
	case data.token == "":
		result = "empty"
	default:
		s.token = data.token
		s.user = data.user
		s.subscription = data.subscription
		s.resolved = false
		result = "restored"
	}
	s.mu.Unlock()

	s.metrics.restore(result)
	switch result {
	case "storage_error":
		log.Error("failed to read session storage", sl.Err(readErr))
	case "purged":
		log.Warn("stored session discarded", sl.Err(errors.Join(readErr, parseErr)))
	case "restored":
		log.Info("session restored", slog.String("email", data.user.Email))
		s.scheduleRefresh()
	}
}

// rawSession сырые значения трёх ключей.
type rawSession struct {
	token        string
	user         string
	subscription string
}

// load читает сырые значения трёх ключей.
func (s *Session) load() (rawSession, error) {
	const op = "session.load"
	var raw rawSession

	for _, item := range []struct {
		key string
		dst *string
	}{
		{KeyToken, &raw.token},
		{KeyUser, &raw.user},
		{KeySubscription, &raw.subscription},
	} {
		v, ok, err := s.store.Get(item.key)
		if err != nil {
			return rawSession{}, fmt.Errorf("%s: %s: %w", op, item.key, err)
		}
		if ok {
			*item.dst = v
		}
	}
	return raw, nil
}

// parse проверяет восстановленные значения. Любая ошибка означает, что все три ключа надо удалить.
func (s *Session) parse(raw rawSession) (stored, error) {
	if raw.token == undefinedLiteral || raw.user == undefinedLiteral {
		return stored{}, errCorruptUser
	}
	if raw.subscription == undefinedLiteral {
		return stored{}, errCorruptSubscription
	}
	token, userRaw, subRaw := raw.token, raw.user, raw.subscription

	if token == "" && userRaw == "" {
		if subRaw != "" && subRaw != "null" {
			return stored{}, errUnpaired
		}
		return stored{}, nil
	}
	if token == "" || userRaw == "" {
		return stored{}, errUnpaired
	}

	var user models.UserIdentity
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil || !user.Valid() {
		return stored{}, errCorruptUser
	}

	var sub *models.SubscriptionSnapshot
	if subRaw != "" && subRaw != "null" {
		sub = &models.SubscriptionSnapshot{}
		if err := json.Unmarshal([]byte(subRaw), sub); err != nil || sub.Status == "" {
			return stored{}, errCorruptSubscription
		}
	}

	if s.inspector != nil && s.inspector.Expired(token) {
		return stored{}, errTokenExpired
	}

	return stored{token: token, user: &user, subscription: sub}, nil
}

// purgeLocked удаляет все три ключа. Вызывается под s.mu.
func (s *Session) purgeLocked(log *slog.Logger) {
	for _, key := range []string{KeyToken, KeyUser, KeySubscription} {
		if err := s.store.Remove(key); err != nil {
			log.Error("failed to remove session key", slog.String("key", key), sl.Err(err))
		}
	}
}
