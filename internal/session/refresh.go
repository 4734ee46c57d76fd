package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/magabrotheeeer/entitlement-session/internal/apiclient"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// Исходы обновления подписки, они же значения метки outcome.
const (
	outcomeFound            = "found"
	outcomeNotFound         = "not_found"
	outcomeFallbackActive   = "fallback_active"
	outcomeFallbackInactive = "fallback_inactive"
	outcomeFailed           = "failed"
	outcomeDiscarded        = "discarded"
	outcomeCached           = "cached"
)

// RefreshEntitlement запрашивает у сервера текущую подписку и заменяет ею снимок целиком.
// Без токена возвращает nil и к серверу не обращается. Ошибок не возвращает:
// любой сбой сводится к nil. Если за время запроса сессия сменилась,
// результат отбрасывается и возвращается снимок текущей сессии.
//
// При force=false одновременные вызовы в одной сессии выполняют один запрос,
// а результат моложе MinRefreshInterval возвращается без запроса.
func (s *Session) RefreshEntitlement(ctx context.Context, force bool) *models.SubscriptionSnapshot {
	s.mu.RLock()
	token := s.token
	epoch := s.epoch
	fresh := s.resolved && s.minRefreshInterval > 0 && s.now().Sub(s.resolvedAt) < s.minRefreshInterval
	cached := s.subscription.Clone()
	s.mu.RUnlock()

	if token == "" {
		return nil
	}
	if force {
		return s.refresh(ctx, epoch)
	}
	if fresh {
		s.metrics.refresh(outcomeCached)
		return cached
	}

	v, _, _ := s.flight.Do(strconv.FormatUint(epoch, 10), func() (any, error) {
		return s.refresh(ctx, epoch), nil
	})
	snap, _ := v.(*models.SubscriptionSnapshot)
	return snap.Clone()
}

func (s *Session) refresh(ctx context.Context, epoch uint64) *models.SubscriptionSnapshot {
	snap, outcome := s.resolve(ctx)
	if outcome == outcomeFailed && ctx.Err() != nil {
		// отмена вызывающей стороной не ответ сервера, снимок не трогаем
		s.metrics.refresh(outcomeDiscarded)
		return s.Subscription()
	}
	return s.commit(epoch, snap, outcome)
}

// resolve опрашивает сервис подписок. Подробный запрос главный;
// грубая проверка используется только когда он не дал ответа.
// Неоднозначный ответ никогда не превращается в ACTIVE.
func (s *Session) resolve(ctx context.Context) (*models.SubscriptionSnapshot, string) {
	const op = "session.resolve"
	log := s.log.With(slog.String("op", op))

	lookup := s.subs.CurrentSubscription(ctx)
	switch lookup.Kind {
	case apiclient.LookupFound:
		return lookup.Snapshot, outcomeFound
	case apiclient.LookupNotFound:
		return nil, outcomeNotFound
	}

	log.Warn("current subscription lookup failed, falling back to status check", sl.Err(lookup.Err))
	active, err := s.subs.HasActiveSubscription(ctx)
	if err != nil {
		log.Error("subscription status check failed", sl.Err(err))
		return nil, outcomeFailed
	}
	if active {
		return &models.SubscriptionSnapshot{Status: models.StatusActive}, outcomeFallbackActive
	}
	return nil, outcomeFallbackInactive
}

// commit заменяет снимок, если сессия не сменилась с начала обновления.
func (s *Session) commit(epoch uint64, snap *models.SubscriptionSnapshot, outcome string) *models.SubscriptionSnapshot {
	const op = "session.commit"
	log := s.log.With(slog.String("op", op), slog.String("outcome", outcome))

	s.mu.Lock()
	if s.epoch != epoch || s.token == "" {
		current := s.subscription.Clone()
		s.mu.Unlock()
		s.metrics.refresh(outcomeDiscarded)
		log.Debug("refresh result discarded, session changed")
		return current
	}
	s.persistSubscriptionLocked(log, snap)
	s.subscription = snap.Clone()
	s.resolved = true
	s.resolvedAt = s.now()
	s.mu.Unlock()

	s.metrics.refresh(outcome)
	log.Debug("entitlement refreshed", slog.Bool("active", snap.Active()))
	return snap.Clone()
}

// persistSubscriptionLocked пишет снимок в хранилище, nil удаляет ключ.
// Если записать не удалось, ключ удаляется, чтобы после перезапуска не поднялся устаревший снимок.
func (s *Session) persistSubscriptionLocked(log *slog.Logger, snap *models.SubscriptionSnapshot) {
	if snap == nil {
		if err := s.store.Remove(KeySubscription); err != nil {
			log.Error("failed to remove subscription", sl.Err(err))
		}
		return
	}

	data, err := json.Marshal(snap)
	if err == nil {
		err = s.store.Set(KeySubscription, string(data))
	}
	if err != nil {
		log.Error("failed to persist subscription", sl.Err(err))
		if err := s.store.Remove(KeySubscription); err != nil {
			log.Error("failed to remove subscription", sl.Err(err))
		}
	}
}

// scheduleRefresh запускает фоновое обновление, если оно включено.
func (s *Session) scheduleRefresh() {
	if !s.autoRefresh {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := s.bgCtx, context.CancelFunc(func() {})
		if s.refreshTimeout > 0 {
			ctx, cancel = context.WithTimeout(s.bgCtx, s.refreshTimeout)
		}
		defer cancel()
		s.RefreshEntitlement(ctx, false)
	}()
}
