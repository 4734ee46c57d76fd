package session_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-session/internal/apiclient"
	"github.com/magabrotheeeer/entitlement-session/internal/apitest"
	"github.com/magabrotheeeer/entitlement-session/internal/config"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/logger"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
	"github.com/magabrotheeeer/entitlement-session/internal/session"
	"github.com/magabrotheeeer/entitlement-session/internal/storage/kv"
)

type env struct {
	srv    *apitest.Server
	client *apiclient.Client
	sess   *session.Session
	store  kv.Store
}

// newEnv собирает сессию так же, как это делает приложение: клиент берёт токен
// у сессии, а 401 завершает её.
func newEnv(t *testing.T, srv *apitest.Server, store kv.Store, opts ...session.Option) *env {
	t.Helper()
	client := apiclient.New(config.API{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second}, logger.Discard())
	sess := session.New(store, client, client, logger.Discard(), opts...)
	client.SetTokenSource(sess)
	client.OnUnauthorized(sess.HandleUnauthorized)
	t.Cleanup(sess.Close)
	sess.Restore(context.Background())
	return &env{srv: srv, client: client, sess: sess, store: store}
}

func newServer(t *testing.T) *apitest.Server {
	srv := apitest.New(t)
	srv.AddUser("a@x.com", "pw1234", "Ann", "Lee")
	return srv
}

func TestScenario_LoginThenRefreshActive(t *testing.T) {
	srv := newServer(t)
	e := newEnv(t, srv, kv.NewMemory())
	ctx := context.Background()

	user, err := e.sess.Login(ctx, "a@x.com", "pw1234")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)

	view := e.sess.Snapshot()
	assert.True(t, view.IsAuthenticated)
	assert.False(t, view.HasActiveSubscription)
	assert.Nil(t, view.Subscription)

	srv.SetCurrent("a@x.com", apitest.Reply{
		Status: 200,
		Body:   `{"status":"ACTIVE","planName":"Pro","currentPeriodEnd":"2025-01-01"}`,
	})
	snap := e.sess.RefreshEntitlement(ctx, true)

	require.NotNil(t, snap)
	assert.True(t, e.sess.HasActiveSubscription())
	assert.Equal(t, session.StateEntitled, e.sess.State())
	stored, ok, err := e.store.Get(session.KeySubscription)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"ACTIVE","planName":"Pro","currentPeriodEnd":"2025-01-01"}`, stored)
}

func TestScenario_PrimaryFailsFallbackActive(t *testing.T) {
	srv := newServer(t)
	e := newEnv(t, srv, kv.NewMemory())
	ctx := context.Background()
	_, err := e.sess.Login(ctx, "a@x.com", "pw1234")
	require.NoError(t, err)

	srv.SetCurrent("a@x.com", apitest.ReplyServerError)
	srv.SetStatus("a@x.com", apitest.ReplyTrue)

	snap := e.sess.RefreshEntitlement(ctx, true)

	assert.Equal(t, &models.SubscriptionSnapshot{Status: models.StatusActive}, snap)
	assert.True(t, e.sess.HasActiveSubscription())
	assert.Equal(t, 1, srv.Calls("/subscriptions/status"))
}

func TestScenario_UnauthorizedDuringRefresh(t *testing.T) {
	srv := newServer(t)
	e := newEnv(t, srv, kv.NewMemory())
	ctx := context.Background()
	_, err := e.sess.Login(ctx, "a@x.com", "pw1234")
	require.NoError(t, err)
	token := e.sess.Token()

	var reasons []session.Reason
	e.sess.OnInvalidated(func(r session.Reason) { reasons = append(reasons, r) })

	srv.SetCurrent("a@x.com", apitest.Reply{Status: 200, Body: `{"status":"ACTIVE","planName":"Pro"}`})
	entered, release := srv.Block("/subscriptions/current")

	refreshed := make(chan *models.SubscriptionSnapshot, 1)
	go func() { refreshed <- e.sess.RefreshEntitlement(ctx, true) }()
	<-entered

	srv.Revoke(token)
	err = e.client.CancelSubscription(ctx)
	require.ErrorIs(t, err, apiclient.ErrUnauthorized)

	release()
	got := <-refreshed

	assert.Nil(t, got)
	assert.Equal(t, session.StateLoggedOut, e.sess.State())
	assert.Equal(t, []session.Reason{session.ReasonUnauthorized}, reasons)
	for _, key := range []string{session.KeyToken, session.KeyUser, session.KeySubscription} {
		_, ok, err := e.store.Get(key)
		require.NoError(t, err)
		assert.False(t, ok, "key %q must be removed", key)
	}
}

func TestRefresh_EmptyEncodingsNeverActive(t *testing.T) {
	replies := map[string]apitest.Reply{
		"null":         apitest.ReplyNull,
		"empty string": apitest.ReplyEmptyString,
		"empty body":   apitest.ReplyEmptyBody,
		"empty object": apitest.ReplyEmptyObject,
		"marker text":  apitest.ReplyNoActiveText,
		"not found":    apitest.ReplyNotFound,
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t)
			e := newEnv(t, srv, kv.NewMemory())
			_, err := e.sess.Login(context.Background(), "a@x.com", "pw1234")
			require.NoError(t, err)

			srv.SetCurrent("a@x.com", reply)
			srv.SetStatus("a@x.com", apitest.ReplyTrue)

			snap := e.sess.RefreshEntitlement(context.Background(), true)

			assert.Nil(t, snap)
			assert.False(t, e.sess.HasActiveSubscription())
			assert.Equal(t, session.StateNotEntitled, e.sess.State())
			// пустой ответ означает «подписки нет», резервный запрос не нужен
			assert.Zero(t, srv.Calls("/subscriptions/status"))
		})
	}
}

func TestRestore_SurvivesReload(t *testing.T) {
	srv := newServer(t)
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	first := newEnv(t, srv, kv.NewFile(path))
	_, err := first.sess.Login(ctx, "a@x.com", "pw1234")
	require.NoError(t, err)
	srv.SetCurrent("a@x.com", apitest.Reply{Status: 200, Body: `{"status":"ACTIVE","planName":"Pro"}`})
	first.sess.RefreshEntitlement(ctx, true)
	before := first.sess.Snapshot()

	second := newEnv(t, srv, kv.NewFile(path))
	after := second.sess.Snapshot()

	assert.Equal(t, before.Token, after.Token)
	assert.Equal(t, before.User, after.User)
	assert.Equal(t, before.Subscription, after.Subscription)
	assert.True(t, after.HasActiveSubscription)
	assert.Equal(t, session.StateUnknownEntitlement, after.State)

	second.sess.RefreshEntitlement(ctx, true)
	assert.Equal(t, session.StateEntitled, second.sess.State())

	first.sess.Logout()
	third := newEnv(t, srv, kv.NewFile(path))
	assert.Equal(t, session.StateLoggedOut, third.sess.State())
}

func TestRestore_ExpiredJWTDropped(t *testing.T) {
	srv := newServer(t)
	store := kv.NewMemory()

	expired, err := jwt.NewJWTMaker("other-secret", -time.Hour).GenerateToken("u-1", "a@x.com")
	require.NoError(t, err)
	require.NoError(t, store.Set(session.KeyToken, expired))
	require.NoError(t, store.Set(session.KeyUser, `{"id":"u-1","email":"a@x.com"}`))

	e := newEnv(t, srv, store, session.WithTokenInspector(jwt.NewInspector()))

	assert.Equal(t, session.StateLoggedOut, e.sess.State())
	_, ok, err := store.Get(session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegister_EndToEnd(t *testing.T) {
	srv := apitest.New(t)
	e := newEnv(t, srv, kv.NewMemory())

	user, err := e.sess.Register(context.Background(), models.RegisterRequest{
		Email:     "new@x.com",
		Password:  "secret1",
		FirstName: "New",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", user.Email)
	assert.NotEmpty(t, user.ID)

	snap := e.sess.RefreshEntitlement(context.Background(), true)
	assert.Nil(t, snap)
	assert.Equal(t, session.StateNotEntitled, e.sess.State())
}
