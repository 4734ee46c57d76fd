package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-session/internal/apitest"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

func TestClient_StockPicks(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("a@x.com", "pw1234", "Ann", "")
	c := newTestClient(srv.BaseURL())

	_, err := c.StockPicks(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	loginAs(t, c, "a@x.com", "pw1234")

	picks, err := c.StockPicks(context.Background())
	require.NoError(t, err)
	require.Len(t, picks, 3)
	assert.Equal(t, "NVDA", picks[0].Symbol)
	require.NotNil(t, picks[0].TargetPrice)
	assert.InDelta(t, 500, *picks[0].TargetPrice, 1e-9)

	recent, err := c.RecentStockPicks(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "TSLA", recent[1].Symbol)

	recent, err = c.RecentStockPicks(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	require.NoError(t, c.SyncStockPicks(context.Background()))
	assert.Equal(t, 1, srv.Calls("/stock-picks/sync"))
}

func TestClient_QuoteAndCharts(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("a@x.com", "pw1234", "Ann", "")
	c := newTestClient(srv.BaseURL())
	loginAs(t, c, "a@x.com", "pw1234")

	quote, err := c.Quote(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.InDelta(t, 440, quote.Current, 1e-9)
	assert.InDelta(t, 10, quote.ChangePercent, 1e-9)

	_, err = c.Quote(context.Background(), "MSFT")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.False(t, statusErr.Server())

	chart, err := c.ChartData(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultChartPeriod, chart.Period)
	assert.Len(t, chart.Candles.Rows(), 5)

	_, err = c.ChartData(context.Background(), "AAPL", "10y")
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)

	batch, err := c.BatchChartData(context.Background(), []string{"AAPL", "TSLA", "MSFT"}, "3mo")
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.Equal(t, "3mo", batch["TSLA"].Period)
}

func TestClient_EscapesSymbol(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"c":1}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	c.SetTokenSource(staticToken("tok-1"))

	_, err := c.Quote(context.Background(), "BRK/B")
	require.NoError(t, err)
	assert.Equal(t, "/stock-picks/BRK%2FB/quote", gotPath)
}

func TestClient_CreateSubscription(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("a@x.com", "pw1234", "Ann", "")
	c := newTestClient(srv.BaseURL())
	loginAs(t, c, "a@x.com", "pw1234")

	require.NoError(t, c.CreateSubscription(context.Background(), "basic"))

	lookup := c.CurrentSubscription(context.Background())
	require.Equal(t, LookupFound, lookup.Kind)
	assert.Equal(t, models.StatusActive, lookup.Snapshot.Status)
	require.NotNil(t, lookup.Snapshot.PlanName)
	assert.Equal(t, "Basic", *lookup.Snapshot.PlanName)

	var statusErr *StatusError
	require.ErrorAs(t, c.CreateSubscription(context.Background(), "gold"), &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestClient_SubmitContact(t *testing.T) {
	srv := apitest.New(t)
	c := newTestClient(srv.BaseURL())

	err := c.SubmitContact(context.Background(), models.ContactRequest{Name: "Ann", Email: "a@x.com", Subject: "Hi", Message: "Hello"})
	require.NoError(t, err)
	require.Len(t, srv.Messages(), 1)
	assert.Equal(t, "Hi", srv.Messages()[0].Subject)

	err = c.SubmitContact(context.Background(), models.ContactRequest{Name: "Ann"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}
