package apitest

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

var chartPeriods = map[string]bool{"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true, "1y": true}

// chartBase начало синтетической истории цен.
var chartBase = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

func defaultPicks() []models.StockPick {
	price := func(v float64) *float64 { return &v }
	return []models.StockPick{
		{ID: 3, Symbol: "NVDA", CompanyName: "NVIDIA Corp.", PickType: models.PickBuy, EntryPrice: 400, CurrentPrice: price(440), TargetPrice: price(500), StopLoss: price(360), PickDate: "2024-03-01"},
		{ID: 2, Symbol: "TSLA", CompanyName: "Tesla Inc.", PickType: models.PickSell, EntryPrice: 250, CurrentPrice: price(200), PickDate: "2024-02-01"},
		{ID: 1, Symbol: "AAPL", CompanyName: "Apple Inc.", PickType: models.PickHold, EntryPrice: 180, PickDate: "2024-01-01"},
	}
}

// SetStockPicks заменяет список рекомендаций.
func (s *Server) SetStockPicks(picks ...models.StockPick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picks = append([]models.StockPick(nil), picks...)
}

// Messages возвращает сообщения, принятые формой обратной связи.
func (s *Server) Messages() []models.ContactRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ContactRequest(nil), s.messages...)
}

func (s *Server) stockPickRoutes(r chi.Router) {
	r.Get("/stock-picks", s.count("/stock-picks", s.listPicks))
	r.Get("/stock-picks/recent", s.count("/stock-picks/recent", s.recentPicks))
	r.Post("/stock-picks/sync", s.count("/stock-picks/sync", s.syncPicks))
	r.Get("/stock-picks/charts/batch", s.count("/stock-picks/charts/batch", s.batchCharts))
	r.Get("/stock-picks/{symbol}/quote", s.count("/stock-picks/quote", s.quote))
	r.Get("/stock-picks/{symbol}/chart-data", s.count("/stock-picks/chart-data", s.chartData))
}

func (s *Server) listPicks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	picks := append([]models.StockPick(nil), s.picks...)
	s.mu.Unlock()
	render.JSON(w, r, picks)
}

func (s *Server) recentPicks(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("limit must be a positive number"))
		return
	}

	s.mu.Lock()
	picks := append([]models.StockPick(nil), s.picks...)
	s.mu.Unlock()

	slices.SortStableFunc(picks, func(a, b models.StockPick) int {
		return strings.Compare(b.PickDate, a.PickDate)
	})
	if len(picks) > limit {
		picks = picks[:limit]
	}
	render.JSON(w, r, picks)
}

func (s *Server) syncPicks(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{Status: StatusOK})
}

// findPick ищет рекомендацию по тикеру без учёта регистра.
func (s *Server) findPick(symbol string) (models.StockPick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.picks {
		if strings.EqualFold(p.Symbol, symbol) {
			return p, true
		}
	}
	return models.StockPick{}, false
}

func quoteFor(p models.StockPick) models.Quote {
	current := p.EntryPrice
	if p.CurrentPrice != nil {
		current = *p.CurrentPrice
	}
	change := current - p.EntryPrice
	return models.Quote{
		Current:       current,
		Open:          p.EntryPrice,
		High:          max(current, p.EntryPrice),
		Low:           min(current, p.EntryPrice),
		PreviousClose: p.EntryPrice,
		Change:        change,
		ChangePercent: change / p.EntryPrice * 100,
	}
}

// chartFor строит пять дневных свечей от цены входа к текущей цене.
func chartFor(p models.StockPick, period string) models.ChartData {
	const n = 5
	q := quoteFor(p)
	step := (q.Current - p.EntryPrice) / (n - 1)

	var c models.Candles
	for i := 0; i < n; i++ {
		open := p.EntryPrice + step*float64(i-1)
		if i == 0 {
			open = p.EntryPrice
		}
		closePrice := p.EntryPrice + step*float64(i)
		c.Open = append(c.Open, open)
		c.Close = append(c.Close, closePrice)
		c.High = append(c.High, max(open, closePrice)+1)
		c.Low = append(c.Low, min(open, closePrice)-1)
		c.Volume = append(c.Volume, float64(1000*(i+1)))
		c.Timestamps = append(c.Timestamps, chartBase.AddDate(0, 0, i).Unix())
	}
	return models.ChartData{Symbol: p.Symbol, Period: period, Candles: c, Quote: &q}
}

func chartPeriod(r *http.Request) (string, bool) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1mo"
	}
	return period, chartPeriods[period]
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	p, ok := s.findPick(chi.URLParam(r, "symbol"))
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse("symbol not found"))
		return
	}
	render.JSON(w, r, quoteFor(p))
}

func (s *Server) chartData(w http.ResponseWriter, r *http.Request) {
	period, ok := chartPeriod(r)
	if !ok {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("unsupported period"))
		return
	}
	p, ok := s.findPick(chi.URLParam(r, "symbol"))
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse("symbol not found"))
		return
	}
	render.JSON(w, r, chartFor(p, period))
}

func (s *Server) batchCharts(w http.ResponseWriter, r *http.Request) {
	period, ok := chartPeriod(r)
	if !ok {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("unsupported period"))
		return
	}
	raw := r.URL.Query().Get("symbols")
	if strings.TrimSpace(raw) == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("symbols is required"))
		return
	}

	out := make(map[string]models.ChartData)
	for _, symbol := range strings.Split(raw, ",") {
		if p, ok := s.findPick(strings.TrimSpace(symbol)); ok {
			out[p.Symbol] = chartFor(p, period)
		}
	}
	render.JSON(w, r, out)
}

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubscriptionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("failed to decode request"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("planId is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.plans, func(p models.Plan) bool { return p.ID == req.PlanID })
	if idx < 0 {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse("plan not found"))
		return
	}
	u := s.userFromCtx(r)
	u.current = Reply{Status: http.StatusOK, Body: `{"status":"ACTIVE","planName":"` + s.plans[idx].Name + `"}`}
	u.status = ReplyTrue
	render.JSON(w, r, Response{Status: StatusOK})
}

func (s *Server) contact(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("failed to decode request"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, validationError(validateErr))
			return
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, req)
	s.mu.Unlock()
	render.JSON(w, r, Response{Status: StatusOK})
}
