package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// DefaultRecentLimit число последних рекомендаций по умолчанию.
const DefaultRecentLimit = 10

// DefaultChartPeriod период истории цен по умолчанию.
const DefaultChartPeriod = "1mo"

// StockPicks возвращает все рекомендации.
func (c *Client) StockPicks(ctx context.Context) ([]models.StockPick, error) {
	const op = "apiclient.StockPicks"

	var picks []models.StockPick
	if err := c.getJSON(ctx, "/stock-picks", &picks); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return picks, nil
}

// RecentStockPicks возвращает limit последних рекомендаций. limit <= 0 означает DefaultRecentLimit.
func (c *Client) RecentStockPicks(ctx context.Context, limit int) ([]models.StockPick, error) {
	const op = "apiclient.RecentStockPicks"

	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}

	var picks []models.StockPick
	if err := c.getJSON(ctx, "/stock-picks/recent?"+q.Encode(), &picks); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return picks, nil
}

// SyncStockPicks просит сервер перечитать рекомендации из источника.
func (c *Client) SyncStockPicks(ctx context.Context) error {
	const op = "apiclient.SyncStockPicks"

	resp, err := c.do(ctx, http.MethodPost, "/stock-picks/sync", nil, true)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.ok() {
		return fmt.Errorf("%s: %w", op, statusError(resp))
	}
	return nil
}

// Quote возвращает котировку по тикеру.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	const op = "apiclient.Quote"

	var quote models.Quote
	if err := c.getJSON(ctx, "/stock-picks/"+url.PathEscape(symbol)+"/quote", &quote); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &quote, nil
}

// ChartData возвращает историю цен по тикеру. Пустой period означает DefaultChartPeriod.
func (c *Client) ChartData(ctx context.Context, symbol, period string) (*models.ChartData, error) {
	const op = "apiclient.ChartData"

	if period == "" {
		period = DefaultChartPeriod
	}
	q := url.Values{"period": {period}}

	var data models.ChartData
	if err := c.getJSON(ctx, "/stock-picks/"+url.PathEscape(symbol)+"/chart-data?"+q.Encode(), &data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &data, nil
}

// BatchChartData возвращает историю цен сразу по нескольким тикерам, ключ ответа тикер.
func (c *Client) BatchChartData(ctx context.Context, symbols []string, period string) (map[string]models.ChartData, error) {
	const op = "apiclient.BatchChartData"

	if period == "" {
		period = DefaultChartPeriod
	}
	q := url.Values{
		"symbols": {strings.Join(symbols, ",")},
		"period":  {period},
	}

	data := make(map[string]models.ChartData)
	if err := c.getJSON(ctx, "/stock-picks/charts/batch?"+q.Encode(), &data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// getJSON выполняет авторизованный GET и декодирует успешный ответ в dst.
func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return statusError(resp)
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
