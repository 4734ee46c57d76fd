package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// CurrentSubscription запрашивает текущую подписку и сводит ответ к Lookup.
// Метод не возвращает ошибку: сбой транспорта попадает в Lookup.Err.
func (c *Client) CurrentSubscription(ctx context.Context) Lookup {
	const op = "apiclient.CurrentSubscription"

	resp, err := c.do(ctx, http.MethodGet, "/subscriptions/current", nil, true)
	if err != nil {
		return Lookup{Kind: LookupFailed, Err: fmt.Errorf("%s: %w", op, err)}
	}
	return classifyCurrent(resp.StatusCode, resp.Body)
}

// HasActiveSubscription грубая проверка наличия активной подписки.
func (c *Client) HasActiveSubscription(ctx context.Context) (bool, error) {
	const op = "apiclient.HasActiveSubscription"

	resp, err := c.do(ctx, http.MethodGet, "/subscriptions/status", nil, true)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.ok() {
		return false, fmt.Errorf("%s: %w", op, statusError(resp))
	}
	active, err := parseActiveFlag(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return active, nil
}

// CancelSubscription отменяет текущую подписку.
func (c *Client) CancelSubscription(ctx context.Context) error {
	const op = "apiclient.CancelSubscription"

	resp, err := c.do(ctx, http.MethodPost, "/subscriptions/cancel", nil, true)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.ok() {
		return fmt.Errorf("%s: %w", op, statusError(resp))
	}
	return nil
}

// Plans возвращает список тарифов. Запрос не требует авторизации.
func (c *Client) Plans(ctx context.Context) ([]models.Plan, error) {
	const op = "apiclient.Plans"

	resp, err := c.do(ctx, http.MethodGet, "/subscriptions/plans", nil, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.ok() {
		return nil, fmt.Errorf("%s: %w", op, statusError(resp))
	}
	var plans []models.Plan
	if err := json.Unmarshal(resp.Body, &plans); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return plans, nil
}

// CreateSubscription оформляет подписку на тариф напрямую, без страницы оплаты.
func (c *Client) CreateSubscription(ctx context.Context, planID string) error {
	const op = "apiclient.CreateSubscription"

	resp, err := c.do(ctx, http.MethodPost, "/subscriptions/create", models.CreateSubscriptionRequest{PlanID: planID}, true)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.ok() {
		return fmt.Errorf("%s: %w", op, statusError(resp))
	}
	return nil
}

type checkoutRequest struct {
	PlanID string `json:"planId"`
}

// CreateCheckoutSession создаёт сессию оплаты для тарифа.
func (c *Client) CreateCheckoutSession(ctx context.Context, planID string) (*models.CheckoutSession, error) {
	const op = "apiclient.CreateCheckoutSession"

	resp, err := c.do(ctx, http.MethodPost, "/subscriptions/create-checkout-session", checkoutRequest{PlanID: planID}, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.ok() {
		return nil, fmt.Errorf("%s: %w", op, statusError(resp))
	}
	var out models.CheckoutSession
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return &out, nil
}
