package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// noSubscriptionMarker текст, которым сервер иногда отвечает вместо пустого тела.
const noSubscriptionMarker = "no active subscription"

// LookupKind результат запроса текущей подписки.
type LookupKind int

const (
	// LookupNotFound подписки нет. Сюда сводятся все «пустые» ответы сервера.
	LookupNotFound LookupKind = iota
	// LookupFound сервер вернул подписку.
	LookupFound
	// LookupFailed сбой транспорта или сервера, ответ неизвестен.
	LookupFailed
)

func (k LookupKind) String() string {
	switch k {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lookup результат запроса текущей подписки.
// Snapshot заполнен только для LookupFound, Err только для LookupFailed.
type Lookup struct {
	Kind     LookupKind
	Snapshot *models.SubscriptionSnapshot
	Err      error
}

type subscriptionWire struct {
	Status             string `json:"status"`
	PlanName           any    `json:"planName"`
	CurrentPeriodStart any    `json:"currentPeriodStart"`
	CurrentPeriodEnd   any    `json:"currentPeriodEnd"`
	Message            string `json:"message"`
	Error              string `json:"error"`
}

// classifyCurrent переводит ответ GET /subscriptions/current в Lookup.
// Сервер кодирует отсутствие подписки по-разному: 4xx, null, "", {},
// строкой с текстом. Все эти варианты дают LookupNotFound.
// Ответ, который нельзя разобрать, никогда не даёт LookupFound.
func classifyCurrent(statusCode int, body []byte) Lookup {
	if se := (&StatusError{StatusCode: statusCode, Message: serverMessage(body)}); se.Server() {
		return Lookup{Kind: LookupFailed, Err: se}
	}
	if statusCode < 200 || statusCode >= 300 {
		return Lookup{Kind: LookupNotFound}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Lookup{Kind: LookupNotFound}
	}
	if strings.Contains(strings.ToLower(string(trimmed)), noSubscriptionMarker) {
		return Lookup{Kind: LookupNotFound}
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return Lookup{Kind: LookupFailed, Err: fmt.Errorf("decode subscription: %w", err)}
	}
	if _, isObject := decoded.(map[string]any); !isObject {
		return Lookup{Kind: LookupNotFound}
	}

	var wire subscriptionWire
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Lookup{Kind: LookupFailed, Err: fmt.Errorf("decode subscription: %w", err)}
	}
	if strings.TrimSpace(wire.Status) == "" {
		return Lookup{Kind: LookupNotFound}
	}

	return Lookup{
		Kind: LookupFound,
		Snapshot: &models.SubscriptionSnapshot{
			Status:             models.ParseStatus(wire.Status),
			PlanName:           optionalString(wire.PlanName),
			CurrentPeriodStart: optionalString(wire.CurrentPeriodStart),
			CurrentPeriodEnd:   optionalString(wire.CurrentPeriodEnd),
		},
	}
}

func optionalString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

// parseActiveFlag разбирает ответ GET /subscriptions/status.
// Принимает true/false или объект с полем active либо hasActiveSubscription.
func parseActiveFlag(body []byte) (bool, error) {
	trimmed := bytes.TrimSpace(body)

	switch string(trimmed) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	var obj struct {
		Active                *bool `json:"active"`
		HasActiveSubscription *bool `json:"hasActiveSubscription"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return false, fmt.Errorf("decode status: %w", err)
	}
	switch {
	case obj.Active != nil:
		return *obj.Active, nil
	case obj.HasActiveSubscription != nil:
		return *obj.HasActiveSubscription, nil
	default:
		return false, fmt.Errorf("decode status: unexpected body %q", trimmed)
	}
}
