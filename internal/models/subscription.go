package models

import "strings"

// SubscriptionStatus статус подписки с точки зрения клиента.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "NONE"
	StatusActive   SubscriptionStatus = "ACTIVE"
	StatusInactive SubscriptionStatus = "INACTIVE"
	StatusUnknown  SubscriptionStatus = "UNKNOWN"
)

// ParseStatus приводит статус из ответа сервера к одному из известных значений.
// Всё, что не ACTIVE, NONE или пустая строка, считается INACTIVE.
func ParseStatus(raw string) SubscriptionStatus {
	switch s := strings.ToUpper(strings.TrimSpace(raw)); s {
	case "":
		return StatusUnknown
	case string(StatusActive):
		return StatusActive
	case string(StatusNone):
		return StatusNone
	case string(StatusUnknown):
		return StatusUnknown
	default:
		return StatusInactive
	}
}

// SubscriptionSnapshot последний успешный ответ сервера о подписке.
// Используется только для отображения, источник истины всегда сервер.
type SubscriptionSnapshot struct {
	Status             SubscriptionStatus `json:"status"`
	PlanName           *string            `json:"planName,omitempty"`
	CurrentPeriodStart *string            `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *string            `json:"currentPeriodEnd,omitempty"`
}

// Active сообщает, даёт ли снимок доступ к платным возможностям.
func (s *SubscriptionSnapshot) Active() bool {
	return s != nil && s.Status == StatusActive
}

// Plan тариф подписки.
type Plan struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Price          float64  `json:"price"`
	DurationMonths int      `json:"durationMonths"`
	Features       []string `json:"features,omitempty"`
}

// CheckoutSession ответ на создание сессии оплаты.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Clone возвращает независимую копию снимка.
func (s *SubscriptionSnapshot) Clone() *SubscriptionSnapshot {
	if s == nil {
		return nil
	}
	out := &SubscriptionSnapshot{Status: s.Status}
	out.PlanName = cloneString(s.PlanName)
	out.CurrentPeriodStart = cloneString(s.CurrentPeriodStart)
	out.CurrentPeriodEnd = cloneString(s.CurrentPeriodEnd)
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
