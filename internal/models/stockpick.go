package models

import "time"

// Типы сигналов рекомендации.
const (
	PickBuy  = "BUY"
	PickSell = "SELL"
	PickHold = "HOLD"
)

// StockPick рекомендация по акции. Доступна только при активной подписке.
type StockPick struct {
	ID           int64    `json:"id"`
	Symbol       string   `json:"symbol"`
	CompanyName  string   `json:"companyName"`
	PickType     string   `json:"pickType"`
	EntryPrice   float64  `json:"entryPrice"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
	TargetPrice  *float64 `json:"targetPrice,omitempty"`
	StopLoss     *float64 `json:"stopLoss,omitempty"`
	PickDate     string   `json:"pickDate"`
}

// Performance изменение цены от точки входа в процентах.
// Второе значение false, если текущая цена или цена входа неизвестны.
func (p StockPick) Performance() (float64, bool) {
	if p.CurrentPrice == nil || p.EntryPrice == 0 {
		return 0, false
	}
	return (*p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100, true
}

// Quote котировка в формате поставщика рыночных данных.
type Quote struct {
	Current       float64 `json:"c"`
	Open          float64 `json:"o"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	PreviousClose float64 `json:"pc"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
}

// Candles свечи по столбцам, как их отдаёт сервер. Время в секундах Unix.
type Candles struct {
	Close      []float64 `json:"c"`
	Open       []float64 `json:"o"`
	High       []float64 `json:"h"`
	Low        []float64 `json:"l"`
	Volume     []float64 `json:"v"`
	Timestamps []int64   `json:"t"`
}

// Candle одна свеча.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Rows разворачивает столбцы в свечи. Строки, для которых не хватает значений, отбрасываются.
func (c Candles) Rows() []Candle {
	n := min(len(c.Timestamps), len(c.Open), len(c.High), len(c.Low), len(c.Close), len(c.Volume))
	rows := make([]Candle, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, Candle{
			Time:   time.Unix(c.Timestamps[i], 0).UTC(),
			Open:   c.Open[i],
			High:   c.High[i],
			Low:    c.Low[i],
			Close:  c.Close[i],
			Volume: c.Volume[i],
		})
	}
	return rows
}

// ChartData история цен по тикеру за период.
type ChartData struct {
	Symbol  string  `json:"symbol,omitempty"`
	Period  string  `json:"period,omitempty"`
	Candles Candles `json:"candles"`
	Quote   *Quote  `json:"quote,omitempty"`
}

// ContactRequest сообщение через форму обратной связи.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// CreateSubscriptionRequest оформление подписки на тариф без отдельной страницы оплаты.
type CreateSubscriptionRequest struct {
	PlanID string `json:"planId" validate:"required"`
}
