package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsGroupBy описывает доступные варианты группировки периодов.
type AnalyticsGroupBy string

const (
	AnalyticsGroupNone  AnalyticsGroupBy = "none"
	AnalyticsGroupDay   AnalyticsGroupBy = "day"
	AnalyticsGroupWeek  AnalyticsGroupBy = "week"
	AnalyticsGroupMonth AnalyticsGroupBy = "month"
)

// AnalyticsFilter задаёт временной интервал и параметры агрегации.
type AnalyticsFilter struct {
	From         time.Time
	To           time.Time
	GroupBy      AnalyticsGroupBy
	TopDealLimit int
}

// CouponKPIs описывает показатели подсистемы купонов за период.
type CouponKPIs struct {
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Issued         int            `json:"issued"`
	Redeemed       int            `json:"redeemed"`
	RedemptionRate float64        `json:"redemption_rate"`
	Revenue        float64        `json:"revenue"`
	FailedAttempts int            `json:"failed_attempts"`
	TopDeals       []TopDeal      `json:"top_deals"`
	Periods        []CouponPeriod `json:"periods,omitempty"`
	GroupBy        string         `json:"group_by,omitempty"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// CouponPeriod хранит агрегированные метрики по периоду.
type CouponPeriod struct {
	Period   string  `json:"period"`
	Issued   int     `json:"issued"`
	Redeemed int     `json:"redeemed"`
	Revenue  float64 `json:"revenue"`
}

// TopDeal описывает предложение с наибольшим числом погашений.
type TopDeal struct {
	DealID   uuid.UUID `json:"deal_id"`
	Title    string    `json:"title"`
	Issued   int       `json:"issued"`
	Redeemed int       `json:"redeemed"`
	Revenue  float64   `json:"revenue"`
}
