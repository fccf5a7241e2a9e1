package services

import (
	"time"

	"dealhub/internal/models"
)

// PricingUnit определяет, в чём тарифицируется выпуск купона.
type PricingUnit string

const (
	PricingUnitCredits  PricingUnit = "credits"
	PricingUnitCurrency PricingUnit = "currency"
)

// Quote — результат расчёта стоимости выпуска купона.
type Quote struct {
	AmountDue   float64 `json:"amount_due"`
	Promotional bool    `json:"promotional"`
}

// PricingService решает, бесплатен ли выпуск купона (промо-период) и сколько
// он стоит. Чистая функция от (deal, now): без состояния и кеширования,
// пересчитывается в момент покупки, потому что промо-окно может закрыться
// между открытием страницы и подтверждением.
type PricingService struct {
	promoEndDate time.Time
	unit         PricingUnit
}

// NewPricingService создаёт политику с промо-окном и единицей тарификации.
func NewPricingService(promoEndDate time.Time, unit PricingUnit) *PricingService {
	if unit != PricingUnitCurrency {
		unit = PricingUnitCredits
	}
	return &PricingService{
		promoEndDate: promoEndDate,
		unit:         unit,
	}
}

// Quote возвращает стоимость выпуска купона на момент now.
// До конца промо-окна включительно выпуск бесплатен.
func (s *PricingService) Quote(deal *models.Deal, now time.Time) Quote {
	if !now.After(s.promoEndDate) {
		return Quote{AmountDue: 0, Promotional: true}
	}

	amount := float64(deal.CreditsCost)
	if s.unit == PricingUnitCurrency {
		amount = deal.Price
	}

	return Quote{AmountDue: amount, Promotional: false}
}

// Unit возвращает текущую единицу тарификации.
func (s *PricingService) Unit() PricingUnit {
	return s.unit
}
