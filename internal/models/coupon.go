package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponStatus представляет статус купона.
// Переходы только active -> redeemed и active -> expired; оба терминальные.
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusRedeemed CouponStatus = "redeemed"
	CouponStatusExpired  CouponStatus = "expired"
)

// Coupon представляет одноразовое право погашения, привязанное к предложению.
// Код глобально уникален и неизменяем после выпуска.
type Coupon struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	Code               string       `json:"code" db:"code"`
	DealID             uuid.UUID    `json:"deal_id" db:"deal_id"`
	BuyerID            uuid.UUID    `json:"buyer_id" db:"buyer_id"`
	IssuePrice         float64      `json:"issue_price" db:"issue_price"`
	Promotional        bool         `json:"promotional" db:"promotional"`
	Status             CouponStatus `json:"status" db:"status"`
	IssuedAt           time.Time    `json:"issued_at" db:"issued_at"`
	ExpiresAt          *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	RedeemedAt         *time.Time   `json:"redeemed_at,omitempty" db:"redeemed_at"`
	RedemptionLocation *string      `json:"redemption_location,omitempty" db:"redemption_location"`
	RedemptionNotes    *string      `json:"redemption_notes,omitempty" db:"redemption_notes"`
}

// RedemptionAttempt — запись аудита попытки погашения. Купон ссылается по
// значению кода, а не по внешнему ключу: попытка с несуществующим кодом тоже
// должна быть записана. Записи только добавляются, никогда не изменяются.
type RedemptionAttempt struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Code          string    `json:"code" db:"code"`
	AttemptedAt   time.Time `json:"attempted_at" db:"attempted_at"`
	Success       bool      `json:"success" db:"success"`
	Location      string    `json:"location" db:"location"`
	FailureReason *string   `json:"failure_reason,omitempty" db:"failure_reason"`
	RequesterIP   string    `json:"requester_ip" db:"requester_ip"`
	UserAgent     string    `json:"user_agent" db:"user_agent"`
}

// RedemptionOutcome — исход проверки погашения.
type RedemptionOutcome string

const (
	OutcomeReady           RedemptionOutcome = "ready"
	OutcomeInvalid         RedemptionOutcome = "invalid"
	OutcomeAlreadyRedeemed RedemptionOutcome = "already_redeemed"
	OutcomeExpired         RedemptionOutcome = "expired"
)

// RedemptionResult — структурированный результат проверки погашения.
// Valid=true означает, что купон реально существовал; CanRedeem=true — только
// для исхода ready.
type RedemptionResult struct {
	Valid     bool              `json:"valid"`
	CanRedeem bool              `json:"can_redeem"`
	Outcome   RedemptionOutcome `json:"outcome"`
	Reason    string            `json:"reason,omitempty"`
	Coupon    *Coupon           `json:"coupon,omitempty"`
}

// IssueCouponRequest описывает запрос на выпуск купона.
type IssueCouponRequest struct {
	DealID  uuid.UUID `json:"deal_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
}

// PaymentIntent — данные для перенаправления покупателя к платёжному
// провайдеру на платном пути выпуска.
type PaymentIntent struct {
	Reference  string            `json:"reference"`
	PaymentURL string            `json:"payment_url"`
	FormFields map[string]string `json:"form_fields"`
	AmountDue  float64           `json:"amount_due"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// PendingPurchase — отложенная покупка на платном пути выпуска. Живёт в Redis
// до подтверждения оплаты или истечения срока. ExpiresAt проверяется явно при
// подтверждении, TTL ключа — только уборка.
type PendingPurchase struct {
	Reference string    `json:"reference"`
	DealID    uuid.UUID `json:"deal_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	AmountDue float64   `json:"amount_due"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssuanceResult — результат выпуска: либо купон (промо-период), либо
// платёжное намерение (платный путь).
type IssuanceResult struct {
	Promotional bool           `json:"promotional"`
	Coupon      *Coupon        `json:"coupon,omitempty"`
	Payment     *PaymentIntent `json:"payment,omitempty"`
}

// RedeemRequest описывает запрос на погашение купона в точке продаж.
type RedeemRequest struct {
	Code        string  `json:"code"`
	Location    string  `json:"location"`
	Notes       *string `json:"notes,omitempty"`
	RequesterIP string  `json:"-"`
	UserAgent   string  `json:"-"`
}
