package models

import (
	"time"

	"github.com/google/uuid"
)

// DealType описывает тип размещения предложения.
type DealType string

const (
	DealTypeHot     DealType = "hot"
	DealTypeRegular DealType = "regular"
)

// DealStatus представляет статус предложения в каталоге.
type DealStatus string

const (
	DealStatusActive   DealStatus = "active"
	DealStatusExpired  DealStatus = "expired"
	DealStatusInactive DealStatus = "inactive"
)

// Deal представляет предложение поставщика в каталоге.
type Deal struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	SupplierID    uuid.UUID  `json:"supplier_id" db:"supplier_id"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	Price         float64    `json:"price" db:"price"`
	OriginalPrice float64    `json:"original_price" db:"original_price"`
	Category      string     `json:"category" db:"category"`
	DealType      DealType   `json:"deal_type" db:"deal_type"`
	Status        DealStatus `json:"status" db:"status"`
	ViewCount     int        `json:"view_count" db:"view_count"`
	InquiryCount  int        `json:"inquiry_count" db:"inquiry_count"`
	CreditsCost   int        `json:"credits_cost" db:"credits_cost"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// CreateDealRequest описывает запрос на создание предложения.
type CreateDealRequest struct {
	SupplierID    uuid.UUID  `json:"supplier_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Price         float64    `json:"price"`
	OriginalPrice float64    `json:"original_price"`
	Category      string     `json:"category"`
	DealType      DealType   `json:"deal_type"`
	CreditsCost   int        `json:"credits_cost"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// UpdateDealStatusRequest описывает запрос на смену статуса предложения.
type UpdateDealStatusRequest struct {
	Status DealStatus `json:"status"`
}
