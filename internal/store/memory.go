package store

import (
	"context"
	"sync"
	"time"

	"dealhub/internal/apperror"
	"dealhub/internal/models"
)

// MemoryStore — реализация CouponStore в памяти. Используется в тестах и как
// подменяемый backend без внешнего хранилища. Потокобезопасна.
type MemoryStore struct {
	mu       sync.Mutex
	coupons  map[string]*models.Coupon
	attempts []*models.RedemptionAttempt
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		coupons: make(map[string]*models.Coupon),
	}
}

// Create сохраняет новый купон.
func (s *MemoryStore) Create(ctx context.Context, coupon *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.coupons[coupon.Code]; exists {
		return apperror.Conflict("coupon code already exists", nil)
	}

	c := *coupon
	s.coupons[coupon.Code] = &c
	return nil
}

// GetByCode возвращает копию купона по коду.
func (s *MemoryStore) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, exists := s.coupons[code]
	if !exists {
		return nil, apperror.NotFound("coupon not found", nil)
	}

	c := *coupon
	return &c, nil
}

// MarkRedeemed переводит купон active -> redeemed под общим мьютексом, что
// даёт ту же линеаризуемость, что и условный UPDATE в PostgreSQL.
func (s *MemoryStore) MarkRedeemed(ctx context.Context, code, location string, notes *string, at time.Time) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, exists := s.coupons[code]
	if !exists || coupon.Status != models.CouponStatusActive {
		return nil, apperror.Conflict("coupon is not active", nil)
	}

	coupon.Status = models.CouponStatusRedeemed
	redeemedAt := at
	coupon.RedeemedAt = &redeemedAt
	loc := location
	coupon.RedemptionLocation = &loc
	coupon.RedemptionNotes = notes

	c := *coupon
	return &c, nil
}

// MarkExpired переводит купон active -> expired, если срок действия прошёл.
func (s *MemoryStore) MarkExpired(ctx context.Context, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, exists := s.coupons[code]
	if !exists || coupon.Status != models.CouponStatusActive {
		return nil
	}
	if coupon.ExpiresAt == nil || !at.After(*coupon.ExpiresAt) {
		return nil
	}

	coupon.Status = models.CouponStatusExpired
	return nil
}

// AppendAttempt добавляет запись аудита.
func (s *MemoryStore) AppendAttempt(ctx context.Context, attempt *models.RedemptionAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := *attempt
	s.attempts = append(s.attempts, &a)
	return nil
}

// Replace перезаписывает купон целиком (для подготовки состояния в тестах).
func (s *MemoryStore) Replace(coupon *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.coupons[coupon.Code]; !exists {
		return apperror.NotFound("coupon not found", nil)
	}

	c := *coupon
	s.coupons[coupon.Code] = &c
	return nil
}

// Attempts возвращает записи аудита для кода (для проверок в тестах).
func (s *MemoryStore) Attempts(code string) []*models.RedemptionAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.RedemptionAttempt
	for _, a := range s.attempts {
		if a.Code == code {
			copied := *a
			result = append(result, &copied)
		}
	}
	return result
}
