package store

import (
	"context"
	"time"

	"dealhub/internal/models"
)

// CouponStore владеет персистентностью купонов и журнала попыток погашения.
// Сервисный слой никогда не пишет эти записи напрямую.
//
// Реализации: PostgresStore для продакшена, MemoryStore для тестов.
type CouponStore interface {
	// Create сохраняет новый купон. Возвращает apperror.Conflict при
	// дубликате кода и apperror.NotFound при отсутствующем предложении.
	Create(ctx context.Context, coupon *models.Coupon) error

	// GetByCode возвращает купон по коду или apperror.NotFound.
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)

	// MarkRedeemed атомарно переводит купон из active в redeemed.
	// Условие на текущий статус гарантирует: из N конкурентных попыток
	// погашения ровно одна выигрывает, проигравшие получают
	// apperror.Conflict и должны перечитать купон.
	MarkRedeemed(ctx context.Context, code, location string, notes *string, at time.Time) (*models.Coupon, error)

	// MarkExpired переводит купон из active в expired. Идемпотентна:
	// если купон уже в терминальном статусе, ничего не меняется.
	MarkExpired(ctx context.Context, code string, at time.Time) error

	// AppendAttempt добавляет запись аудита. Никогда не блокируется
	// бизнес-правилами: попытка с несуществующим кодом тоже записывается.
	AppendAttempt(ctx context.Context, attempt *models.RedemptionAttempt) error
}
