package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"dealhub/internal/apperror"
	"dealhub/internal/models"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	coupon := testCoupon()
	if err := s.Create(ctx, coupon); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := s.GetByCode(ctx, coupon.Code)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Code != coupon.Code || got.Status != models.CouponStatusActive {
		t.Fatalf("unexpected coupon: %+v", got)
	}

	// Возвращается копия, мутация не должна влиять на хранилище
	got.Status = models.CouponStatusExpired
	again, _ := s.GetByCode(ctx, coupon.Code)
	if again.Status != models.CouponStatusActive {
		t.Fatalf("store must return copies")
	}
}

func TestMemoryStore_Create_Duplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	coupon := testCoupon()
	if err := s.Create(ctx, coupon); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Create(ctx, coupon); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict for duplicate code, got %v", err)
	}
}

func TestMemoryStore_GetByCode_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetByCode(context.Background(), "DEAL-MISSNG"); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_MarkRedeemed(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	coupon := testCoupon()
	_ = s.Create(ctx, coupon)

	now := time.Now()
	got, err := s.MarkRedeemed(ctx, coupon.Code, "Branch A", nil, now)
	if err != nil {
		t.Fatalf("mark redeemed failed: %v", err)
	}
	if got.Status != models.CouponStatusRedeemed || got.RedeemedAt == nil || *got.RedemptionLocation != "Branch A" {
		t.Fatalf("unexpected coupon after redeem: %+v", got)
	}

	if _, err := s.MarkRedeemed(ctx, coupon.Code, "Branch B", nil, now); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict on second redeem, got %v", err)
	}
}

// Конкурентные погашения одного кода: ровно один победитель.
func TestMemoryStore_MarkRedeemed_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	coupon := testCoupon()
	_ = s.Create(ctx, coupon)

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	conflicts := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.MarkRedeemed(ctx, coupon.Code, "Branch A", nil, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if apperror.Is(err, apperror.KindConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
	if conflicts != goroutines-1 {
		t.Fatalf("expected %d conflicts, got %d", goroutines-1, conflicts)
	}
}

func TestMemoryStore_MarkExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	coupon := testCoupon()
	coupon.ExpiresAt = &past
	_ = s.Create(ctx, coupon)

	if err := s.MarkExpired(ctx, coupon.Code, time.Now()); err != nil {
		t.Fatalf("mark expired failed: %v", err)
	}
	got, _ := s.GetByCode(ctx, coupon.Code)
	if got.Status != models.CouponStatusExpired {
		t.Fatalf("expected expired status, got %s", got.Status)
	}

	// Повторный вызов и вызов для несуществующего кода — no-op
	if err := s.MarkExpired(ctx, coupon.Code, time.Now()); err != nil {
		t.Fatalf("expected idempotent mark expired, got %v", err)
	}
	if err := s.MarkExpired(ctx, "DEAL-MISSNG", time.Now()); err != nil {
		t.Fatalf("expected no-op for missing code, got %v", err)
	}
}

func TestMemoryStore_MarkExpired_NotYetExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	coupon := testCoupon()
	_ = s.Create(ctx, coupon)

	if err := s.MarkExpired(ctx, coupon.Code, time.Now()); err != nil {
		t.Fatalf("mark expired failed: %v", err)
	}
	got, _ := s.GetByCode(ctx, coupon.Code)
	if got.Status != models.CouponStatusActive {
		t.Fatalf("coupon with future expiry must stay active, got %s", got.Status)
	}
}

func TestMemoryStore_AppendAttempt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	reason := "Invalid coupon code"
	attempt := &models.RedemptionAttempt{
		Code:          "NOT-A-CODE",
		AttemptedAt:   time.Now(),
		Success:       false,
		Location:      "Branch A",
		FailureReason: &reason,
	}

	if err := s.AppendAttempt(ctx, attempt); err != nil {
		t.Fatalf("append attempt failed: %v", err)
	}

	attempts := s.Attempts("NOT-A-CODE")
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].Success || attempts[0].FailureReason == nil {
		t.Fatalf("unexpected attempt record: %+v", attempts[0])
	}
}
