package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dealhub/internal/apperror"
	"dealhub/internal/database"
	"dealhub/internal/logger"
	"dealhub/internal/models"

	"github.com/lib/pq"
)

// Коды ошибок PostgreSQL.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresStore — реализация CouponStore поверх PostgreSQL.
type PostgresStore struct {
	db  *database.DB
	log *logger.Logger
}

// NewPostgresStore создаёт хранилище купонов.
func NewPostgresStore(db *database.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: log,
	}
}

// Create сохраняет новый купон.
func (s *PostgresStore) Create(ctx context.Context, coupon *models.Coupon) error {
	query := `
		INSERT INTO coupons (id, code, deal_id, buyer_id, issue_price, promotional, status, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query, coupon.ID, coupon.Code, coupon.DealID, coupon.BuyerID,
		coupon.IssuePrice, coupon.Promotional, coupon.Status, coupon.IssuedAt, coupon.ExpiresAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return apperror.Conflict("coupon code already exists", err)
			case pqForeignKeyViolation:
				return apperror.NotFound("deal not found", err)
			}
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"code":    coupon.Code,
		"deal_id": coupon.DealID,
	}).Info("Coupon created")

	return nil
}

// GetByCode возвращает купон по коду.
func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `
		SELECT id, code, deal_id, buyer_id, issue_price, promotional, status, issued_at, expires_at,
		       redeemed_at, redemption_location, redemption_notes
		FROM coupons
		WHERE code = $1
	`

	coupon := &models.Coupon{}
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&coupon.ID, &coupon.Code, &coupon.DealID, &coupon.BuyerID, &coupon.IssuePrice,
		&coupon.Promotional, &coupon.Status, &coupon.IssuedAt, &coupon.ExpiresAt,
		&coupon.RedeemedAt, &coupon.RedemptionLocation, &coupon.RedemptionNotes,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("coupon not found", err)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	return coupon, nil
}

// MarkRedeemed атомарно переводит купон active -> redeemed. Условие по
// статусу в WHERE — единственная защита от двойного погашения, отдельной
// блокировки строки не требуется.
func (s *PostgresStore) MarkRedeemed(ctx context.Context, code, location string, notes *string, at time.Time) (*models.Coupon, error) {
	query := `
		UPDATE coupons
		SET status = $1, redeemed_at = $2, redemption_location = $3, redemption_notes = $4
		WHERE code = $5 AND status = $6
	`

	result, err := s.db.ExecContext(ctx, query, models.CouponStatusRedeemed, at, location, notes, code, models.CouponStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to mark coupon redeemed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Купон либо не существует, либо уже в терминальном статусе.
		return nil, apperror.Conflict("coupon is not active", nil)
	}

	s.log.WithFields(map[string]interface{}{
		"code":     code,
		"location": location,
	}).Info("Coupon redeemed")

	return s.GetByCode(ctx, code)
}

// MarkExpired переводит купон active -> expired. Ноль затронутых строк не
// ошибка: купон мог быть погашен или уже помечен истёкшим.
func (s *PostgresStore) MarkExpired(ctx context.Context, code string, at time.Time) error {
	query := `
		UPDATE coupons
		SET status = $1
		WHERE code = $2 AND status = $3 AND expires_at IS NOT NULL AND expires_at < $4
	`

	result, err := s.db.ExecContext(ctx, query, models.CouponStatusExpired, code, models.CouponStatusActive, at)
	if err != nil {
		return fmt.Errorf("failed to mark coupon expired: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		s.log.WithField("code", code).Info("Coupon marked expired")
	}

	return nil
}

// AppendAttempt добавляет запись аудита попытки погашения.
func (s *PostgresStore) AppendAttempt(ctx context.Context, attempt *models.RedemptionAttempt) error {
	query := `
		INSERT INTO redemption_attempts (id, code, attempted_at, success, location, failure_reason, requester_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query, attempt.ID, attempt.Code, attempt.AttemptedAt,
		attempt.Success, attempt.Location, attempt.FailureReason, attempt.RequesterIP, attempt.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to append redemption attempt: %w", err)
	}

	return nil
}
