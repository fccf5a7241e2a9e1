package handlers

import (
	"encoding/json"
	"net/http"

	"dealhub/internal/logger"
	"dealhub/internal/models"
	"dealhub/internal/services"
)

// CouponHandler представляет обработчик выпуска и погашения купонов
type CouponHandler struct {
	couponService CouponService
	log           *logger.Logger
}

// NewCouponHandler создает новый обработчик купонов
func NewCouponHandler(couponService CouponService, log *logger.Logger) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
		log:           log,
	}
}

// IssueCoupon выпускает купон на предложение. В промо-период отвечает 201 с
// купоном, на платном пути — 200 с платёжным намерением.
func (h *CouponHandler) IssueCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.IssueCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.couponService.Issue(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to issue coupon")
		return
	}

	if result.Promotional {
		writeJSONResponse(w, http.StatusCreated, result)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// GetCoupon возвращает статус купона по коду. Проверка без побочных эффектов:
// запись аудита не создаётся.
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	code, err := extractCodeFromPath(r.URL.Path, "/api/coupons/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon code")
		return
	}

	result, err := h.couponService.Validate(r.Context(), code)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to validate coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// RedeemCoupon погашает купон в точке продаж. Бизнес-исход (включая отказ)
// всегда отвечает 200 со структурированным результатом; 5xx — только сбои
// инфраструктуры.
func (h *CouponHandler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	code, err := extractCodeFromPath(r.URL.Path, "/api/coupons/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon code")
		return
	}

	var req models.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Code = code
	req.RequesterIP = services.ExtractClientIP(r)
	req.UserAgent = r.UserAgent()

	result, err := h.couponService.Redeem(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to redeem coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// ConfirmPaymentRequest представляет запрос на подтверждение оплаты
type ConfirmPaymentRequest struct {
	Reference string `json:"reference"`
}

// ConfirmPayment выпускает купон по подтверждённой оплате
func (h *CouponHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	coupon, err := h.couponService.ConfirmPayment(r.Context(), req.Reference)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to confirm payment")
		return
	}

	writeJSONResponse(w, http.StatusCreated, coupon)
}
