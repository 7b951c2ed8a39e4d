package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"dynamic-pricing/internal/service"
	"dynamic-pricing/internal/storage"
)

// Handler translates HTTP requests into service calls.
type Handler struct {
	service *service.Service
}

// NewHandler wires a service into the HTTP surface.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

type spendRequest struct {
	Platform string  `json:"platform"`
	Amount   float64 `json:"amount"`
	Campaign string  `json:"campaign,omitempty"`
}

type spendResponse struct {
	ID             string  `json:"id"`
	Platform       string  `json:"platform"`
	Amount         float64 `json:"amount"`
	PlatformWeight float64 `json:"platform_weight"`
	SpentAt        string  `json:"spent_at"`
}

func (h *Handler) recordSpend(w http.ResponseWriter, r *http.Request) {
	var req spendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}

	result, err := h.service.RecordSpend(r.Context(), service.SpendInput{
		Platform: strings.TrimSpace(req.Platform),
		Amount:   decimal.NewFromFloat(req.Amount),
		Campaign: strings.TrimSpace(req.Campaign),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "", spendResponse{
		ID:             result.Record.ID,
		Platform:       result.Record.Platform,
		Amount:         result.Record.Amount.InexactFloat64(),
		PlatformWeight: result.PlatformWeight.InexactFloat64(),
		SpentAt:        result.Record.SpentAt.Format(time.RFC3339),
	})
}

type transactionRequest struct {
	Email        string   `json:"email"`
	Amount       float64  `json:"amount"`
	ReferralCode string   `json:"referral_code,omitempty"`
	Categories   []string `json:"categories,omitempty"`
}

type transactionResponse struct {
	ID               string           `json:"id"`
	Amount           float64          `json:"amount"`
	DiscountApplied  float64          `json:"discount_applied"`
	SeasonMultiplier float64          `json:"season_multiplier"`
	Customer         customerResponse `json:"customer"`
}

type customerResponse struct {
	Segment       string  `json:"segment"`
	LoyaltyTier   string  `json:"loyalty_tier"`
	Discount      float64 `json:"discount"`
	PurchaseCount int64   `json:"purchase_count_365"`
	TotalSpend    float64 `json:"total_spend_365"`
	ReferralCode  string  `json:"referral_code"`
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}

	result, err := h.service.RecordTransaction(r.Context(), service.TransactionInput{
		Email:        strings.TrimSpace(req.Email),
		Amount:       decimal.NewFromFloat(req.Amount),
		ReferralCode: strings.TrimSpace(req.ReferralCode),
		Categories:   req.Categories,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "", transactionResponse{
		ID:               result.Transaction.ID,
		Amount:           result.Transaction.Amount.InexactFloat64(),
		DiscountApplied:  result.Transaction.DiscountApplied.InexactFloat64(),
		SeasonMultiplier: result.Transaction.SeasonMultiplier.InexactFloat64(),
		Customer: customerResponse{
			Segment:       result.Customer.Segment,
			LoyaltyTier:   result.Customer.LoyaltyTier,
			Discount:      result.Customer.Discount.InexactFloat64(),
			PurchaseCount: result.Customer.PurchaseCount,
			TotalSpend:    result.Customer.TotalSpend365.InexactFloat64(),
			ReferralCode:  result.Customer.ReferralCode,
		},
	})
}

type priceResponse struct {
	BasePrice      float64 `json:"base_price"`
	Multiplier     float64 `json:"multiplier"`
	DiscountPct    float64 `json:"discount_pct"`
	AdjustedPrice  float64 `json:"adjusted_price"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalPrice     float64 `json:"final_price"`
}

func (h *Handler) calculatePrice(w http.ResponseWriter, r *http.Request) {
	baseRaw := r.URL.Query().Get("base")
	base, err := decimal.NewFromString(baseRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "base must be a decimal number", requestIDFromContext(r.Context()))
		return
	}

	result, err := h.service.CalculatePrice(r.Context(), service.PriceInput{
		BasePrice: base,
		Email:     strings.TrimSpace(r.URL.Query().Get("email")),
		Category:  strings.TrimSpace(r.URL.Query().Get("category")),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", priceResponse{
		BasePrice:      result.Quote.BasePrice.InexactFloat64(),
		Multiplier:     result.Quote.Multiplier.InexactFloat64(),
		DiscountPct:    result.Quote.DiscountPct.InexactFloat64(),
		AdjustedPrice:  result.Quote.AdjustedPrice.InexactFloat64(),
		DiscountAmount: result.Quote.DiscountAmount.InexactFloat64(),
		FinalPrice:     result.Quote.FinalPrice.InexactFloat64(),
	})
}

type multiplierResponse struct {
	Multiplier   float64 `json:"multiplier"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
	Recalculated bool    `json:"recalculated"`
}

func (h *Handler) currentMultiplier(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CurrentMultiplier(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := multiplierResponse{
		Multiplier:   status.Multiplier.InexactFloat64(),
		Recalculated: status.Recalculated,
	}
	if !status.UpdatedAt.IsZero() {
		resp.UpdatedAt = status.UpdatedAt.Format(time.RFC3339)
	}
	writeSuccess(w, http.StatusOK, "", resp)
}

type discountResponse struct {
	Discount     float64 `json:"discount"`
	Segment      string  `json:"segment"`
	LoyaltyTier  string  `json:"loyalty_tier"`
	ReferralCode string  `json:"referral_code,omitempty"`
	ComputedAt   string  `json:"computed_at"`
	FromCache    bool    `json:"from_cache"`
}

func (h *Handler) customerDiscount(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	snapshot, err := h.service.CustomerDiscount(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", discountResponse{
		Discount:     snapshot.Discount.InexactFloat64(),
		Segment:      snapshot.Segment,
		LoyaltyTier:  snapshot.LoyaltyTier,
		ReferralCode: snapshot.ReferralCode,
		ComputedAt:   snapshot.ComputedAt.Format(time.RFC3339),
		FromCache:    snapshot.FromCache,
	})
}

type adjustmentResponse struct {
	ID            string  `json:"id"`
	WindowStart   string  `json:"window_start"`
	WeightedSpend float64 `json:"weighted_spend"`
	Revenue       float64 `json:"revenue"`
	ROI           float64 `json:"roi"`
	RawMultiplier float64 `json:"raw_multiplier"`
	Multiplier    float64 `json:"multiplier"`
	Reason        string  `json:"reason"`
	CreatedAt     string  `json:"created_at"`
}

func (h *Handler) listAdjustments(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer", requestIDFromContext(r.Context()))
			return
		}
		limit = parsed
	}

	records, err := h.service.RecentAdjustments(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]adjustmentResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, adjustmentResponse{
			ID:            rec.ID,
			WindowStart:   rec.WindowStart.Format(time.RFC3339),
			WeightedSpend: rec.WeightedSpend.InexactFloat64(),
			Revenue:       rec.Revenue.InexactFloat64(),
			ROI:           rec.ROI.InexactFloat64(),
			RawMultiplier: rec.RawMultiplier.InexactFloat64(),
			Multiplier:    rec.Multiplier.InexactFloat64(),
			Reason:        rec.Reason,
			CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
		})
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"items": items})
}

func (h *Handler) effectiveConfig(w http.ResponseWriter, r *http.Request) {
	cfg, weights := h.service.EffectiveConfig()

	liveWeights := make(map[string]float64, len(weights))
	for platform, weight := range weights {
		liveWeights[platform] = weight.InexactFloat64()
	}

	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"mcd":              cfg.MCD,
		"rcd":              cfg.RCD,
		"optimizer":        cfg.Optimizer,
		"platform_weights": liveWeights,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestIDFromContext(r.Context())
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrMissingPlatform),
		errors.Is(err, service.ErrMissingEmail),
		errors.Is(err, service.ErrInvalidBasePrice):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, storage.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, "customer_not_found", "customer not found", requestID)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "request failed", requestID)
	}
}
