package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dynamic-pricing/internal/config"
	"dynamic-pricing/internal/pricing"
	"dynamic-pricing/internal/service"
	"dynamic-pricing/internal/storage"
)

// fakeStore keeps everything in slices and maps, just enough to drive the
// service behind the handlers.
type fakeStore struct {
	spends      []storage.MarketingSpendRecord
	txns        []storage.TransactionRecord
	customers   map[string]storage.CustomerRecord
	adjustments []storage.PriceAdjustmentRecord
	referrals   []storage.ReferralActivityRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{customers: make(map[string]storage.CustomerRecord)}
}

func (f *fakeStore) InsertMarketingSpend(_ context.Context, rec storage.MarketingSpendRecord) error {
	f.spends = append(f.spends, rec)
	return nil
}

func (f *fakeStore) SumSpendByPlatform(_ context.Context, since time.Time) ([]storage.PlatformSpend, error) {
	sums := make(map[string]decimal.Decimal)
	for _, rec := range f.spends {
		if !rec.SpentAt.Before(since) {
			sums[rec.Platform] = sums[rec.Platform].Add(rec.Amount)
		}
	}
	out := make([]storage.PlatformSpend, 0, len(sums))
	for platform, amount := range sums {
		out = append(out, storage.PlatformSpend{Platform: platform, Amount: amount})
	}
	return out, nil
}

func (f *fakeStore) SumPlatformSpend(_ context.Context, platform string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rec := range f.spends {
		if rec.Platform == platform && !rec.SpentAt.Before(since) {
			total = total.Add(rec.Amount)
		}
	}
	return total, nil
}

func (f *fakeStore) InsertTransaction(_ context.Context, rec storage.TransactionRecord) error {
	f.txns = append(f.txns, rec)
	return nil
}

func (f *fakeStore) SumRevenueSince(_ context.Context, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rec := range f.txns {
		if !rec.OccurredAt.Before(since) {
			total = total.Add(rec.Amount)
		}
	}
	return total, nil
}

func (f *fakeStore) CustomerAggregate(_ context.Context, customerID string, since time.Time) (storage.CustomerAggregate, error) {
	agg := storage.CustomerAggregate{TotalSpend: decimal.Zero}
	for _, rec := range f.txns {
		if rec.CustomerID != customerID || rec.OccurredAt.Before(since) {
			continue
		}
		agg.TotalSpend = agg.TotalSpend.Add(rec.Amount)
		agg.VisitCount++
		occurred := rec.OccurredAt
		if agg.LastPurchaseAt == nil || occurred.After(*agg.LastPurchaseAt) {
			agg.LastPurchaseAt = &occurred
		}
	}
	return agg, nil
}

func (f *fakeStore) UpsertCustomer(_ context.Context, rec storage.CustomerRecord) error {
	f.customers[rec.EmailHash] = rec
	return nil
}

func (f *fakeStore) CustomerByHash(_ context.Context, emailHash string) (storage.CustomerRecord, error) {
	rec, ok := f.customers[emailHash]
	if !ok {
		return storage.CustomerRecord{}, storage.ErrCustomerNotFound
	}
	return rec, nil
}

func (f *fakeStore) CustomerByReferralCode(_ context.Context, code string) (storage.CustomerRecord, error) {
	for _, rec := range f.customers {
		if strings.EqualFold(rec.ReferralCode, code) {
			return rec, nil
		}
	}
	return storage.CustomerRecord{}, storage.ErrCustomerNotFound
}

func (f *fakeStore) InsertAdjustment(_ context.Context, rec storage.PriceAdjustmentRecord) (storage.PriceAdjustmentRecord, error) {
	rec.CreatedAt = time.Now().UTC()
	f.adjustments = append(f.adjustments, rec)
	return rec, nil
}

func (f *fakeStore) ListRecentAdjustments(_ context.Context, limit int) ([]storage.PriceAdjustmentRecord, error) {
	out := make([]storage.PriceAdjustmentRecord, 0, limit)
	for i := len(f.adjustments) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.adjustments[i])
	}
	return out, nil
}

func (f *fakeStore) ListAdjustmentsBetween(_ context.Context, from, to time.Time) ([]storage.PriceAdjustmentRecord, error) {
	out := make([]storage.PriceAdjustmentRecord, 0)
	for _, rec := range f.adjustments {
		if !rec.CreatedAt.Before(from) && rec.CreatedAt.Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertReferralActivity(_ context.Context, rec storage.ReferralActivityRecord) error {
	f.referrals = append(f.referrals, rec)
	return nil
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.PricingConfig{
		MCD: config.MCDConfig{
			Enabled:               true,
			UpdateFrequency:       "daily",
			TargetROI:             3.0,
			Sensitivity:           0.3,
			SmoothingFactor:       0.4,
			DecayFactor:           0.9,
			MinMultiplier:         0.85,
			MaxMultiplier:         1.3,
			MinimumSpendThreshold: 100,
		},
		RCD: config.RCDConfig{
			Enabled:         true,
			MaxDiscount:     25,
			SpendWeight:     0.5,
			FrequencyWeight: 0.3,
			RecencyWeight:   0.2,
			MinSpend:        50,
			MinVisits:       2,
			ReferralBonus:   5,
			SeasonalMultipliers: map[string]float64{
				"default": 1.0,
			},
		},
	}

	engine, err := pricing.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}
	store := newFakeStore()
	svc := service.New(cfg, engine, service.Stores{
		Spends:      store,
		Txns:        store,
		Customers:   store,
		Adjustments: store,
		Referrals:   store,
	}, nil, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(NewHandler(svc)))
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return env
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	env := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !env.Success || env.Message != "ok" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id header")
	}
}

func TestRecordSpendValidationError(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/spend", "application/json",
		strings.NewReader(`{"platform":"google_ads","amount":0}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	env := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if env.Success || env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.RequestID == "" {
		t.Fatal("error envelope should carry the request id")
	}
}

func TestRecordSpendMalformedJSON(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/spend", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	env := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "invalid_json" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestPriceFlow(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/spend", "application/json",
		strings.NewReader(`{"platform":"google_ads","amount":250,"campaign":"spring_sale"}`))
	if err != nil {
		t.Fatalf("spend request failed: %v", err)
	}
	if env := decodeEnvelope(t, resp); resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("spend: expected 201 success, got %d %+v", resp.StatusCode, env)
	}

	resp, err = http.Post(srv.URL+"/v1/transactions", "application/json",
		strings.NewReader(`{"email":"buyer@example.com","amount":100}`))
	if err != nil {
		t.Fatalf("transaction request failed: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("transaction: expected 201 success, got %d %+v", resp.StatusCode, env)
	}
	customer, ok := env.Data["customer"].(map[string]interface{})
	if !ok || customer["referral_code"] == "" {
		t.Fatalf("transaction response missing customer block: %+v", env.Data)
	}

	resp, err = http.Get(srv.URL + "/v1/price?base=100")
	if err != nil {
		t.Fatalf("price request failed: %v", err)
	}
	env = decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("price: expected 200, got %d", resp.StatusCode)
	}

	// Spend 250, revenue 100: ROI 0.4 against target 3.0 gives raw 1.26,
	// smoothed from neutral to 1.104. Final price 100 * 1.104.
	if got := env.Data["multiplier"].(float64); math.Abs(got-1.104) > 1e-9 {
		t.Fatalf("expected multiplier 1.104, got %v", got)
	}
	if got := env.Data["final_price"].(float64); math.Abs(got-110.4) > 1e-9 {
		t.Fatalf("expected final price 110.40, got %v", got)
	}
	if got := env.Data["discount_pct"].(float64); got != 0 {
		t.Fatalf("anonymous quote should have no discount, got %v", got)
	}
}

func TestCustomerDiscountNotFound(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/v1/customers/nobody@example.com/discount")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	env := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "customer_not_found" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestListAdjustmentsRejectsBadLimit(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/v1/adjustments?limit=zero")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	env := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestEffectiveConfigUsesSnakeCaseKeys(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/v1/config")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	env := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	mcd, ok := env.Data["mcd"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing mcd block: %+v", env.Data)
	}
	if _, ok := mcd["target_roi"]; !ok {
		t.Fatalf("mcd block should use snake_case keys: %+v", mcd)
	}
	if _, ok := mcd["TargetROI"]; ok {
		t.Fatalf("mcd block leaked Go field names: %+v", mcd)
	}

	rcd, ok := env.Data["rcd"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing rcd block: %+v", env.Data)
	}
	if _, ok := rcd["max_discount"]; !ok {
		t.Fatalf("rcd block should use snake_case keys: %+v", rcd)
	}
	if _, ok := env.Data["platform_weights"]; !ok {
		t.Fatalf("missing platform_weights block: %+v", env.Data)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv := testServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("request construction failed: %v", err)
	}
	req.Header.Set("X-Request-Id", "test-trace-1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Request-Id"); got != "test-trace-1" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}
