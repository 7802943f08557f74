package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/personapath/personapath-backend/internal/subscriptions"
	"github.com/personapath/personapath-backend/internal/users"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubCouponService struct {
	created   []subscriptions.CouponParams
	deleted   []string
	view      *subscriptions.CouponView
	deleteErr error
}

func (s *stubCouponService) CreateCoupon(ctx context.Context, params subscriptions.CouponParams) (*subscriptions.CouponView, error) {
	s.created = append(s.created, params)
	return s.view, nil
}

func (s *stubCouponService) DeleteCoupon(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

type stubUserService struct {
	created []users.CreateParams
	user    *models.User
	err     error
}

func (s *stubUserService) Create(ctx context.Context, params users.CreateParams) (*models.User, error) {
	s.created = append(s.created, params)
	return s.user, s.err
}

func TestCreateCoupon(t *testing.T) {
	percent := 25.0
	svc := &stubCouponService{view: &subscriptions.CouponView{
		ID:         "coup_1",
		Name:       "launch",
		PercentOff: &percent,
		Duration:   "once",
		Valid:      true,
	}}

	body := `{"name":"launch","percent_off":25,"duration":"once"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CreateCoupon(svc, testLogger())(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.created) != 1 || svc.created[0].Name != "launch" {
		t.Fatalf("expected params forwarded, got %+v", svc.created)
	}

	var envelope struct {
		Data subscriptions.CouponView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != "coup_1" {
		t.Fatalf("unexpected coupon id %s", envelope.Data.ID)
	}
}

func TestCreateCoupon_RejectsMissingFields(t *testing.T) {
	svc := &stubCouponService{}
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons", strings.NewReader(`{"percent_off":25}`))
	rec := httptest.NewRecorder()
	CreateCoupon(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.created) != 0 {
		t.Fatalf("service should not be reached on invalid body")
	}
}

func TestDeleteCoupon(t *testing.T) {
	svc := &stubCouponService{}
	router := chi.NewRouter()
	router.Delete("/admin/coupons/{id}", DeleteCoupon(svc, testLogger()))

	req := httptest.NewRequest(http.MethodDelete, "/admin/coupons/coup_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "coup_1" {
		t.Fatalf("expected id forwarded, got %v", svc.deleted)
	}
}

type stubPromoCounterReader struct {
	counter *models.PromoCounter
	err     error
}

func (s *stubPromoCounterReader) PromoCounter(ctx context.Context) (*models.PromoCounter, error) {
	return s.counter, s.err
}

func TestGetPromoCounter(t *testing.T) {
	svc := &stubPromoCounterReader{counter: &models.PromoCounter{ID: models.PromoCounterID, Count: 12, Limit: 30}}

	req := httptest.NewRequest(http.MethodGet, "/admin/promo-counter", nil)
	rec := httptest.NewRecorder()
	GetPromoCounter(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			Count     int  `json:"count"`
			Limit     int  `json:"limit"`
			Exhausted bool `json:"exhausted"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Count != 12 || envelope.Data.Limit != 30 {
		t.Fatalf("unexpected counter state %+v", envelope.Data)
	}
	if envelope.Data.Exhausted {
		t.Fatalf("counter with free slots must not report exhausted")
	}
}

func TestGetPromoCounter_RepoFailure(t *testing.T) {
	svc := &stubPromoCounterReader{err: errors.New("db down")}

	req := httptest.NewRequest(http.MethodGet, "/admin/promo-counter", nil)
	rec := httptest.NewRecorder()
	GetPromoCounter(svc, testLogger())(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCreateUser(t *testing.T) {
	svc := &stubUserService{user: &models.User{Email: "dana@example.com"}}

	body := `{"email":"dana@example.com","first_name":"Dana","last_name":"Reyes"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/users", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CreateUser(svc, testLogger())(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(svc.created))
	}
	if svc.created[0].FirstName != "Dana" || svc.created[0].LastName != "Reyes" {
		t.Fatalf("unexpected params %+v", svc.created[0])
	}
}

func TestCreateUser_RejectsBadEmail(t *testing.T) {
	svc := &stubUserService{}
	body := `{"email":"not-an-email","first_name":"Dana","last_name":"Reyes"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/users", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CreateUser(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.created) != 0 {
		t.Fatalf("service should not be reached on invalid body")
	}
}
