package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	accountrepository "github.com/parleylabs/parley/internal/account/repository"
	accountservice "github.com/parleylabs/parley/internal/account/service"
	chatdomain "github.com/parleylabs/parley/internal/chat/domain"
	chatrepository "github.com/parleylabs/parley/internal/chat/repository"
	chatservice "github.com/parleylabs/parley/internal/chat/service"
	"github.com/parleylabs/parley/internal/clock"
	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/observability"
	orderservice "github.com/parleylabs/parley/internal/order/service"
	paymentdomain "github.com/parleylabs/parley/internal/payment/domain"
	paymentrepository "github.com/parleylabs/parley/internal/payment/repository"
	paymentservice "github.com/parleylabs/parley/internal/payment/service"
	"github.com/parleylabs/parley/internal/providers/completion"
	paymentprovider "github.com/parleylabs/parley/internal/providers/payment"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubCompletion struct {
	response string
}

func (s *stubCompletion) Complete(ctx context.Context, req completion.Request) (string, error) {
	return s.response, nil
}

type stubImageGen struct {
	response string
}

func (s *stubImageGen) Generate(ctx context.Context, prompt string) (string, error) {
	return s.response, nil
}

type testServer struct {
	srv      *Server
	provider *paymentprovider.Fake
	db       *gorm.DB
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.AutoMigrate(
		&accountdomain.Account{},
		&chatdomain.ChatTurn{},
		&paymentdomain.PaymentRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(5)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	plans := config.NewStaticPlanHolder(config.DefaultPlanConfig())
	provider := paymentprovider.NewFake("top-secret")
	log := zap.NewNop()

	accounts := accountservice.New(accountservice.Params{
		DB: db, Log: log, GenID: node, Clock: fakeClock, Plans: plans,
		Repo: accountrepository.Provide(),
	})
	chatSvc := chatservice.New(chatservice.Params{
		DB: db, Log: log, GenID: node, Clock: fakeClock,
		Accounts:   accounts,
		Repo:       chatrepository.Provide(),
		Completion: &stubCompletion{response: "of course!"},
		ImageGen:   &stubImageGen{response: "aGVsbG8="},
	})
	orderSvc := orderservice.New(orderservice.Params{
		Log: log, Clock: fakeClock, Plans: plans,
		Accounts: accounts,
		Provider: provider,
	})
	paymentSvc := paymentservice.New(paymentservice.Params{
		DB: db, Log: log, GenID: node, Clock: fakeClock,
		AccountRepo: accountrepository.Provide(),
		Repo:        paymentrepository.Provide(),
		Provider:    provider,
	})

	engine := NewEngine(observability.Config{}, nil)
	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{AllowedOrigin: "https://chat.example"},
		AccountSvc: accounts,
		ChatSvc:    chatSvc,
		OrderSvc:   orderSvc,
		PaymentSvc: paymentSvc,
	})

	return &testServer{srv: srv, provider: provider, db: db}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSON(t, rec)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error envelope in %q", rec.Body.String())
	}
	typ, _ := errObj["type"].(string)
	return typ
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetUserCreatesAccount(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodGet, "/api/user/visitor-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	data := body["data"].(map[string]any)
	if data["external_id"] != "visitor-1" {
		t.Fatalf("unexpected external_id %v", data["external_id"])
	}
	if data["tier"] != "free" {
		t.Fatalf("expected free tier, got %v", data["tier"])
	}
}

func TestPostMessageReturnsBothTurns(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPost, "/api/messages", map[string]any{
		"external_id": "visitor-chat",
		"content":     "hello there",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	data := body["data"].(map[string]any)
	if data["user_turn"] == nil || data["assistant_turn"] == nil {
		t.Fatalf("expected both turns, got %v", data)
	}

	histRec := ts.do(t, http.MethodGet, "/api/messages/visitor-chat", nil)
	if histRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", histRec.Code)
	}
	histBody := decodeJSON(t, histRec)
	turns := histBody["data"].([]any)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns in history, got %d", len(turns))
	}
}

func TestPostMessageQuotaExceeded(t *testing.T) {
	ts := setupServer(t)

	for i := 0; i < 6; i++ {
		rec := ts.do(t, http.MethodPost, "/api/messages", map[string]any{
			"external_id": "visitor-limit",
			"content":     fmt.Sprintf("message %d", i+1),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("send %d: expected 200, got %d: %s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := ts.do(t, http.MethodPost, "/api/messages", map[string]any{
		"external_id": "visitor-limit",
		"content":     "one too many",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if typ := errorType(t, rec); typ != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded, got %s", typ)
	}
}

func TestPostMessageValidation(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPost, "/api/messages", map[string]any{
		"external_id": "visitor-blank",
		"content":     "   ",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if typ := errorType(t, rec); typ != "validation_error" {
		t.Fatalf("expected validation_error, got %s", typ)
	}
}

func TestHistoryUnknownAccount(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodGet, "/api/messages/nobody", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if typ := errorType(t, rec); typ != "not_found" {
		t.Fatalf("expected not_found, got %s", typ)
	}
}

func TestPostImage(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPost, "/api/images", map[string]any{
		"external_id": "visitor-art",
		"prompt":      "a lighthouse at dusk",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	data := body["data"].(map[string]any)
	if data["image_base64"] != "aGVsbG8=" {
		t.Fatalf("unexpected image payload %v", data["image_base64"])
	}
}

func TestUpgradeFlowEndToEnd(t *testing.T) {
	ts := setupServer(t)

	// Exhaust the free quota.
	for i := 0; i < 6; i++ {
		rec := ts.do(t, http.MethodPost, "/api/messages", map[string]any{
			"external_id": "visitor-upgrader",
			"content":     fmt.Sprintf("message %d", i+1),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("send %d: got %d", i+1, rec.Code)
		}
	}
	blocked := ts.do(t, http.MethodPost, "/api/messages", map[string]any{
		"external_id": "visitor-upgrader",
		"content":     "blocked",
	})
	if blocked.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before upgrade, got %d", blocked.Code)
	}

	// Create an order and verify its payment.
	orderRec := ts.do(t, http.MethodPost, "/api/create-order", map[string]any{
		"external_id":        "visitor-upgrader",
		"amount_minor_units": 50000,
	})
	if orderRec.Code != http.StatusOK {
		t.Fatalf("create order: got %d: %s", orderRec.Code, orderRec.Body.String())
	}
	orderBody := decodeJSON(t, orderRec)
	orderID := orderBody["data"].(map[string]any)["id"].(string)

	sig := paymentdomain.Signature(ts.provider.Secret(), orderID, "pay_e2e")
	verifyRec := ts.do(t, http.MethodPost, "/api/verify-payment", map[string]any{
		"provider_order_id":   orderID,
		"provider_payment_id": "pay_e2e",
		"signature":           sig,
		"external_id":         "visitor-upgrader",
	})
	if verifyRec.Code != http.StatusOK {
		t.Fatalf("verify: got %d: %s", verifyRec.Code, verifyRec.Body.String())
	}
	if success := decodeJSON(t, verifyRec)["success"]; success != true {
		t.Fatalf("expected success true, got %v", success)
	}

	// Chat unblocked after upgrade.
	after := ts.do(t, http.MethodPost, "/api/messages", map[string]any{
		"external_id": "visitor-upgrader",
		"content":     "pro now",
	})
	if after.Code != http.StatusOK {
		t.Fatalf("expected 200 after upgrade, got %d: %s", after.Code, after.Body.String())
	}

	// And the payment shows up in the ledger.
	payments := ts.do(t, http.MethodGet, "/api/payments/visitor-upgrader", nil)
	if payments.Code != http.StatusOK {
		t.Fatalf("list payments: got %d", payments.Code)
	}
	records := decodeJSON(t, payments)["data"].([]any)
	if len(records) != 1 {
		t.Fatalf("expected 1 payment record, got %d", len(records))
	}
}

func TestVerifyPaymentRejectionEnvelope(t *testing.T) {
	ts := setupServer(t)

	// Order owned by someone else; both rejection paths must produce the
	// same generic envelope.
	orderRec := ts.do(t, http.MethodPost, "/api/create-order", map[string]any{
		"external_id":        "visitor-victim",
		"amount_minor_units": 50000,
	})
	orderID := decodeJSON(t, orderRec)["data"].(map[string]any)["id"].(string)

	badSig := ts.do(t, http.MethodPost, "/api/verify-payment", map[string]any{
		"provider_order_id":   orderID,
		"provider_payment_id": "pay_x",
		"signature":           "deadbeef",
		"external_id":         "visitor-victim",
	})
	if badSig.Code != http.StatusBadRequest {
		t.Fatalf("bad signature: expected 400, got %d", badSig.Code)
	}
	badSigBody := decodeJSON(t, badSig)
	if badSigBody["success"] != false {
		t.Fatalf("expected success false, got %v", badSigBody["success"])
	}

	ts.do(t, http.MethodGet, "/api/user/visitor-mallory", nil)
	sig := paymentdomain.Signature(ts.provider.Secret(), orderID, "pay_y")
	mismatch := ts.do(t, http.MethodPost, "/api/verify-payment", map[string]any{
		"provider_order_id":   orderID,
		"provider_payment_id": "pay_y",
		"signature":           sig,
		"external_id":         "visitor-mallory",
	})
	if mismatch.Code != http.StatusBadRequest {
		t.Fatalf("identity mismatch: expected 400, got %d", mismatch.Code)
	}

	sigType := badSigBody["error"].(map[string]any)["type"]
	mismatchType := decodeJSON(t, mismatch)["error"].(map[string]any)["type"]
	if sigType != "verification_failed" || mismatchType != "verification_failed" {
		t.Fatalf("expected indistinguishable rejections, got %v vs %v", sigType, mismatchType)
	}
}

func TestCreateOrderInvalidAmount(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPost, "/api/create-order", map[string]any{
		"external_id":        "visitor-cheap",
		"amount_minor_units": 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if typ := errorType(t, rec); typ != "validation_error" {
		t.Fatalf("expected validation_error, got %s", typ)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := setupServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "https://chat.example")
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestOrphanUpgradesEmpty(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodGet, "/api/admin/reconciliation/orphan-upgrades", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if data := decodeJSON(t, rec)["data"].([]any); len(data) != 0 {
		t.Fatalf("expected no orphans, got %d", len(data))
	}
}
