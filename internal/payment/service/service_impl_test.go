package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	accountrepository "github.com/parleylabs/parley/internal/account/repository"
	accountservice "github.com/parleylabs/parley/internal/account/service"
	"github.com/parleylabs/parley/internal/clock"
	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/payment/domain"
	"github.com/parleylabs/parley/internal/payment/repository"
	paymentprovider "github.com/parleylabs/parley/internal/providers/payment"
	providerdomain "github.com/parleylabs/parley/internal/providers/payment/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	svc      domain.Service
	accounts accountdomain.Service
	provider *paymentprovider.Fake
	db       *gorm.DB
}

func setupPaymentService(t *testing.T) *fixture {
	t.Helper()

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

	if err := db.AutoMigrate(&accountdomain.Account{}, &domain.PaymentRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	provider := paymentprovider.NewFake("top-secret")

	accounts := accountservice.New(accountservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Plans: config.NewStaticPlanHolder(config.DefaultPlanConfig()),
		Repo:  accountrepository.Provide(),
	})

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fakeClock,
		AccountRepo: accountrepository.Provide(),
		Repo:        repository.Provide(),
		Provider:    provider,
	})

	return &fixture{svc: svc, accounts: accounts, provider: provider, db: db}
}

// issueOrder creates an account and a provider order tagged with its identity,
// returning the order and a valid callback signature for the given payment id.
func (f *fixture) issueOrder(t *testing.T, externalID, paymentID string) (providerdomain.Order, string) {
	t.Helper()
	ctx := context.Background()

	account, err := f.accounts.Resolve(ctx, externalID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	order, err := f.provider.CreateOrder(ctx, providerdomain.CreateOrderRequest{
		AmountMinorUnits: 50_000,
		Currency:         "INR",
		Receipt:          "rcpt_test",
		Tags: map[string]string{
			providerdomain.TagExternalID: externalID,
			providerdomain.TagAccountID:  account.ID.String(),
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	sig := domain.Signature(f.provider.Secret(), order.ProviderOrderID, paymentID)
	return order, sig
}

func (f *fixture) recordCount(t *testing.T) int {
	t.Helper()
	var count int
	if err := f.db.Raw(`SELECT COUNT(1) FROM payment_records`).Scan(&count).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	return count
}

func (f *fixture) tier(t *testing.T, externalID string) accountdomain.Tier {
	t.Helper()
	account, err := f.accounts.Lookup(context.Background(), externalID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	return account.Tier
}

func TestVerifyUpgradesAndRecords(t *testing.T) {
	f := setupPaymentService(t)
	order, sig := f.issueOrder(t, "visitor-pay", "pay_001")

	result, err := f.svc.Verify(context.Background(), domain.VerifyRequest{
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: "pay_001",
		Signature:         sig,
		ExternalID:        "visitor-pay",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Success || result.AlreadyProcessed {
		t.Fatalf("unexpected result: %+v", result)
	}

	if tier := f.tier(t, "visitor-pay"); tier != accountdomain.TierPro {
		t.Fatalf("expected pro tier, got %s", tier)
	}

	records, err := f.svc.ListByAccount(context.Background(), "visitor-pay")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 payment record, got %d", len(records))
	}
	record := records[0]
	if record.ProviderPaymentID != "pay_001" {
		t.Fatalf("unexpected payment id %s", record.ProviderPaymentID)
	}
	// Amount and currency come from the provider-fetched order, never the
	// callback body.
	if record.AmountMinorUnits != 50_000 || record.Currency != "INR" {
		t.Fatalf("unexpected amount/currency: %d %s", record.AmountMinorUnits, record.Currency)
	}
	if record.Status != domain.StatusCompleted {
		t.Fatalf("expected completed status, got %s", record.Status)
	}
}

func TestVerifyBadSignatureNoSideEffects(t *testing.T) {
	f := setupPaymentService(t)
	order, _ := f.issueOrder(t, "visitor-forged", "pay_002")

	_, err := f.svc.Verify(context.Background(), domain.VerifyRequest{
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: "pay_002",
		Signature:         "deadbeef",
		ExternalID:        "visitor-forged",
	})
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	if tier := f.tier(t, "visitor-forged"); tier != accountdomain.TierFree {
		t.Fatalf("expected free tier after rejected signature, got %s", tier)
	}
	if count := f.recordCount(t); count != 0 {
		t.Fatalf("expected no records, got %d", count)
	}
}

func TestVerifyIdentityMismatchNoSideEffects(t *testing.T) {
	f := setupPaymentService(t)
	order, _ := f.issueOrder(t, "visitor-owner", "pay_003")

	// visitor-thief presents a structurally valid signature for an order
	// that belongs to visitor-owner.
	if _, err := f.accounts.Resolve(context.Background(), "visitor-thief"); err != nil {
		t.Fatalf("resolve thief: %v", err)
	}
	sig := domain.Signature(f.provider.Secret(), order.ProviderOrderID, "pay_003")

	_, err := f.svc.Verify(context.Background(), domain.VerifyRequest{
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: "pay_003",
		Signature:         sig,
		ExternalID:        "visitor-thief",
	})
	if !errors.Is(err, domain.ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}

	if tier := f.tier(t, "visitor-thief"); tier != accountdomain.TierFree {
		t.Fatalf("thief upgraded: %s", tier)
	}
	if tier := f.tier(t, "visitor-owner"); tier != accountdomain.TierFree {
		t.Fatalf("owner upgraded without consent: %s", tier)
	}
	if count := f.recordCount(t); count != 0 {
		t.Fatalf("expected no records, got %d", count)
	}
}

func TestVerifyRedeliveryIsNoOp(t *testing.T) {
	f := setupPaymentService(t)
	order, sig := f.issueOrder(t, "visitor-redeliver", "pay_004")

	req := domain.VerifyRequest{
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: "pay_004",
		Signature:         sig,
		ExternalID:        "visitor-redeliver",
	}

	first, err := f.svc.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if !first.Success {
		t.Fatalf("first verify failed: %+v", first)
	}

	second, err := f.svc.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if !second.Success || !second.AlreadyProcessed {
		t.Fatalf("expected already-processed success, got %+v", second)
	}

	if count := f.recordCount(t); count != 1 {
		t.Fatalf("expected 1 record after redelivery, got %d", count)
	}
}

func TestInsertDuplicatePaymentRecord(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	repo := repository.Provide()

	account, err := f.accounts.Resolve(ctx, "visitor-dup")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	record := domain.PaymentRecord{
		ID:                snowflake.ID(9001),
		AccountID:         account.ID,
		ProviderOrderID:   "order_dup",
		ProviderPaymentID: "pay_dup",
		AmountMinorUnits:  50_000,
		Currency:          "INR",
		Status:            domain.StatusCompleted,
		CreatedAt:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.Insert(ctx, f.db, &record); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	again := record
	again.ID = snowflake.ID(9002)
	if err := repo.Insert(ctx, f.db, &again); !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	if count := f.recordCount(t); count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
}

// blindRepo hides existing records from the pre-commit duplicate check, so a
// second delivery reaches the transactional insert the way a concurrent one
// would.
type blindRepo struct {
	domain.Repository
}

func (b *blindRepo) FindByTransactionID(ctx context.Context, db *gorm.DB, providerPaymentID string) (*domain.PaymentRecord, error) {
	return nil, nil
}

func TestVerifyLostInsertRaceIsNoOp(t *testing.T) {
	f := setupPaymentService(t)
	order, sig := f.issueOrder(t, "visitor-race", "pay_race")

	node, err := snowflake.NewNode(6)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := New(Params{
		DB:          f.db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		AccountRepo: accountrepository.Provide(),
		Repo:        &blindRepo{Repository: repository.Provide()},
		Provider:    f.provider,
	})

	req := domain.VerifyRequest{
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: "pay_race",
		Signature:         sig,
		ExternalID:        "visitor-race",
	}

	first, err := svc.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if !first.Success || first.AlreadyProcessed {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := svc.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if !second.Success || !second.AlreadyProcessed {
		t.Fatalf("expected already-processed success, got %+v", second)
	}

	if count := f.recordCount(t); count != 1 {
		t.Fatalf("expected 1 record after race, got %d", count)
	}
	if tier := f.tier(t, "visitor-race"); tier != accountdomain.TierPro {
		t.Fatalf("expected pro tier, got %s", tier)
	}
}

func TestVerifyUnknownOrder(t *testing.T) {
	f := setupPaymentService(t)
	if _, err := f.accounts.Resolve(context.Background(), "visitor-ghost"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	sig := domain.Signature(f.provider.Secret(), "order_missing", "pay_005")

	_, err := f.svc.Verify(context.Background(), domain.VerifyRequest{
		ProviderOrderID:   "order_missing",
		ProviderPaymentID: "pay_005",
		Signature:         sig,
		ExternalID:        "visitor-ghost",
	})
	if !errors.Is(err, providerdomain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestVerifyMissingFields(t *testing.T) {
	f := setupPaymentService(t)

	_, err := f.svc.Verify(context.Background(), domain.VerifyRequest{
		ProviderOrderID: "order_1",
	})
	if !errors.Is(err, domain.ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestVerifyAccountNotFound(t *testing.T) {
	f := setupPaymentService(t)

	// Order tagged with an external id that never resolved an account.
	order, err := f.provider.CreateOrder(context.Background(), providerdomain.CreateOrderRequest{
		AmountMinorUnits: 50_000,
		Currency:         "INR",
		Tags:             map[string]string{providerdomain.TagExternalID: "visitor-phantom"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	sig := domain.Signature(f.provider.Secret(), order.ProviderOrderID, "pay_006")

	_, err = f.svc.Verify(context.Background(), domain.VerifyRequest{
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: "pay_006",
		Signature:         sig,
		ExternalID:        "visitor-phantom",
	})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestOrphanUpgrades(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	// visitor-clean upgrades through verification; visitor-orphan gets its
	// tier flipped without a payment record, as after a crash mid-commit.
	order, sig := f.issueOrder(t, "visitor-clean", "pay_007")
	if _, err := f.svc.Verify(ctx, domain.VerifyRequest{
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: "pay_007",
		Signature:         sig,
		ExternalID:        "visitor-clean",
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}

	orphan, err := f.accounts.Resolve(ctx, "visitor-orphan")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := f.accounts.Upgrade(ctx, orphan.ID); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	orphans, err := f.svc.OrphanUpgrades(ctx)
	if err != nil {
		t.Fatalf("orphan upgrades: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(orphans))
	}
	if orphans[0].ExternalID != "visitor-orphan" {
		t.Fatalf("unexpected orphan %s", orphans[0].ExternalID)
	}
}

func TestListByAccountUnknown(t *testing.T) {
	f := setupPaymentService(t)

	if _, err := f.svc.ListByAccount(context.Background(), "nobody"); !errors.Is(err, accountdomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
