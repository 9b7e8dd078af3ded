package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testAlert() *types.Alert {
	return &types.Alert{
		ID: "a1",
		Market: &types.Market{
			ID:       "m1",
			Slug:     "test-market",
			Question: "Will the test pass?",
			EndDate:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		YesAsk:     d("0.45"),
		NoAsk:      d("0.48"),
		Combined:   d("0.93"),
		Profit:     d("0.07"),
		YesSize:    d("100"),
		NoSize:     d("100"),
		DetectedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FirstSeen:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IsNewOpen:  true,
		DaysUntil:  29,
		HasEndDate: true,
	}
}

func newMockStorage(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return newPostgresWithDB(db, zap.NewNop()), mock
}

func TestInsertAlert(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectExec("INSERT INTO alerts").
		WithArgs(
			"Will the test pass?",
			"0.45", "0.48", "0.93", "0.07",
			"2025-06-01T12:00:00Z",
			"polymarket",
			int64(29),
			"2025-07-01T00:00:00Z",
			"2025-06-01T12:00:00Z",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertAlert(context.Background(), testAlert())
	if err != nil {
		t.Fatalf("insert alert: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInsertAlertUnknownResolution(t *testing.T) {
	store, mock := newMockStorage(t)

	alert := testAlert()
	alert.HasEndDate = false
	alert.Market.EndDate = time.Time{}

	mock.ExpectExec("INSERT INTO alerts").
		WithArgs(
			"Will the test pass?",
			"0.45", "0.48", "0.93", "0.07",
			"2025-06-01T12:00:00Z",
			"polymarket",
			nil,
			nil,
			"2025-06-01T12:00:00Z",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertAlert(context.Background(), alert)
	if err != nil {
		t.Fatalf("insert alert: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateAlertDuration(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE alerts SET duration_secs").
		WithArgs(12.5, "Will the test pass?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateAlertDuration(context.Background(), "Will the test pass?", 12.5)
	if err != nil {
		t.Fatalf("update duration: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInsertNearMiss(t *testing.T) {
	store, mock := newMockStorage(t)

	nm := &types.NearMiss{
		Alert:       testAlert(),
		MinRequired: d("5"),
		Reason:      types.ReasonInsufficientLiquidity,
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO near_miss_alerts").
		WithArgs(
			"2025-06-01T12:00:01Z",
			"Will the test pass?",
			"0.45", "0.48", "0.93", "0.07",
			"100", "100", "5",
			"insufficient_liquidity",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertNearMiss(context.Background(), nm)
	if err != nil {
		t.Fatalf("insert near miss: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInsertExecution(t *testing.T) {
	store, mock := newMockStorage(t)

	result := &types.ExecutionResult{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 2, 0, time.UTC),
		Market:    testAlert().Market,
		Status:    types.StatusFilled,
		Yes: types.OrderOutcome{
			OrderID: "ord-yes", Status: "live",
			Price: d("0.45"), Size: d("50"), FilledSize: d("50"),
		},
		No: types.OrderOutcome{
			OrderID: "ord-no", Status: "live",
			Price: d("0.48"), Size: d("50"), FilledSize: d("50"),
		},
		TradeSize:      d("50"),
		TotalCost:      d("46.5"),
		ExpectedProfit: d("3.5"),
	}

	mock.ExpectExec("INSERT INTO executions").
		WithArgs(
			"2025-06-01T12:00:02Z",
			"Will the test pass?",
			"FILLED",
			"ord-yes", "live", "0.45", "50", "50",
			"ord-no", "live", "0.48", "50", "50",
			"46.5", "3.5",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertExecution(context.Background(), result)
	if err != nil {
		t.Fatalf("insert execution: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertScannerStats(t *testing.T) {
	store, mock := newMockStorage(t)

	stats := ScannerStats{
		Markets:          1500,
		PriceUpdates:     123456,
		ArbitrageAlerts:  7,
		WSConnected:      true,
		WSConnections:    "6/6",
		SubscribedTokens: 3000,
		LastUpdate:       time.Date(2025, 6, 1, 12, 0, 3, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO scanner_stats").
		WithArgs(1500, uint64(123456), uint64(7), true, "6/6", 3000, "2025-06-01T12:00:03Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.UpsertScannerStats(context.Background(), stats)
	if err != nil {
		t.Fatalf("upsert stats: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInsertPortfolioSnapshot(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectExec("INSERT INTO portfolio_snapshots").
		WithArgs("2025-06-01T12:00:04Z", "150.25", "180.25", "30").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertPortfolioSnapshot(context.Background(),
		time.Date(2025, 6, 1, 12, 0, 4, 0, time.UTC),
		d("150.25"), d("180.25"), d("30"))
	if err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
