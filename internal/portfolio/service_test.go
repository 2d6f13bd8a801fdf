package portfolio

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stocktrack/internal/core"
)

var testNow = time.Date(2024, 3, 7, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	svc := NewService(db, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func openSample(t *testing.T, svc *Service) *Position {
	t.Helper()
	pos, err := svc.OpenPosition(context.Background(), OpenPositionInput{
		StockName:     "Moutai",
		StockCode:     "sh600519",
		BuyPrice:      10,
		Shares:        100,
		StopLossPrice: 9,
		CurrentPrice:  10,
		BuyDate:       "2024-03-01",
		Strategy:      StrategyTrend,
	})
	require.NoError(t, err)
	return pos
}

func TestService_OpenPosition(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pos := openSample(t, svc)
	assert.Equal(t, testNow.UnixMilli(), pos.ID)
	assert.InDelta(t, 100.0, pos.MaxLoss, 1e-9)
	assert.InDelta(t, 10.0, pos.LossPercentage, 1e-9)
	assert.Zero(t, pos.CurrentProfit)
	require.NotEmpty(t, pos.BuyRecordID)

	stored, err := svc.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	require.Len(t, stored.PriceHistory, 1)
	assert.Equal(t, "2024-03-07", stored.PriceHistory[0].Date)

	records, err := svc.ListCapital(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, CapitalBuy, records[0].Type)
	assert.Equal(t, 1000.0, records[0].Amount)
	assert.Equal(t, pos.BuyRecordID, records[0].ID)

	capital, err := svc.CurrentCapital(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1000.0, capital)
}

func TestService_OpenPosition_UniqueIDs(t *testing.T) {
	svc := newTestService(t)

	first := openSample(t, svc)
	second := openSample(t, svc)
	assert.Equal(t, first.ID+1, second.ID)
}

func TestService_OpenPosition_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   OpenPositionInput
	}{
		{"missing name", OpenPositionInput{BuyPrice: 1, Shares: 1, CurrentPrice: 1}},
		{"zero price", OpenPositionInput{StockName: "x", Shares: 1, CurrentPrice: 1}},
		{"zero shares", OpenPositionInput{StockName: "x", BuyPrice: 1, CurrentPrice: 1}},
		{"bad date", OpenPositionInput{StockName: "x", BuyPrice: 1, Shares: 1, CurrentPrice: 1, BuyDate: "07/03/2024"}},
		{"bad strategy", OpenPositionInput{StockName: "x", BuyPrice: 1, Shares: 1, CurrentPrice: 1, Strategy: "scalp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.OpenPosition(ctx, tt.in)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}

	positions, err := svc.ListPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestService_UpdatePosition(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	pos := openSample(t, svc)

	updated, err := svc.UpdatePosition(ctx, pos.ID, UpdatePositionInput{
		StockName:     "Moutai",
		BuyPrice:      8,
		Shares:        200,
		StopLossPrice: 7,
		Strategy:      StrategyGrowth,
	})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, updated.MaxLoss, 1e-9)
	assert.InDelta(t, 400.0, updated.CurrentProfit, 1e-9)
	assert.Equal(t, "2024-03-01", updated.BuyDate)

	_, err = svc.UpdatePosition(ctx, 42, UpdatePositionInput{StockName: "x", BuyPrice: 1, Shares: 1})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_PriceRecords(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	pos := openSample(t, svc)

	updated, err := svc.AddPriceRecord(ctx, pos.ID, 12, "2024-03-08", "breakout")
	require.NoError(t, err)
	assert.Equal(t, 12.0, updated.CurrentPrice)
	assert.InDelta(t, 200.0, updated.CurrentProfit, 1e-9)

	_, err = svc.AddPriceRecord(ctx, pos.ID, 11, "2024-03-09", "")
	require.NoError(t, err)

	updated, err = svc.DeletePriceRecord(ctx, pos.ID, "2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, 12.0, updated.CurrentPrice)
	assert.Len(t, updated.PriceHistory, 2)

	_, err = svc.DeletePriceRecord(ctx, pos.ID, "2020-01-01")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.DeletePriceRecord(ctx, pos.ID, "2024-03-08")
	require.NoError(t, err)

	_, err = svc.DeletePriceRecord(ctx, pos.ID, "2024-03-07")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.AddPriceRecord(ctx, pos.ID, 0, "", "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestService_ClosePosition(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	pos := openSample(t, svc)

	_, err := svc.AddPriceRecord(ctx, pos.ID, 12.5, "2024-03-07", "")
	require.NoError(t, err)

	closed, err := svc.ClosePosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.5, closed.ClosedPrice)
	assert.InDelta(t, 250.0, closed.FinalProfit, 1e-9)
	assert.Equal(t, "2024-03-07", closed.ClosedAt)

	_, err = svc.GetPosition(ctx, pos.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	history, err := svc.ClosedPriceHistory(ctx, pos.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	capital, err := svc.CurrentCapital(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, capital, 1e-9)

	records, err := svc.ListCapital(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	sell, ok := lo.Find(records, func(r CapitalRecord) bool { return r.Type == CapitalSell })
	require.True(t, ok)
	assert.Equal(t, 1250.0, sell.Amount)
	assert.Equal(t, pos.BuyRecordID, sell.RelatedBuyID)
}

func TestService_DeletePositionRefunds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	pos := openSample(t, svc)

	require.NoError(t, svc.DeletePosition(ctx, pos.ID))

	capital, err := svc.CurrentCapital(ctx)
	require.NoError(t, err)
	assert.Zero(t, capital)

	history, err := svc.repos.Prices.ListByPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, svc.DeletePosition(ctx, pos.ID), core.ErrNotFound)
}

func TestService_DeleteClosedPositionReverses(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	pos := openSample(t, svc)
	_, err := svc.ClosePosition(ctx, pos.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteClosedPosition(ctx, pos.ID))

	closed, err := svc.ListClosed(ctx)
	require.NoError(t, err)
	assert.Empty(t, closed)

	capital, err := svc.CurrentCapital(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1000.0, capital)
}

func TestService_Capital(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	dep, err := svc.Deposit(ctx, 5000, "")
	require.NoError(t, err)
	assert.Equal(t, "manual deposit 5000", dep.Remark)

	_, err = svc.Withdraw(ctx, 1200, "rent")
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, -1, "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	capital, err := svc.CurrentCapital(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3800.0, capital)

	require.NoError(t, svc.DeleteCapitalRecord(ctx, dep.ID))
	assert.ErrorIs(t, svc.DeleteCapitalRecord(ctx, dep.ID), core.ErrNotFound)

	capital, err = svc.CurrentCapital(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1200.0, capital)
}

func TestService_InitialCapital(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	v, err := svc.InitialCapital(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, svc.SetInitialCapital(ctx, 100000))
	require.NoError(t, svc.SetInitialCapital(ctx, 120000.5))

	v, err = svc.InitialCapital(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120000.5, v)

	assert.ErrorIs(t, svc.SetInitialCapital(ctx, -1), core.ErrInvalidInput)
}

func TestService_InvestStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 4000, "")
	require.NoError(t, err)
	pos := openSample(t, svc)
	_, err = svc.AddPriceRecord(ctx, pos.ID, 11, "2024-03-08", "")
	require.NoError(t, err)

	stats, err := svc.InvestStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordCount)
	assert.InDelta(t, 1000.0, stats.TotalInvestment, 1e-9)
	assert.InDelta(t, 100.0, stats.TotalProfit, 1e-9)
	assert.InDelta(t, 10.0, stats.CurrentProfitPercentage, 1e-9)
	assert.InDelta(t, 25.0, stats.InvestmentRatio, 1e-9)

	daily, err := svc.DailyProfit(ctx, "2024-03-08")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, daily, 1e-9)
}

func TestService_Reset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	openSample(t, svc)
	require.NoError(t, svc.SetInitialCapital(ctx, 10))

	require.NoError(t, svc.Reset(ctx))

	positions, err := svc.ListPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
	records, err := svc.ListCapital(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	v, err := svc.InitialCapital(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestOpenSQLite_CreatesParentDirectory(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "ledger.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	positions, err := NewService(db, nil).ListPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}
