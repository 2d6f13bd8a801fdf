package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionMetrics(t *testing.T) {
	maxLoss, lossPct, profit := positionMetrics(10.1, 300, 9.5, 10.7)
	assert.InDelta(t, 180.0, maxLoss, 1e-9)
	assert.InDelta(t, 5.940594, lossPct, 1e-6)
	assert.InDelta(t, 180.0, profit, 1e-9)

	_, lossPct, _ = positionMetrics(0, 0, 0, 0)
	assert.Zero(t, lossPct)
}

func TestCapitalBalance(t *testing.T) {
	records := []CapitalRecord{
		{Type: CapitalDeposit, Amount: 10000},
		{Type: CapitalBuy, Amount: 3000.3},
		{Type: CapitalSell, Amount: 3500.1},
		{Type: CapitalWithdraw, Amount: 500},
		{Type: CapitalProfit, Amount: 999},
	}
	assert.InDelta(t, 9999.8, capitalBalance(records), 1e-9)
	assert.Zero(t, capitalBalance(nil))
}

func TestComputeInvestStats_Empty(t *testing.T) {
	assert.Equal(t, InvestStats{}, computeInvestStats(nil, 1000))
}

func TestComputeInvestStats(t *testing.T) {
	positions := []Position{
		{BuyPrice: 10, Shares: 100, MaxLoss: 100, LossPercentage: 10, CurrentProfit: 50},
		{BuyPrice: 20, Shares: 50, MaxLoss: 200, LossPercentage: 20, CurrentProfit: -150},
	}
	stats := computeInvestStats(positions, 2000)

	assert.Equal(t, 2, stats.RecordCount)
	assert.InDelta(t, 2000.0, stats.TotalInvestment, 1e-9)
	assert.InDelta(t, 300.0, stats.TotalMaxLoss, 1e-9)
	assert.InDelta(t, 15.0, stats.AverageLossPercentage, 1e-9)
	assert.InDelta(t, -100.0, stats.TotalProfit, 1e-9)
	assert.InDelta(t, -5.0, stats.CurrentProfitPercentage, 1e-9)
	assert.InDelta(t, 50.0, stats.InvestmentRatio, 1e-9)
}

func TestComputeClosedStats(t *testing.T) {
	closed := []ClosedPosition{
		{BuyPrice: 10, Shares: 100, FinalProfit: 200, BuyDate: "2024-01-01", ClosedAt: "2024-01-11"},
		{BuyPrice: 10, Shares: 100, FinalProfit: -100, BuyDate: "2024-01-01", ClosedAt: "2024-01-21"},
		{BuyPrice: 10, Shares: 100, FinalProfit: 0, BuyDate: "bogus", ClosedAt: "2024-01-21"},
		{BuyPrice: 5, Shares: 100, FinalProfit: 50, BuyDate: "2024-02-01", ClosedAt: "2024-02-01"},
	}
	stats := computeClosedStats(closed)

	assert.Equal(t, 4, stats.ClosedTotal)
	assert.Equal(t, 2, stats.ProfitCount)
	assert.Equal(t, 1, stats.LossCount)
	assert.InDelta(t, 50.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 150.0, stats.TotalProfitLoss, 1e-9)
	assert.InDelta(t, 37.5, stats.AvgProfitLoss, 1e-9)
	// (20 - 10 + 0 + 10) / 4
	assert.InDelta(t, 5.0, stats.AvgProfitLossPercentage, 1e-9)
	// (10 + 20 + 0) / 3, the bogus date is skipped
	assert.InDelta(t, 10.0, stats.AvgHoldingDays, 1e-9)

	assert.Equal(t, ClosedStats{}, computeClosedStats(nil))
}

func TestComputeReviewStats(t *testing.T) {
	reviews := []DailyReview{
		{Date: "2024-03-03", TotalProfit: 300, EmotionState: EmotionGood},
		{Date: "2024-03-02", TotalProfit: -120, EmotionState: EmotionBad},
		{Date: "2024-03-01", TotalProfit: 300, EmotionState: EmotionGood},
		{Date: "2024-02-29", TotalProfit: 0, EmotionState: EmotionNeutral},
	}
	stats := computeReviewStats(reviews)

	assert.Equal(t, 4, stats.TotalReviews)
	assert.InDelta(t, 120.0, stats.AvgDailyProfit, 1e-9)
	require.NotNil(t, stats.BestDay)
	assert.Equal(t, "2024-03-03", stats.BestDay.Date)
	require.NotNil(t, stats.WorstDay)
	assert.Equal(t, "2024-03-02", stats.WorstDay.Date)
	assert.Equal(t, map[Emotion]int{EmotionGood: 2, EmotionBad: 1, EmotionNeutral: 1}, stats.EmotionDistribution)
	assert.Equal(t, 2, stats.ProfitableDays)
	assert.Equal(t, 1, stats.LossDays)
}

func TestComputeReviewStats_Empty(t *testing.T) {
	stats := computeReviewStats(nil)
	assert.Zero(t, stats.TotalReviews)
	assert.Nil(t, stats.BestDay)
	assert.NotNil(t, stats.EmotionDistribution)
}

func TestDailyProfit(t *testing.T) {
	positions := []Position{
		{PriceHistory: []PriceRecord{{Date: "2024-03-07", Profit: 40}, {Date: "2024-03-08", Profit: 60}}},
		{PriceHistory: []PriceRecord{{Date: "2024-03-08", Profit: -25}}},
	}
	closed := []ClosedPosition{
		{ClosedAt: "2024-03-08", FinalProfit: 100},
		{ClosedAt: "2024-03-01", FinalProfit: 999},
	}
	assert.InDelta(t, 135.0, dailyProfit(positions, closed, "2024-03-08"), 1e-9)
	assert.Zero(t, dailyProfit(positions, closed, "2023-01-01"))
}
