package portfolio

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// positionMetrics derives max loss at the stop, the loss as a percentage of
// the investment and the unrealised profit.
func positionMetrics(buyPrice, shares, stopLoss, current float64) (maxLoss, lossPct, profit float64) {
	investment := dec(buyPrice).Mul(dec(shares))
	loss := investment.Sub(dec(stopLoss).Mul(dec(shares)))

	maxLoss = loss.InexactFloat64()
	if !investment.IsZero() {
		lossPct = loss.Div(investment).Mul(hundred).InexactFloat64()
	}
	profit = unrealised(buyPrice, shares, current)
	return maxLoss, lossPct, profit
}

func unrealised(buyPrice, shares, price float64) float64 {
	return dec(price).Sub(dec(buyPrice)).Mul(dec(shares)).InexactFloat64()
}

func cost(price, shares float64) decimal.Decimal {
	return dec(price).Mul(dec(shares))
}

// capitalBalance is deposits plus sells minus withdrawals minus buys.
// Profit records do not move the balance.
func capitalBalance(records []CapitalRecord) float64 {
	return lo.Reduce(records, func(total decimal.Decimal, r CapitalRecord, _ int) decimal.Decimal {
		switch r.Type {
		case CapitalDeposit, CapitalSell:
			return total.Add(dec(r.Amount))
		case CapitalWithdraw, CapitalBuy:
			return total.Sub(dec(r.Amount))
		}
		return total
	}, decimal.Zero).InexactFloat64()
}

func computeInvestStats(positions []Position, currentCapital float64) InvestStats {
	if len(positions) == 0 {
		return InvestStats{}
	}

	var investment, maxLoss, lossPct, profit decimal.Decimal
	for _, p := range positions {
		investment = investment.Add(cost(p.BuyPrice, p.Shares))
		maxLoss = maxLoss.Add(dec(p.MaxLoss))
		lossPct = lossPct.Add(dec(p.LossPercentage))
		profit = profit.Add(dec(p.CurrentProfit))
	}

	stats := InvestStats{
		TotalInvestment:       investment.InexactFloat64(),
		TotalMaxLoss:          maxLoss.InexactFloat64(),
		AverageLossPercentage: lossPct.Div(decimal.NewFromInt(int64(len(positions)))).InexactFloat64(),
		TotalProfit:           profit.InexactFloat64(),
		RecordCount:           len(positions),
	}
	if investment.IsPositive() {
		stats.CurrentProfitPercentage = profit.Div(investment).Mul(hundred).InexactFloat64()
	}

	// Invested money has left the balance, so add it back for the base.
	available := dec(currentCapital).Add(investment)
	if available.IsPositive() {
		stats.InvestmentRatio = investment.Div(available).Mul(hundred).InexactFloat64()
	}
	return stats
}

func computeClosedStats(closed []ClosedPosition) ClosedStats {
	if len(closed) == 0 {
		return ClosedStats{}
	}
	n := decimal.NewFromInt(int64(len(closed)))

	total := lo.Reduce(closed, func(sum decimal.Decimal, p ClosedPosition, _ int) decimal.Decimal {
		return sum.Add(dec(p.FinalProfit))
	}, decimal.Zero)

	var pctSum decimal.Decimal
	pctCount := 0
	var daysSum float64
	daysCount := 0
	for _, p := range closed {
		if inv := cost(p.BuyPrice, p.Shares); !inv.IsZero() {
			pctSum = pctSum.Add(dec(p.FinalProfit).Div(inv).Mul(hundred))
			pctCount++
		}
		if days, ok := holdingDays(p.BuyDate, p.ClosedAt); ok {
			daysSum += days
			daysCount++
		}
	}

	profitCount := lo.CountBy(closed, func(p ClosedPosition) bool { return p.FinalProfit > 0 })

	stats := ClosedStats{
		ClosedTotal:     len(closed),
		ProfitCount:     profitCount,
		LossCount:       lo.CountBy(closed, func(p ClosedPosition) bool { return p.FinalProfit < 0 }),
		WinRate:         decimal.NewFromInt(int64(profitCount)).Div(n).Mul(hundred).InexactFloat64(),
		TotalProfitLoss: total.InexactFloat64(),
		AvgProfitLoss:   total.Div(n).InexactFloat64(),
	}
	if pctCount > 0 {
		stats.AvgProfitLossPercentage = pctSum.Div(decimal.NewFromInt(int64(pctCount))).InexactFloat64()
	}
	if daysCount > 0 {
		stats.AvgHoldingDays = daysSum / float64(daysCount)
	}
	return stats
}

func holdingDays(from, to string) (float64, bool) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return 0, false
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return 0, false
	}
	return end.Sub(start).Hours() / 24, true
}

func computeReviewStats(reviews []DailyReview) ReviewStats {
	stats := ReviewStats{EmotionDistribution: map[Emotion]int{}}
	if len(reviews) == 0 {
		return stats
	}

	total := lo.Reduce(reviews, func(sum decimal.Decimal, r DailyReview, _ int) decimal.Decimal {
		return sum.Add(dec(r.TotalProfit))
	}, decimal.Zero)

	// Ties keep the first review encountered.
	best := lo.MaxBy(reviews, func(a, b DailyReview) bool { return a.TotalProfit > b.TotalProfit })
	worst := lo.MinBy(reviews, func(a, b DailyReview) bool { return a.TotalProfit < b.TotalProfit })

	stats.TotalReviews = len(reviews)
	stats.AvgDailyProfit = total.Div(decimal.NewFromInt(int64(len(reviews)))).InexactFloat64()
	stats.BestDay = &best
	stats.WorstDay = &worst
	stats.EmotionDistribution = lo.CountValuesBy(reviews, func(r DailyReview) Emotion { return r.EmotionState })
	stats.ProfitableDays = lo.CountBy(reviews, func(r DailyReview) bool { return r.TotalProfit > 0 })
	stats.LossDays = lo.CountBy(reviews, func(r DailyReview) bool { return r.TotalProfit < 0 })
	return stats
}

// dailyProfit sums the profit recorded on date across open positions' price
// history and the trades closed on that date.
func dailyProfit(positions []Position, closed []ClosedPosition, date string) float64 {
	sum := decimal.Zero
	for _, p := range positions {
		if rec, ok := lo.Find(p.PriceHistory, func(r PriceRecord) bool { return r.Date == date }); ok {
			sum = sum.Add(dec(rec.Profit))
		}
	}
	for _, c := range closed {
		if c.ClosedAt == date {
			sum = sum.Add(dec(c.FinalProfit))
		}
	}
	return sum.InexactFloat64()
}
