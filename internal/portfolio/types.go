// Package portfolio is the position ledger: open stock positions with their
// price history, closed trades, capital movements and daily reviews.
package portfolio

import "time"

// StrategyTag classifies why a position was opened
type StrategyTag string

const (
	StrategyTrend    StrategyTag = "trend"
	StrategyGrowth   StrategyTag = "growth"
	StrategyMomentum StrategyTag = "momentum"
	StrategyOther    StrategyTag = "other"
)

// StrategyLabels are the display names used by the UI
var StrategyLabels = map[StrategyTag]string{
	StrategyTrend:    "趋势回调",
	StrategyMomentum: "RVC001",
	StrategyGrowth:   "RVC010",
	StrategyOther:    "观察",
}

// Valid reports whether t is empty or a known tag
func (t StrategyTag) Valid() bool {
	if t == "" {
		return true
	}
	_, ok := StrategyLabels[t]
	return ok
}

// CapitalType is the kind of a capital movement
type CapitalType string

const (
	CapitalDeposit  CapitalType = "deposit"
	CapitalWithdraw CapitalType = "withdraw"
	CapitalBuy      CapitalType = "buy"
	CapitalSell     CapitalType = "sell"
	CapitalProfit   CapitalType = "profit"
)

// Emotion is the self-assessed state recorded in a daily review
type Emotion string

const (
	EmotionExcellent Emotion = "excellent"
	EmotionGood      Emotion = "good"
	EmotionNeutral   Emotion = "neutral"
	EmotionBad       Emotion = "bad"
	EmotionTerrible  Emotion = "terrible"
)

// Valid reports whether e is a known emotion state
func (e Emotion) Valid() bool {
	switch e {
	case EmotionExcellent, EmotionGood, EmotionNeutral, EmotionBad, EmotionTerrible:
		return true
	}
	return false
}

// DateLayout is the calendar date format used throughout the ledger
const DateLayout = "2006-01-02"

// PriceRecord is one observed price of a position. Records outlive the
// position when it is closed and become its historical price data.
type PriceRecord struct {
	ID         uint    `gorm:"primaryKey" json:"-"`
	PositionID int64   `gorm:"index" json:"-"`
	Date       string  `json:"date"`
	Price      float64 `json:"price"`
	Profit     float64 `json:"profit"`
	Remark     string  `json:"remark"`
}

// Position is an open stock position
type Position struct {
	ID             int64         `gorm:"primaryKey;autoIncrement:false" json:"id"`
	StockName      string        `json:"stockName"`
	StockCode      string        `json:"stockCode,omitempty"`
	BuyPrice       float64       `json:"buyPrice"`
	Shares         float64       `json:"shares"`
	StopLossPrice  float64       `json:"stopLossPrice"`
	CurrentPrice   float64       `json:"currentPrice"`
	BuyDate        string        `json:"buyDate"`
	Remark         string        `json:"remark"`
	Strategy       StrategyTag   `json:"strategy,omitempty"`
	MaxLoss        float64       `json:"maxLoss"`
	LossPercentage float64       `json:"lossPercentage"`
	CurrentProfit  float64       `json:"currentProfit"`
	BuyRecordID    string        `json:"buyRecordId,omitempty"`
	PriceHistory   []PriceRecord `gorm:"foreignKey:PositionID" json:"priceHistory"`
}

// ClosedPosition is a position that has been sold
type ClosedPosition struct {
	ID          int64       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	StockName   string      `json:"stockName"`
	StockCode   string      `json:"stockCode,omitempty"`
	BuyPrice    float64     `json:"buyPrice"`
	Shares      float64     `json:"shares"`
	BuyDate     string      `json:"buyDate"`
	ClosedPrice float64     `json:"closedPrice"`
	ClosedAt    string      `json:"closedAt"`
	FinalProfit float64     `json:"finalProfit"`
	Remark      string      `json:"remark"`
	Strategy    StrategyTag `json:"strategy,omitempty"`
}

// CapitalRecord is a capital movement
type CapitalRecord struct {
	ID           string      `gorm:"primaryKey" json:"id"`
	Date         string      `gorm:"index" json:"date"`
	Amount       float64     `json:"amount"`
	Type         CapitalType `json:"type"`
	Timestamp    int64       `json:"timestamp,omitempty"`
	Remark       string      `json:"remark,omitempty"`
	StockName    string      `json:"stockName,omitempty"`
	StockCode    string      `json:"stockCode,omitempty"`
	RelatedBuyID string      `json:"relatedBuyId,omitempty"`
}

// DailyReview is the end-of-day journal entry. There is at most one per date.
type DailyReview struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Date           string    `gorm:"uniqueIndex" json:"date"`
	MarketOverview string    `json:"marketOverview"`
	PositionReview string    `json:"positionReview"`
	TradeAnalysis  string    `json:"tradeAnalysis"`
	EmotionState   Emotion   `json:"emotionState"`
	Lessons        string    `json:"lessons"`
	NextPlan       string    `json:"nextPlan"`
	TotalProfit    float64   `json:"totalProfit"`
	Tags           []string  `gorm:"serializer:json" json:"tags"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Setting is a ledger-wide key/value pair
type Setting struct {
	Name  string `gorm:"primaryKey"`
	Value string
}

func (Setting) TableName() string { return "ledger_settings" }

// InvestStats summarises open positions
type InvestStats struct {
	TotalInvestment         float64 `json:"totalInvestment"`
	TotalMaxLoss            float64 `json:"totalMaxLoss"`
	AverageLossPercentage   float64 `json:"averageLossPercentage"`
	CurrentProfitPercentage float64 `json:"currentProfitPercentage"`
	TotalProfit             float64 `json:"totalProfit"`
	RecordCount             int     `json:"recordCount"`
	InvestmentRatio         float64 `json:"investmentRatio"`
}

// ClosedStats summarises closed trades
type ClosedStats struct {
	ClosedTotal             int     `json:"closedTotal"`
	ProfitCount             int     `json:"profitCount"`
	LossCount               int     `json:"lossCount"`
	WinRate                 float64 `json:"winRate"`
	TotalProfitLoss         float64 `json:"totalProfitLoss"`
	AvgProfitLoss           float64 `json:"avgProfitLoss"`
	AvgProfitLossPercentage float64 `json:"avgProfitLossPercentage"`
	AvgHoldingDays          float64 `json:"avgHoldingDays"`
}

// ReviewStats summarises daily reviews
type ReviewStats struct {
	TotalReviews        int             `json:"totalReviews"`
	AvgDailyProfit      float64         `json:"avgDailyProfit"`
	BestDay             *DailyReview    `json:"bestDay"`
	WorstDay            *DailyReview    `json:"worstDay"`
	EmotionDistribution map[Emotion]int `json:"emotionDistribution"`
	ProfitableDays      int             `json:"profitableDays"`
	LossDays            int             `json:"lossDays"`
}
