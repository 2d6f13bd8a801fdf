package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/newthinker/stocktrack/internal/core"
)

const initialCapitalKey = "initial_capital"

// Service applies ledger operations. Every operation that touches more than
// one collection runs in a single transaction.
type Service struct {
	db     *gorm.DB
	repos  Repos
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a ledger service over a migrated database
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     db,
		repos:  NewRepos(db),
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) tx(ctx context.Context, fn func(r Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}

func (s *Service) today() string {
	return s.now().Format(DateLayout)
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrInvalidInput, fmt.Errorf(format, args...))
}

func validDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// OpenPositionInput describes a new stock position
type OpenPositionInput struct {
	StockName     string      `json:"stockName"`
	StockCode     string      `json:"stockCode"`
	BuyPrice      float64     `json:"buyPrice"`
	Shares        float64     `json:"shares"`
	StopLossPrice float64     `json:"stopLossPrice"`
	CurrentPrice  float64     `json:"currentPrice"`
	BuyDate       string      `json:"buyDate"`
	Remark        string      `json:"remark"`
	Strategy      StrategyTag `json:"strategy"`
}

func (in *OpenPositionInput) validate() error {
	in.StockName = strings.TrimSpace(in.StockName)
	switch {
	case in.StockName == "":
		return invalid("stock name is required")
	case in.BuyPrice <= 0:
		return invalid("buy price must be positive")
	case in.Shares <= 0:
		return invalid("shares must be positive")
	case in.StopLossPrice < 0:
		return invalid("stop loss price must not be negative")
	case in.CurrentPrice <= 0:
		return invalid("current price must be positive")
	case in.BuyDate != "" && !validDate(in.BuyDate):
		return invalid("buy date %q is not YYYY-MM-DD", in.BuyDate)
	case !in.Strategy.Valid():
		return invalid("unknown strategy %q", in.Strategy)
	}
	return nil
}

// nextPositionID hands out millisecond timestamps, bumping past IDs already
// used by open or closed positions.
func (s *Service) nextPositionID(ctx context.Context, r Repos) (int64, error) {
	id := s.now().UnixMilli()
	for {
		open, err := r.Positions.Exists(ctx, id)
		if err != nil {
			return 0, err
		}
		closed, err := r.Closed.Exists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !open && !closed {
			return id, nil
		}
		id++
	}
}

// OpenPosition records a new position with an initial price record and
// books the purchase as a buy capital movement.
func (s *Service) OpenPosition(ctx context.Context, in OpenPositionInput) (*Position, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	today := now.Format(DateLayout)
	buyDate := in.BuyDate
	if buyDate == "" {
		buyDate = today
	}

	maxLoss, lossPct, profit := positionMetrics(in.BuyPrice, in.Shares, in.StopLossPrice, in.CurrentPrice)

	var pos Position
	err := s.tx(ctx, func(r Repos) error {
		id, err := s.nextPositionID(ctx, r)
		if err != nil {
			return err
		}

		buy := CapitalRecord{
			ID:        uuid.NewString(),
			Date:      buyDate,
			Amount:    cost(in.BuyPrice, in.Shares).InexactFloat64(),
			Type:      CapitalBuy,
			Timestamp: now.UnixMilli(),
			Remark:    fmt.Sprintf("buy %s - %g shares x %g", in.StockName, in.Shares, in.BuyPrice),
			StockName: in.StockName,
			StockCode: in.StockCode,
		}
		if err := r.Capital.Create(ctx, buy); err != nil {
			return err
		}

		pos = Position{
			ID:             id,
			StockName:      in.StockName,
			StockCode:      in.StockCode,
			BuyPrice:       in.BuyPrice,
			Shares:         in.Shares,
			StopLossPrice:  in.StopLossPrice,
			CurrentPrice:   in.CurrentPrice,
			BuyDate:        buyDate,
			Remark:         in.Remark,
			Strategy:       in.Strategy,
			MaxLoss:        maxLoss,
			LossPercentage: lossPct,
			CurrentProfit:  profit,
			BuyRecordID:    buy.ID,
			PriceHistory: []PriceRecord{
				{Date: today, Price: in.CurrentPrice, Profit: profit, Remark: "initial price"},
			},
		}
		if err := r.Positions.Create(ctx, pos); err != nil {
			return err
		}
		return r.Prices.Add(ctx, pos.ID, pos.PriceHistory...)
	})
	if err != nil {
		return nil, fmt.Errorf("opening position: %w", err)
	}

	s.logger.Info("position opened",
		zap.Int64("id", pos.ID),
		zap.String("stock", pos.StockName),
		zap.Float64("shares", pos.Shares),
	)
	return &pos, nil
}

// ListPositions returns open positions with their price history
func (s *Service) ListPositions(ctx context.Context) ([]Position, error) {
	return s.repos.Positions.List(ctx)
}

// GetPosition returns one open position
func (s *Service) GetPosition(ctx context.Context, id int64) (*Position, error) {
	p, err := s.repos.Positions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePositionInput holds the editable fields of a position
type UpdatePositionInput struct {
	StockName     string      `json:"stockName"`
	StockCode     string      `json:"stockCode"`
	BuyPrice      float64     `json:"buyPrice"`
	Shares        float64     `json:"shares"`
	StopLossPrice float64     `json:"stopLossPrice"`
	BuyDate       string      `json:"buyDate"`
	Remark        string      `json:"remark"`
	Strategy      StrategyTag `json:"strategy"`
}

// UpdatePosition edits a position and recomputes its derived figures at
// the current price.
func (s *Service) UpdatePosition(ctx context.Context, id int64, in UpdatePositionInput) (*Position, error) {
	var pos Position
	err := s.tx(ctx, func(r Repos) error {
		var err error
		pos, err = r.Positions.Get(ctx, id)
		if err != nil {
			return err
		}

		check := OpenPositionInput{
			StockName:     in.StockName,
			BuyPrice:      in.BuyPrice,
			Shares:        in.Shares,
			StopLossPrice: in.StopLossPrice,
			CurrentPrice:  pos.CurrentPrice,
			BuyDate:       in.BuyDate,
			Strategy:      in.Strategy,
		}
		if err := check.validate(); err != nil {
			return err
		}

		pos.StockName = check.StockName
		pos.StockCode = in.StockCode
		pos.BuyPrice = in.BuyPrice
		pos.Shares = in.Shares
		pos.StopLossPrice = in.StopLossPrice
		if in.BuyDate != "" {
			pos.BuyDate = in.BuyDate
		}
		pos.Remark = in.Remark
		pos.Strategy = in.Strategy
		pos.MaxLoss, pos.LossPercentage, pos.CurrentProfit =
			positionMetrics(pos.BuyPrice, pos.Shares, pos.StopLossPrice, pos.CurrentPrice)

		return r.Positions.Update(ctx, pos)
	})
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// DeletePosition removes an open position and refunds its cost as a deposit
func (s *Service) DeletePosition(ctx context.Context, id int64) error {
	now := s.now()
	return s.tx(ctx, func(r Repos) error {
		pos, err := r.Positions.Get(ctx, id)
		if err != nil {
			return err
		}

		refund := CapitalRecord{
			ID:        uuid.NewString(),
			Date:      now.Format(DateLayout),
			Amount:    cost(pos.BuyPrice, pos.Shares).InexactFloat64(),
			Type:      CapitalDeposit,
			Timestamp: now.UnixMilli(),
			Remark:    fmt.Sprintf("delete position %s - refund %g shares x %g", pos.StockName, pos.Shares, pos.BuyPrice),
			StockName: pos.StockName,
			StockCode: pos.StockCode,
		}
		if err := r.Capital.Create(ctx, refund); err != nil {
			return err
		}
		if err := r.Prices.DeleteByPosition(ctx, id); err != nil {
			return err
		}
		return r.Positions.Delete(ctx, id)
	})
}

// AddPriceRecord appends a price observation and makes it the current price
func (s *Service) AddPriceRecord(ctx context.Context, id int64, price float64, date, remark string) (*Position, error) {
	if price <= 0 {
		return nil, invalid("price must be positive")
	}
	if date == "" {
		date = s.today()
	}
	if !validDate(date) {
		return nil, invalid("date %q is not YYYY-MM-DD", date)
	}

	var pos Position
	err := s.tx(ctx, func(r Repos) error {
		var err error
		pos, err = r.Positions.Get(ctx, id)
		if err != nil {
			return err
		}

		rec := PriceRecord{Date: date, Price: price, Profit: unrealised(pos.BuyPrice, pos.Shares, price), Remark: remark}
		if err := r.Prices.Add(ctx, id, rec); err != nil {
			return err
		}

		pos.CurrentPrice = rec.Price
		pos.CurrentProfit = rec.Profit
		pos.PriceHistory = append(pos.PriceHistory, rec)
		return r.Positions.Update(ctx, pos)
	})
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// DeletePriceRecord removes the records on date. The last remaining record
// cannot be removed; the latest remaining record becomes current.
func (s *Service) DeletePriceRecord(ctx context.Context, id int64, date string) (*Position, error) {
	var pos Position
	err := s.tx(ctx, func(r Repos) error {
		var err error
		pos, err = r.Positions.Get(ctx, id)
		if err != nil {
			return err
		}
		if len(pos.PriceHistory) <= 1 {
			return invalid("position %d must keep at least one price record", id)
		}

		remaining := make([]PriceRecord, 0, len(pos.PriceHistory))
		for _, rec := range pos.PriceHistory {
			if rec.Date != date {
				remaining = append(remaining, rec)
			}
		}
		switch {
		case len(remaining) == len(pos.PriceHistory):
			return fmt.Errorf("price record %s of position %d: %w", date, id, core.ErrNotFound)
		case len(remaining) == 0:
			return invalid("position %d must keep at least one price record", id)
		}

		if _, err := r.Prices.DeleteByDate(ctx, id, date); err != nil {
			return err
		}

		// History is ordered by date then insertion, so the last is latest.
		latest := remaining[len(remaining)-1]
		pos.CurrentPrice = latest.Price
		pos.CurrentProfit = latest.Profit
		pos.PriceHistory = remaining
		return r.Positions.Update(ctx, pos)
	})
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// ClosePosition sells a position at its current price. The proceeds are
// booked as a sell and the price history is kept as historical data.
func (s *Service) ClosePosition(ctx context.Context, id int64) (*ClosedPosition, error) {
	now := s.now()
	today := now.Format(DateLayout)

	var closed ClosedPosition
	err := s.tx(ctx, func(r Repos) error {
		pos, err := r.Positions.Get(ctx, id)
		if err != nil {
			return err
		}

		closed = ClosedPosition{
			ID:          pos.ID,
			StockName:   pos.StockName,
			StockCode:   pos.StockCode,
			BuyPrice:    pos.BuyPrice,
			Shares:      pos.Shares,
			BuyDate:     pos.BuyDate,
			ClosedPrice: pos.CurrentPrice,
			ClosedAt:    today,
			FinalProfit: pos.CurrentProfit,
			Remark:      pos.Remark,
			Strategy:    pos.Strategy,
		}

		sell := CapitalRecord{
			ID:           uuid.NewString(),
			Date:         today,
			Amount:       cost(pos.CurrentPrice, pos.Shares).InexactFloat64(),
			Type:         CapitalSell,
			Timestamp:    now.UnixMilli(),
			Remark:       fmt.Sprintf("close %s - %g shares x %g", pos.StockName, pos.Shares, pos.CurrentPrice),
			StockName:    pos.StockName,
			StockCode:    pos.StockCode,
			RelatedBuyID: pos.BuyRecordID,
		}
		if err := r.Capital.Create(ctx, sell); err != nil {
			return err
		}
		if err := r.Closed.Create(ctx, closed); err != nil {
			return err
		}
		return r.Positions.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("position closed",
		zap.Int64("id", closed.ID),
		zap.String("stock", closed.StockName),
		zap.Float64("profit", closed.FinalProfit),
	)
	return &closed, nil
}

// ListClosed returns closed trades, most recently closed first
func (s *Service) ListClosed(ctx context.Context) ([]ClosedPosition, error) {
	return s.repos.Closed.List(ctx)
}

// ClosedPriceHistory returns the price history kept for a closed trade
func (s *Service) ClosedPriceHistory(ctx context.Context, id int64) ([]PriceRecord, error) {
	if _, err := s.repos.Closed.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repos.Prices.ListByPosition(ctx, id)
}

// DeleteClosedPosition removes a closed trade and reverses its proceeds
// with a withdraw record.
func (s *Service) DeleteClosedPosition(ctx context.Context, id int64) error {
	now := s.now()
	return s.tx(ctx, func(r Repos) error {
		closed, err := r.Closed.Get(ctx, id)
		if err != nil {
			return err
		}

		reversal := CapitalRecord{
			ID:        uuid.NewString(),
			Date:      now.Format(DateLayout),
			Amount:    cost(closed.ClosedPrice, closed.Shares).InexactFloat64(),
			Type:      CapitalWithdraw,
			Timestamp: now.UnixMilli(),
			Remark:    fmt.Sprintf("delete closed %s - reverse %g shares x %g", closed.StockName, closed.Shares, closed.ClosedPrice),
			StockName: closed.StockName,
			StockCode: closed.StockCode,
		}
		if err := r.Capital.Create(ctx, reversal); err != nil {
			return err
		}
		if err := r.Prices.DeleteByPosition(ctx, id); err != nil {
			return err
		}
		return r.Closed.Delete(ctx, id)
	})
}

// Deposit books a manual deposit
func (s *Service) Deposit(ctx context.Context, amount float64, remark string) (*CapitalRecord, error) {
	return s.manualCapital(ctx, CapitalDeposit, amount, remark)
}

// Withdraw books a manual withdrawal
func (s *Service) Withdraw(ctx context.Context, amount float64, remark string) (*CapitalRecord, error) {
	return s.manualCapital(ctx, CapitalWithdraw, amount, remark)
}

func (s *Service) manualCapital(ctx context.Context, typ CapitalType, amount float64, remark string) (*CapitalRecord, error) {
	if amount <= 0 {
		return nil, invalid("amount must be positive")
	}
	now := s.now()
	if remark == "" {
		remark = fmt.Sprintf("manual %s %g", typ, amount)
	}
	rec := CapitalRecord{
		ID:        uuid.NewString(),
		Date:      now.Format(DateLayout),
		Amount:    amount,
		Type:      typ,
		Timestamp: now.UnixMilli(),
		Remark:    remark,
	}
	if err := s.repos.Capital.Create(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCapital returns capital records ordered by date
func (s *Service) ListCapital(ctx context.Context) ([]CapitalRecord, error) {
	return s.repos.Capital.List(ctx)
}

// DeleteCapitalRecord removes a capital record without compensation
func (s *Service) DeleteCapitalRecord(ctx context.Context, id string) error {
	return s.repos.Capital.Delete(ctx, id)
}

// CurrentCapital is the cash balance implied by the capital records
func (s *Service) CurrentCapital(ctx context.Context) (float64, error) {
	records, err := s.repos.Capital.List(ctx)
	if err != nil {
		return 0, err
	}
	return capitalBalance(records), nil
}

// TotalInvestment is the cost basis of all open positions
func (s *Service) TotalInvestment(ctx context.Context) (float64, error) {
	positions, err := s.repos.Positions.List(ctx)
	if err != nil {
		return 0, err
	}
	stats := computeInvestStats(positions, 0)
	return stats.TotalInvestment, nil
}

// InitialCapital returns the configured starting capital, 0 when unset
func (s *Service) InitialCapital(ctx context.Context) (float64, error) {
	return s.repos.Settings.GetFloat(ctx, initialCapitalKey)
}

// SetInitialCapital stores the starting capital
func (s *Service) SetInitialCapital(ctx context.Context, amount float64) error {
	if amount < 0 {
		return invalid("initial capital must not be negative")
	}
	return s.repos.Settings.SetFloat(ctx, initialCapitalKey, amount)
}

// InvestStats summarises open positions against the capital balance
func (s *Service) InvestStats(ctx context.Context) (InvestStats, error) {
	positions, err := s.repos.Positions.List(ctx)
	if err != nil {
		return InvestStats{}, err
	}
	capital, err := s.CurrentCapital(ctx)
	if err != nil {
		return InvestStats{}, err
	}
	return computeInvestStats(positions, capital), nil
}

// ClosedStats summarises closed trades
func (s *Service) ClosedStats(ctx context.Context) (ClosedStats, error) {
	closed, err := s.repos.Closed.List(ctx)
	if err != nil {
		return ClosedStats{}, err
	}
	return computeClosedStats(closed), nil
}

// DailyProfit is the profit attributable to date
func (s *Service) DailyProfit(ctx context.Context, date string) (float64, error) {
	if !validDate(date) {
		return 0, invalid("date %q is not YYYY-MM-DD", date)
	}
	positions, err := s.repos.Positions.List(ctx)
	if err != nil {
		return 0, err
	}
	closed, err := s.repos.Closed.List(ctx)
	if err != nil {
		return 0, err
	}
	return dailyProfit(positions, closed, date), nil
}

// Reset deletes every ledger record
func (s *Service) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&PriceRecord{}, &Position{}, &ClosedPosition{}, &CapitalRecord{}, &DailyReview{}, &Setting{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func sortCapital(records []CapitalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].Timestamp < records[j].Timestamp
	})
}
