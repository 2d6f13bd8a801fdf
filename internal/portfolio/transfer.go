package portfolio

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/stocktrack/internal/core"
)

// SnapshotVersion is written into every export
const SnapshotVersion = "2.1"

// LegacyCapital is the pre-2.0 capital history entry. A negative amount is
// a withdrawal.
type LegacyCapital struct {
	Date      string  `json:"date"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
	Remark    string  `json:"remark,omitempty"`
}

// Snapshot is the portable JSON form of the whole ledger.
// HistoricalPriceData holds the price history of closed trades keyed by
// trade ID.
type Snapshot struct {
	CurrentPositions    []Position               `json:"currentPositions"`
	ClosedPositions     []ClosedPosition         `json:"closedPositions"`
	CapitalRecords      []CapitalRecord          `json:"capitalRecords,omitempty"`
	CapitalHistory      []LegacyCapital          `json:"capitalHistory,omitempty"`
	InitialCapital      float64                  `json:"initialCapital"`
	HistoricalPriceData map[string][]PriceRecord `json:"historicalPriceData"`
	DailyReviews        []DailyReview            `json:"dailyReviews"`
	ExportTime          string                   `json:"exportTime,omitempty"`
	Version             string                   `json:"version,omitempty"`
}

// ImportResult reports what an import added
type ImportResult struct {
	Imported          int    `json:"imported"`
	InitialCapitalSet bool   `json:"initialCapitalSet"`
	Message           string `json:"message"`
}

// Export captures the ledger as a snapshot
func (s *Service) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		HistoricalPriceData: map[string][]PriceRecord{},
		ExportTime:          s.now().UTC().Format(time.RFC3339),
		Version:             SnapshotVersion,
	}

	var err error
	if snap.CurrentPositions, err = s.repos.Positions.List(ctx); err != nil {
		return nil, err
	}
	if snap.ClosedPositions, err = s.repos.Closed.List(ctx); err != nil {
		return nil, err
	}
	if snap.CapitalRecords, err = s.repos.Capital.List(ctx); err != nil {
		return nil, err
	}
	if snap.InitialCapital, err = s.InitialCapital(ctx); err != nil {
		return nil, err
	}
	if snap.DailyReviews, err = s.repos.Reviews.List(ctx, 0); err != nil {
		return nil, err
	}

	for _, c := range snap.ClosedPositions {
		history, err := s.repos.Prices.ListByPosition(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if len(history) > 0 {
			snap.HistoricalPriceData[strconv.FormatInt(c.ID, 10)] = history
		}
	}
	return snap, nil
}

// Import merges a snapshot into the ledger. Existing records win: positions
// and trades match by ID, capital records by ID or timestamp, reviews by ID
// or date, historical prices by trade ID. The initial capital is only taken
// when none is set. The whole import is one transaction.
func (s *Service) Import(ctx context.Context, snap *Snapshot) (*ImportResult, error) {
	if snap == nil {
		return nil, invalid("empty snapshot")
	}

	result := &ImportResult{}
	err := s.tx(ctx, func(r Repos) error {
		n, err := importPositions(ctx, r, snap.CurrentPositions)
		if err != nil {
			return err
		}
		result.Imported += n

		if n, err = importClosed(ctx, r, snap.ClosedPositions); err != nil {
			return err
		}
		result.Imported += n

		if n, err = importHistory(ctx, r, snap.HistoricalPriceData); err != nil {
			return err
		}
		result.Imported += n

		if len(snap.CapitalRecords) > 0 {
			n, err = importCapital(ctx, r, snap.CapitalRecords)
		} else {
			n, err = importCapital(ctx, r, convertLegacy(snap.CapitalHistory))
		}
		if err != nil {
			return err
		}
		result.Imported += n

		if n, err = importReviews(ctx, r, snap.DailyReviews); err != nil {
			return err
		}
		result.Imported += n

		if snap.InitialCapital > 0 {
			current, err := r.Settings.GetFloat(ctx, initialCapitalKey)
			if err != nil {
				return err
			}
			if current == 0 {
				if err := r.Settings.SetFloat(ctx, initialCapitalKey, snap.InitialCapital); err != nil {
					return err
				}
				result.InitialCapitalSet = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importing snapshot: %w", err)
	}

	result.Message = fmt.Sprintf("imported %d records", result.Imported)
	if result.InitialCapitalSet {
		result.Message += " and set initial capital"
	}
	s.logger.Info("ledger imported",
		zap.Int("imported", result.Imported),
		zap.Bool("initial_capital_set", result.InitialCapitalSet),
	)
	return result, nil
}

func importPositions(ctx context.Context, r Repos, positions []Position) (int, error) {
	n := 0
	for _, p := range positions {
		exists, err := r.Positions.Exists(ctx, p.ID)
		if err != nil {
			return n, err
		}
		if exists {
			continue
		}
		if err := r.Positions.Create(ctx, p); err != nil {
			return n, err
		}
		if err := r.Prices.Add(ctx, p.ID, p.PriceHistory...); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func importClosed(ctx context.Context, r Repos, closed []ClosedPosition) (int, error) {
	n := 0
	for _, c := range closed {
		exists, err := r.Closed.Exists(ctx, c.ID)
		if err != nil {
			return n, err
		}
		if exists {
			continue
		}
		if err := r.Closed.Create(ctx, c); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func importHistory(ctx context.Context, r Repos, history map[string][]PriceRecord) (int, error) {
	n := 0
	for key, records := range history {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return n, core.WrapError(core.ErrInvalidInput, fmt.Errorf("historical price key %q: %w", key, err))
		}
		existing, err := r.Prices.ListByPosition(ctx, id)
		if err != nil {
			return n, err
		}
		if len(existing) > 0 {
			continue
		}
		if err := r.Prices.Add(ctx, id, records...); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func importCapital(ctx context.Context, r Repos, records []CapitalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	existing, err := r.Capital.List(ctx)
	if err != nil {
		return 0, err
	}
	ids := make(map[string]bool, len(existing))
	stamps := make(map[int64]bool, len(existing))
	for _, rec := range existing {
		ids[rec.ID] = true
		if rec.Timestamp != 0 {
			stamps[rec.Timestamp] = true
		}
	}

	n := 0
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if ids[rec.ID] || (rec.Timestamp != 0 && stamps[rec.Timestamp]) {
			continue
		}
		if err := r.Capital.Create(ctx, rec); err != nil {
			return n, err
		}
		ids[rec.ID] = true
		if rec.Timestamp != 0 {
			stamps[rec.Timestamp] = true
		}
		n++
	}
	return n, nil
}

func convertLegacy(history []LegacyCapital) []CapitalRecord {
	records := make([]CapitalRecord, 0, len(history))
	for _, h := range history {
		rec := CapitalRecord{
			Date:      h.Date,
			Amount:    h.Amount,
			Type:      CapitalDeposit,
			Timestamp: h.Timestamp,
			Remark:    h.Remark,
		}
		if h.Amount < 0 {
			rec.Type = CapitalWithdraw
			rec.Amount = -h.Amount
		}
		records = append(records, rec)
	}
	sortCapital(records)
	return records
}

func importReviews(ctx context.Context, r Repos, reviews []DailyReview) (int, error) {
	n := 0
	for _, rev := range reviews {
		if rev.ID != "" {
			if _, err := r.Reviews.Get(ctx, rev.ID); err == nil {
				continue
			} else if !isNotFound(err) {
				return n, err
			}
		} else {
			rev.ID = uuid.NewString()
		}
		if _, err := r.Reviews.GetByDate(ctx, rev.Date); err == nil {
			continue
		} else if !isNotFound(err) {
			return n, err
		}
		if err := r.Reviews.Create(ctx, rev); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
