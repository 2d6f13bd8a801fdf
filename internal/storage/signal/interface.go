package signal

import (
	"context"
	"time"

	"github.com/newthinker/stocktrack/internal/core"
)

// Store defines the interface for alert history.
type Store interface {
	// Save records an alert, assigning an ID when it has none.
	Save(ctx context.Context, alert core.Alert) error

	// GetByID retrieves an alert by its ID.
	GetByID(ctx context.Context, id string) (*core.Alert, error)

	// List retrieves alerts matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]core.Alert, error)

	// Count returns the number of alerts matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing alerts.
type ListFilter struct {
	Symbol    string
	Strategy  string
	Timeframe string
	Direction core.Direction
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}
