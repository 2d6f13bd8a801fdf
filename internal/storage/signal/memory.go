package signal

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/newthinker/stocktrack/internal/core"
)

// MemoryStore keeps the most recent alerts in memory.
type MemoryStore struct {
	alerts  []core.Alert
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		alerts:  make([]core.Alert, 0, maxSize),
		maxSize: maxSize,
	}
}

// Save adds an alert to the store.
func (m *MemoryStore) Save(ctx context.Context, alert core.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	m.alerts = append(m.alerts, alert)

	// Trim if over capacity (remove oldest)
	if len(m.alerts) > m.maxSize {
		m.alerts = m.alerts[len(m.alerts)-m.maxSize:]
	}

	return nil
}

// GetByID retrieves an alert by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id {
			alert := m.alerts[i]
			return &alert, nil
		}
	}
	return nil, fmt.Errorf("alert %s: %w", id, core.ErrNotFound)
}

// List returns alerts matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []core.Alert{}
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if m.matches(m.alerts[i], filter) {
			result = append(result, m.alerts[i])
		}
	}

	if filter.Offset >= len(result) {
		return []core.Alert{}, nil
	}
	if filter.Offset > 0 {
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching alerts.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, alert := range m.alerts {
		if m.matches(alert, filter) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) matches(alert core.Alert, filter ListFilter) bool {
	if filter.Symbol != "" && alert.Symbol != filter.Symbol {
		return false
	}
	if filter.Strategy != "" && alert.Strategy != filter.Strategy {
		return false
	}
	if filter.Timeframe != "" && alert.Timeframe != filter.Timeframe {
		return false
	}
	if filter.Direction != core.DirectionNone && alert.Direction != filter.Direction {
		return false
	}
	if !filter.From.IsZero() && alert.SentAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && alert.SentAt.After(filter.To) {
		return false
	}
	return true
}
