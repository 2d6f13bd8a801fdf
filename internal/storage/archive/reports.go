package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/stocktrack/internal/core"
)

const reportsRoot = "reports"

// Reports writes scan reports as JSON documents partitioned by UTC day.
type Reports struct {
	storage Storage
}

// NewReports wraps storage for scan report archival
func NewReports(storage Storage) *Reports {
	return &Reports{storage: storage}
}

// ReportPath returns reports/<yyyy>/<mm>/<dd>/<strategy>-<unixms>.json
func ReportPath(strategy string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%s/%s-%d.json", reportsRoot, at.Format("2006/01/02"), strategy, at.UnixMilli())
}

// Save archives report under its day partition and returns the path.
func (r *Reports) Save(ctx context.Context, strategy string, at time.Time, report any) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	path := ReportPath(strategy, at)
	if err := r.storage.Write(ctx, path, data); err != nil {
		return "", fmt.Errorf("archiving report: %w", err)
	}
	return path, nil
}

// ListDay returns the report paths archived on the given UTC day.
func (r *Reports) ListDay(ctx context.Context, day time.Time) ([]string, error) {
	return r.storage.List(ctx, reportsRoot+"/"+day.UTC().Format("2006/01/02"))
}

// Load decodes the report at path into v.
func (r *Reports) Load(ctx context.Context, path string, v any) error {
	if !strings.HasPrefix(path, reportsRoot+"/") {
		return fmt.Errorf("report path %q: %w", path, core.ErrInvalidInput)
	}
	data, err := r.storage.Read(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
