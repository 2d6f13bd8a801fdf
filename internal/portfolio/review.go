package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/newthinker/stocktrack/internal/core"
)

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

// ReviewInput holds the user-written fields of a daily review
type ReviewInput struct {
	Date           string   `json:"date"`
	MarketOverview string   `json:"marketOverview"`
	PositionReview string   `json:"positionReview"`
	TradeAnalysis  string   `json:"tradeAnalysis"`
	EmotionState   Emotion  `json:"emotionState"`
	Lessons        string   `json:"lessons"`
	NextPlan       string   `json:"nextPlan"`
	TotalProfit    *float64 `json:"totalProfit,omitempty"`
	Tags           []string `json:"tags"`
}

func (in ReviewInput) validate() error {
	if !validDate(in.Date) {
		return invalid("review date %q is not YYYY-MM-DD", in.Date)
	}
	if !in.EmotionState.Valid() {
		return invalid("unknown emotion state %q", in.EmotionState)
	}
	return nil
}

// CreateReview stores the review for a date. When no total profit is given
// the daily profit of that date is used.
func (s *Service) CreateReview(ctx context.Context, in ReviewInput) (*DailyReview, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	_, err := s.repos.Reviews.GetByDate(ctx, in.Date)
	switch {
	case err == nil:
		return nil, invalid("a review for %s already exists", in.Date)
	case !isNotFound(err):
		return nil, err
	}

	profit, err := s.reviewProfit(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	review := DailyReview{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyReview(&review, in, profit)

	if err := s.repos.Reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("creating review: %w", err)
	}
	return &review, nil
}

// UpdateReview rewrites a review. Moving it onto a date that already has a
// review is rejected.
func (s *Service) UpdateReview(ctx context.Context, id string, in ReviewInput) (*DailyReview, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	review, err := s.repos.Reviews.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Date != review.Date {
		other, err := s.repos.Reviews.GetByDate(ctx, in.Date)
		switch {
		case err == nil && other.ID != id:
			return nil, invalid("a review for %s already exists", in.Date)
		case err != nil && !isNotFound(err):
			return nil, err
		}
	}

	profit := review.TotalProfit
	if in.TotalProfit != nil {
		profit = *in.TotalProfit
	}
	applyReview(&review, in, profit)
	review.UpdatedAt = s.now()

	if err := s.repos.Reviews.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("updating review: %w", err)
	}
	return &review, nil
}

func (s *Service) reviewProfit(ctx context.Context, in ReviewInput) (float64, error) {
	if in.TotalProfit != nil {
		return *in.TotalProfit, nil
	}
	return s.DailyProfit(ctx, in.Date)
}

func applyReview(r *DailyReview, in ReviewInput, profit float64) {
	r.Date = in.Date
	r.MarketOverview = in.MarketOverview
	r.PositionReview = in.PositionReview
	r.TradeAnalysis = in.TradeAnalysis
	r.EmotionState = in.EmotionState
	r.Lessons = in.Lessons
	r.NextPlan = in.NextPlan
	r.TotalProfit = profit
	r.Tags = in.Tags
	if r.Tags == nil {
		r.Tags = []string{}
	}
}

// DeleteReview removes a review
func (s *Service) DeleteReview(ctx context.Context, id string) error {
	return s.repos.Reviews.Delete(ctx, id)
}

// GetReview returns a review by ID
func (s *Service) GetReview(ctx context.Context, id string) (*DailyReview, error) {
	r, err := s.repos.Reviews.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ReviewByDate returns the review written for date
func (s *Service) ReviewByDate(ctx context.Context, date string) (*DailyReview, error) {
	r, err := s.repos.Reviews.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReviews returns reviews newest first; limit <= 0 returns all
func (s *Service) ListReviews(ctx context.Context, limit int) ([]DailyReview, error) {
	return s.repos.Reviews.List(ctx, limit)
}

// ReviewStats summarises every review
func (s *Service) ReviewStats(ctx context.Context) (ReviewStats, error) {
	reviews, err := s.repos.Reviews.List(ctx, 0)
	if err != nil {
		return ReviewStats{}, err
	}
	return computeReviewStats(reviews), nil
}
