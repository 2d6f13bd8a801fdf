package portfolio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/newthinker/stocktrack/internal/core"
)

// OpenSQLite opens (creating if needed) the ledger database at path and
// migrates its tables.
func OpenSQLite(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	if err := InitTables(db); err != nil {
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}
	return db, nil
}

// InitTables migrates every ledger table
func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&Position{},
		&PriceRecord{},
		&ClosedPosition{},
		&CapitalRecord{},
		&DailyReview{},
		&Setting{},
	)
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, core.ErrNotFound)
	}
	return err
}

// PositionRepo stores open positions. Price history is managed by PriceRepo.
type PositionRepo interface {
	List(ctx context.Context) ([]Position, error)
	Get(ctx context.Context, id int64) (Position, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, p Position) error
	Update(ctx context.Context, p Position) error
	Delete(ctx context.Context, id int64) error
}

type positionRepo struct {
	db *gorm.DB
}

func NewPositionRepo(db *gorm.DB) PositionRepo {
	return &positionRepo{db: db}
}

func orderedHistory(db *gorm.DB) *gorm.DB {
	return db.Order("date ASC, id ASC")
}

func (repo *positionRepo) List(ctx context.Context) ([]Position, error) {
	var positions []Position
	err := repo.db.WithContext(ctx).Preload("PriceHistory", orderedHistory).Order("id ASC").Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (repo *positionRepo) Get(ctx context.Context, id int64) (Position, error) {
	var p Position
	err := repo.db.WithContext(ctx).Preload("PriceHistory", orderedHistory).First(&p, "id = ?", id).Error
	if err != nil {
		return Position{}, notFound(err, "position", id)
	}
	return p, nil
}

func (repo *positionRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&Position{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (repo *positionRepo) Create(ctx context.Context, p Position) error {
	return repo.db.WithContext(ctx).Omit(clause.Associations).Create(&p).Error
}

func (repo *positionRepo) Update(ctx context.Context, p Position) error {
	return repo.db.WithContext(ctx).Omit(clause.Associations).Save(&p).Error
}

func (repo *positionRepo) Delete(ctx context.Context, id int64) error {
	return repo.db.WithContext(ctx).Delete(&Position{}, "id = ?", id).Error
}

// PriceRepo stores price records keyed by position ID
type PriceRepo interface {
	ListByPosition(ctx context.Context, positionID int64) ([]PriceRecord, error)
	Add(ctx context.Context, positionID int64, records ...PriceRecord) error
	DeleteByDate(ctx context.Context, positionID int64, date string) (int64, error)
	DeleteByPosition(ctx context.Context, positionID int64) error
}

type priceRepo struct {
	db *gorm.DB
}

func NewPriceRepo(db *gorm.DB) PriceRepo {
	return &priceRepo{db: db}
}

func (repo *priceRepo) ListByPosition(ctx context.Context, positionID int64) ([]PriceRecord, error) {
	var records []PriceRecord
	err := orderedHistory(repo.db.WithContext(ctx)).Where("position_id = ?", positionID).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (repo *priceRepo) Add(ctx context.Context, positionID int64, records ...PriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]PriceRecord, len(records))
	for i, r := range records {
		r.ID = 0
		r.PositionID = positionID
		rows[i] = r
	}
	return repo.db.WithContext(ctx).Create(&rows).Error
}

func (repo *priceRepo) DeleteByDate(ctx context.Context, positionID int64, date string) (int64, error) {
	res := repo.db.WithContext(ctx).Where("position_id = ? AND date = ?", positionID, date).Delete(&PriceRecord{})
	return res.RowsAffected, res.Error
}

func (repo *priceRepo) DeleteByPosition(ctx context.Context, positionID int64) error {
	return repo.db.WithContext(ctx).Where("position_id = ?", positionID).Delete(&PriceRecord{}).Error
}

// ClosedRepo stores closed trades
type ClosedRepo interface {
	List(ctx context.Context) ([]ClosedPosition, error)
	Get(ctx context.Context, id int64) (ClosedPosition, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, p ClosedPosition) error
	Delete(ctx context.Context, id int64) error
}

type closedRepo struct {
	db *gorm.DB
}

func NewClosedRepo(db *gorm.DB) ClosedRepo {
	return &closedRepo{db: db}
}

func (repo *closedRepo) List(ctx context.Context) ([]ClosedPosition, error) {
	var positions []ClosedPosition
	err := repo.db.WithContext(ctx).Order("closed_at DESC, id DESC").Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (repo *closedRepo) Get(ctx context.Context, id int64) (ClosedPosition, error) {
	var p ClosedPosition
	if err := repo.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return ClosedPosition{}, notFound(err, "closed position", id)
	}
	return p, nil
}

func (repo *closedRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&ClosedPosition{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (repo *closedRepo) Create(ctx context.Context, p ClosedPosition) error {
	return repo.db.WithContext(ctx).Create(&p).Error
}

func (repo *closedRepo) Delete(ctx context.Context, id int64) error {
	return repo.db.WithContext(ctx).Delete(&ClosedPosition{}, "id = ?", id).Error
}

// CapitalRepo stores capital movements
type CapitalRepo interface {
	List(ctx context.Context) ([]CapitalRecord, error)
	Create(ctx context.Context, r CapitalRecord) error
	Delete(ctx context.Context, id string) error
}

type capitalRepo struct {
	db *gorm.DB
}

func NewCapitalRepo(db *gorm.DB) CapitalRepo {
	return &capitalRepo{db: db}
}

func (repo *capitalRepo) List(ctx context.Context) ([]CapitalRecord, error) {
	var records []CapitalRecord
	err := repo.db.WithContext(ctx).Order("date ASC, timestamp ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (repo *capitalRepo) Create(ctx context.Context, r CapitalRecord) error {
	return repo.db.WithContext(ctx).Create(&r).Error
}

func (repo *capitalRepo) Delete(ctx context.Context, id string) error {
	res := repo.db.WithContext(ctx).Delete(&CapitalRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("capital record %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// ReviewRepo stores daily reviews
type ReviewRepo interface {
	List(ctx context.Context, limit int) ([]DailyReview, error)
	Get(ctx context.Context, id string) (DailyReview, error)
	GetByDate(ctx context.Context, date string) (DailyReview, error)
	Create(ctx context.Context, r DailyReview) error
	Update(ctx context.Context, r DailyReview) error
	Delete(ctx context.Context, id string) error
}

type reviewRepo struct {
	db *gorm.DB
}

func NewReviewRepo(db *gorm.DB) ReviewRepo {
	return &reviewRepo{db: db}
}

// List returns reviews newest first; limit <= 0 means all
func (repo *reviewRepo) List(ctx context.Context, limit int) ([]DailyReview, error) {
	var reviews []DailyReview
	q := repo.db.WithContext(ctx).Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (repo *reviewRepo) Get(ctx context.Context, id string) (DailyReview, error) {
	var r DailyReview
	if err := repo.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return DailyReview{}, notFound(err, "review", id)
	}
	return r, nil
}

func (repo *reviewRepo) GetByDate(ctx context.Context, date string) (DailyReview, error) {
	var r DailyReview
	if err := repo.db.WithContext(ctx).First(&r, "date = ?", date).Error; err != nil {
		return DailyReview{}, notFound(err, "review for", date)
	}
	return r, nil
}

func (repo *reviewRepo) Create(ctx context.Context, r DailyReview) error {
	return repo.db.WithContext(ctx).Create(&r).Error
}

func (repo *reviewRepo) Update(ctx context.Context, r DailyReview) error {
	return repo.db.WithContext(ctx).Save(&r).Error
}

func (repo *reviewRepo) Delete(ctx context.Context, id string) error {
	res := repo.db.WithContext(ctx).Delete(&DailyReview{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("review %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// SettingRepo stores ledger-wide values
type SettingRepo interface {
	GetFloat(ctx context.Context, key string) (float64, error)
	SetFloat(ctx context.Context, key string, v float64) error
}

type settingRepo struct {
	db *gorm.DB
}

func NewSettingRepo(db *gorm.DB) SettingRepo {
	return &settingRepo{db: db}
}

// GetFloat returns 0 for a missing key
func (repo *settingRepo) GetFloat(ctx context.Context, key string) (float64, error) {
	var s Setting
	err := repo.db.WithContext(ctx).First(&s, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s.Value, 64)
}

func (repo *settingRepo) SetFloat(ctx context.Context, key string, v float64) error {
	return repo.db.WithContext(ctx).Save(&Setting{Name: key, Value: strconv.FormatFloat(v, 'f', -1, 64)}).Error
}

// Repos bundles the ledger repositories over one connection or transaction
type Repos struct {
	Positions PositionRepo
	Prices    PriceRepo
	Closed    ClosedRepo
	Capital   CapitalRepo
	Reviews   ReviewRepo
	Settings  SettingRepo
}

// NewRepos builds every repository over db
func NewRepos(db *gorm.DB) Repos {
	return Repos{
		Positions: NewPositionRepo(db),
		Prices:    NewPriceRepo(db),
		Closed:    NewClosedRepo(db),
		Capital:   NewCapitalRepo(db),
		Reviews:   NewReviewRepo(db),
		Settings:  NewSettingRepo(db),
	}
}
