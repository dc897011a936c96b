package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenpilot/internal/models"
	"tokenpilot/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertSignal(ctx context.Context, item *models.Signal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Signal{})
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	if params.Token != nil && strings.TrimSpace(*params.Token) != "" {
		query = query.Where("token_address = ?", strings.TrimSpace(*params.Token))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("emitted_at >= ?", *params.Since)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "emitted_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Signal
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertToken(ctx context.Context, item *models.Token) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Address) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"symbol", "name", "price_usd", "change_24h_pct",
			"volume_24h_usd", "liquidity_usd", "pair_created_at", "last_seen_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetTokenByAddress(ctx context.Context, address string) (*models.Token, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}
	var item models.Token
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertHolding(ctx context.Context, item *models.Holding) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.TokenAddress) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token_address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"token_symbol", "quantity", "avg_entry_price", "current_price",
			"cost_basis", "unrealized_pnl", "unrealized_pnl_pct",
			"status", "exit_reason", "opened_at", "closed_at", "updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListOpenHoldings(ctx context.Context) ([]models.Holding, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Holding
	err := s.db.WithContext(ctx).
		Where("status = ?", "open").
		Order("opened_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertTrade(ctx context.Context, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Trade{})
	if params.Token != nil && strings.TrimSpace(*params.Token) != "" {
		query = query.Where("token_address = ?", strings.TrimSpace(*params.Token))
	}
	if params.Side != nil && strings.TrimSpace(*params.Side) != "" {
		query = query.Where("side = ?", strings.ToUpper(strings.TrimSpace(*params.Side)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("executed_at >= ?", *params.Since)
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Trade
	err := query.Order("executed_at desc").Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "snapshot_at"}},
		UpdateAll: true,
	}).Create(item).Error
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, since time.Time, limit int) ([]models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PortfolioSnapshot{})
	if !since.IsZero() {
		query = query.Where("snapshot_at >= ?", since)
	}
	var items []models.PortfolioSnapshot
	err := query.Order("snapshot_at desc").Limit(normalizeLimit(limit, 200)).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertTrackedWallet(ctx context.Context, item *models.TrackedWallet) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Address) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"label", "success_rate_7d", "tx_count_7d", "enabled",
			"last_evaluated_at", "updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListTrackedWallets(ctx context.Context, enabledOnly bool) ([]models.TrackedWallet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TrackedWallet{})
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}
	var items []models.TrackedWallet
	if err := query.Order("created_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	col := strings.TrimSpace(orderBy)
	if col == "" {
		col = fallback
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(col + " " + dir)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
