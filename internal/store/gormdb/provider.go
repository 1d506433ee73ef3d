package gormdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/shaibs3/PriceTracker/internal/clock"
	"github.com/shaibs3/PriceTracker/internal/db"
	"github.com/shaibs3/PriceTracker/internal/store/shared"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Provider is a gorm backed store, used for the local SQLite file and for Postgres.
type Provider struct {
	gormDB *gorm.DB
	logger *zap.Logger
	clock  clock.Clock
}

// NewSQLiteProvider opens (or creates) the SQLite file named by extra_details.path.
func NewSQLiteProvider(config shared.DbProviderConfig, logger *zap.Logger, clk clock.Clock) (*Provider, error) {
	sqliteLogger := logger.Named("sqlite")

	path := config.StringDetail("path")
	if path == "" {
		path = shared.DefaultSQLitePath
	}
	sqliteLogger.Info("initializing SQLite provider", zap.String("path", path))

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	gormDB, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// one connection keeps a single writer on the file
	sqlDB, err := gormDB.DB()
	if err != nil {
		closeGorm(gormDB)
		return nil, fmt.Errorf("failed to access SQLite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return newProvider(gormDB, sqliteLogger, clk)
}

// NewPostgresProvider connects to Postgres using extra_details.conn_str.
func NewPostgresProvider(config shared.DbProviderConfig, logger *zap.Logger, clk clock.Clock) (*Provider, error) {
	pgLogger := logger.Named("postgres")

	connStr := config.StringDetail("conn_str")
	if connStr == "" {
		return nil, fmt.Errorf("conn_str is required for Postgres provider")
	}
	pgLogger.Info("initializing Postgres provider")

	gormDB, err := gorm.Open(postgres.Open(connStr), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}
	return newProvider(gormDB, pgLogger, clk)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
}

func newProvider(gormDB *gorm.DB, logger *zap.Logger, clk clock.Clock) (*Provider, error) {
	if err := gormDB.AutoMigrate(&GormProduct{}, &GormPriceRecord{}); err != nil {
		closeGorm(gormDB)
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}
	logger.Info("provider initialized successfully")
	return &Provider{gormDB: gormDB, logger: logger, clock: clk}, nil
}

// closeGorm releases the pool behind a handle that will not be returned.
func closeGorm(gormDB *gorm.DB) {
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (p *Provider) CreateProduct(ctx context.Context, url, priceSelector, availabilitySelector string, threshold *float64) (int64, error) {
	product := GormProduct{
		URL:                  url,
		PriceSelector:        priceSelector,
		AvailabilitySelector: availabilitySelector,
		AlertThreshold:       threshold,
	}
	if err := p.gormDB.WithContext(ctx).Create(&product).Error; err != nil {
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	return int64(product.ID), nil
}

func (p *Provider) ListProducts(ctx context.Context) ([]db.Product, error) {
	var rows []GormProduct
	if err := p.gormDB.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products := make([]db.Product, len(rows))
	for i, row := range rows {
		products[i] = row.toProduct()
	}
	return products, nil
}

func (p *Provider) AppendRecord(ctx context.Context, productID int64, price *float64, availability *string) error {
	err := p.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product GormProduct
		if err := tx.Select("id").First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", productID, shared.ErrProductNotFound)
			}
			return err
		}
		return tx.Create(&GormPriceRecord{
			ProductID:    product.ID,
			Price:        price,
			Availability: availability,
			CapturedAt:   p.clock.Now().UTC(),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to append price record: %w", err)
	}
	return nil
}

func (p *Provider) LatestRecord(ctx context.Context, productID int64) (*db.PriceRecord, error) {
	records, err := p.History(ctx, productID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (p *Provider) History(ctx context.Context, productID int64, limit int) ([]db.PriceRecord, error) {
	var rows []GormPriceRecord
	err := p.gormDB.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("captured_at DESC").
		Order("id DESC").
		Limit(shared.HistoryLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	records := make([]db.PriceRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}

func (p *Provider) Close() error {
	sqlDB, err := p.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
