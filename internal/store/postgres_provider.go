package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shaibs3/PriceTracker/internal/clock"
	"github.com/shaibs3/PriceTracker/internal/db"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// PostgresProvider talks to Postgres through database/sql and lib/pq. Every
// call goes through a circuit breaker; failures are returned, never retried.
type PostgresProvider struct {
	db     *sql.DB
	logger *zap.Logger
	cb     *gobreaker.CircuitBreaker
	clock  clock.Clock
}

func NewPostgresProvider(config DbProviderConfig, logger *zap.Logger, clk clock.Clock) (*PostgresProvider, error) {
	pgLogger := logger.Named("postgres_sql")

	connStr := config.StringDetail("conn_str")
	if connStr == "" {
		return nil, fmt.Errorf("conn_str is required for Postgres provider")
	}
	pgLogger.Info("initializing Postgres provider")

	dbConn, err := sql.Open("postgres", connStr)
	if err != nil {
		pgLogger.Error("failed to open Postgres connection", zap.Error(err))
		return nil, fmt.Errorf("failed to open Postgres connection: %w", err)
	}

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		pgLogger.Error("failed to ping Postgres", zap.Error(err))
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	// Automatically create tables if they do not exist
	if _, err := dbConn.Exec(db.Schema); err != nil {
		_ = dbConn.Close()
		pgLogger.Error("failed to create initial tables", zap.Error(err))
		return nil, fmt.Errorf("failed to create initial tables: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PostgresDB",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			pgLogger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	pgLogger.Info("Postgres provider initialized successfully")
	return &PostgresProvider{
		db:     dbConn,
		logger: pgLogger,
		cb:     cb,
		clock:  clk,
	}, nil
}

func (p *PostgresProvider) CreateProduct(ctx context.Context, url, priceSelector, availabilitySelector string, threshold *float64) (int64, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		return db.InsertProduct(ctx, p.db, url, priceSelector, availabilitySelector, threshold)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	return res.(int64), nil
}

func (p *PostgresProvider) ListProducts(ctx context.Context) ([]db.Product, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		return db.ListProducts(ctx, p.db)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return res.([]db.Product), nil
}

func (p *PostgresProvider) AppendRecord(ctx context.Context, productID int64, price *float64, availability *string) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		exists, err := db.ProductExists(ctx, p.db, productID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
		}
		return nil, db.InsertPriceRecord(ctx, p.db, productID, price, availability, p.clock.Now().UTC())
	})
	if err != nil {
		return fmt.Errorf("failed to append price record: %w", err)
	}
	return nil
}

func (p *PostgresProvider) LatestRecord(ctx context.Context, productID int64) (*db.PriceRecord, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		return db.LatestPriceRecord(ctx, p.db, productID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest record: %w", err)
	}
	return res.(*db.PriceRecord), nil
}

func (p *PostgresProvider) History(ctx context.Context, productID int64, limit int) ([]db.PriceRecord, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		return db.PriceHistory(ctx, p.db, productID, HistoryLimit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	return res.([]db.PriceRecord), nil
}

func (p *PostgresProvider) Close() error {
	return p.db.Close()
}
