package history

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/reservelabs/reserve-gateway/internal/models"
)

// ClickHouseConfig holds connection settings for the history store.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore persists conversion events to the conversions table.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

// NewClickHouseStore opens and pings a ClickHouse connection.
func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig, logger *logrus.Logger) (*ClickHouseStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")
	return &ClickHouseStore{conn: conn, logger: logger}, nil
}

// EnsureSchema creates the conversions table if it does not exist.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS conversions (
			id         String,
			timestamp  DateTime64(3, 'UTC'),
			account    String,
			kind       LowCardinality(String),
			amount_in  UInt256,
			amount_out UInt256,
			fee        UInt256,
			block      UInt64
		) ENGINE = MergeTree()
		ORDER BY (timestamp, account)
	`
	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create conversions table: %w", err)
	}
	return nil
}

// InsertConversion writes one event to the conversions table.
func (c *ClickHouseStore) InsertConversion(ctx context.Context, ev *models.ConversionEvent) error {
	query := `
		INSERT INTO conversions (
			id, timestamp, account, kind, amount_in, amount_out, fee, block
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		ev.ID,
		ev.Timestamp,
		ev.Account,
		ev.Kind,
		ev.AmountIn,
		ev.AmountOut,
		ev.Fee,
		ev.Block,
	)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

// Ping checks the ClickHouse connection.
func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection.
func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
