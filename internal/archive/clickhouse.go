package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/model"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    CapturedAt       DateTime,
    SrcIP            String,
    DstIP            String,
    SrcPort          UInt16,
    DstPort          UInt16,
    Protocol         String,
    StartTime        Float64,
    EndTime          Float64,
    Duration         Float64,
    PacketCount      UInt64,
    TotalBytes       UInt64,
    AvgPacketSize    Float64,
    BytesPerSecond   Float64,
    PacketsPerSecond Float64,
    IATMean          Float64,
    IATStd           Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(CapturedAt)
ORDER BY (CapturedAt, SrcIP);
`

// ClickHouseWriter archives every closed flow, so datasets can be rebuilt or
// re-labelled without recapturing traffic. It implements model.FlowWriter.
type ClickHouseWriter struct {
	conn  driver.Conn
	table string
}

// NewClickHouseWriter connects and ensures the flow table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), fmt.Sprintf(createTableStatement, cfg.Table)); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn, table: cfg.Table}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// WriteFlows inserts one batch of flow records.
func (w *ClickHouseWriter) WriteFlows(ctx context.Context, flows []model.FlowRecord) error {
	if len(flows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	capturedAt := time.Now()
	for _, flow := range flows {
		err = batch.Append(
			capturedAt,
			flow.SrcIP,
			flow.DstIP,
			flow.SrcPort,
			flow.DstPort,
			flow.Protocol.String(),
			flow.StartTime,
			flow.EndTime,
			flow.Duration,
			flow.PacketCount,
			flow.TotalBytes,
			flow.AvgPacketSize,
			flow.BytesPerSecond,
			flow.PacketsPerSecond,
			flow.IATMean,
			flow.IATStd,
		)
		if err != nil {
			return fmt.Errorf("failed to append flow to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Printf("Archived %d flows to ClickHouse table '%s'", len(flows), w.table)
	return nil
}

// Close releases the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
