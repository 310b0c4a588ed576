package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"NetGauntlet/internal/config"
)

// SourceSummary aggregates the archived flows of one source address.
type SourceSummary struct {
	SrcIP        string
	FlowCount    uint64
	TotalPackets uint64
	TotalBytes   uint64
	AvgPPS       float64
}

// FlowLifecycle describes everything the archive knows about one 5-tuple.
type FlowLifecycle struct {
	FirstSeen    time.Time
	LastSeen     time.Time
	Segments     uint64 // archived flow records for the tuple
	TotalPackets uint64
	TotalBytes   uint64
}

// Filter narrows a query to a time window and an optional destination.
type Filter struct {
	Since time.Time // zero means unbounded
	Until time.Time
	DstIP string
}

// Querier reads the ClickHouse flow archive.
type Querier interface {
	TopSources(ctx context.Context, f Filter, limit int) ([]SourceSummary, error)
	TraceFlow(ctx context.Context, keys map[string]string, f Filter) (*FlowLifecycle, error)
	Close() error
}

type clickhouseQuerier struct {
	conn  driver.Conn
	table string
}

// NewClickHouseQuerier connects to the flow archive.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn, table: cfg.Table}, nil
}

func (f Filter) clauses() ([]string, []interface{}) {
	var where []string
	args := []interface{}{}

	if !f.Since.IsZero() {
		where = append(where, "CapturedAt >= ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		where = append(where, "CapturedAt <= ?")
		args = append(args, f.Until)
	}
	if f.DstIP != "" {
		where = append(where, "DstIP = ?")
		args = append(args, f.DstIP)
	}
	return where, args
}

// TopSources ranks source addresses by archived packet volume. During a
// flood the attacker dominates this ranking, which makes it a quick sanity
// check on a capture run.
func (q *clickhouseQuerier) TopSources(ctx context.Context, f Filter, limit int) ([]SourceSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			SrcIP,
			COUNT(*) AS FlowCount,
			SUM(PacketCount) AS TotalPackets,
			SUM(TotalBytes) AS TotalBytes,
			AVG(PacketsPerSecond) AS AvgPPS
		FROM ` + q.table + `
	`)

	where, args := f.clauses()
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	queryBuilder.WriteString(" GROUP BY SrcIP ORDER BY TotalPackets DESC LIMIT ?")
	args = append(args, limit)

	rows, err := q.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute top-sources query: %w", err)
	}
	defer rows.Close()

	var summaries []SourceSummary
	for rows.Next() {
		var s SourceSummary
		if err := rows.Scan(&s.SrcIP, &s.FlowCount, &s.TotalPackets, &s.TotalBytes, &s.AvgPPS); err != nil {
			return nil, fmt.Errorf("failed to scan top-sources row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// TraceFlow reports the archived lifecycle of the flows matching keys. Keys
// are column=value pairs restricted to the tuple columns.
func (q *clickhouseQuerier) TraceFlow(ctx context.Context, keys map[string]string, f Filter) (*FlowLifecycle, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			min(CapturedAt) AS FirstSeen,
			max(CapturedAt) AS LastSeen,
			COUNT(*) AS Segments,
			SUM(PacketCount) AS TotalPackets,
			SUM(TotalBytes) AS TotalBytes
		FROM ` + q.table + `
	`)

	where, args := f.clauses()
	for key, value := range keys {
		// Only tuple columns may be filtered on, anything else is rejected.
		switch key {
		case "SrcIP", "DstIP", "SrcPort", "DstPort", "Protocol":
			where = append(where, fmt.Sprintf("%s = ?", key))
			args = append(args, value)
		default:
			return nil, fmt.Errorf("unsupported flow key: %s, only SrcIP, DstIP, SrcPort, DstPort, Protocol are allowed", key)
		}
	}
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	var result FlowLifecycle
	row := q.conn.QueryRow(ctx, queryBuilder.String(), args...)
	if err := row.Scan(&result.FirstSeen, &result.LastSeen, &result.Segments, &result.TotalPackets, &result.TotalBytes); err != nil {
		return nil, fmt.Errorf("failed to scan flow lifecycle result: %w", err)
	}
	return &result, nil
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}
