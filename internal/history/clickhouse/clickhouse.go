package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/scriptwatch/internal/history"
)

// Sink appends script events to ClickHouse using the official Go client.
// ClickHouse tables are append-only here, so a stop is written as a linked
// row sharing the start row's uniq key instead of an update.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(addr, table string) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

func (s *Sink) Name() string { return "clickhouse" }

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	resources, err := json.Marshal(e.Resources)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (uniq, event, ip, pid, script_path, occurred_at, start_time, duration_seconds, resources) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.table)
	return s.conn.Exec(ctx, query,
		e.Key(),
		string(e.Type),
		e.LocalIP,
		e.PID,
		e.ScriptPath,
		e.OccurredAt,
		e.StartedAt,
		e.Duration.Seconds(),
		string(resources),
	)
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
