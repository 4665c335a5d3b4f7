// Package warehouse mirrors recommendations to ClickHouse so downstream
// dashboards and alerting query the warehouse instead of the engine's local
// SQLite store.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/pagelift/pagelift/internal/insights"
)

// Config holds the ClickHouse connection settings.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Client wraps a native-protocol ClickHouse connection.
type Client struct {
	conn clickhouse.Conn
}

// Open connects to ClickHouse over the native TCP protocol and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "pagelift", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to clickhouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Migrate creates the recommendations table. ReplacingMergeTree keyed on the
// recommendation ID with last_updated as the version column gives upsert
// semantics: each publish writes a new row version and the merge keeps the
// latest one.
func (c *Client) Migrate(ctx context.Context) error {
	err := c.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS recommendations (
			recommendation_id String,
			page_url          String,
			category          String,
			severity          String,
			urgency           String,
			priority_rank     Int32,
			confidence        Float64,
			revenue_impact    Float64,
			session_count     Int32,
			dashboard_priority UInt8,
			alert_threshold_met UInt8,
			payload           String,
			first_analyzed    DateTime,
			last_updated      DateTime
		)
		ENGINE = ReplacingMergeTree(last_updated)
		ORDER BY recommendation_id
	`)
	if err != nil {
		return fmt.Errorf("creating recommendations table: %w", err)
	}
	return nil
}

// Publish writes a batch of recommendations as new row versions. Records
// whose ID already exists in the warehouse count as updated, the rest as
// inserted. A record that fails to encode is reported in the result and
// does not abort its siblings.
func (c *Client) Publish(ctx context.Context, recs []*insights.Recommendation) (insights.UpsertResult, error) {
	var result insights.UpsertResult
	if len(recs) == 0 {
		return result, nil
	}

	known, err := c.existingIDs(ctx, recs)
	if err != nil {
		return result, err
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO recommendations (
			recommendation_id, page_url, category, severity, urgency,
			priority_rank, confidence, revenue_impact, session_count,
			dashboard_priority, alert_threshold_met, payload,
			first_analyzed, last_updated
		)
	`)
	if err != nil {
		return result, fmt.Errorf("preparing batch: %w", err)
	}

	for _, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: encoding payload: %v", rec.ID, err))
			continue
		}
		if err := batch.Append(
			rec.ID, rec.PageURL, rec.Category, rec.Severity, rec.Urgency,
			int32(rec.PriorityRank), rec.Confidence, rec.EstimatedRevenueImpact,
			int32(rec.SessionCount), boolFlag(rec.DashboardPriority),
			boolFlag(rec.AlertThresholdMet), string(payload),
			rec.FirstAnalyzed, rec.LastUpdated,
		); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ID, err))
			continue
		}
		if known[rec.ID] {
			result.Updated++
		} else {
			result.Inserted++
		}
	}

	if err := batch.Send(); err != nil {
		return insights.UpsertResult{}, fmt.Errorf("sending batch: %w", err)
	}
	return result, nil
}

// TopRecommendations returns up to limit of the most urgent current row
// versions, for dashboard queries against the warehouse directly.
func (c *Client) TopRecommendations(ctx context.Context, limit int) ([]*insights.Recommendation, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT payload FROM recommendations FINAL
		ORDER BY priority_rank
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*insights.Recommendation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec insights.Recommendation
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// existingIDs reports which of the batch's IDs are already present.
func (c *Client) existingIDs(ctx context.Context, recs []*insights.Recommendation) (map[string]bool, error) {
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}

	rows, err := c.conn.Query(ctx,
		"SELECT DISTINCT recommendation_id FROM recommendations WHERE recommendation_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("querying existing ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	return known, rows.Err()
}

func boolFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
