package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pagelift/pagelift/internal/insights"
)

// Upsert persists a batch of recommendations. Records whose ID already exists
// are updated in place: dynamic fields take the new values, the session list
// becomes the union of old and new, and first_analyzed keeps its original
// value. A failure on one record is reported in the result and does not
// abort the rest of the batch.
func (db *DB) Upsert(ctx context.Context, recs []*insights.Recommendation) insights.UpsertResult {
	var result insights.UpsertResult
	for _, rec := range recs {
		inserted, err := db.upsertOne(ctx, rec)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ID, err))
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	return result
}

func (db *DB) upsertOne(ctx context.Context, rec *insights.Recommendation) (inserted bool, err error) {
	existing, err := db.Recommendation(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		mergeExisting(rec, existing)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encoding payload: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO recommendations
		(recommendation_id, page_url, category, severity, priority_rank, confidence, payload, first_analyzed, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(recommendation_id) DO UPDATE SET
			severity = excluded.severity,
			priority_rank = excluded.priority_rank,
			confidence = excluded.confidence,
			payload = excluded.payload,
			last_updated = excluded.last_updated`,
		rec.ID, rec.PageURL, rec.Category, rec.Severity, rec.PriorityRank,
		rec.Confidence, string(payload),
		rec.FirstAnalyzed.UTC().Format(time.RFC3339),
		rec.LastUpdated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}

// mergeExisting folds the stored record's cumulative fields into the fresh
// one before it overwrites the row.
func mergeExisting(rec, existing *insights.Recommendation) {
	rec.SessionIDs = unionSorted(existing.SessionIDs, rec.SessionIDs)
	rec.SessionCount = len(rec.SessionIDs)

	if !existing.FirstAnalyzed.IsZero() {
		rec.FirstAnalyzed = existing.FirstAnalyzed
	}

	// The builder carries histories forward when it is handed the stored
	// record; if it was not, recover them here so history never shrinks.
	if len(rec.ConfidenceEvolution) <= 1 && len(existing.ConfidenceEvolution) > 0 {
		rec.ConfidenceEvolution = append(existing.ConfidenceEvolution, rec.ConfidenceEvolution...)
	}
	if len(rec.PriorityEvolution) <= 1 && len(existing.PriorityEvolution) > 0 {
		rec.PriorityEvolution = append(existing.PriorityEvolution, rec.PriorityEvolution...)
	}
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Recommendation returns the stored record with the given ID, or nil if it
// does not exist.
func (db *DB) Recommendation(ctx context.Context, id string) (*insights.Recommendation, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT payload FROM recommendations WHERE recommendation_id = ?", id)
	return scanRecommendation(row)
}

// Recommendations returns all stored records for a page, most urgent first.
func (db *DB) Recommendations(ctx context.Context, pageURL string) ([]*insights.Recommendation, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT payload FROM recommendations WHERE page_url = ? ORDER BY priority_rank", pageURL)
	if err != nil {
		return nil, err
	}
	return collectRecommendations(rows)
}

// TopRecommendations returns up to limit records across all pages, most
// urgent first.
func (db *DB) TopRecommendations(ctx context.Context, limit int) ([]*insights.Recommendation, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT payload FROM recommendations ORDER BY priority_rank LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	return collectRecommendations(rows)
}

func scanRecommendation(row *sql.Row) (*insights.Recommendation, error) {
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec insights.Recommendation
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return &rec, nil
}

func collectRecommendations(rows *sql.Rows) ([]*insights.Recommendation, error) {
	defer func() { _ = rows.Close() }()

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
