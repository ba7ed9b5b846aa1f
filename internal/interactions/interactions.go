// Package interactions reads the interaction log: one row per observed
// touchpoint between a person and a feed. The log is populated by the
// external sync pipeline; discovery only queries it.
package interactions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one interaction as the extractors consume it. Timestamp is
// nil for sources that carry no dates (vault notes, group membership).
type Record struct {
	ID         string
	PersonID   string
	SourceType string
	SourceID   string
	Title      string
	Timestamp  *time.Time
}

// DirectQuery describes a grouped aggregation over direct-with-owner
// feeds: count interactions per counterpart, tracking min/max timestamps.
type DirectQuery struct {
	SourceTypes    []string
	Since          time.Time
	ExcludePersonID string
	// TitleNotPrefix drops rows whose title starts with the prefix
	// (used to keep group traffic out of direct counts).
	TitleNotPrefix string
	// TitlePrefix keeps only rows whose title starts with the prefix.
	TitlePrefix string
	MinCount    int
}

// DirectCount is one counterpart's aggregate from a DirectQuery.
type DirectCount struct {
	PersonID string
	Count    int
	First    *time.Time
	Last     *time.Time
}

// Log is the SQLite-backed interaction log.
type Log struct {
	db *sql.DB
}

// NewLog creates a Log on an open database.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Add inserts an interaction record. Used by seeding tools and tests;
// production rows arrive through the sync pipeline.
func (l *Log) Add(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	var ts any
	if rec.Timestamp != nil {
		ts = rec.Timestamp.UTC().Format(time.RFC3339)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO interactions (id, person_id, source_type, source_id, title, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, nullable(rec.PersonID), rec.SourceType, nullable(rec.SourceID),
		nullable(rec.Title), ts, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// BySource returns all interactions for the given source types with a
// timestamp on or after since. Rows with no timestamp are included when
// includeUndated is set; vault notes and group rosters carry none.
func (l *Log) BySource(ctx context.Context, sourceTypes []string, since time.Time, includeUndated bool) ([]Record, error) {
	if len(sourceTypes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(sourceTypes))
	placeholders = placeholders[:len(placeholders)-1]

	timeClause := "AND timestamp >= ?"
	if includeUndated {
		timeClause = "AND (timestamp IS NULL OR timestamp >= ?)"
	}

	args := make([]any, 0, len(sourceTypes)+1)
	for _, st := range sourceTypes {
		args = append(args, st)
	}
	args = append(args, since.UTC().Format(time.RFC3339))

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, person_id, source_id, title, timestamp, source_type
		FROM interactions
		WHERE source_type IN (`+placeholders+`)
		`+timeClause+`
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var personID, sourceID, title, ts sql.NullString
		if err := rows.Scan(&rec.ID, &personID, &sourceID, &title, &ts, &rec.SourceType); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		rec.PersonID = personID.String
		rec.SourceID = sourceID.String
		rec.Title = title.String
		rec.Timestamp = parseTimestamp(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DirectCounts aggregates direct-with-owner feeds in SQL: one row per
// counterpart with count and min/max timestamps. RFC 3339 UTC strings
// sort chronologically, so MIN/MAX on the text column is safe.
func (l *Log) DirectCounts(ctx context.Context, q DirectQuery) ([]DirectCount, error) {
	if len(q.SourceTypes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(q.SourceTypes))
	placeholders = placeholders[:len(placeholders)-1]

	query := `
		SELECT person_id, COUNT(*) as n, MIN(timestamp), MAX(timestamp)
		FROM interactions
		WHERE source_type IN (` + placeholders + `)
		  AND timestamp >= ?
		  AND person_id IS NOT NULL
		  AND person_id != ?`

	args := make([]any, 0, len(q.SourceTypes)+4)
	for _, st := range q.SourceTypes {
		args = append(args, st)
	}
	args = append(args, q.Since.UTC().Format(time.RFC3339), q.ExcludePersonID)

	if q.TitleNotPrefix != "" {
		query += ` AND (title IS NULL OR title NOT LIKE ? ESCAPE '\')`
		args = append(args, likePrefix(q.TitleNotPrefix))
	}
	if q.TitlePrefix != "" {
		query += ` AND title LIKE ? ESCAPE '\'`
		args = append(args, likePrefix(q.TitlePrefix))
	}

	minCount := q.MinCount
	if minCount < 1 {
		minCount = 1
	}
	query += `
		GROUP BY person_id
		HAVING COUNT(*) >= ?`
	args = append(args, minCount)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query direct counts: %w", err)
	}
	defer rows.Close()

	var out []DirectCount
	for rows.Next() {
		var dc DirectCount
		var first, last sql.NullString
		if err := rows.Scan(&dc.PersonID, &dc.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("scan direct count: %w", err)
		}
		dc.First = parseTimestamp(first)
		dc.Last = parseTimestamp(last)
		out = append(out, dc)
	}
	return out, rows.Err()
}

func parseTimestamp(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		// Malformed timestamps degrade to undated rather than
		// aborting a whole extractor run.
		return nil
	}
	return &t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func likePrefix(prefix string) string {
	escaped := strings.NewReplacer("%", `\%`, "_", `\_`).Replace(prefix)
	return escaped + "%"
}
