// Package graph owns the relationship edge: the persisted record of
// evidence connecting two canonical identities. Edges are stored once per
// unordered pair (person_a_id < person_b_id always) and mutated only
// through Upsert.
package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kithlabs/kith/internal/codec"
)

// Relationship types
const (
	TypeCoworker = "coworker"
	TypeFriend   = "friend"
	TypeFamily   = "family"
	TypeInferred = "inferred" // discovered through shared contexts
)

// Counter names one per-source counter on an edge. CounterNone is used by
// extractors that contribute context only (vault co-mentions, group
// membership).
type Counter int

const (
	CounterNone Counter = iota
	CounterEvents
	CounterThreads
	CounterMessages
	CounterWhatsapp
	CounterSlack
	CounterPhoneCalls
	CounterPhotos
)

// Relationship is one edge in the relationship graph.
type Relationship struct {
	ID        string
	PersonAID string
	PersonBID string

	RelationshipType string
	SharedContexts   []string

	SharedEventsCount     int
	SharedThreadsCount    int
	SharedMessagesCount   int
	SharedWhatsappCount   int
	SharedSlackCount      int
	SharedPhoneCallsCount int
	SharedPhotosCount     int
	IsLinkedInConnection  bool

	FirstSeenTogether *time.Time
	LastSeenTogether  *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Involves reports whether the edge touches the given person.
func (r *Relationship) Involves(personID string) bool {
	return personID == r.PersonAID || personID == r.PersonBID
}

// OtherPerson returns the opposite endpoint, or "" if personID is not on
// the edge.
func (r *Relationship) OtherPerson(personID string) string {
	switch personID {
	case r.PersonAID:
		return r.PersonBID
	case r.PersonBID:
		return r.PersonAID
	}
	return ""
}

// HasContext reports whether the source tag is already recorded.
func (r *Relationship) HasContext(tag string) bool {
	for _, c := range r.SharedContexts {
		if c == tag {
			return true
		}
	}
	return false
}

// AddContext unions a source tag into shared contexts. Idempotent.
func (r *Relationship) AddContext(tag string) {
	if tag == "" || r.HasContext(tag) {
		return
	}
	r.SharedContexts = append(r.SharedContexts, tag)
}

func (r *Relationship) setCounter(c Counter, n int) {
	switch c {
	case CounterEvents:
		r.SharedEventsCount = n
	case CounterThreads:
		r.SharedThreadsCount = n
	case CounterMessages:
		r.SharedMessagesCount = n
	case CounterWhatsapp:
		r.SharedWhatsappCount = n
	case CounterSlack:
		r.SharedSlackCount = n
	case CounterPhoneCalls:
		r.SharedPhoneCallsCount = n
	case CounterPhotos:
		r.SharedPhotosCount = n
	}
}

// Statistics summarizes the stored graph.
type Statistics struct {
	Total                 int            `json:"total_relationships"`
	ByType                map[string]int `json:"by_type"`
	AvgSharedInteractions float64        `json:"avg_shared_interactions"`
}

// Store is the SQLite-backed relationship store. The upsert path is a
// read-modify-write per pair; concurrent discovery runs against the same
// store need external serialization.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const relationshipColumns = `id, person_a_id, person_b_id, relationship_type,
	shared_contexts, shared_events_count, shared_threads_count,
	shared_messages_count, shared_whatsapp_count, shared_slack_count,
	shared_phone_calls_count, shared_photos_count, is_linkedin_connection,
	first_seen_together, last_seen_together, created_at, updated_at`

// GetBetween returns the edge between two people in either argument
// order, or nil if none exists.
func (s *Store) GetBetween(a, b string) (*Relationship, error) {
	pair := codec.NewPair(a, b)
	row := s.db.QueryRow(`
		SELECT `+relationshipColumns+`
		FROM relationships
		WHERE person_a_id = ? AND person_b_id = ?
	`, pair.A, pair.B)

	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	return rel, nil
}

// Add inserts a new edge. The pair is canonicalized before writing.
func (s *Store) Add(rel *Relationship) error {
	pair := codec.NewPair(rel.PersonAID, rel.PersonBID)
	rel.PersonAID, rel.PersonBID = pair.A, pair.B

	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}
	rel.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO relationships (`+relationshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rel.ID, rel.PersonAID, rel.PersonBID, rel.RelationshipType,
		marshalContexts(rel.SharedContexts),
		rel.SharedEventsCount, rel.SharedThreadsCount,
		rel.SharedMessagesCount, rel.SharedWhatsappCount, rel.SharedSlackCount,
		rel.SharedPhoneCallsCount, rel.SharedPhotosCount,
		boolToInt(rel.IsLinkedInConnection),
		formatTime(rel.FirstSeenTogether), formatTime(rel.LastSeenTogether),
		rel.CreatedAt.Format(time.RFC3339), rel.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

// Update rewrites an existing edge by id.
func (s *Store) Update(rel *Relationship) error {
	rel.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		UPDATE relationships SET
			relationship_type = ?, shared_contexts = ?,
			shared_events_count = ?, shared_threads_count = ?,
			shared_messages_count = ?, shared_whatsapp_count = ?,
			shared_slack_count = ?, shared_phone_calls_count = ?,
			shared_photos_count = ?, is_linkedin_connection = ?,
			first_seen_together = ?, last_seen_together = ?, updated_at = ?
		WHERE id = ?
	`, rel.RelationshipType, marshalContexts(rel.SharedContexts),
		rel.SharedEventsCount, rel.SharedThreadsCount,
		rel.SharedMessagesCount, rel.SharedWhatsappCount,
		rel.SharedSlackCount, rel.SharedPhoneCallsCount,
		rel.SharedPhotosCount, boolToInt(rel.IsLinkedInConnection),
		formatTime(rel.FirstSeenTogether), formatTime(rel.LastSeenTogether),
		rel.UpdatedAt.Format(time.RFC3339), rel.ID)
	if err != nil {
		return fmt.Errorf("update relationship: %w", err)
	}
	return nil
}

// GetForPerson returns all edges touching a person, most recent first.
// A non-positive limit returns everything.
func (s *Store) GetForPerson(personID string, limit int) ([]Relationship, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited
	}
	rows, err := s.db.Query(`
		SELECT `+relationshipColumns+`
		FROM relationships
		WHERE person_a_id = ? OR person_b_id = ?
		ORDER BY last_seen_together DESC
		LIMIT ?
	`, personID, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var out []Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, *rel)
	}
	return out, rows.Err()
}

// GetConnections returns ids of everyone connected to a person.
func (s *Store) GetConnections(personID string) ([]string, error) {
	rels, err := s.GetForPerson(personID, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	for i := range rels {
		if other := rels[i].OtherPerson(personID); other != "" {
			out = append(out, other)
		}
	}
	return out, nil
}

// Count returns the total number of edges.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM relationships`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count relationships: %w", err)
	}
	return n, nil
}

// GetStatistics returns aggregate graph statistics.
func (s *Store) GetStatistics() (*Statistics, error) {
	stats := &Statistics{ByType: make(map[string]int)}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM relationships`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count relationships: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT relationship_type, COUNT(*)
		FROM relationships
		GROUP BY relationship_type
	`)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	for rows.Next() {
		var relType sql.NullString
		var n int
		if err := rows.Scan(&relType, &n); err != nil {
			rows.Close()
			return nil, err
		}
		name := relType.String
		if name == "" {
			name = TypeInferred
		}
		stats.ByType[name] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	err = s.db.QueryRow(`
		SELECT AVG(shared_events_count + shared_threads_count +
			shared_messages_count + shared_whatsapp_count +
			shared_slack_count + shared_phone_calls_count +
			shared_photos_count)
		FROM relationships
	`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average interactions: %w", err)
	}
	if avg.Valid {
		stats.AvgSharedInteractions = avg.Float64
	}

	return stats, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRelationship(row scannable) (*Relationship, error) {
	var rel Relationship
	var relType, contexts, firstSeen, lastSeen sql.NullString
	var linkedin int
	var createdAt, updatedAt string

	err := row.Scan(&rel.ID, &rel.PersonAID, &rel.PersonBID, &relType,
		&contexts, &rel.SharedEventsCount, &rel.SharedThreadsCount,
		&rel.SharedMessagesCount, &rel.SharedWhatsappCount, &rel.SharedSlackCount,
		&rel.SharedPhoneCallsCount, &rel.SharedPhotosCount, &linkedin,
		&firstSeen, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rel.RelationshipType = relType.String
	if rel.RelationshipType == "" {
		rel.RelationshipType = TypeInferred
	}
	if contexts.Valid && contexts.String != "" {
		_ = json.Unmarshal([]byte(contexts.String), &rel.SharedContexts)
	}
	rel.IsLinkedInConnection = linkedin == 1
	rel.FirstSeenTogether = parseTime(firstSeen)
	rel.LastSeenTogether = parseTime(lastSeen)
	rel.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rel.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &rel, nil
}

func marshalContexts(contexts []string) string {
	if len(contexts) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(contexts)
	return string(data)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
