// Package links reads the platform-identity link table: raw slack user
// ids, linkedin export rows and similar, tied to canonical persons by the
// upstream identity linker. Discovery consumes the mapping read-only.
package links

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store reads and seeds source_links rows.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add inserts a link row. person_id may be empty for identities the
// linker has not attributed yet.
func (s *Store) Add(sourceType, sourceID, observedName, personID string) error {
	var pid any
	if personID != "" {
		pid = personID
	}
	var name any
	if observedName != "" {
		name = observedName
	}
	_, err := s.db.Exec(`
		INSERT INTO source_links (id, source_type, source_id, observed_name, person_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_type, source_id) DO UPDATE SET
			observed_name = excluded.observed_name,
			person_id = excluded.person_id
	`, uuid.New().String(), sourceType, sourceID, name, pid,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert source link: %w", err)
	}
	return nil
}

// LinkedPersonIDs returns platform source id -> canonical person id for
// every linked identity of the given source type.
func (s *Store) LinkedPersonIDs(sourceType string) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT source_id, person_id
		FROM source_links
		WHERE source_type = ?
		  AND person_id IS NOT NULL
	`, sourceType)
	if err != nil {
		return nil, fmt.Errorf("query linked identities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var sourceID, personID string
		if err := rows.Scan(&sourceID, &personID); err != nil {
			return nil, fmt.Errorf("scan linked identity: %w", err)
		}
		out[sourceID] = personID
	}
	return out, rows.Err()
}

// UnlinkedNames returns platform source id -> observed display name for
// identities the linker has seen but not attributed. The slack extractor
// uses these for its exact-name fallback pass.
func (s *Store) UnlinkedNames(sourceType string) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT source_id, observed_name
		FROM source_links
		WHERE source_type = ?
		  AND person_id IS NULL
		  AND observed_name IS NOT NULL
	`, sourceType)
	if err != nil {
		return nil, fmt.Errorf("query unlinked identities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var sourceID, name string
		if err := rows.Scan(&sourceID, &name); err != nil {
			return nil, fmt.Errorf("scan unlinked identity: %w", err)
		}
		out[sourceID] = name
	}
	return out, rows.Err()
}
