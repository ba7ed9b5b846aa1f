// Package people holds the canonical person directory consumed by the
// discovery engine. Rows are produced upstream by identity resolution;
// this package only reads and lightly maintains them.
package people

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Person is a canonical identity record for one real person.
type Person struct {
	ID            string
	CanonicalName string
	DisplayName   string
	Company       string
	IsMe          bool
	Emails        []string
	Aliases       []string
	VaultContexts []string
	Sources       []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Directory is the SQLite-backed person directory.
type Directory struct {
	db *sql.DB
}

// NewDirectory creates a Directory on an open database.
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

const personColumns = `id, canonical_name, display_name, company, is_me,
	emails, aliases, vault_contexts, sources, created_at, updated_at`

// Add inserts a person, generating an id if none is set.
func (d *Directory) Add(p *Person) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := d.db.Exec(`
		INSERT INTO persons (`+personColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.CanonicalName, p.DisplayName, p.Company, boolToInt(p.IsMe),
		marshalStrings(p.Emails), marshalStrings(p.Aliases),
		marshalStrings(p.VaultContexts), marshalStrings(p.Sources),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

// Update rewrites a person record.
func (d *Directory) Update(p *Person) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := d.db.Exec(`
		UPDATE persons SET
			canonical_name = ?, display_name = ?, company = ?, is_me = ?,
			emails = ?, aliases = ?, vault_contexts = ?, sources = ?,
			updated_at = ?
		WHERE id = ?
	`, p.CanonicalName, p.DisplayName, p.Company, boolToInt(p.IsMe),
		marshalStrings(p.Emails), marshalStrings(p.Aliases),
		marshalStrings(p.VaultContexts), marshalStrings(p.Sources),
		p.UpdatedAt.Format(time.RFC3339), p.ID)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// GetByID returns the person with the given id, or nil if absent.
func (d *Directory) GetByID(id string) (*Person, error) {
	row := d.db.QueryRow(`SELECT `+personColumns+` FROM persons WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person %s: %w", id, err)
	}
	return p, nil
}

// GetAll returns every person in the directory.
func (d *Directory) GetAll() ([]Person, error) {
	rows, err := d.db.Query(`SELECT ` + personColumns + ` FROM persons ORDER BY canonical_name`)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetMe returns the person marked as the vault owner, or nil if not set
func (d *Directory) GetMe() (*Person, error) {
	row := d.db.QueryRow(`SELECT ` + personColumns + ` FROM persons WHERE is_me = 1 LIMIT 1`)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get me person: %w", err)
	}
	return p, nil
}

// SetMe marks the given person as the vault owner, clearing any previous
// owner flag.
func (d *Directory) SetMe(personID string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := tx.Exec(`UPDATE persons SET is_me = 0, updated_at = ? WHERE is_me = 1`, now); err != nil {
		return fmt.Errorf("clear me flag: %w", err)
	}

	res, err := tx.Exec(`UPDATE persons SET is_me = 1, updated_at = ? WHERE id = ?`, now, personID)
	if err != nil {
		return fmt.Errorf("set me flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("person %s not found", personID)
	}

	return tx.Commit()
}

// Count returns the number of persons in the directory.
func (d *Directory) Count() (int, error) {
	var n int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM persons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return n, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPerson(row scannable) (*Person, error) {
	var p Person
	var displayName, company sql.NullString
	var emails, aliases, contexts, sources sql.NullString
	var isMe int
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.CanonicalName, &displayName, &company, &isMe,
		&emails, &aliases, &contexts, &sources, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if displayName.Valid {
		p.DisplayName = displayName.String
	}
	if company.Valid {
		p.Company = company.String
	}
	p.IsMe = isMe == 1
	p.Emails = unmarshalStrings(emails)
	p.Aliases = unmarshalStrings(aliases)
	p.VaultContexts = unmarshalStrings(contexts)
	p.Sources = unmarshalStrings(sources)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &p, nil
}

func marshalStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(ss)
	return string(data)
}

func unmarshalStrings(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(ns.String), &out)
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
