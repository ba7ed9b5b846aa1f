package links

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	kithdb "github.com/kithlabs/kith/internal/db"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	d, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if _, err := d.Exec(kithdb.Schema()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return NewStore(d)
}

func TestLinkedAndUnlinked(t *testing.T) {
	s := testStore(t)

	if err := s.Add("slack", "T01:U_A", "Alice", "p1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("slack", "T01:U_B", "Bob", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("linkedin", "li-1", "Alice", "p1"); err != nil {
		t.Fatalf("add: %v", err)
	}

	linked, err := s.LinkedPersonIDs("slack")
	if err != nil {
		t.Fatalf("linked: %v", err)
	}
	if len(linked) != 1 || linked["T01:U_A"] != "p1" {
		t.Errorf("linked = %v", linked)
	}

	unlinked, err := s.UnlinkedNames("slack")
	if err != nil {
		t.Fatalf("unlinked: %v", err)
	}
	if len(unlinked) != 1 || unlinked["T01:U_B"] != "Bob" {
		t.Errorf("unlinked = %v", unlinked)
	}
}

func TestAddUpserts(t *testing.T) {
	s := testStore(t)

	if err := s.Add("slack", "T01:U_B", "Bob", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	// linker attributes the identity later
	if err := s.Add("slack", "T01:U_B", "Bob Brown", "p2"); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	linked, err := s.LinkedPersonIDs("slack")
	if err != nil {
		t.Fatalf("linked: %v", err)
	}
	if linked["T01:U_B"] != "p2" {
		t.Errorf("linked = %v, want upserted person", linked)
	}
	unlinked, _ := s.UnlinkedNames("slack")
	if len(unlinked) != 0 {
		t.Errorf("unlinked = %v, want empty after attribution", unlinked)
	}
}
