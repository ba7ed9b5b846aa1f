package interactions

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	kithdb "github.com/kithlabs/kith/internal/db"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	d, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if _, err := d.Exec(kithdb.Schema()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return NewLog(d)
}

func ts(daysAgo int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, -daysAgo)
	return &t
}

func mustAdd(t *testing.T, l *Log, rec Record) {
	t.Helper()
	if err := l.Add(context.Background(), rec); err != nil {
		t.Fatalf("add: %v", err)
	}
}

func TestBySourceFiltersTypeAndTime(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	mustAdd(t, l, Record{PersonID: "a", SourceType: "gmail", Title: "Hello", Timestamp: ts(5)})
	mustAdd(t, l, Record{PersonID: "a", SourceType: "gmail", Title: "Old", Timestamp: ts(500)})
	mustAdd(t, l, Record{PersonID: "a", SourceType: "phone", Timestamp: ts(5)})
	mustAdd(t, l, Record{PersonID: "a", SourceType: "vault", SourceID: "notes/x.md"})

	since := time.Now().UTC().AddDate(0, 0, -30)

	rows, err := l.BySource(ctx, []string{"gmail"}, since, false)
	if err != nil {
		t.Fatalf("by source: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "Hello" {
		t.Errorf("rows = %+v, want only recent gmail", rows)
	}

	// undated rows only show up when asked for
	rows, err = l.BySource(ctx, []string{"vault"}, since, false)
	if err != nil {
		t.Fatalf("by source: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d vault rows without includeUndated", len(rows))
	}
	rows, err = l.BySource(ctx, []string{"vault"}, since, true)
	if err != nil {
		t.Fatalf("by source: %v", err)
	}
	if len(rows) != 1 || rows[0].Timestamp != nil {
		t.Errorf("rows = %+v, want one undated vault row", rows)
	}

	// multiple source types in one query
	rows, err = l.BySource(ctx, []string{"gmail", "phone"}, since, false)
	if err != nil {
		t.Fatalf("by source: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows for gmail+phone, want 2", len(rows))
	}
}

func TestDirectCounts(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustAdd(t, l, Record{PersonID: "alice", SourceType: "imessage", Timestamp: ts(10 - i)})
	}
	mustAdd(t, l, Record{PersonID: "bob", SourceType: "imessage", Timestamp: ts(4)})
	mustAdd(t, l, Record{PersonID: "me", SourceType: "imessage", Timestamp: ts(4)})

	counts, err := l.DirectCounts(ctx, DirectQuery{
		SourceTypes:     []string{"imessage"},
		Since:           time.Now().UTC().AddDate(0, 0, -30),
		ExcludePersonID: "me",
		MinCount:        2,
	})
	if err != nil {
		t.Fatalf("direct counts: %v", err)
	}
	if len(counts) != 1 {
		t.Fatalf("counts = %+v, want only alice above min", counts)
	}
	dc := counts[0]
	if dc.PersonID != "alice" || dc.Count != 3 {
		t.Errorf("got %+v", dc)
	}
	if dc.First == nil || dc.Last == nil || !dc.First.Before(*dc.Last) {
		t.Errorf("date range wrong: %v - %v", dc.First, dc.Last)
	}
}

func TestDirectCountsTitleFilters(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	mustAdd(t, l, Record{PersonID: "alice", SourceType: "whatsapp", Title: "Alice Anders", Timestamp: ts(3)})
	mustAdd(t, l, Record{PersonID: "alice", SourceType: "whatsapp", Title: "WhatsApp group: Ski Trip", Timestamp: ts(2)})
	mustAdd(t, l, Record{PersonID: "alice", SourceType: "whatsapp", Timestamp: ts(1)})

	counts, err := l.DirectCounts(ctx, DirectQuery{
		SourceTypes:     []string{"whatsapp"},
		Since:           time.Now().UTC().AddDate(0, 0, -30),
		ExcludePersonID: "me",
		TitleNotPrefix:  "WhatsApp group:",
	})
	if err != nil {
		t.Fatalf("direct counts: %v", err)
	}
	// untitled row counts as direct, group row does not
	if len(counts) != 1 || counts[0].Count != 2 {
		t.Fatalf("counts = %+v, want alice with 2", counts)
	}

	counts, err = l.DirectCounts(ctx, DirectQuery{
		SourceTypes:     []string{"whatsapp"},
		Since:           time.Now().UTC().AddDate(0, 0, -30),
		ExcludePersonID: "me",
		TitlePrefix:     "WhatsApp group:",
	})
	if err != nil {
		t.Fatalf("direct counts: %v", err)
	}
	if len(counts) != 1 || counts[0].Count != 1 {
		t.Fatalf("counts = %+v, want alice with 1 group row", counts)
	}
}

func TestDirectCountsLikeEscaping(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	// a title prefix containing LIKE wildcards must match literally
	mustAdd(t, l, Record{PersonID: "alice", SourceType: "whatsapp", Title: "100% done", Timestamp: ts(1)})
	mustAdd(t, l, Record{PersonID: "alice", SourceType: "whatsapp", Title: "100x done", Timestamp: ts(1)})

	counts, err := l.DirectCounts(ctx, DirectQuery{
		SourceTypes:     []string{"whatsapp"},
		Since:           time.Now().UTC().AddDate(0, 0, -30),
		ExcludePersonID: "me",
		TitlePrefix:     "100%",
	})
	if err != nil {
		t.Fatalf("direct counts: %v", err)
	}
	if len(counts) != 1 || counts[0].Count != 1 {
		t.Fatalf("counts = %+v, want exactly the literal %% match", counts)
	}
}
