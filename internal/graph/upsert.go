package graph

import (
	"fmt"
	"time"

	"github.com/kithlabs/kith/internal/codec"
)

// Contribution is one extractor's evidence for a pair. Count is the
// absolute number of shared items found in the extractor's full scan, not
// an increment; re-running an extractor over the same data converges to
// the same stored value.
type Contribution struct {
	PersonA string
	PersonB string

	Counter Counter
	Count   int

	Context  string
	First    *time.Time
	Last     *time.Time
	LinkedIn bool

	// DefaultType is applied only when the contribution creates the edge.
	DefaultType string
}

// Upsert merges a contribution into the stored edge for the pair,
// creating the edge if absent. Returns the edge after the merge and
// whether it was newly created.
func (s *Store) Upsert(c Contribution) (*Relationship, bool, error) {
	pair := codec.NewPair(c.PersonA, c.PersonB)
	if pair.IsSelf() {
		return nil, false, fmt.Errorf("self relationship for person %s", pair.A)
	}

	last := clampToNow(c.Last)

	existing, err := s.GetBetween(pair.A, pair.B)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		relType := c.DefaultType
		if relType == "" {
			relType = TypeInferred
		}
		rel := &Relationship{
			PersonAID:            pair.A,
			PersonBID:            pair.B,
			RelationshipType:     relType,
			FirstSeenTogether:    copyTime(c.First),
			LastSeenTogether:     last,
			IsLinkedInConnection: c.LinkedIn,
		}
		rel.setCounter(c.Counter, c.Count)
		rel.AddContext(c.Context)
		if err := s.Add(rel); err != nil {
			return nil, false, err
		}
		return rel, true, nil
	}

	existing.setCounter(c.Counter, c.Count)
	existing.AddContext(c.Context)
	if c.LinkedIn {
		existing.IsLinkedInConnection = true
	}
	if c.First != nil {
		if existing.FirstSeenTogether == nil || c.First.Before(*existing.FirstSeenTogether) {
			existing.FirstSeenTogether = copyTime(c.First)
		}
	}
	if last != nil {
		if existing.LastSeenTogether == nil || last.After(*existing.LastSeenTogether) {
			existing.LastSeenTogether = last
		}
	}
	if err := s.Update(existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// clampToNow caps a timestamp at the current moment. Source data with
// clock skew (recurring calendar events especially) must not push
// last_seen_together into the future.
func clampToNow(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	now := time.Now().UTC()
	if t.After(now) {
		return &now
	}
	return copyTime(t)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
