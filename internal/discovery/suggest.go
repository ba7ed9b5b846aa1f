package discovery

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Suggestion is one candidate connection for a person: someone sharing
// vault contexts without an edge yet.
type Suggestion struct {
	PersonID       string   `json:"person_id"`
	Name           string   `json:"name"`
	Company        string   `json:"company,omitempty"`
	Score          float64  `json:"score"`
	SharedContexts []string `json:"shared_contexts"`
	SharedSources  []string `json:"shared_sources"`
}

// SuggestedConnections ranks people who share vault contexts with the
// given person but have no edge to them. The score is the context
// overlap fraction plus a small boost per shared source, capped at 1.
// An unknown person yields an empty list, not an error.
func (e *Engine) SuggestedConnections(personID string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}

	person, err := e.people.GetByID(personID)
	if err != nil {
		return nil, fmt.Errorf("load person: %w", err)
	}
	if person == nil {
		return nil, nil
	}

	connected, err := e.edges.GetConnections(personID)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	existing := make(map[string]bool, len(connected))
	for _, id := range connected {
		existing[id] = true
	}

	personContexts := toSet(person.VaultContexts)
	personSources := toSet(person.Sources)

	all, err := e.people.GetAll()
	if err != nil {
		return nil, fmt.Errorf("load persons: %w", err)
	}

	var suggestions []Suggestion
	for i := range all {
		other := &all[i]
		if other.ID == personID || existing[other.ID] {
			continue
		}

		sharedContexts := intersect(personContexts, other.VaultContexts)
		if len(sharedContexts) == 0 {
			continue
		}
		sharedSources := intersect(personSources, other.Sources)

		overlap := float64(len(sharedContexts)) / math.Max(float64(len(personContexts)), 1)
		score := math.Min(1, overlap+float64(len(sharedSources))*0.1)

		suggestions = append(suggestions, Suggestion{
			PersonID:       other.ID,
			Name:           other.CanonicalName,
			Company:        other.Company,
			Score:          math.Round(score*1000) / 1000,
			SharedContexts: sharedContexts,
			SharedSources:  sharedSources,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// OverlapPerson is one endpoint in an overlap report.
type OverlapPerson struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OverlapEdge summarizes the stored edge between the two people, zeroed
// when none exists.
type OverlapEdge struct {
	Exists             bool       `json:"exists"`
	Type               string     `json:"type,omitempty"`
	SharedEventsCount  int        `json:"shared_events_count"`
	SharedThreadsCount int        `json:"shared_threads_count"`
	FirstSeenTogether  *time.Time `json:"first_seen_together,omitempty"`
	LastSeenTogether   *time.Time `json:"last_seen_together,omitempty"`
}

// Overlap describes everything two people share.
type Overlap struct {
	PersonA        OverlapPerson `json:"person_a"`
	PersonB        OverlapPerson `json:"person_b"`
	Relationship   OverlapEdge   `json:"relationship"`
	SharedContexts []string      `json:"shared_contexts"`
	SharedSources  []string      `json:"shared_sources"`
}

// ConnectionOverlap reports the contexts, sources and stored edge shared
// by two people. Unlike suggestions, asking about an unknown person is
// an error here.
func (e *Engine) ConnectionOverlap(personAID, personBID string) (*Overlap, error) {
	personA, err := e.people.GetByID(personAID)
	if err != nil {
		return nil, fmt.Errorf("load person: %w", err)
	}
	personB, err := e.people.GetByID(personBID)
	if err != nil {
		return nil, fmt.Errorf("load person: %w", err)
	}
	if personA == nil {
		return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, personAID)
	}
	if personB == nil {
		return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, personBID)
	}

	rel, err := e.edges.GetBetween(personAID, personBID)
	if err != nil {
		return nil, fmt.Errorf("load relationship: %w", err)
	}

	overlap := &Overlap{
		PersonA:        OverlapPerson{ID: personA.ID, Name: personA.CanonicalName},
		PersonB:        OverlapPerson{ID: personB.ID, Name: personB.CanonicalName},
		SharedContexts: intersect(toSet(personA.VaultContexts), personB.VaultContexts),
		SharedSources:  intersect(toSet(personA.Sources), personB.Sources),
	}
	if rel != nil {
		overlap.Relationship = OverlapEdge{
			Exists:             true,
			Type:               rel.RelationshipType,
			SharedEventsCount:  rel.SharedEventsCount,
			SharedThreadsCount: rel.SharedThreadsCount,
			FirstSeenTogether:  rel.FirstSeenTogether,
			LastSeenTogether:   rel.LastSeenTogether,
		}
	}
	return overlap, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func intersect(set map[string]bool, items []string) []string {
	out := []string{}
	for _, item := range items {
		if set[item] {
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
