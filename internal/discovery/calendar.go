package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kithlabs/kith/internal/codec"
	"github.com/kithlabs/kith/internal/graph"
	"github.com/kithlabs/kith/internal/people"
)

// discoverFromCalendar connects people who attend the same meetings.
// Calendar rows carry a composite source id of event and raw participant;
// participants are resolved against the person directory, grouped per
// event, and every resolved pair of co-attendees gets credit.
func (e *Engine) discoverFromCalendar(ctx context.Context) (int, error) {
	persons, err := e.people.GetAll()
	if err != nil {
		return 0, fmt.Errorf("load persons: %w", err)
	}
	resolver := people.NewResolver(persons)

	rows, err := e.log.BySource(ctx, []string{sourceCalendar}, e.cutoff(), false)
	if err != nil {
		return 0, fmt.Errorf("load calendar interactions: %w", err)
	}

	// event -> attendee person ids, and one timestamp per event (all
	// participant rows of an event carry the same one).
	eventAttendees := make(map[string]map[string]bool)
	eventTimes := make(map[string]*time.Time)
	for _, row := range rows {
		eventID, participant := codec.DecodeSourceID(row.SourceID)
		if participant == "" {
			continue
		}
		personID := resolver.Resolve(participant)
		if personID == "" {
			continue
		}
		if eventAttendees[eventID] == nil {
			eventAttendees[eventID] = make(map[string]bool)
		}
		eventAttendees[eventID][personID] = true
		if _, ok := eventTimes[eventID]; !ok {
			eventTimes[eventID] = row.Timestamp
		}
	}

	pairs := make(pairMap)
	for eventID, attendees := range eventAttendees {
		if len(attendees) < 2 {
			continue
		}
		ids := sortedKeys(attendees)
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				pairs.get(a, b).observe(eventTimes[eventID])
			}
		}
	}
	e.logger.Debug("calendar events with co-attendees", "events", len(eventAttendees))

	updated := 0
	for _, agg := range pairs {
		if agg.count < e.cfg.MinSharedEvents {
			continue
		}
		// An event set with no parseable dates still proves the pair
		// met; stamp it with now rather than leaving the edge undated.
		first, last := agg.first, agg.last
		if first == nil {
			now := time.Now().UTC()
			first, last = &now, &now
		}
		_, _, err := e.edges.Upsert(graph.Contribution{
			PersonA:     agg.pair[0],
			PersonB:     agg.pair[1],
			Counter:     graph.CounterEvents,
			Count:       agg.count,
			Context:     sourceCalendar,
			First:       first,
			Last:        last,
			DefaultType: e.cfg.DefaultType(nameCalendar, graph.TypeCoworker),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert calendar pair: %w", err)
		}
		updated++
	}

	e.logger.Info("calendar discovery done", "relationships", updated)
	return updated, nil
}

// discoverFromCalendarDirect connects the owner to everyone on the
// owner's own calendar. The event count per person is over distinct
// events, decoded from the composite source id rather than parsed in
// SQL, so event ids containing the delimiter cannot split wrong.
func (e *Engine) discoverFromCalendarDirect(ctx context.Context) (int, error) {
	if e.owner == "" {
		e.logger.Warn("owner not configured, skipping calendar direct discovery")
		return 0, nil
	}

	rows, err := e.log.BySource(ctx, []string{sourceCalendar}, e.cutoff(), false)
	if err != nil {
		return 0, fmt.Errorf("load calendar interactions: %w", err)
	}

	type personEvents struct {
		events map[string]bool
		first  *time.Time
		last   *time.Time
	}
	perPerson := make(map[string]*personEvents)
	for _, row := range rows {
		if row.PersonID == "" || row.PersonID == e.owner {
			continue
		}
		pe := perPerson[row.PersonID]
		if pe == nil {
			pe = &personEvents{events: make(map[string]bool)}
			perPerson[row.PersonID] = pe
		}
		pe.events[codec.GroupKey(row.SourceID)] = true
		if t := row.Timestamp; t != nil {
			if pe.first == nil || t.Before(*pe.first) {
				tc := *t
				pe.first = &tc
			}
			if pe.last == nil || t.After(*pe.last) {
				tc := *t
				pe.last = &tc
			}
		}
	}

	updated := 0
	for personID, pe := range perPerson {
		first, last := pe.first, pe.last
		if first == nil {
			now := time.Now().UTC()
			first, last = &now, &now
		}
		_, _, err := e.edges.Upsert(graph.Contribution{
			PersonA:     e.owner,
			PersonB:     personID,
			Counter:     graph.CounterEvents,
			Count:       len(pe.events),
			Context:     sourceCalendar,
			First:       first,
			Last:        last,
			DefaultType: e.cfg.DefaultType(nameCalendarDirect, graph.TypeInferred),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert calendar direct pair: %w", err)
		}
		updated++
	}

	e.logger.Info("calendar direct discovery done", "relationships", updated)
	return updated, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
