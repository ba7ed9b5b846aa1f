package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kithlabs/kith/internal/graph"
)

// discoverFromEmailThreads connects people through shared mail threads.
// Mail rows store the counterpart's id, never the owner's, so the owner
// is injected into every thread. Threads are keyed by subject; a subject
// reused across unrelated conversations merges them, which overcounts
// rather than drops evidence.
func (e *Engine) discoverFromEmailThreads(ctx context.Context) (int, error) {
	if e.owner == "" {
		e.logger.Warn("owner not configured, skipping email discovery")
		return 0, nil
	}

	rows, err := e.log.BySource(ctx, []string{sourceGmail}, e.cutoff(), false)
	if err != nil {
		return 0, fmt.Errorf("load gmail interactions: %w", err)
	}

	threadParticipants := make(map[string]map[string]bool)
	threadDates := make(map[string][]time.Time)
	for _, row := range rows {
		if row.Title == "" || row.PersonID == "" {
			continue
		}
		if threadParticipants[row.Title] == nil {
			threadParticipants[row.Title] = make(map[string]bool)
		}
		threadParticipants[row.Title][e.owner] = true
		threadParticipants[row.Title][row.PersonID] = true
		if row.Timestamp != nil {
			threadDates[row.Title] = append(threadDates[row.Title], *row.Timestamp)
		}
	}
	e.logger.Debug("email threads found", "threads", len(threadParticipants))

	// pair -> shared thread titles
	pairThreads := make(map[string][]string)
	for title, participants := range threadParticipants {
		ids := sortedKeys(participants)
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				key := a + "\x00" + b
				pairThreads[key] = append(pairThreads[key], title)
			}
		}
	}

	updated := 0
	for key, threads := range pairThreads {
		if len(threads) < e.cfg.MinSharedThreads {
			continue
		}
		var first, last *time.Time
		for _, title := range threads {
			for _, t := range threadDates[title] {
				tc := t
				if first == nil || tc.Before(*first) {
					first = &tc
				}
				if last == nil || tc.After(*last) {
					last = &tc
				}
			}
		}

		a, b, _ := strings.Cut(key, "\x00")
		_, _, err := e.edges.Upsert(graph.Contribution{
			PersonA:     a,
			PersonB:     b,
			Counter:     graph.CounterThreads,
			Count:       len(threads),
			Context:     sourceGmail,
			First:       first,
			Last:        last,
			DefaultType: e.cfg.DefaultType(nameEmail, graph.TypeInferred),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert email pair: %w", err)
		}
		updated++
	}

	e.logger.Info("email discovery done", "relationships", updated)
	return updated, nil
}

// discoverFromVaultCoMentions connects people mentioned in the same
// vault notes. Notes carry no interaction timestamps, so the edge gets a
// context tag only; first and last seen stay untouched.
func (e *Engine) discoverFromVaultCoMentions(ctx context.Context) (int, error) {
	rows, err := e.log.BySource(ctx, []string{sourceVault}, e.cutoff(), true)
	if err != nil {
		return 0, fmt.Errorf("load vault interactions: %w", err)
	}

	// note path -> mentioned person ids
	noteMentions := make(map[string]map[string]bool)
	for _, row := range rows {
		if row.PersonID == "" || row.SourceID == "" {
			continue
		}
		if noteMentions[row.SourceID] == nil {
			noteMentions[row.SourceID] = make(map[string]bool)
		}
		noteMentions[row.SourceID][row.PersonID] = true
	}

	pairNotes := make(map[string]int)
	for _, mentioned := range noteMentions {
		if len(mentioned) < 2 {
			continue
		}
		ids := sortedKeys(mentioned)
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				pairNotes[a+"\x00"+b]++
			}
		}
	}

	updated := 0
	for key, notes := range pairNotes {
		if notes < e.cfg.MinCoMentions {
			continue
		}
		a, b, _ := strings.Cut(key, "\x00")
		_, _, err := e.edges.Upsert(graph.Contribution{
			PersonA:     a,
			PersonB:     b,
			Counter:     graph.CounterNone,
			Context:     sourceVault,
			DefaultType: e.cfg.DefaultType(nameVault, graph.TypeInferred),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert vault pair: %w", err)
		}
		updated++
	}

	e.logger.Info("vault discovery done", "relationships", updated)
	return updated, nil
}

// discoverFromMessagingGroups connects members of the same whatsapp
// group. Membership proves acquaintance but not contact dates, so like
// vault this contributes context only.
func (e *Engine) discoverFromMessagingGroups(ctx context.Context) (int, error) {
	rows, err := e.log.BySource(ctx, []string{sourceWhatsapp}, e.cutoff(), false)
	if err != nil {
		return 0, fmt.Errorf("load whatsapp interactions: %w", err)
	}

	groupMembers := make(map[string]map[string]bool)
	for _, row := range rows {
		if row.PersonID == "" || !strings.HasPrefix(row.Title, whatsappGroupPrefix) {
			continue
		}
		if groupMembers[row.Title] == nil {
			groupMembers[row.Title] = make(map[string]bool)
		}
		groupMembers[row.Title][row.PersonID] = true
	}
	e.logger.Debug("whatsapp groups found", "groups", len(groupMembers))

	pairGroups := make(map[string]int)
	for _, members := range groupMembers {
		if len(members) < 2 {
			continue
		}
		ids := sortedKeys(members)
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				pairGroups[a+"\x00"+b]++
			}
		}
	}

	updated := 0
	for key, groups := range pairGroups {
		if groups < e.cfg.MinSharedGroups {
			continue
		}
		a, b, _ := strings.Cut(key, "\x00")
		_, _, err := e.edges.Upsert(graph.Contribution{
			PersonA:     a,
			PersonB:     b,
			Counter:     graph.CounterNone,
			Context:     sourceWhatsapp,
			DefaultType: e.cfg.DefaultType(nameMessagingGroups, graph.TypeInferred),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert group pair: %w", err)
		}
		updated++
	}

	e.logger.Info("messaging group discovery done", "relationships", updated)
	return updated, nil
}
