package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/kithlabs/kith/internal/codec"
	"github.com/kithlabs/kith/internal/graph"
	"github.com/kithlabs/kith/internal/people"
)

// discoverFromSlackDirect counts slack DM traffic between the owner and
// each counterpart. Slack identities resolve in two passes: explicit
// links from the link table first, then an exact-name match of unlinked
// slack profiles against the person directory.
func (e *Engine) discoverFromSlackDirect(ctx context.Context) (int, error) {
	if e.owner == "" {
		e.logger.Warn("owner not configured, skipping slack discovery")
		return 0, nil
	}

	userToPerson, nameMatched, err := e.slackUserMap()
	if err != nil {
		return 0, err
	}
	if len(userToPerson) == 0 {
		e.logger.Info("no slack users mapped to people, skipping slack discovery")
		return 0, nil
	}
	e.logger.Debug("slack users mapped", "total", len(userToPerson), "by_name", nameMatched)

	rows, err := e.log.BySource(ctx, []string{sourceSlack}, e.cutoff(), false)
	if err != nil {
		return 0, fmt.Errorf("load slack interactions: %w", err)
	}

	type personCount struct {
		count int
		first *time.Time
		last  *time.Time
	}
	perPerson := make(map[string]*personCount)
	for _, row := range rows {
		// source_id carries message id and slack user id
		_, slackUserID := codec.DecodeSourceID(row.SourceID)
		personID := userToPerson[slackUserID]
		if personID == "" || personID == e.owner {
			continue
		}
		pc := perPerson[personID]
		if pc == nil {
			pc = &personCount{}
			perPerson[personID] = pc
		}
		pc.count++
		if t := row.Timestamp; t != nil {
			if pc.first == nil || t.Before(*pc.first) {
				tc := *t
				pc.first = &tc
			}
			if pc.last == nil || t.After(*pc.last) {
				tc := *t
				pc.last = &tc
			}
		}
	}

	updated := 0
	for personID, pc := range perPerson {
		if pc.count < e.cfg.MinDirectMessages {
			continue
		}
		_, _, err := e.edges.Upsert(graph.Contribution{
			PersonA:     e.owner,
			PersonB:     personID,
			Counter:     graph.CounterSlack,
			Count:       pc.count,
			Context:     sourceSlack,
			First:       pc.first,
			Last:        pc.last,
			DefaultType: e.cfg.DefaultType(nameSlackDirect, graph.TypeInferred),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert slack pair: %w", err)
		}
		updated++
	}

	e.logger.Info("slack discovery done", "relationships", updated)
	return updated, nil
}

// slackUserMap builds slack user id -> person id. Link rows store
// "workspace:user" as source id; only the user part keys the map since
// the message rows carry no workspace.
func (e *Engine) slackUserMap() (map[string]string, int, error) {
	linked, err := e.links.LinkedPersonIDs(sourceSlack)
	if err != nil {
		return nil, 0, fmt.Errorf("load slack links: %w", err)
	}

	userToPerson := make(map[string]string, len(linked))
	for sourceID, personID := range linked {
		if userID := slackUserID(sourceID); userID != "" {
			userToPerson[userID] = personID
		}
	}

	unlinked, err := e.links.UnlinkedNames(sourceSlack)
	if err != nil {
		return nil, 0, fmt.Errorf("load unlinked slack names: %w", err)
	}
	if len(unlinked) == 0 {
		return userToPerson, 0, nil
	}

	persons, err := e.people.GetAll()
	if err != nil {
		return nil, 0, fmt.Errorf("load persons: %w", err)
	}
	resolver := people.NewResolver(persons)

	nameMatched := 0
	for sourceID, name := range unlinked {
		userID := slackUserID(sourceID)
		if userID == "" {
			continue
		}
		if _, taken := userToPerson[userID]; taken {
			continue
		}
		if personID := resolver.ResolveName(name); personID != "" {
			userToPerson[userID] = personID
			nameMatched++
		}
	}
	return userToPerson, nameMatched, nil
}

func slackUserID(sourceID string) string {
	_, userID := codec.DecodeSourceID(sourceID)
	return userID
}
