package discovery

import (
	"context"
	"fmt"

	"github.com/kithlabs/kith/internal/graph"
)

// discoverLinkedInConnections flags edges where the counterpart is in
// the owner's linkedin export. The flag is sticky: an edge already
// flagged is skipped and not counted as updated. Connections carry no
// interaction dates, so new edges stay undated.
func (e *Engine) discoverLinkedInConnections(ctx context.Context) (int, error) {
	if e.owner == "" {
		e.logger.Warn("owner not configured, skipping linkedin discovery")
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	linked, err := e.links.LinkedPersonIDs(sourceLinkedIn)
	if err != nil {
		return 0, fmt.Errorf("load linkedin links: %w", err)
	}

	connections := make(map[string]bool)
	for _, personID := range linked {
		if personID != e.owner {
			connections[personID] = true
		}
	}
	e.logger.Debug("linkedin connections found", "count", len(connections))

	updated := 0
	for personID := range connections {
		existing, err := e.edges.GetBetween(e.owner, personID)
		if err != nil {
			return updated, fmt.Errorf("check linkedin pair: %w", err)
		}
		if existing != nil && existing.IsLinkedInConnection {
			continue
		}
		_, _, err = e.edges.Upsert(graph.Contribution{
			PersonA:     e.owner,
			PersonB:     personID,
			Counter:     graph.CounterNone,
			Context:     sourceLinkedIn,
			LinkedIn:    true,
			DefaultType: e.cfg.DefaultType(nameLinkedIn, graph.TypeInferred),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert linkedin pair: %w", err)
		}
		updated++
	}

	e.logger.Info("linkedin discovery done", "relationships", updated)
	return updated, nil
}
