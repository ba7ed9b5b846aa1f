package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/kithlabs/kith/internal/graph"
)

// discoverFromSharedPhotos connects people who appear in the same
// photos. A photo row's source id is the asset id; everyone tagged in
// one asset is pairwise connected, with the asset's timestamp widening
// the pair's date range.
func (e *Engine) discoverFromSharedPhotos(ctx context.Context) (int, error) {
	rows, err := e.log.BySource(ctx, []string{sourcePhotos}, e.cutoff(), false)
	if err != nil {
		return 0, fmt.Errorf("load photo interactions: %w", err)
	}

	photoPeople := make(map[string]map[string]bool)
	// all rows of one asset share its capture time
	photoTimes := make(map[string]*time.Time)
	for _, row := range rows {
		if row.PersonID == "" || row.SourceID == "" || row.Timestamp == nil {
			continue
		}
		if photoPeople[row.SourceID] == nil {
			photoPeople[row.SourceID] = make(map[string]bool)
			photoTimes[row.SourceID] = row.Timestamp
		}
		photoPeople[row.SourceID][row.PersonID] = true
	}

	pairs := make(pairMap)
	for photoID, tagged := range photoPeople {
		if len(tagged) < 2 {
			continue
		}
		when := photoTimes[photoID]
		ids := sortedKeys(tagged)
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				pairs.get(a, b).observe(when)
			}
		}
	}

	updated := 0
	for _, agg := range pairs {
		if agg.count < e.cfg.MinSharedPhotos {
			continue
		}
		_, _, err := e.edges.Upsert(graph.Contribution{
			PersonA:     agg.pair[0],
			PersonB:     agg.pair[1],
			Counter:     graph.CounterPhotos,
			Count:       agg.count,
			Context:     sourcePhotos,
			First:       agg.first,
			Last:        agg.last,
			DefaultType: e.cfg.DefaultType(namePhotos, graph.TypeInferred),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert photo pair: %w", err)
		}
		updated++
	}

	e.logger.Info("photo discovery done", "relationships", updated)
	return updated, nil
}
