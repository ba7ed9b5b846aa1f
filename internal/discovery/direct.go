package discovery

import (
	"context"
	"fmt"

	"github.com/kithlabs/kith/internal/graph"
	"github.com/kithlabs/kith/internal/interactions"
)

// directSpec configures one direct-with-owner extractor. These feeds all
// aggregate the same way in SQL; only source types, title filters and
// the target counter differ.
type directSpec struct {
	name           string
	sourceTypes    []string
	titleNotPrefix string
	minCount       int
	counter        graph.Counter
	context        string
}

func (e *Engine) discoverDirect(ctx context.Context, spec directSpec) (int, error) {
	if e.owner == "" {
		e.logger.Warn("owner not configured, skipping direct discovery", "extractor", spec.name)
		return 0, nil
	}

	counts, err := e.log.DirectCounts(ctx, interactions.DirectQuery{
		SourceTypes:     spec.sourceTypes,
		Since:           e.cutoff(),
		ExcludePersonID: e.owner,
		TitleNotPrefix:  spec.titleNotPrefix,
		MinCount:        spec.minCount,
	})
	if err != nil {
		return 0, fmt.Errorf("aggregate %s interactions: %w", spec.name, err)
	}

	updated := 0
	for _, dc := range counts {
		_, _, err := e.edges.Upsert(graph.Contribution{
			PersonA:     e.owner,
			PersonB:     dc.PersonID,
			Counter:     spec.counter,
			Count:       dc.Count,
			Context:     spec.context,
			First:       dc.First,
			Last:        dc.Last,
			DefaultType: e.cfg.DefaultType(spec.name, graph.TypeInferred),
		})
		if err != nil {
			return updated, fmt.Errorf("upsert %s pair: %w", spec.name, err)
		}
		updated++
	}

	e.logger.Info("direct discovery done", "extractor", spec.name, "relationships", updated)
	return updated, nil
}

// discoverFromIMessageDirect counts direct iMessage and SMS traffic
// between the owner and each counterpart.
func (e *Engine) discoverFromIMessageDirect(ctx context.Context) (int, error) {
	return e.discoverDirect(ctx, directSpec{
		name:        nameIMessageDirect,
		sourceTypes: []string{sourceIMessage, sourceSMS},
		minCount:    e.cfg.MinDirectMessages,
		counter:     graph.CounterMessages,
		context:     sourceIMessage,
	})
}

// discoverFromWhatsappDirect counts direct whatsapp traffic, keeping
// group messages out of the count.
func (e *Engine) discoverFromWhatsappDirect(ctx context.Context) (int, error) {
	return e.discoverDirect(ctx, directSpec{
		name:           nameWhatsappDirect,
		sourceTypes:    []string{sourceWhatsapp},
		titleNotPrefix: whatsappGroupPrefix,
		minCount:       e.cfg.MinDirectMessages,
		counter:        graph.CounterWhatsapp,
		context:        sourceWhatsapp,
	})
}

// discoverFromPhoneCalls counts calls between the owner and each
// counterpart.
func (e *Engine) discoverFromPhoneCalls(ctx context.Context) (int, error) {
	return e.discoverDirect(ctx, directSpec{
		name:        namePhoneCalls,
		sourceTypes: []string{sourcePhone},
		minCount:    e.cfg.MinPhoneCalls,
		counter:     graph.CounterPhoneCalls,
		context:     sourcePhone,
	})
}
