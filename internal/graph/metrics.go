package graph

import (
	"math"
	"time"
)

// Scoring constants. Frequency dominates because most edges are sparse;
// the target of 100 weighted interactions keeps non-owner edges from all
// collapsing to zero.
const (
	recencyWeight     = 0.30
	frequencyWeight   = 0.60
	diversityWeight   = 0.10
	recencyWindowDays = 200
	frequencyTarget   = 100
	edgeWeightCeiling = 10000
)

// TotalSharedInteractions sums every per-source counter.
func (r *Relationship) TotalSharedInteractions() int {
	return r.SharedEventsCount + r.SharedThreadsCount +
		r.SharedMessagesCount + r.SharedWhatsappCount +
		r.SharedSlackCount + r.SharedPhoneCallsCount +
		r.SharedPhotosCount
}

// EdgeWeightRaw is the unnormalized weighted interaction sum. Synchronous
// and in-person signals weigh more than asynchronous text.
func (r *Relationship) EdgeWeightRaw() int {
	raw := r.SharedEventsCount*3 +
		r.SharedThreadsCount*2 +
		r.SharedMessagesCount*2 +
		r.SharedWhatsappCount*2 +
		r.SharedSlackCount*1 +
		r.SharedPhoneCallsCount*4 +
		r.SharedPhotosCount*3
	if r.IsLinkedInConnection {
		raw += 10
	}
	return raw
}

// EdgeWeight normalizes the raw weight to 0-100 on a log scale so a
// handful of interactions is visible and a few thousand saturates.
func (r *Relationship) EdgeWeight() int {
	raw := r.EdgeWeightRaw()
	if raw <= 0 {
		return 0
	}
	normalized := math.Log1p(float64(raw)) / math.Log1p(edgeWeightCeiling) * 100
	n := int(math.Round(normalized))
	if n > 100 {
		return 100
	}
	return n
}

// PairStrength scores the pair 0-100 from recency, frequency, and source
// diversity. Photos are excluded from frequency and diversity: they prove
// co-presence but not ongoing contact.
func (r *Relationship) PairStrength() int {
	recency := 0.0
	if r.LastSeenTogether != nil {
		now := time.Now().UTC()
		lastSeen := *r.LastSeenTogether
		if lastSeen.After(now) {
			lastSeen = now
		}
		daysSince := now.Sub(lastSeen).Hours() / 24
		recency = math.Max(0, 1-daysSince/recencyWindowDays)
	}

	weighted := float64(r.SharedEventsCount)*1.0 +
		float64(r.SharedThreadsCount)*0.8 +
		float64(r.SharedMessagesCount)*1.5 +
		float64(r.SharedWhatsappCount)*1.5 +
		float64(r.SharedSlackCount)*1.2 +
		float64(r.SharedPhoneCallsCount)*2.0
	frequency := 0.0
	if weighted > 0 {
		frequency = math.Min(1, math.Log1p(weighted)/math.Log1p(frequencyTarget))
	}

	sources := 0.0
	for _, n := range []int{
		r.SharedEventsCount, r.SharedThreadsCount, r.SharedMessagesCount,
		r.SharedWhatsappCount, r.SharedSlackCount, r.SharedPhoneCallsCount,
	} {
		if n > 0 {
			sources++
		}
	}
	if r.IsLinkedInConnection {
		sources += 0.5
	}
	diversity := math.Min(1, sources/6)

	strength := recency*recencyWeight + frequency*frequencyWeight + diversity*diversityWeight
	n := int(math.Round(strength * 100))
	if n > 100 {
		return 100
	}
	return n
}
