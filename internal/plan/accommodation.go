package plan

import (
	"tripnav/internal/geo"
	"tripnav/internal/model"
)

// Lodging is the accommodation choice for a trip, repeated on every overnight
// day of the schedule.
type Lodging struct {
	PlaceID string
	Score   float64
}

// SelectAccommodation picks one lodging for a multi-day trip. Up to
// LodgingBudgetShare of the total budget is allocated to lodging; a candidate
// is feasible when price × (duration−1) fits that allocation and its nightly
// price is known. The score blends preference with proximity to the mean of
// the cluster centers. Returns ok=false for day trips or when nothing is
// feasible; callers then emit an itinerary without fixed lodging.
func SelectAccommodation(cfg Config, catalog Catalog, candidates []model.ScoredCandidate, clusters []model.Cluster, params model.TripParams) (Lodging, bool) {
	cfg = cfg.withDefaults()
	if params.DurationDays <= 1 {
		return Lodging{}, false
	}
	lodgingBudget := params.TotalBudget * cfg.LodgingBudgetShare
	nights := float64(params.DurationDays - 1)

	var centerLat, centerLng float64
	for _, c := range clusters {
		centerLat += c.CenterLat
		centerLng += c.CenterLng
	}
	if len(clusters) > 0 {
		centerLat /= float64(len(clusters))
		centerLng /= float64(len(clusters))
	}

	best := Lodging{}
	found := false
	for _, cand := range candidates {
		p, ok := catalog[cand.PlaceID]
		if !ok || p.Price == nil {
			continue
		}
		if *p.Price*nights > lodgingBudget {
			continue
		}
		dist := 0.0
		if len(clusters) > 0 {
			dist = geo.Haversine(p.Lat, p.Lng, centerLat, centerLng)
		}
		score := cfg.PreferenceWeight*cand.Score + (1-cfg.PreferenceWeight)*(1/(1+dist))
		// Strict greater-than keeps candidate-list order on ties.
		if !found || score > best.Score {
			best = Lodging{PlaceID: cand.PlaceID, Score: score}
			found = true
		}
	}
	return best, found
}
