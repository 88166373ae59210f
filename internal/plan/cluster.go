package plan

import (
	"sort"

	"tripnav/internal/geo"
	"tripnav/internal/model"
)

// seedCandidate is one entry of the seed pool: a scored place from any
// clustered category, with its location resolved from the catalog.
type seedCandidate struct {
	id       string
	category model.Category
	lat, lng float64
	score    float64
}

// ClusterBuilder groups a user's scored candidates into day-sized geographic
// clusters with a greedy seed-and-grow pass. The builder itself is reusable
// and read-only after construction; each Build call owns its own used-id
// state, so independent runs may share one builder concurrently.
type ClusterBuilder struct {
	cfg     Config
	catalog Catalog
	indices map[model.Category]*geo.Index
	pool    []seedCandidate
}

// NewClusterBuilder resolves the clustered-category score lists against the
// catalog and builds one spatial index per category. Candidates missing from
// the catalog are dropped here, never surfaced as errors.
func NewClusterBuilder(cfg Config, catalog Catalog, scores model.ScoreSet) *ClusterBuilder {
	cfg = cfg.withDefaults()
	b := &ClusterBuilder{cfg: cfg, catalog: catalog, indices: map[model.Category]*geo.Index{}}
	for _, cat := range model.ClusterCategories {
		var entries []geo.Entry
		for _, c := range scores[cat] {
			p, ok := catalog[c.PlaceID]
			if !ok {
				continue
			}
			entries = append(entries, geo.Entry{ID: p.ID, Lat: p.Lat, Lng: p.Lng, Score: c.Score})
			b.pool = append(b.pool, seedCandidate{id: p.ID, category: cat, lat: p.Lat, lng: p.Lng, score: c.Score})
		}
		if len(entries) > 0 {
			b.indices[cat] = geo.NewIndex(entries)
		}
	}
	// Score-descending pool with id as the committed secondary key.
	sort.SliceStable(b.pool, func(i, j int) bool {
		if b.pool[i].score != b.pool[j].score {
			return b.pool[i].score > b.pool[j].score
		}
		return b.pool[i].id < b.pool[j].id
	})
	return b
}

// Build produces n clusters. The exclusion set is caller-owned and copied; a
// prior run's full selection passed here yields disjoint clusters.
func (b *ClusterBuilder) Build(n int, exclude map[string]struct{}) []model.Cluster {
	used := make(map[string]struct{}, len(exclude))
	for id := range exclude {
		used[id] = struct{}{}
	}
	usedSeeds := map[string]struct{}{}
	var clusters []model.Cluster
	for i := 0; i < n; i++ {
		seed, ok := b.pickSeed(used, usedSeeds)
		if !ok {
			break // pool exhausted entirely
		}
		used[seed.id] = struct{}{}
		usedSeeds[seed.id] = struct{}{}
		c := model.Cluster{
			ID:         i,
			SeedID:     seed.id,
			SeedScore:  seed.score,
			CenterLat:  seed.lat,
			CenterLng:  seed.lng,
			Categories: map[model.Category][]model.ScoredCandidate{},
		}
		for _, cat := range model.ClusterCategories {
			found := b.reserve(cat, seed, used)
			if len(found) > 0 && len(found) < b.cfg.MinPlacesPerCategory {
				// Quota-or-empty: a fallback seed may sit in a sparse area;
				// an under-quota list degrades to none rather than a partial day.
				found = nil
			}
			for _, f := range found {
				used[f.PlaceID] = struct{}{}
			}
			c.Categories[cat] = found
		}
		clusters = append(clusters, c)
	}
	return clusters
}

// pickSeed evaluates the top candidates by raw score and keeps the valid seed
// whose surrounding candidates carry the greatest score mass. When no seed
// meets every category quota it falls back to the best-scored unused one.
func (b *ClusterBuilder) pickSeed(used, usedSeeds map[string]struct{}) (seedCandidate, bool) {
	var pool []seedCandidate
	for _, s := range b.pool {
		if _, taken := usedSeeds[s.id]; !taken {
			pool = append(pool, s)
		}
	}
	if len(pool) == 0 {
		pool = b.pool
	}
	if len(pool) == 0 {
		return seedCandidate{}, false
	}
	top := pool
	if len(top) > b.cfg.SeedPoolSize {
		top = top[:b.cfg.SeedPoolSize]
	}
	best := -1
	bestTotal := 0.0
	for i, s := range top {
		total, valid := b.probeSeed(s, used)
		if !valid {
			continue
		}
		if best == -1 || total > bestTotal {
			best = i
			bestTotal = total
		}
	}
	if best >= 0 {
		return top[best], true
	}
	return pool[0], true
}

// probeSeed tentatively queries every clustered category around the seed.
// Valid means each category yields at least the minimum quota; the returned
// total is the sum of raw scores across all categories' candidates.
func (b *ClusterBuilder) probeSeed(s seedCandidate, used map[string]struct{}) (float64, bool) {
	total := 0.0
	for _, cat := range model.ClusterCategories {
		ix := b.indices[cat]
		if ix == nil {
			return 0, false
		}
		hits := ix.Ranked(s.lat, s.lng, b.cfg.MaxClusterRadiusKm, used, b.cfg.PreferenceWeight, b.cfg.DistanceWeight)
		if len(hits) > b.cfg.PlacesPerCategory {
			hits = hits[:b.cfg.PlacesPerCategory]
		}
		if len(hits) < b.cfg.MinPlacesPerCategory {
			return 0, false
		}
		for _, h := range hits {
			total += h.Score
		}
	}
	return total, true
}

// reserve returns the top candidates of one category around the seed, ordered
// by combined score, carrying the raw score in the result.
func (b *ClusterBuilder) reserve(cat model.Category, s seedCandidate, used map[string]struct{}) []model.ScoredCandidate {
	ix := b.indices[cat]
	if ix == nil {
		return nil
	}
	hits := ix.Ranked(s.lat, s.lng, b.cfg.MaxClusterRadiusKm, used, b.cfg.PreferenceWeight, b.cfg.DistanceWeight)
	if len(hits) > b.cfg.PlacesPerCategory {
		hits = hits[:b.cfg.PlacesPerCategory]
	}
	out := make([]model.ScoredCandidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.ScoredCandidate{PlaceID: h.ID, Score: h.Score})
	}
	return out
}

// GeoDayCount reports how many template days need a geographic grouping,
// i.e. contain at least one Cafe/Restaurant/Attraction slot.
func GeoDayCount(tpl model.Template) int {
	n := 0
	for _, d := range tpl.Days {
		for _, s := range d.Slots {
			if s.Category != model.CategoryAccommodation {
				n++
				break
			}
		}
	}
	return n
}
