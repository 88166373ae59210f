package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is the great-circle radius used for all distances.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Entry is one indexed place with the raw score attached at build time.
type Entry struct {
	ID    string
	Lat   float64
	Lng   float64
	Score float64
}

// Hit is a query result. Combined is only populated by Ranked.
type Hit struct {
	Entry
	DistanceKm float64
	Combined   float64
}

// Index is a static 2-d tree over one category's candidates. Construction is
// O(n log n); radius queries prune subtrees against the query circle's
// bounding box and verify survivors with the haversine distance. Queries are
// side-effect-free, so one index may be shared across concurrent runs.
type Index struct {
	entries []Entry
	root    *node
}

type node struct {
	idx         int
	axis        int // 0 = lat, 1 = lng
	left, right *node
}

// NewIndex builds an index. A nil or empty candidate set yields an index whose
// queries return nothing; callers treat that as "quota unmet", not an error.
func NewIndex(entries []Entry) *Index {
	ix := &Index{entries: append([]Entry(nil), entries...)}
	idxs := make([]int, len(ix.entries))
	for i := range idxs {
		idxs[i] = i
	}
	ix.root = build(ix.entries, idxs, 0)
	return ix
}

func build(entries []Entry, idxs []int, depth int) *node {
	if len(idxs) == 0 {
		return nil
	}
	axis := depth % 2
	sort.Slice(idxs, func(i, j int) bool {
		return coord(entries[idxs[i]], axis) < coord(entries[idxs[j]], axis)
	})
	mid := len(idxs) / 2
	n := &node{idx: idxs[mid], axis: axis}
	n.left = build(entries, idxs[:mid], depth+1)
	n.right = build(entries, idxs[mid+1:], depth+1)
	return n
}

func coord(e Entry, axis int) float64 {
	if axis == 0 {
		return e.Lat
	}
	return e.Lng
}

// Len reports the number of indexed entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Within returns all entries inside radiusKm of the point, minus the exclusion
// set, ordered by id so the result is reproducible regardless of tree shape.
func (ix *Index) Within(lat, lng, radiusKm float64, exclude map[string]struct{}) []Hit {
	if ix == nil || ix.root == nil || radiusKm <= 0 {
		return nil
	}
	// Conservative bounding box of the query circle, in degrees. Both axes
	// derive from the same sphere as Haversine, padded so pruning never
	// undercuts the circle.
	degKm := math.Pi / 180 * EarthRadiusKm
	dLat := radiusKm / degKm * 1.01
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLng := radiusKm / (degKm * cosLat) * 1.01
	var out []Hit
	ix.search(ix.root, lat, lng, radiusKm, lat-dLat, lat+dLat, lng-dLng, lng+dLng, exclude, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (ix *Index) search(n *node, lat, lng, radiusKm, latMin, latMax, lngMin, lngMax float64, exclude map[string]struct{}, out *[]Hit) {
	if n == nil {
		return
	}
	e := ix.entries[n.idx]
	if e.Lat >= latMin && e.Lat <= latMax && e.Lng >= lngMin && e.Lng <= lngMax {
		if _, skip := exclude[e.ID]; !skip {
			if d := Haversine(lat, lng, e.Lat, e.Lng); d <= radiusKm {
				*out = append(*out, Hit{Entry: e, DistanceKm: d})
			}
		}
	}
	c := coord(e, n.axis)
	var lo, hi float64
	if n.axis == 0 {
		lo, hi = latMin, latMax
	} else {
		lo, hi = lngMin, lngMax
	}
	if lo <= c {
		ix.search(n.left, lat, lng, radiusKm, latMin, latMax, lngMin, lngMax, exclude, out)
	}
	if hi >= c {
		ix.search(n.right, lat, lng, radiusKm, latMin, latMax, lngMin, lngMax, exclude, out)
	}
}

// Ranked returns the hits within radiusKm ranked by the combined score
// wPref*score + wDist*(1 - distance/radiusKm), descending. Equal combined
// scores fall back to ascending place id, a committed tie-break so the greedy
// selection downstream is reproducible.
func (ix *Index) Ranked(lat, lng, radiusKm float64, exclude map[string]struct{}, wPref, wDist float64) []Hit {
	hits := ix.Within(lat, lng, radiusKm, exclude)
	for i := range hits {
		distScore := 1 - hits[i].DistanceKm/radiusKm
		hits[i].Combined = wPref*hits[i].Score + wDist*distScore
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Combined != hits[j].Combined {
			return hits[i].Combined > hits[j].Combined
		}
		return hits[i].ID < hits[j].ID
	})
	return hits
}
