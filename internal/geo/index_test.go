package geo

import (
	"fmt"
	"math"
	"testing"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Seoul City Hall to Busan Station, roughly 325 km.
	d := Haversine(37.5663, 126.9779, 35.1151, 129.0403)
	if d < 315 || d > 335 {
		t.Fatalf("haversine: got %.1f km, want ~325", d)
	}
	if z := Haversine(35, 129, 35, 129); z != 0 {
		t.Fatalf("zero distance: got %v", z)
	}
}

func TestWithinRadiusAndExclusion(t *testing.T) {
	entries := []Entry{
		{ID: "a", Lat: 35.100, Lng: 129.000, Score: 0.9},
		{ID: "b", Lat: 35.101, Lng: 129.001, Score: 0.8},
		{ID: "c", Lat: 35.102, Lng: 129.002, Score: 0.7},
		{ID: "far", Lat: 36.500, Lng: 130.500, Score: 1.0},
	}
	ix := NewIndex(entries)
	hits := ix.Within(35.100, 129.000, 6, nil)
	if len(hits) != 3 {
		t.Fatalf("within: got %d hits, want 3", len(hits))
	}
	for _, h := range hits {
		if h.ID == "far" {
			t.Fatal("far entry should be outside radius")
		}
		if h.DistanceKm > 6 {
			t.Fatalf("hit %s beyond radius: %.2f km", h.ID, h.DistanceKm)
		}
	}
	hits = ix.Within(35.100, 129.000, 6, map[string]struct{}{"b": {}})
	if len(hits) != 2 {
		t.Fatalf("excluded query: got %d hits, want 2", len(hits))
	}
	for _, h := range hits {
		if h.ID == "b" {
			t.Fatal("excluded id returned")
		}
	}
}

func TestWithinEmptyIndex(t *testing.T) {
	var nilIx *Index
	if got := nilIx.Within(35, 129, 6, nil); got != nil {
		t.Fatalf("nil index: got %v", got)
	}
	ix := NewIndex(nil)
	if got := ix.Within(35, 129, 6, nil); len(got) != 0 {
		t.Fatalf("empty index: got %d hits", len(got))
	}
}

func TestWithinMatchesLinearScan(t *testing.T) {
	// Deterministic pseudo-grid around a center point.
	var entries []Entry
	for i := 0; i < 400; i++ {
		lat := 35.0 + 0.002*float64(i%20) + 0.0001*float64(i)
		lng := 129.0 + 0.003*float64(i/20)
		entries = append(entries, Entry{ID: fmt.Sprintf("p%03d", i), Lat: lat, Lng: lng})
	}
	ix := NewIndex(entries)
	const radius = 3.5
	got := ix.Within(35.02, 129.03, radius, nil)
	want := map[string]bool{}
	for _, e := range entries {
		if Haversine(35.02, 129.03, e.Lat, e.Lng) <= radius {
			want[e.ID] = true
		}
	}
	if len(got) != len(want) {
		t.Fatalf("tree found %d, scan found %d", len(got), len(want))
	}
	for _, h := range got {
		if !want[h.ID] {
			t.Fatalf("tree returned %s not found by scan", h.ID)
		}
	}
}

func TestWithinKeepsRadiusEdge(t *testing.T) {
	// 5.998 km due east/west of the query point, just inside the 6 km
	// circle, where an undersized pruning box would drop them.
	ix := NewIndex([]Entry{
		{ID: "east", Lat: 35.0, Lng: 129.06585, Score: 1},
		{ID: "west", Lat: 35.0, Lng: 128.93415, Score: 1},
	})
	for _, lng := range []float64{129.06585, 128.93415} {
		if d := Haversine(35, 129, 35, lng); d > 6 {
			t.Fatalf("fixture at lng %v drifted outside the radius: %.4f km", lng, d)
		}
	}
	hits := ix.Within(35, 129, 6, nil)
	if len(hits) != 2 {
		t.Fatalf("edge points dropped: got %d hits", len(hits))
	}
	if hits[0].ID != "east" || hits[1].ID != "west" {
		t.Fatalf("got %s,%s", hits[0].ID, hits[1].ID)
	}
}

func TestRankedCombinedScoreAndTieBreak(t *testing.T) {
	entries := []Entry{
		{ID: "near-low", Lat: 35.1000, Lng: 129.0000, Score: 0.2},
		{ID: "far-high", Lat: 35.1400, Lng: 129.0000, Score: 1.0},
	}
	ix := NewIndex(entries)
	hits := ix.Ranked(35.1000, 129.0000, 6, nil, 0.7, 0.3)
	if len(hits) != 2 {
		t.Fatalf("got %d hits", len(hits))
	}
	// 0.7*1.0 + 0.3*(1-d/6) with d≈4.4 beats 0.7*0.2 + 0.3*1.
	if hits[0].ID != "far-high" {
		t.Fatalf("ranking: got %s first", hits[0].ID)
	}
	for _, h := range hits {
		want := 0.7*h.Score + 0.3*(1-h.DistanceKm/6)
		if math.Abs(h.Combined-want) > 1e-9 {
			t.Fatalf("combined for %s: got %v want %v", h.ID, h.Combined, want)
		}
	}

	// Identical coordinates and scores tie; id breaks the tie.
	ties := NewIndex([]Entry{
		{ID: "z", Lat: 35.1, Lng: 129.0, Score: 0.5},
		{ID: "a", Lat: 35.1, Lng: 129.0, Score: 0.5},
	})
	ranked := ties.Ranked(35.1, 129.0, 6, nil, 0.7, 0.3)
	if ranked[0].ID != "a" || ranked[1].ID != "z" {
		t.Fatalf("tie-break: got %s,%s", ranked[0].ID, ranked[1].ID)
	}
}
