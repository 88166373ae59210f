package plan

import (
	"reflect"
	"testing"

	"tripnav/internal/model"
)

func clusterIDs(c model.Cluster) map[string]struct{} {
	ids := map[string]struct{}{c.SeedID: {}}
	for _, list := range c.Categories {
		for _, s := range list {
			ids[s.PlaceID] = struct{}{}
		}
	}
	return ids
}

func TestBuildOneClusterPerDay(t *testing.T) {
	b := NewClusterBuilder(testConfig(), testCatalog(), testPreference())
	clusters := b.Build(2, nil)
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}

	// The first seed comes from the higher-scored area A.
	first := testCatalog()[clusters[0].SeedID]
	if first.Lat > 35.2 {
		t.Fatalf("first seed %s is not in the top-scored area", clusters[0].SeedID)
	}
	for _, c := range clusters {
		for cat, list := range c.Categories {
			if len(list) > 0 && len(list) < testConfig().MinPlacesPerCategory {
				t.Fatalf("cluster %d category %s has %d places, below quota", c.ID, cat, len(list))
			}
		}
	}

	// No place appears in two clusters.
	seen := clusterIDs(clusters[0])
	for id := range clusterIDs(clusters[1]) {
		if _, dup := seen[id]; dup {
			t.Fatalf("place %s appears in both clusters", id)
		}
	}
	if clusters[0].SeedID == clusters[1].SeedID {
		t.Fatalf("seed %s reused", clusters[0].SeedID)
	}
}

func TestBuildQuotaOrEmpty(t *testing.T) {
	// A single in-radius cafe can never meet the quota of two: the builder
	// falls back to the best unused seed and the cafe list degrades to empty.
	scores := model.ScoreSet{
		model.CategoryCafe: {
			{PlaceID: "ca1", Score: 0.95}, {PlaceID: "cb1", Score: 0.3},
		},
		model.CategoryRestaurant: {
			{PlaceID: "ra1", Score: 0.9}, {PlaceID: "ra2", Score: 0.8}, {PlaceID: "ra3", Score: 0.7},
		},
		model.CategoryAttraction: {
			{PlaceID: "aa1", Score: 0.85}, {PlaceID: "aa2", Score: 0.75},
		},
	}
	b := NewClusterBuilder(testConfig(), testCatalog(), scores)
	clusters := b.Build(1, nil)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	c := clusters[0]
	if c.SeedID != "ca1" {
		t.Fatalf("fallback seed = %s, want the highest-scored candidate ca1", c.SeedID)
	}
	if n := len(c.Categories[model.CategoryCafe]); n != 0 {
		t.Fatalf("cafe list = %d entries, want 0 (under quota)", n)
	}
	if n := len(c.Categories[model.CategoryRestaurant]); n < 2 {
		t.Fatalf("restaurant list = %d entries, want >= 2", n)
	}
}

func TestBuildExclusionDisjoint(t *testing.T) {
	b := NewClusterBuilder(testConfig(), testCatalog(), testPreference())
	first := b.Build(1, nil)
	if len(first) != 1 {
		t.Fatalf("first run clusters = %d, want 1", len(first))
	}
	taken := clusterIDs(first[0])

	second := b.Build(1, taken)
	if len(second) != 1 {
		t.Fatalf("second run clusters = %d, want 1", len(second))
	}
	for id := range clusterIDs(second[0]) {
		if _, dup := taken[id]; dup {
			t.Fatalf("excluded place %s selected again", id)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	a := NewClusterBuilder(testConfig(), testCatalog(), testPreference()).Build(2, nil)
	b := NewClusterBuilder(testConfig(), testCatalog(), testPreference()).Build(2, nil)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different clusters:\n%v\n%v", a, b)
	}
}

func TestBuildSkipsUncatalogedCandidates(t *testing.T) {
	scores := testPreference()
	scores[model.CategoryCafe] = append([]model.ScoredCandidate{{PlaceID: "ghost", Score: 1.0}}, scores[model.CategoryCafe]...)
	b := NewClusterBuilder(testConfig(), testCatalog(), scores)
	for _, c := range b.Build(2, nil) {
		for _, s := range c.Categories[model.CategoryCafe] {
			if s.PlaceID == "ghost" {
				t.Fatal("candidate missing from the catalog was clustered")
			}
		}
	}
}

func TestGeoDayCount(t *testing.T) {
	tpl := testTemplate(3)
	if n := GeoDayCount(tpl); n != 3 {
		t.Fatalf("GeoDayCount = %d, want 3", n)
	}
	tpl.Days[2].Slots = []model.DaySlot{{Category: model.CategoryAccommodation, TimeLabel: "21:00"}}
	if n := GeoDayCount(tpl); n != 2 {
		t.Fatalf("GeoDayCount with lodging-only day = %d, want 2", n)
	}
}
