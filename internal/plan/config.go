package plan

import "tripnav/internal/model"

// Config holds the planner tuning knobs. Zero values are replaced by the
// defaults below so a partially specified config file still works.
type Config struct {
	PlacesPerCategory    int     `yaml:"placesPerCategory"`
	MinPlacesPerCategory int     `yaml:"minPlacesPerCategory"`
	MaxClusterRadiusKm   float64 `yaml:"maxClusterRadiusKm"`
	PreferenceWeight     float64 `yaml:"preferenceWeight"`
	DistanceWeight       float64 `yaml:"distanceWeight"`
	SeedPoolSize         int     `yaml:"seedPoolSize"`
	LodgingBudgetShare   float64 `yaml:"lodgingBudgetShare"`
	FoodBudgetShare      float64 `yaml:"foodBudgetShare"`
	DefaultMealPrice     float64 `yaml:"defaultMealPrice"`
}

// DefaultConfig returns the planner defaults: 6 km clusters of 10 places per
// category, 0.7/0.3 preference/distance blend, half the budget reserved for
// lodging and half of the daily remainder for food.
func DefaultConfig() Config {
	return Config{
		PlacesPerCategory:    10,
		MinPlacesPerCategory: 10,
		MaxClusterRadiusKm:   6,
		PreferenceWeight:     0.7,
		DistanceWeight:       0.3,
		SeedPoolSize:         20,
		LodgingBudgetShare:   0.5,
		FoodBudgetShare:      0.5,
		DefaultMealPrice:     5000,
	}
}

// withDefaults fills any unset field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PlacesPerCategory <= 0 {
		c.PlacesPerCategory = d.PlacesPerCategory
	}
	if c.MinPlacesPerCategory <= 0 {
		c.MinPlacesPerCategory = d.MinPlacesPerCategory
	}
	if c.MaxClusterRadiusKm <= 0 {
		c.MaxClusterRadiusKm = d.MaxClusterRadiusKm
	}
	if c.PreferenceWeight <= 0 {
		c.PreferenceWeight = d.PreferenceWeight
	}
	if c.DistanceWeight <= 0 {
		c.DistanceWeight = d.DistanceWeight
	}
	if c.SeedPoolSize <= 0 {
		c.SeedPoolSize = d.SeedPoolSize
	}
	if c.LodgingBudgetShare <= 0 {
		c.LodgingBudgetShare = d.LodgingBudgetShare
	}
	if c.FoodBudgetShare <= 0 {
		c.FoodBudgetShare = d.FoodBudgetShare
	}
	if c.DefaultMealPrice <= 0 {
		c.DefaultMealPrice = d.DefaultMealPrice
	}
	return c
}

// Catalog is the read-only place attribute lookup shared by all planner
// stages. Lookups are side-effect-free and safe for concurrent use.
type Catalog map[string]model.Place
