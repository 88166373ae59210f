package plan

import (
	"tripnav/internal/model"
)

func fp(v float64) *float64 { return &v }

// testConfig shrinks the quotas so fixtures stay small.
func testConfig() Config {
	return Config{
		PlacesPerCategory:    3,
		MinPlacesPerCategory: 2,
		MaxClusterRadiusKm:   6,
		PreferenceWeight:     0.7,
		DistanceWeight:       0.3,
		SeedPoolSize:         5,
		LodgingBudgetShare:   0.5,
		FoodBudgetShare:      0.5,
		DefaultMealPrice:     5000,
	}
}

// testCatalog lays out two areas roughly 45 km apart, three places per
// clustered category in each, plus three lodgings between them.
func testCatalog() Catalog {
	c := Catalog{}
	add := func(id string, cat model.Category, lat, lng float64, price *float64) {
		c[id] = model.Place{ID: id, Name: "place " + id, Category: cat, Lat: lat, Lng: lng, Price: price, Description: "d:" + id}
	}
	// Area A around (35.100, 129.000).
	add("ca1", model.CategoryCafe, 35.1010, 129.0010, fp(4000))
	add("ca2", model.CategoryCafe, 35.1020, 129.0020, fp(3000))
	add("ca3", model.CategoryCafe, 35.1030, 129.0030, nil)
	add("ra1", model.CategoryRestaurant, 35.1005, 129.0015, fp(12000))
	add("ra2", model.CategoryRestaurant, 35.1015, 129.0025, fp(8000))
	add("ra3", model.CategoryRestaurant, 35.1025, 129.0035, fp(6000))
	add("aa1", model.CategoryAttraction, 35.1008, 129.0018, nil)
	add("aa2", model.CategoryAttraction, 35.1018, 129.0028, nil)
	add("aa3", model.CategoryAttraction, 35.1028, 129.0038, nil)
	// Area B around (35.400, 129.300).
	add("cb1", model.CategoryCafe, 35.4010, 129.3010, fp(4500))
	add("cb2", model.CategoryCafe, 35.4020, 129.3020, fp(3500))
	add("cb3", model.CategoryCafe, 35.4030, 129.3030, nil)
	add("rb1", model.CategoryRestaurant, 35.4005, 129.3015, fp(7000))
	add("rb2", model.CategoryRestaurant, 35.4015, 129.3025, fp(9000))
	add("rb3", model.CategoryRestaurant, 35.4025, 129.3035, fp(5000))
	add("ab1", model.CategoryAttraction, 35.4008, 129.3018, nil)
	add("ab2", model.CategoryAttraction, 35.4018, 129.3028, nil)
	add("ab3", model.CategoryAttraction, 35.4028, 129.3038, nil)
	// Lodgings between the areas.
	add("h1", model.CategoryAccommodation, 35.2000, 129.1000, fp(40000))
	add("h2", model.CategoryAccommodation, 35.2100, 129.1100, fp(90000))
	add("h3", model.CategoryAccommodation, 35.2200, 129.1200, nil)
	return c
}

// testPreference ranks area A first, the shape the cluster builder consumes.
func testPreference() model.ScoreSet {
	return model.ScoreSet{
		model.CategoryCafe: {
			{PlaceID: "ca1", Score: 0.9}, {PlaceID: "ca2", Score: 0.8}, {PlaceID: "ca3", Score: 0.7},
			{PlaceID: "cb1", Score: 0.6}, {PlaceID: "cb2", Score: 0.5}, {PlaceID: "cb3", Score: 0.4},
		},
		model.CategoryRestaurant: {
			{PlaceID: "ra1", Score: 0.9}, {PlaceID: "ra2", Score: 0.8}, {PlaceID: "ra3", Score: 0.7},
			{PlaceID: "rb1", Score: 0.6}, {PlaceID: "rb2", Score: 0.5}, {PlaceID: "rb3", Score: 0.4},
		},
		model.CategoryAttraction: {
			{PlaceID: "aa1", Score: 0.9}, {PlaceID: "aa2", Score: 0.8}, {PlaceID: "aa3", Score: 0.7},
			{PlaceID: "ab1", Score: 0.6}, {PlaceID: "ab2", Score: 0.5}, {PlaceID: "ab3", Score: 0.4},
		},
		model.CategoryAccommodation: {
			{PlaceID: "h1", Score: 0.9}, {PlaceID: "h2", Score: 0.8}, {PlaceID: "h3", Score: 0.7},
		},
	}
}

// testPopularity ranks area B first so the two ranked strategies diverge.
func testPopularity() model.ScoreSet {
	return model.ScoreSet{
		model.CategoryCafe: {
			{PlaceID: "cb1", Score: 950}, {PlaceID: "cb2", Score: 900}, {PlaceID: "cb3", Score: 850},
			{PlaceID: "ca1", Score: 800}, {PlaceID: "ca2", Score: 750}, {PlaceID: "ca3", Score: 700},
		},
		model.CategoryRestaurant: {
			{PlaceID: "rb1", Score: 950}, {PlaceID: "rb2", Score: 900}, {PlaceID: "rb3", Score: 850},
			{PlaceID: "ra1", Score: 800}, {PlaceID: "ra2", Score: 750}, {PlaceID: "ra3", Score: 700},
		},
		model.CategoryAttraction: {
			{PlaceID: "ab1", Score: 950}, {PlaceID: "ab2", Score: 900}, {PlaceID: "ab3", Score: 850},
			{PlaceID: "aa1", Score: 800}, {PlaceID: "aa2", Score: 750}, {PlaceID: "aa3", Score: 700},
		},
		model.CategoryAccommodation: {
			{PlaceID: "h2", Score: 950}, {PlaceID: "h1", Score: 900}, {PlaceID: "h3", Score: 850},
		},
	}
}

func testTemplate(days int) model.Template {
	tpl := model.Template{Style: "Foodie", BudgetPerDay: 50000}
	for d := 1; d <= days; d++ {
		tpl.Days = append(tpl.Days, model.TemplateDay{
			Day:       d,
			IsWeekend: d%7 == 6 || d%7 == 0,
			Slots: []model.DaySlot{
				{Category: model.CategoryCafe, TimeLabel: "10:00"},
				{Category: model.CategoryRestaurant, TimeLabel: "12:00"},
				{Category: model.CategoryAttraction, TimeLabel: "15:00"},
				{Category: model.CategoryAccommodation, TimeLabel: "21:00"},
			},
		})
	}
	return tpl
}
