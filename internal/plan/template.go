package plan

import (
	"sort"

	"tripnav/internal/model"
)

// Travel styles recognized by the survey intake. An unknown style falls back
// to the balanced shape.
const (
	StyleFood     = "food"
	StyleActivity = "activity"
	StyleCulture  = "culture"
	StyleHealing  = "healing"
	StyleBalanced = "balanced"
)

// PickStyle returns the rank-1 style from a survey ranking. Ties and missing
// ranks resolve alphabetically so intake stays deterministic.
func PickStyle(ranks map[string]int) string {
	if len(ranks) == 0 {
		return StyleBalanced
	}
	styles := make([]string, 0, len(ranks))
	for s := range ranks {
		styles = append(styles, s)
	}
	sort.Strings(styles)
	best := styles[0]
	for _, s := range styles[1:] {
		if ranks[s] < ranks[best] {
			best = s
		}
	}
	return best
}

// BuildTemplate derives the day-by-day slot shape for a style and duration.
// Multi-day trips get a nightly accommodation slot; day trips do not.
func BuildTemplate(style string, days int, budgetPerDay float64) model.Template {
	if days < 1 {
		days = 1
	}
	slots := slotsForStyle(style)
	tpl := model.Template{Style: style, BudgetPerDay: budgetPerDay}
	for d := 1; d <= days; d++ {
		day := model.TemplateDay{Day: d, Slots: append([]model.DaySlot(nil), slots...)}
		if days > 1 {
			day.Slots = append(day.Slots, model.DaySlot{Category: model.CategoryAccommodation, TimeLabel: "21:00"})
		}
		tpl.Days = append(tpl.Days, day)
	}
	return tpl
}

func slotsForStyle(style string) []model.DaySlot {
	switch style {
	case StyleFood:
		return []model.DaySlot{
			{Category: model.CategoryCafe, TimeLabel: "10:00"},
			{Category: model.CategoryRestaurant, TimeLabel: "12:00"},
			{Category: model.CategoryAttraction, TimeLabel: "15:00"},
			{Category: model.CategoryRestaurant, TimeLabel: "18:00"},
		}
	case StyleActivity:
		return []model.DaySlot{
			{Category: model.CategoryAttraction, TimeLabel: "09:00"},
			{Category: model.CategoryRestaurant, TimeLabel: "12:00"},
			{Category: model.CategoryAttraction, TimeLabel: "14:00"},
			{Category: model.CategoryCafe, TimeLabel: "17:00"},
		}
	case StyleCulture:
		return []model.DaySlot{
			{Category: model.CategoryAttraction, TimeLabel: "10:00"},
			{Category: model.CategoryRestaurant, TimeLabel: "13:00"},
			{Category: model.CategoryAttraction, TimeLabel: "15:00"},
			{Category: model.CategoryCafe, TimeLabel: "18:00"},
		}
	case StyleHealing:
		return []model.DaySlot{
			{Category: model.CategoryCafe, TimeLabel: "11:00"},
			{Category: model.CategoryRestaurant, TimeLabel: "13:00"},
			{Category: model.CategoryCafe, TimeLabel: "16:00"},
		}
	default:
		return []model.DaySlot{
			{Category: model.CategoryCafe, TimeLabel: "10:00"},
			{Category: model.CategoryRestaurant, TimeLabel: "12:00"},
			{Category: model.CategoryAttraction, TimeLabel: "15:00"},
		}
	}
}

// IntakeSurvey turns a raw survey into the persisted user profile: rank-1
// style, derived template, and the daily budget split.
func IntakeSurvey(in model.SurveyIn) model.UserInfo {
	style := PickStyle(in.StyleRank)
	perDay := 0.0
	if in.DurationDays > 0 {
		perDay = in.TotalBudget / 2
	}
	return model.UserInfo{
		UserID:       in.UserID,
		Name:         in.Name,
		TravelStyle:  style,
		TotalBudget:  in.TotalBudget,
		DurationDays: in.DurationDays,
		BudgetPerDay: perDay,
		Template:     BuildTemplate(style, in.DurationDays, perDay),
	}
}
