package model

import "fmt"

// Category is the closed set of place kinds the planner understands.
type Category string

const (
	CategoryAccommodation Category = "Accommodation"
	CategoryCafe          Category = "Cafe"
	CategoryRestaurant    Category = "Restaurant"
	CategoryAttraction    Category = "Attraction"
)

// ClusterCategories are the categories that participate in geographic
// clustering. Accommodation is handled separately by the selector.
var ClusterCategories = []Category{CategoryCafe, CategoryRestaurant, CategoryAttraction}

// ParseCategory rejects unknown category names instead of silently skipping them.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryAccommodation, CategoryCafe, CategoryRestaurant, CategoryAttraction:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

// Place is immutable reference data owned by the external catalog.
type Place struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Price       *float64 `json:"price,omitempty"` // nightly for lodging, avg per visit otherwise
	Description string   `json:"description,omitempty"`
}

// ScoredCandidate pairs a place id with a source-specific score. Score
// semantics are category-scoped: popularity, preference, or a blended value.
type ScoredCandidate struct {
	PlaceID string  `json:"id"`
	Score   float64 `json:"score"`
}

// ScoreSet maps category to its ordered-by-score candidate list for one user.
type ScoreSet map[Category][]ScoredCandidate

// DaySlot is one unit of demand in a day template.
type DaySlot struct {
	Category  Category `json:"category"`
	TimeLabel string   `json:"time"`
}

// TemplateDay is one ordered day of slots plus its season flags.
type TemplateDay struct {
	Day       int       `json:"day"`
	IsPeak    bool      `json:"isPeak"`
	IsWeekend bool      `json:"isWeekend"`
	Slots     []DaySlot `json:"slots"`
}

// Template is the day-by-day shape of a trip for one travel style.
type Template struct {
	Style        string        `json:"style,omitempty"`
	BudgetPerDay float64       `json:"budgetPerDay,omitempty"`
	Days         []TemplateDay `json:"days"`
}

// TripParams are the caller-supplied trip constraints.
type TripParams struct {
	DurationDays int     `json:"durationDays"`
	TotalBudget  float64 `json:"totalBudget"`
}

// Cluster is one day-sized geographic grouping produced by the cluster
// builder. Immutable after construction.
type Cluster struct {
	ID         int                            `json:"clusterId"`
	SeedID     string                         `json:"seedId"`
	SeedScore  float64                        `json:"seedScore"`
	CenterLat  float64                        `json:"centerLat"`
	CenterLng  float64                        `json:"centerLng"`
	Categories map[Category][]ScoredCandidate `json:"categories"`
}

// ScheduleItem is one filled slot in the output itinerary.
type ScheduleItem struct {
	PlaceID     string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	TimeLabel   string   `json:"time"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Description string   `json:"description,omitempty"`
}

// Schedule maps "day1".."dayN" to the ordered filled slots of that day.
type Schedule map[string][]ScheduleItem

// Plan is the stored output of one generation run: all three strategies for
// one user, in presentation order.
type Plan struct {
	ID        string              `json:"id"`
	TenantID  string              `json:"tenantId,omitempty"`
	UserID    string              `json:"userId"`
	PlanOrder []string            `json:"plan_order"`
	Plans     map[string]Schedule `json:"plans"`
	CreatedAt string              `json:"createdAt,omitempty"`
}

// SurveyIn is the raw intake used to derive a template and trip params.
type SurveyIn struct {
	UserID          string         `json:"userId"`
	Name            string         `json:"name,omitempty"`
	TotalBudget     float64        `json:"totalBudget"`
	DurationDays    int            `json:"durationDays"`
	StyleRank       map[string]int `json:"styleRank"` // style -> rank, 1 is best
	LikeKeywords    []string       `json:"likeKeywords,omitempty"`
	DislikeKeywords []string       `json:"dislikeKeywords,omitempty"`
}

// UserInfo is what the survey intake persists per user.
type UserInfo struct {
	UserID       string   `json:"userId"`
	Name         string   `json:"name,omitempty"`
	TravelStyle  string   `json:"travelStyle"`
	TotalBudget  float64  `json:"totalBudget"`
	DurationDays int      `json:"durationDays"`
	BudgetPerDay float64  `json:"budgetPerDay"`
	Template     Template `json:"template"`
}

// PlanRequest asks for a full three-strategy generation run.
type PlanRequest struct {
	TenantID string `json:"tenantId,omitempty"`
	UserID   string `json:"userId"`
}

// Subscription is a registered webhook endpoint for plan lifecycle events.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId,omitempty"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

// SubscriptionRequest creates a Subscription.
type SubscriptionRequest struct {
	TenantID string   `json:"tenantId,omitempty"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

// StrategyMetrics are informational assembly stats for one strategy run.
type StrategyMetrics struct {
	Strategy         string  `json:"strategy"`
	Selected         int     `json:"selected"`
	Unfilled         int     `json:"unfilled"`
	SkippedBudget    int     `json:"skippedBudget"`
	TotalFoodSpend   float64 `json:"totalFoodSpend"`
	AssemblyMs       float64 `json:"assemblyMs"`
	ClustersBuilt    int     `json:"clustersBuilt,omitempty"`
	HasAccommodation bool    `json:"hasAccommodation"`
}
