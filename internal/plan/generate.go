package plan

import (
	"fmt"

	"tripnav/internal/model"
)

// Strategy names, also the keys of the stored plan document.
const (
	StrategyHybrid       = "hybrid"
	StrategyPopularity   = "popularity"
	StrategyPersonalized = "personalized"
)

// PlanOrder is the presentation order of the three strategies.
var PlanOrder = []string{StrategyHybrid, StrategyPopularity, StrategyPersonalized}

// Inputs is everything one generation run consumes. All fields are read-only
// to the generator; independent runs over the same catalog may execute
// concurrently.
type Inputs struct {
	Template   model.Template
	Params     model.TripParams
	Popularity model.ScoreSet // globally ranked by review volume
	Preference model.ScoreSet // per-user preference ranking
}

// Generator runs the three schedule strategies over shared reference data.
type Generator struct {
	Cfg     Config
	Catalog Catalog
}

// Validate rejects contract violations by the input supplier. Everything else
// (missing candidates, unknown ids, sparse clusters) degrades inside the run.
func Validate(in Inputs) error {
	if len(in.Template.Days) == 0 {
		return fmt.Errorf("template has no days")
	}
	for _, d := range in.Template.Days {
		if len(d.Slots) == 0 {
			return fmt.Errorf("template day %d has no slots", d.Day)
		}
		for _, s := range d.Slots {
			if _, err := model.ParseCategory(string(s.Category)); err != nil {
				return fmt.Errorf("template day %d: %w", d.Day, err)
			}
		}
	}
	if in.Params.DurationDays < 1 {
		return fmt.Errorf("durationDays must be >= 1")
	}
	if in.Params.TotalBudget < 0 {
		return fmt.Errorf("totalBudget must be >= 0")
	}
	return nil
}

// Generate produces all three schedules. The returned metrics carry one entry
// per strategy in PlanOrder. The run is a pure function of its inputs; two
// runs over identical inputs produce identical plans.
func (g *Generator) Generate(in Inputs) (map[string]model.Schedule, []model.StrategyMetrics, error) {
	if err := Validate(in); err != nil {
		return nil, nil, err
	}
	cfg := g.Cfg.withDefaults()
	plans := map[string]model.Schedule{}
	var metrics []model.StrategyMetrics

	// Hybrid: cluster the preference candidates, pick lodging, assemble under
	// the daily food allowance.
	builder := NewClusterBuilder(cfg, g.Catalog, in.Preference)
	clusters := builder.Build(GeoDayCount(in.Template), nil)
	lodging, hasLodging := SelectAccommodation(cfg, g.Catalog, in.Preference[model.CategoryAccommodation], clusters, in.Params)
	perDay := in.Template.BudgetPerDay
	if perDay <= 0 {
		perDay = in.Params.TotalBudget / 2
	}
	hybrid := &Assembler{
		Catalog: g.Catalog,
		Source:  NewClusterSource(clusters, lodging, hasLodging),
		Budget:  NewDailyFoodBudget(perDay*cfg.FoodBudgetShare, cfg.DefaultMealPrice),
	}
	sched, m := hybrid.Assemble(StrategyHybrid, in.Template)
	m.ClustersBuilt = len(clusters)
	plans[StrategyHybrid] = sched
	metrics = append(metrics, m)

	// Popularity and personalized share the ranked-source walk; only the
	// score ordering differs.
	pop := &Assembler{Catalog: g.Catalog, Source: NewRankedSource(in.Popularity)}
	sched, m = pop.Assemble(StrategyPopularity, in.Template)
	plans[StrategyPopularity] = sched
	metrics = append(metrics, m)

	pref := &Assembler{Catalog: g.Catalog, Source: NewRankedSource(in.Preference)}
	sched, m = pref.Assemble(StrategyPersonalized, in.Template)
	plans[StrategyPersonalized] = sched
	metrics = append(metrics, m)

	return plans, metrics, nil
}
