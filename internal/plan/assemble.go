package plan

import (
	"fmt"
	"time"

	"tripnav/internal/model"
)

// CandidateSource ranks candidates for a category on a given day (0-based
// template index). The three strategies differ only in the source they plug
// in here; the walk below is shared.
type CandidateSource interface {
	Candidates(day int, cat model.Category) []model.ScoredCandidate
	// Accommodation returns the fixed lodging id for the whole trip, if any.
	Accommodation() (string, bool)
}

// BudgetPolicy is consulted before paid selections. Only the hybrid strategy
// supplies one; a nil policy means no spending constraint.
type BudgetPolicy interface {
	// StartDay resets the per-day allowance. Days are budgeted independently.
	StartDay(day int)
	// AppliesTo reports whether the category is spending-constrained.
	AppliesTo(cat model.Category) bool
	// Afford returns the effective price and whether it fits the remaining
	// allowance. It must not mutate state; Spend commits the charge.
	Afford(p model.Place) (float64, bool)
	Spend(price float64)
}

// Assembler walks a template in slot order and fills each slot with the first
// unused, attribute-resolvable candidate its source yields. One assembler run
// owns a private used-id set; nothing is shared across runs.
type Assembler struct {
	Catalog Catalog
	Source  CandidateSource
	Budget  BudgetPolicy
}

// Assemble produces the day-indexed schedule plus informational metrics.
// Missing data never aborts a run: an exhausted source or an unresolvable id
// leaves the slot unfilled.
func (a *Assembler) Assemble(strategy string, tpl model.Template) (model.Schedule, model.StrategyMetrics) {
	start := time.Now()
	m := model.StrategyMetrics{Strategy: strategy}
	out := model.Schedule{}
	used := map[string]struct{}{}

	lodgingID, hasLodging := a.Source.Accommodation()
	if hasLodging {
		_, hasLodging = a.Catalog[lodgingID]
	}
	m.HasAccommodation = hasLodging

	for di, day := range tpl.Days {
		if a.Budget != nil {
			a.Budget.StartDay(di)
		}
		items := []model.ScheduleItem{}
		for _, slot := range day.Slots {
			if slot.Category == model.CategoryAccommodation {
				// Lodging repeats every overnight day and bypasses the dedupe.
				if hasLodging {
					items = append(items, a.item(lodgingID, slot))
					m.Selected++
				} else {
					m.Unfilled++
				}
				continue
			}
			filled := false
			for _, cand := range a.Source.Candidates(di, slot.Category) {
				if _, taken := used[cand.PlaceID]; taken {
					continue
				}
				p, ok := a.Catalog[cand.PlaceID]
				if !ok {
					continue
				}
				if a.Budget != nil && a.Budget.AppliesTo(slot.Category) {
					price, affordable := a.Budget.Afford(p)
					if !affordable {
						// Not consumed: the candidate stays eligible for a later day.
						m.SkippedBudget++
						continue
					}
					a.Budget.Spend(price)
					m.TotalFoodSpend += price
				}
				used[cand.PlaceID] = struct{}{}
				items = append(items, a.item(cand.PlaceID, slot))
				m.Selected++
				filled = true
				break
			}
			if !filled {
				m.Unfilled++
			}
		}
		out[fmt.Sprintf("day%d", day.Day)] = items
	}
	m.AssemblyMs = float64(time.Since(start).Microseconds()) / 1000
	return out, m
}

func (a *Assembler) item(id string, slot model.DaySlot) model.ScheduleItem {
	p := a.Catalog[id]
	return model.ScheduleItem{
		PlaceID:     p.ID,
		Name:        p.Name,
		Category:    slot.Category,
		TimeLabel:   slot.TimeLabel,
		Lat:         p.Lat,
		Lng:         p.Lng,
		Description: p.Description,
	}
}

// rankedSource serves one globally-ranked list per category, independent of
// the day. Used by the popularity and preference strategies.
type rankedSource struct {
	scores model.ScoreSet
}

// NewRankedSource builds a CandidateSource over per-category ranked lists.
func NewRankedSource(scores model.ScoreSet) CandidateSource {
	return rankedSource{scores: scores}
}

func (s rankedSource) Candidates(_ int, cat model.Category) []model.ScoredCandidate {
	return s.scores[cat]
}

func (s rankedSource) Accommodation() (string, bool) {
	accs := s.scores[model.CategoryAccommodation]
	if len(accs) == 0 {
		return "", false
	}
	return accs[0].PlaceID, true
}

// clusterSource serves the cluster assigned to each calendar day. Extra days
// beyond the cluster count reuse the last cluster; the clamp is a deliberate,
// documented policy rather than an index guard.
type clusterSource struct {
	clusters []model.Cluster
	lodging  Lodging
	hasLodge bool
}

// NewClusterSource builds the hybrid strategy's CandidateSource.
func NewClusterSource(clusters []model.Cluster, lodging Lodging, hasLodging bool) CandidateSource {
	return clusterSource{clusters: clusters, lodging: lodging, hasLodge: hasLodging}
}

func (s clusterSource) Candidates(day int, cat model.Category) []model.ScoredCandidate {
	if len(s.clusters) == 0 {
		return nil
	}
	i := day
	if i > len(s.clusters)-1 {
		i = len(s.clusters) - 1
	}
	return s.clusters[i].Categories[cat]
}

func (s clusterSource) Accommodation() (string, bool) {
	if !s.hasLodge {
		return "", false
	}
	return s.lodging.PlaceID, true
}

// dailyFoodBudget caps Cafe/Restaurant spending per day. Lodging is pre-paid
// from the separate allocation and never charged here; attractions are
// unconstrained.
type dailyFoodBudget struct {
	allowance    float64
	remaining    float64
	defaultPrice float64
}

// NewDailyFoodBudget builds the hybrid strategy's BudgetPolicy.
func NewDailyFoodBudget(allowance, defaultPrice float64) BudgetPolicy {
	return &dailyFoodBudget{allowance: allowance, remaining: allowance, defaultPrice: defaultPrice}
}

func (b *dailyFoodBudget) StartDay(int) { b.remaining = b.allowance }

func (b *dailyFoodBudget) AppliesTo(cat model.Category) bool {
	return cat == model.CategoryCafe || cat == model.CategoryRestaurant
}

func (b *dailyFoodBudget) Afford(p model.Place) (float64, bool) {
	price := b.defaultPrice
	if p.Price != nil && *p.Price > 0 {
		price = *p.Price
	}
	return price, price <= b.remaining
}

func (b *dailyFoodBudget) Spend(price float64) { b.remaining -= price }
