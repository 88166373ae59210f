package plan

import (
	"time"

	"tripnav/internal/model"
)

// Baseline variants used for evaluation runs.
const (
	BaselineReview     = "review"
	BaselinePreference = "preference"
)

// BaselineResult is one evaluation run's output. ElapsedMs is informational
// wall-clock assembly latency, not consumed by any later stage.
type BaselineResult struct {
	UserID    string         `json:"userId"`
	Variant   string         `json:"variant"`
	Days      model.Schedule `json:"days"`
	ElapsedMs float64        `json:"elapsedMs"`
}

// RunBaseline builds a stripped single-pass schedule: fixed top-ranked
// accommodation, first-fit-unused per slot, no clustering and no budget. The
// two variants run the identical algorithm over differently ranked lists —
// review volume or per-user preference.
func RunBaseline(variant, userID string, tpl model.Template, ranked model.ScoreSet, catalog Catalog) BaselineResult {
	start := time.Now()
	a := &Assembler{Catalog: catalog, Source: NewRankedSource(ranked)}
	days, _ := a.Assemble(variant, tpl)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	return BaselineResult{UserID: userID, Variant: variant, Days: days, ElapsedMs: elapsed}
}
