package api

import (
	"fmt"
	"strings"

	"tripnav/internal/model"
	"tripnav/internal/store"
	"tripnav/internal/webhooks"
)

func validateSurvey(req *model.SurveyIn) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("userId is required")
	}
	if req.DurationDays < 1 {
		return fmt.Errorf("durationDays must be >= 1")
	}
	if req.TotalBudget < 0 {
		return fmt.Errorf("totalBudget must be >= 0")
	}
	for style, rank := range req.StyleRank {
		if rank < 1 {
			return fmt.Errorf("styleRank[%s] must be >= 1", style)
		}
	}
	return nil
}

func validatePlaces(places []model.Place) error {
	if len(places) == 0 {
		return fmt.Errorf("places must be non-empty")
	}
	for i, p := range places {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("places[%d]: id is required", i)
		}
		if _, err := model.ParseCategory(string(p.Category)); err != nil {
			return fmt.Errorf("places[%d]: %v", i, err)
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			return fmt.Errorf("places[%d]: coordinates out of range", i)
		}
		if p.Price != nil && *p.Price < 0 {
			return fmt.Errorf("places[%d]: price must be >= 0", i)
		}
	}
	return nil
}

func validateScores(userID, kind string, scores model.ScoreSet) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("userId is required")
	}
	if kind != store.ScoreKindPopularity && kind != store.ScoreKindPreference {
		return fmt.Errorf("kind must be %q or %q", store.ScoreKindPopularity, store.ScoreKindPreference)
	}
	if len(scores) == 0 {
		return fmt.Errorf("scores must be non-empty")
	}
	for cat, list := range scores {
		if _, err := model.ParseCategory(string(cat)); err != nil {
			return err
		}
		for i, c := range list {
			if c.PlaceID == "" {
				return fmt.Errorf("scores[%s][%d]: id is required", cat, i)
			}
		}
	}
	return nil
}

func validateSubscription(req *model.SubscriptionRequest) error {
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return fmt.Errorf("url must be http(s)")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events must be non-empty")
	}
	allowed := map[string]struct{}{
		webhooks.EventPlanCreated:   {},
		webhooks.EventSurveySaved:   {},
		webhooks.EventScoresUpdated: {},
	}
	for _, e := range req.Events {
		if _, ok := allowed[e]; !ok {
			return fmt.Errorf("unknown event type: %s", e)
		}
	}
	return nil
}
