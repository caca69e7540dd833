package handler

import (
	"net/http"

	"github.com/kiranshivaraju/mealtrack/internal/api/response"
	"github.com/kiranshivaraju/mealtrack/internal/store"
)

// NewAnalyzeMealHandler queues a meal photo for analysis and returns the
// job's status. Re-queuing a meal that is already queued or running changes
// nothing.
func NewAnalyzeMealHandler(s store.Store, analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meal, ok := ownedMeal(w, r, s)
		if !ok {
			return
		}
		if meal.PhotoDataURI == "" {
			response.Error(w, http.StatusUnprocessableEntity, "MISSING_PHOTO",
				"Meal has no photo to analyze", nil)
			return
		}
		response.Accepted(w, analyzer.AnalyzeMeal(r.Context(), meal))
	}
}

func NewMealAnalysisHandler(s store.Store, analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meal, ok := ownedMeal(w, r, s)
		if !ok {
			return
		}
		response.JSON(w, analyzer.MealStatus(meal.ID))
	}
}

func NewAnalyzePlanHandler(s store.Store, analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, s)
		if !ok {
			return
		}
		if plan.Text == "" {
			response.Error(w, http.StatusUnprocessableEntity, "MISSING_TEXT",
				"Plan has no text to analyze", nil)
			return
		}
		response.Accepted(w, analyzer.AnalyzePlan(r.Context(), plan))
	}
}

func NewPlanAnalysisHandler(s store.Store, analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, s)
		if !ok {
			return
		}
		response.JSON(w, analyzer.PlanStatus(plan.ID))
	}
}
