package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/mealtrack/internal/api/response"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

const maxPlanText = 8000

type createPlanRequest struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Analyze bool   `json:"analyze"`
}

type planCreated struct {
	Plan     *models.MealPlan  `json:"plan"`
	Analysis *models.JobStatus `json:"analysis,omitempty"`
}

func NewCreatePlanHandler(s store.Store, analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := profileID(w, r)
		if !ok {
			return
		}
		var req createPlanRequest
		if !decodeBody(w, r, &req) {
			return
		}

		errs := validationErrors{}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			errs.add("text", "is required")
		}
		if len(text) > maxPlanText {
			errs.add("text", "must be at most 8000 characters")
		}
		if len(errs) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid plan", errs)
			return
		}

		plan := &models.MealPlan{
			ID:        uuid.NewString(),
			ProfileID: owner,
			Title:     strings.TrimSpace(req.Title),
			Text:      text,
			Items:     []models.FoodItem{},
		}
		if err := s.PutPlan(r.Context(), plan); err != nil {
			internalError(w, "save plan failed", err)
			return
		}

		out := planCreated{Plan: plan}
		if req.Analyze {
			status := analyzer.AnalyzePlan(r.Context(), plan)
			out.Analysis = &status
		}
		response.Created(w, out)
	}
}

func NewListPlansHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := profileID(w, r)
		if !ok {
			return
		}
		plans, err := s.ListPlansByProfile(r.Context(), owner)
		if err != nil {
			internalError(w, "list plans failed", err)
			return
		}
		if plans == nil {
			plans = []*models.MealPlan{}
		}
		response.Collection(w, plans, response.ListMeta{Count: len(plans), Limit: len(plans)})
	}
}

func ownedPlan(w http.ResponseWriter, r *http.Request, s store.Store) (*models.MealPlan, bool) {
	owner, ok := profileID(w, r)
	if !ok {
		return nil, false
	}
	plan, err := s.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		storeError(w, err, "Plan")
		return nil, false
	}
	if plan.ProfileID != owner {
		notFound(w, "Plan")
		return nil, false
	}
	return plan, true
}

func NewGetPlanHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, s)
		if !ok {
			return
		}
		response.JSON(w, plan)
	}
}

func NewDeletePlanHandler(s store.Store, analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, s)
		if !ok {
			return
		}
		if err := s.DeletePlan(r.Context(), plan.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			internalError(w, "delete plan failed", err)
			return
		}
		analyzer.ForgetPlan(r.Context(), plan.ID)
		response.NoContent(w)
	}
}
