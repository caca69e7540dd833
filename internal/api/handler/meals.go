package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/mealtrack/internal/api/response"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

var validMealTypes = map[string]bool{
	models.MealTypeBreakfast: true,
	models.MealTypeLunch:     true,
	models.MealTypeDinner:    true,
	models.MealTypeSnack:     true,
}

type createMealRequest struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	PhotoDataURI string            `json:"photo_data_uri"`
	MealType     string            `json:"meal_type"`
	EatenAt      *time.Time        `json:"eaten_at"`
	Items        []models.FoodItem `json:"items"`
	Analyze      bool              `json:"analyze"`
}

// updateMealRequest only touches fields that are present in the body.
type updateMealRequest struct {
	Name         *string            `json:"name"`
	Description  *string            `json:"description"`
	PhotoDataURI *string            `json:"photo_data_uri"`
	MealType     *string            `json:"meal_type"`
	EatenAt      *time.Time         `json:"eaten_at"`
	Items        *[]models.FoodItem `json:"items"`
}

type mealCreated struct {
	Meal     *models.Meal      `json:"meal"`
	Analysis *models.JobStatus `json:"analysis,omitempty"`
}

func validateMeal(m *models.Meal) validationErrors {
	errs := validationErrors{}
	if m.Name == "" && m.Description == "" && m.PhotoDataURI == "" {
		errs.add("name", "a name, description or photo is required")
	}
	if !validMealTypes[m.MealType] {
		errs.add("meal_type", "must be one of breakfast, lunch, dinner, snack")
	}
	if m.PhotoDataURI != "" && !strings.HasPrefix(m.PhotoDataURI, "data:image/") {
		errs.add("photo_data_uri", "must be an image data URI")
	}
	for _, it := range m.Items {
		if strings.TrimSpace(it.Name) == "" {
			errs.add("items", "every item needs a name")
			break
		}
	}
	return errs
}

// NewCreateMealHandler logs a meal. With "analyze": true and a photo the meal
// is queued for analysis right away.
func NewCreateMealHandler(s store.Store, analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := profileID(w, r)
		if !ok {
			return
		}
		var req createMealRequest
		if !decodeBody(w, r, &req) {
			return
		}

		meal := &models.Meal{
			ID:           uuid.NewString(),
			ProfileID:    owner,
			Name:         strings.TrimSpace(req.Name),
			Description:  strings.TrimSpace(req.Description),
			PhotoDataURI: req.PhotoDataURI,
			MealType:     req.MealType,
			EatenAt:      time.Now().UTC(),
			Items:        req.Items,
		}
		if meal.MealType == "" {
			meal.MealType = models.MealTypeSnack
		}
		if req.EatenAt != nil {
			meal.EatenAt = req.EatenAt.UTC()
		}
		if meal.Items == nil {
			meal.Items = []models.FoodItem{}
		}
		meal.Totals = models.SumItems(meal.Items)

		errs := validateMeal(meal)
		if req.Analyze && meal.PhotoDataURI == "" {
			errs.add("analyze", "analysis needs a photo")
		}
		if len(errs) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid meal", errs)
			return
		}

		if err := s.PutMeal(r.Context(), meal); err != nil {
			internalError(w, "save meal failed", err)
			return
		}

		out := mealCreated{Meal: meal}
		if req.Analyze {
			status := analyzer.AnalyzeMeal(r.Context(), meal)
			out.Analysis = &status
		}
		response.Created(w, out)
	}
}

func NewListMealsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := profileID(w, r)
		if !ok {
			return
		}

		filter := store.MealFilter{ProfileID: owner}
		errs := validationErrors{}
		q := r.URL.Query()
		if v := q.Get("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				errs.add("since", "must be an RFC 3339 timestamp")
			}
			filter.Since = t
		}
		if v := q.Get("until"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				errs.add("until", "must be an RFC 3339 timestamp")
			}
			filter.Until = t
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				errs.add("limit", "must be a positive integer")
			}
			filter.Limit = n
		}
		if len(errs) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query", errs)
			return
		}

		meals, err := s.ListMealsByProfile(r.Context(), filter)
		if err != nil {
			internalError(w, "list meals failed", err)
			return
		}
		if meals == nil {
			meals = []*models.Meal{}
		}
		response.Collection(w, meals, response.ListMeta{Count: len(meals), Limit: filter.EffectiveLimit()})
	}
}

// ownedMeal loads the meal named in the URL. Meals of other profiles are
// reported as missing.
func ownedMeal(w http.ResponseWriter, r *http.Request, s store.Store) (*models.Meal, bool) {
	owner, ok := profileID(w, r)
	if !ok {
		return nil, false
	}
	meal, err := s.GetMeal(r.Context(), chi.URLParam(r, "mealID"))
	if err != nil {
		storeError(w, err, "Meal")
		return nil, false
	}
	if meal.ProfileID != owner {
		notFound(w, "Meal")
		return nil, false
	}
	return meal, true
}

func NewGetMealHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meal, ok := ownedMeal(w, r, s)
		if !ok {
			return
		}
		response.JSON(w, meal)
	}
}

// NewUpdateMealHandler applies user edits. Editing items by hand recomputes
// totals and drops the provenance of any earlier estimate.
func NewUpdateMealHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meal, ok := ownedMeal(w, r, s)
		if !ok {
			return
		}
		var req updateMealRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Name != nil {
			meal.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			meal.Description = strings.TrimSpace(*req.Description)
		}
		if req.PhotoDataURI != nil {
			meal.PhotoDataURI = *req.PhotoDataURI
		}
		if req.MealType != nil {
			meal.MealType = *req.MealType
		}
		if req.EatenAt != nil {
			meal.EatenAt = req.EatenAt.UTC()
		}
		if req.Items != nil {
			meal.Items = *req.Items
			if meal.Items == nil {
				meal.Items = []models.FoodItem{}
			}
			meal.Totals = models.SumItems(meal.Items)
			meal.Provenance = nil
		}

		if errs := validateMeal(meal); len(errs) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid meal", errs)
			return
		}
		if err := s.PutMeal(r.Context(), meal); err != nil {
			internalError(w, "save meal failed", err)
			return
		}
		response.JSON(w, meal)
	}
}

// NewDeleteMealHandler removes the meal. A queued analysis for it still runs
// and fails with a not-found notification.
func NewDeleteMealHandler(s store.Store, analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meal, ok := ownedMeal(w, r, s)
		if !ok {
			return
		}
		if err := s.DeleteMeal(r.Context(), meal.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			internalError(w, "delete meal failed", err)
			return
		}
		analyzer.ForgetMeal(r.Context(), meal.ID)
		response.NoContent(w)
	}
}
