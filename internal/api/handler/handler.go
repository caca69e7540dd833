// Package handler implements the HTTP handlers behind /api/v1. Each
// constructor takes the narrow dependency it needs and returns an
// http.HandlerFunc.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/kiranshivaraju/mealtrack/internal/api/middleware"
	"github.com/kiranshivaraju/mealtrack/internal/api/response"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

const maxBodyBytes = 16 << 20 // photos arrive inline as data URIs

// Analyzer queues background analysis and reports its state.
type Analyzer interface {
	AnalyzeMeal(ctx context.Context, meal *models.Meal) models.JobStatus
	AnalyzePlan(ctx context.Context, plan *models.MealPlan) models.JobStatus
	MealStatus(mealID string) models.JobStatus
	PlanStatus(planID string) models.JobStatus
	ForgetMeal(ctx context.Context, mealID string)
	ForgetPlan(ctx context.Context, planID string)
}

// validationErrors maps a field name to its problems.
type validationErrors map[string][]string

func (v validationErrors) add(field, msg string) {
	v[field] = append(v[field], msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
		case errors.Is(err, io.EOF):
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body is required", nil)
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		}
		return false
	}
	return true
}

func profileID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetProfileID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing profile", nil)
		return "", false
	}
	return id, true
}

func notFound(w http.ResponseWriter, what string) {
	response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", what+" not found", nil)
}

func internalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
}

// storeError writes the response for a failed store call.
func storeError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, what)
		return
	}
	internalError(w, "store operation failed", err)
}
