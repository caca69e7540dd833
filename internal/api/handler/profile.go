package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/mealtrack/internal/api/response"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

var (
	validSex      = map[string]bool{"": true, "female": true, "male": true, "other": true}
	validActivity = map[string]bool{"": true, "sedentary": true, "light": true, "moderate": true, "active": true, "very_active": true}
	validGoal     = map[string]bool{"": true, "lose": true, "maintain": true, "gain": true}
)

func NewGetProfileHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := profileID(w, r)
		if !ok {
			return
		}
		p, err := s.GetProfile(r.Context(), id)
		if err != nil {
			storeError(w, err, "Profile")
			return
		}
		response.JSON(w, p)
	}
}

type profileRequest struct {
	Name              string   `json:"name"`
	AgeYears          int      `json:"age_years"`
	HeightCm          float64  `json:"height_cm"`
	WeightKg          float64  `json:"weight_kg"`
	Sex               string   `json:"sex"`
	ActivityLevel     string   `json:"activity_level"`
	MedicalConditions []string `json:"medical_conditions"`
	Goal              string   `json:"goal"`
	CloudConsent      bool     `json:"cloud_consent"`
}

func (p profileRequest) validate() validationErrors {
	errs := validationErrors{}
	if p.AgeYears < 0 || p.AgeYears > 130 {
		errs.add("age_years", "must be between 0 and 130")
	}
	if p.HeightCm < 0 || p.HeightCm > 300 {
		errs.add("height_cm", "must be between 0 and 300")
	}
	if p.WeightKg < 0 || p.WeightKg > 700 {
		errs.add("weight_kg", "must be between 0 and 700")
	}
	if !validSex[p.Sex] {
		errs.add("sex", "must be one of female, male, other")
	}
	if !validActivity[p.ActivityLevel] {
		errs.add("activity_level", "must be one of sedentary, light, moderate, active, very_active")
	}
	if !validGoal[p.Goal] {
		errs.add("goal", "must be one of lose, maintain, gain")
	}
	return errs
}

// NewPutProfileHandler replaces the caller's profile. Consent to cloud
// analysis is part of the profile.
func NewPutProfileHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := profileID(w, r)
		if !ok {
			return
		}
		var req profileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if errs := req.validate(); len(errs) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid profile", errs)
			return
		}

		p := &models.Profile{ID: id}
		existing, err := s.GetProfile(r.Context(), id)
		switch {
		case err == nil:
			p.CreatedAt = existing.CreatedAt
		case !errors.Is(err, store.ErrNotFound):
			internalError(w, "load profile failed", err)
			return
		}

		p.Name = strings.TrimSpace(req.Name)
		p.AgeYears = req.AgeYears
		p.HeightCm = req.HeightCm
		p.WeightKg = req.WeightKg
		p.Sex = req.Sex
		p.ActivityLevel = req.ActivityLevel
		p.MedicalConditions = cleanList(req.MedicalConditions)
		p.Goal = req.Goal
		p.CloudConsent = req.CloudConsent

		if err := s.PutProfile(r.Context(), p); err != nil {
			internalError(w, "save profile failed", err)
			return
		}
		response.JSON(w, p)
	}
}

func cleanList(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
