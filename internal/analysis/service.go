// Package analysis binds the job queue to the AI client and the store: it
// runs photo analysis for meals and text analysis for meal plans in the
// background and writes the results back.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/kiranshivaraju/mealtrack/internal/ai"
	"github.com/kiranshivaraju/mealtrack/internal/cache"
	"github.com/kiranshivaraju/mealtrack/internal/notify"
	"github.com/kiranshivaraju/mealtrack/internal/queue"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

var (
	ErrMealNotFound = errors.New("meal not found")
	ErrPlanNotFound = errors.New("meal plan not found")
	ErrMissingPhoto = errors.New("meal has no photo to analyze")
	ErrMissingText  = errors.New("meal plan has no text to analyze")
)

// Analyzer is the part of ai.Client the service needs.
type Analyzer interface {
	Analyze(ctx context.Context, in models.AnalysisInput) (models.AnalysisResult, error)
}

var _ Analyzer = (*ai.Client)(nil)

// payload is what a job captures at enqueue time. Meal jobs use the photo
// and description, plan jobs the text.
type payload struct {
	PhotoDataURI string
	Description  string
	Text         string
}

var labels = map[string]string{
	models.JobKindMealPhoto: "Meal analysis",
	models.JobKindPlanText:  "Plan analysis",
}

// Service runs meal and plan analysis on one shared engine, so at most one
// provider call is in flight at a time.
type Service struct {
	store    store.Store
	cache    cache.Cache
	analyzer Analyzer

	jobs *queue.Engine[payload]
	// enqueueMu orders the snapshot write before the job becomes visible.
	enqueueMu sync.Mutex
}

// NewService starts the engine. c may be nil, in which case entity snapshots
// are skipped and every lookup goes to the store.
func NewService(s store.Store, c cache.Cache, analyzer Analyzer, notifier notify.Notifier) *Service {
	svc := &Service{store: s, cache: c, analyzer: analyzer}
	svc.jobs = queue.NewEngine(labels, svc.run, notifier)
	return svc
}

// AnalyzeMeal queues photo analysis for meal. The photo and description are
// captured now; later edits to the meal do not affect the queued job.
func (s *Service) AnalyzeMeal(ctx context.Context, meal *models.Meal) models.JobStatus {
	s.enqueue(ctx, models.JobKindMealPhoto, meal.ID, cache.MealKey(meal.ID), meal,
		payload{PhotoDataURI: meal.PhotoDataURI, Description: meal.Description})
	return s.jobs.Status(models.JobKindMealPhoto, meal.ID)
}

// AnalyzePlan queues text analysis for plan.
func (s *Service) AnalyzePlan(ctx context.Context, plan *models.MealPlan) models.JobStatus {
	s.enqueue(ctx, models.JobKindPlanText, plan.ID, cache.PlanKey(plan.ID), plan, payload{Text: plan.Text})
	return s.jobs.Status(models.JobKindPlanText, plan.ID)
}

// enqueue snapshots entity only when no job for it is pending, so a duplicate
// request never replaces the snapshot the pending job will resolve.
func (s *Service) enqueue(ctx context.Context, kind, id, snapKey string, entity any, p payload) {
	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()
	if id != "" && !s.jobs.Active(kind, id) {
		s.snapshot(ctx, snapKey, entity)
	}
	s.jobs.Enqueue(kind, id, p)
}

func (s *Service) MealStatus(mealID string) models.JobStatus {
	return s.jobs.Status(models.JobKindMealPhoto, mealID)
}

func (s *Service) PlanStatus(planID string) models.JobStatus {
	return s.jobs.Status(models.JobKindPlanText, planID)
}

// ForgetMeal drops the recorded failure and snapshot for a deleted meal.
func (s *Service) ForgetMeal(ctx context.Context, mealID string) {
	s.jobs.ClearError(models.JobKindMealPhoto, mealID)
	s.dropSnapshot(ctx, cache.MealKey(mealID))
}

// ForgetPlan drops the recorded failure and snapshot for a deleted plan.
func (s *Service) ForgetPlan(ctx context.Context, planID string) {
	s.jobs.ClearError(models.JobKindPlanText, planID)
	s.dropSnapshot(ctx, cache.PlanKey(planID))
}

// Close stops the engine, cancelling any running analysis.
func (s *Service) Close() {
	s.jobs.Close()
}

func (s *Service) run(ctx context.Context, job queue.Job[payload]) error {
	switch job.Kind {
	case models.JobKindMealPhoto:
		return s.runMeal(ctx, job.TargetID, job.Payload)
	case models.JobKindPlanText:
		return s.runPlan(ctx, job.TargetID, job.Payload)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (s *Service) runMeal(ctx context.Context, mealID string, p payload) error {
	meal, err := s.resolveMeal(ctx, mealID)
	if err != nil {
		return err
	}
	if p.PhotoDataURI == "" {
		return ErrMissingPhoto
	}
	consent, err := s.cloudConsent(ctx, meal.ProfileID)
	if err != nil {
		return err
	}

	result, err := s.analyzer.Analyze(ctx, models.AnalysisInput{
		PhotoDataURI: p.PhotoDataURI,
		Description:  p.Description,
		CloudConsent: consent,
	})
	if err != nil {
		return err
	}

	// Re-read so edits made while the provider was working are kept.
	current, err := s.store.GetMeal(ctx, mealID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrMealNotFound
	}
	if err != nil {
		return fmt.Errorf("reload meal: %w", err)
	}
	current.Items = result.Items
	current.Totals = result.Totals
	prov := result.Provenance
	current.Provenance = &prov
	if err := s.store.PutMeal(ctx, current); err != nil {
		return fmt.Errorf("save meal analysis: %w", err)
	}
	s.snapshot(ctx, cache.MealKey(mealID), current)
	return nil
}

func (s *Service) runPlan(ctx context.Context, planID string, p payload) error {
	plan, err := s.resolvePlan(ctx, planID)
	if err != nil {
		return err
	}
	if p.Text == "" {
		return ErrMissingText
	}
	consent, err := s.cloudConsent(ctx, plan.ProfileID)
	if err != nil {
		return err
	}

	result, err := s.analyzer.Analyze(ctx, models.AnalysisInput{Text: p.Text, CloudConsent: consent})
	if err != nil {
		return err
	}

	current, err := s.store.GetPlan(ctx, planID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrPlanNotFound
	}
	if err != nil {
		return fmt.Errorf("reload plan: %w", err)
	}
	current.Items = result.Items
	current.Totals = result.Totals
	prov := result.Provenance
	current.Provenance = &prov
	if err := s.store.PutPlan(ctx, current); err != nil {
		return fmt.Errorf("save plan analysis: %w", err)
	}
	s.snapshot(ctx, cache.PlanKey(planID), current)
	return nil
}

func (s *Service) resolveMeal(ctx context.Context, mealID string) (*models.Meal, error) {
	var meal models.Meal
	if s.fromSnapshot(ctx, cache.MealKey(mealID), &meal) {
		return &meal, nil
	}
	m, err := s.store.GetMeal(ctx, mealID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load meal: %w", err)
	}
	return m, nil
}

func (s *Service) resolvePlan(ctx context.Context, planID string) (*models.MealPlan, error) {
	var plan models.MealPlan
	if s.fromSnapshot(ctx, cache.PlanKey(planID), &plan) {
		return &plan, nil
	}
	p, err := s.store.GetPlan(ctx, planID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return p, nil
}

// cloudConsent reports the owner's consent. A missing profile means no consent;
// the AI client decides whether that matters for the configured provider.
func (s *Service) cloudConsent(ctx context.Context, profileID string) (bool, error) {
	if profileID == "" {
		profileID = store.DefaultProfileID
	}
	p, err := s.store.GetProfile(ctx, profileID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	return p.CloudConsent, nil
}

// Snapshot errors are logged and otherwise ignored; the store is authoritative.

func (s *Service) snapshot(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to encode snapshot", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, cache.SnapshotTTL); err != nil {
		slog.Warn("failed to write snapshot", "key", key, "error", err)
	}
}

func (s *Service) fromSnapshot(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("failed to read snapshot", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("failed to decode snapshot", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) dropSnapshot(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete snapshot", "key", key, "error", err)
	}
}
