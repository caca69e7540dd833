package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// DefaultProfileID is the profile seeded by the schema. The app is single-user
// on a device, so API keys and meals belong to it unless stated otherwise.
const DefaultProfileID = "default"

// Store is the data access interface. All database operations go through here.
// Single-record reads and writes are atomic; nothing here needs a transaction
// across records.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	PutProfile(ctx context.Context, p *models.Profile) error

	GetMeal(ctx context.Context, id string) (*models.Meal, error)
	PutMeal(ctx context.Context, m *models.Meal) error
	DeleteMeal(ctx context.Context, id string) error
	ListMealsByProfile(ctx context.Context, filter MealFilter) ([]*models.Meal, error)

	GetPlan(ctx context.Context, id string) (*models.MealPlan, error)
	PutPlan(ctx context.Context, p *models.MealPlan) error
	DeletePlan(ctx context.Context, id string) error
	ListPlansByProfile(ctx context.Context, profileID string) ([]*models.MealPlan, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, profileID string) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, profileID string) error
}

// MealFilter narrows ListMealsByProfile. Zero Since/Until are open bounds.
type MealFilter struct {
	ProfileID string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// EffectiveLimit is Limit clamped to 1..500, 50 when unset.
func (f MealFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return 50
	case f.Limit > 500:
		return 500
	default:
		return f.Limit
	}
}

// stamp sets CreatedAt on first write and always bumps UpdatedAt.
func stamp(created, updated *time.Time) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
