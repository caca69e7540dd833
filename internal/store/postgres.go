package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Profiles ---

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	var conditions []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, age_years, height_cm, weight_kg, sex, activity_level, medical_conditions, goal,
		        cloud_consent, created_at, updated_at
		 FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.AgeYears, &p.HeightCm, &p.WeightKg, &p.Sex, &p.ActivityLevel, &conditions,
		&p.Goal, &p.CloudConsent, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p.MedicalConditions, err = decodeStrings(conditions); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) PutProfile(ctx context.Context, p *models.Profile) error {
	if p.MedicalConditions == nil {
		p.MedicalConditions = []string{}
	}
	conditions, err := encodeJSON(p.MedicalConditions)
	if err != nil {
		return err
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (id, name, age_years, height_cm, weight_kg, sex, activity_level, medical_conditions,
		                       goal, cloud_consent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   age_years = EXCLUDED.age_years,
		   height_cm = EXCLUDED.height_cm,
		   weight_kg = EXCLUDED.weight_kg,
		   sex = EXCLUDED.sex,
		   activity_level = EXCLUDED.activity_level,
		   medical_conditions = EXCLUDED.medical_conditions,
		   goal = EXCLUDED.goal,
		   cloud_consent = EXCLUDED.cloud_consent,
		   updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, p.AgeYears, p.HeightCm, p.WeightKg, p.Sex, p.ActivityLevel, conditions,
		p.Goal, p.CloudConsent, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// --- Meals ---

const mealColumnsSQL = `id, profile_id, name, description, photo_data_uri, meal_type, eaten_at,
	items, totals, provenance, created_at, updated_at`

func scanMeal(row pgx.Row) (*models.Meal, error) {
	var m models.Meal
	var c mealColumns
	if err := row.Scan(&m.ID, &m.ProfileID, &m.Name, &m.Description, &m.PhotoDataURI, &m.MealType, &m.EatenAt,
		&c.items, &c.totals, &c.provenance, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := c.decodeInto(&m.Items, &m.Totals, &m.Provenance); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) GetMeal(ctx context.Context, id string) (*models.Meal, error) {
	m, err := scanMeal(s.pool.QueryRow(ctx, `SELECT `+mealColumnsSQL+` FROM meals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meal: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) PutMeal(ctx context.Context, m *models.Meal) error {
	c, err := encodeMeal(m)
	if err != nil {
		return err
	}
	stamp(&m.CreatedAt, &m.UpdatedAt)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO meals (`+mealColumnsSQL+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   profile_id = EXCLUDED.profile_id,
		   name = EXCLUDED.name,
		   description = EXCLUDED.description,
		   photo_data_uri = EXCLUDED.photo_data_uri,
		   meal_type = EXCLUDED.meal_type,
		   eaten_at = EXCLUDED.eaten_at,
		   items = EXCLUDED.items,
		   totals = EXCLUDED.totals,
		   provenance = EXCLUDED.provenance,
		   updated_at = EXCLUDED.updated_at`,
		m.ID, m.ProfileID, m.Name, m.Description, m.PhotoDataURI, m.MealType, m.EatenAt,
		c.items, c.totals, c.provenance, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put meal: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMeal(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListMealsByProfile(ctx context.Context, filter MealFilter) ([]*models.Meal, error) {
	query := `SELECT ` + mealColumnsSQL + ` FROM meals WHERE profile_id = $1`
	args := []any{filter.ProfileID}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND eaten_at >= $%d", len(args))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		query += fmt.Sprintf(" AND eaten_at < $%d", len(args))
	}
	args = append(args, filter.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY eaten_at DESC, id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer rows.Close()

	meals := []*models.Meal{}
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

// --- Meal plans ---

const planColumnsSQL = `id, profile_id, title, text, items, totals, provenance, created_at, updated_at`

func scanPlan(row pgx.Row) (*models.MealPlan, error) {
	var p models.MealPlan
	var c mealColumns
	if err := row.Scan(&p.ID, &p.ProfileID, &p.Title, &p.Text,
		&c.items, &c.totals, &c.provenance, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := c.decodeInto(&p.Items, &p.Totals, &p.Provenance); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id string) (*models.MealPlan, error) {
	p, err := scanPlan(s.pool.QueryRow(ctx, `SELECT `+planColumnsSQL+` FROM meal_plans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) PutPlan(ctx context.Context, p *models.MealPlan) error {
	c, err := encodePlan(p)
	if err != nil {
		return err
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO meal_plans (`+planColumnsSQL+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   profile_id = EXCLUDED.profile_id,
		   title = EXCLUDED.title,
		   text = EXCLUDED.text,
		   items = EXCLUDED.items,
		   totals = EXCLUDED.totals,
		   provenance = EXCLUDED.provenance,
		   updated_at = EXCLUDED.updated_at`,
		p.ID, p.ProfileID, p.Title, p.Text, c.items, c.totals, c.provenance, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put plan: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePlan(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meal_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPlansByProfile(ctx context.Context, profileID string) ([]*models.MealPlan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+planColumnsSQL+` FROM meal_plans WHERE profile_id = $1 ORDER BY created_at DESC, id`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := []*models.MealPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// --- API Keys ---

const apiKeyColumnsSQL = `id, profile_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func (s *PostgresStore) queryAPIKeys(ctx context.Context, query string, args ...any) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.ProfileID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	keys, err := s.queryAPIKeys(ctx,
		`SELECT `+apiKeyColumnsSQL+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, profile_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.ProfileID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, profileID string) ([]*models.APIKey, error) {
	keys, err := s.queryAPIKeys(ctx,
		`SELECT `+apiKeyColumnsSQL+` FROM api_keys WHERE profile_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, profileID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND profile_id = $2 AND deleted_at IS NULL`, id, profileID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
