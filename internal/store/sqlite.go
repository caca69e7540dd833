package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	age_years INTEGER NOT NULL DEFAULT 0,
	height_cm REAL NOT NULL DEFAULT 0,
	weight_kg REAL NOT NULL DEFAULT 0,
	sex TEXT NOT NULL DEFAULT '',
	activity_level TEXT NOT NULL DEFAULT '',
	medical_conditions TEXT NOT NULL DEFAULT '[]',
	goal TEXT NOT NULL DEFAULT '',
	cloud_consent INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meals (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	photo_data_uri TEXT NOT NULL DEFAULT '',
	meal_type TEXT NOT NULL DEFAULT '',
	eaten_at TEXT NOT NULL,
	items TEXT NOT NULL DEFAULT '[]',
	totals TEXT NOT NULL DEFAULT '{}',
	provenance TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_meals_profile_eaten ON meals(profile_id, eaten_at DESC);
CREATE TABLE IF NOT EXISTS meal_plans (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	items TEXT NOT NULL DEFAULT '[]',
	totals TEXT NOT NULL DEFAULT '{}',
	provenance TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_meal_plans_profile ON meal_plans(profile_id, created_at DESC);
CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	name TEXT NOT NULL,
	key_hash TEXT NOT NULL,
	key_prefix TEXT NOT NULL,
	scopes TEXT NOT NULL DEFAULT '[]',
	last_used_at TEXT,
	deleted_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(key_prefix);
`

// timeLayout is fixed-width so text comparison orders timestamps chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on an on-device SQLite file via modernc.org/sqlite.
// Timestamps are stored as UTC text in timeLayout.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema
// and the default profile exist.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create sqlite schema: %w", err)
	}
	now := formatTime(time.Now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO profiles (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		DefaultProfileID, DefaultProfileID, now, now); err != nil {
		return fmt.Errorf("seed default profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// --- Profiles ---

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	var conditions, created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, age_years, height_cm, weight_kg, sex, activity_level, medical_conditions, goal,
		        cloud_consent, created_at, updated_at
		 FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.AgeYears, &p.HeightCm, &p.WeightKg, &p.Sex, &p.ActivityLevel, &conditions,
		&p.Goal, &p.CloudConsent, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p.MedicalConditions, err = decodeStrings([]byte(conditions)); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) PutProfile(ctx context.Context, p *models.Profile) error {
	if p.MedicalConditions == nil {
		p.MedicalConditions = []string{}
	}
	conditions, err := encodeJSON(p.MedicalConditions)
	if err != nil {
		return err
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, age_years, height_cm, weight_kg, sex, activity_level, medical_conditions,
		                       goal, cloud_consent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   age_years = excluded.age_years,
		   height_cm = excluded.height_cm,
		   weight_kg = excluded.weight_kg,
		   sex = excluded.sex,
		   activity_level = excluded.activity_level,
		   medical_conditions = excluded.medical_conditions,
		   goal = excluded.goal,
		   cloud_consent = excluded.cloud_consent,
		   updated_at = excluded.updated_at`,
		p.ID, p.Name, p.AgeYears, p.HeightCm, p.WeightKg, p.Sex, p.ActivityLevel, string(conditions),
		p.Goal, p.CloudConsent, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// --- Meals ---

func scanSQLiteMeal(scan func(dest ...any) error) (*models.Meal, error) {
	var m models.Meal
	var items, totals string
	var prov sql.NullString
	var eaten, created, updated string
	if err := scan(&m.ID, &m.ProfileID, &m.Name, &m.Description, &m.PhotoDataURI, &m.MealType, &eaten,
		&items, &totals, &prov, &created, &updated); err != nil {
		return nil, err
	}
	c := mealColumns{items: []byte(items), totals: []byte(totals)}
	if prov.Valid {
		c.provenance = []byte(prov.String)
	}
	if err := c.decodeInto(&m.Items, &m.Totals, &m.Provenance); err != nil {
		return nil, err
	}
	var err error
	if m.EatenAt, err = parseTime(eaten); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) GetMeal(ctx context.Context, id string) (*models.Meal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mealColumnsSQL+` FROM meals WHERE id = ?`, id)
	m, err := scanSQLiteMeal(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meal: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) PutMeal(ctx context.Context, m *models.Meal) error {
	c, err := encodeMeal(m)
	if err != nil {
		return err
	}
	stamp(&m.CreatedAt, &m.UpdatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meals (`+mealColumnsSQL+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   profile_id = excluded.profile_id,
		   name = excluded.name,
		   description = excluded.description,
		   photo_data_uri = excluded.photo_data_uri,
		   meal_type = excluded.meal_type,
		   eaten_at = excluded.eaten_at,
		   items = excluded.items,
		   totals = excluded.totals,
		   provenance = excluded.provenance,
		   updated_at = excluded.updated_at`,
		m.ID, m.ProfileID, m.Name, m.Description, m.PhotoDataURI, m.MealType, formatTime(m.EatenAt),
		string(c.items), string(c.totals), nullBytes(c.provenance), formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put meal: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteMeal(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "meals", id)
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListMealsByProfile(ctx context.Context, filter MealFilter) ([]*models.Meal, error) {
	conditions := []string{"profile_id = ?"}
	args := []any{filter.ProfileID}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "eaten_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "eaten_at < ?")
		args = append(args, formatTime(filter.Until))
	}
	args = append(args, filter.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mealColumnsSQL+` FROM meals WHERE `+strings.Join(conditions, " AND ")+
			` ORDER BY eaten_at DESC, id LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer rows.Close()

	meals := []*models.Meal{}
	for rows.Next() {
		m, err := scanSQLiteMeal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

// --- Meal plans ---

func scanSQLitePlan(scan func(dest ...any) error) (*models.MealPlan, error) {
	var p models.MealPlan
	var items, totals string
	var prov sql.NullString
	var created, updated string
	if err := scan(&p.ID, &p.ProfileID, &p.Title, &p.Text, &items, &totals, &prov, &created, &updated); err != nil {
		return nil, err
	}
	c := mealColumns{items: []byte(items), totals: []byte(totals)}
	if prov.Valid {
		c.provenance = []byte(prov.String)
	}
	if err := c.decodeInto(&p.Items, &p.Totals, &p.Provenance); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*models.MealPlan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planColumnsSQL+` FROM meal_plans WHERE id = ?`, id)
	p, err := scanSQLitePlan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) PutPlan(ctx context.Context, p *models.MealPlan) error {
	c, err := encodePlan(p)
	if err != nil {
		return err
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meal_plans (`+planColumnsSQL+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   profile_id = excluded.profile_id,
		   title = excluded.title,
		   text = excluded.text,
		   items = excluded.items,
		   totals = excluded.totals,
		   provenance = excluded.provenance,
		   updated_at = excluded.updated_at`,
		p.ID, p.ProfileID, p.Title, p.Text, string(c.items), string(c.totals), nullBytes(c.provenance),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put plan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "meal_plans", id)
}

func (s *SQLiteStore) ListPlansByProfile(ctx context.Context, profileID string) ([]*models.MealPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumnsSQL+` FROM meal_plans WHERE profile_id = ? ORDER BY created_at DESC, id`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := []*models.MealPlan{}
	for rows.Next() {
		p, err := scanSQLitePlan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// --- API Keys ---

func (s *SQLiteStore) queryAPIKeys(ctx context.Context, query string, args ...any) ([]*models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		var id, scopes, created, updated string
		var lastUsed, deleted sql.NullString
		if err := rows.Scan(&id, &k.ProfileID, &k.Name, &k.KeyHash, &k.KeyPrefix, &scopes,
			&lastUsed, &deleted, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		if k.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse api key id: %w", err)
		}
		if k.Scopes, err = decodeStrings([]byte(scopes)); err != nil {
			return nil, err
		}
		if k.LastUsedAt, err = parseNullTime(lastUsed); err != nil {
			return nil, err
		}
		if k.DeletedAt, err = parseNullTime(deleted); err != nil {
			return nil, err
		}
		if k.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if k.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	keys, err := s.queryAPIKeys(ctx,
		`SELECT `+apiKeyColumnsSQL+` FROM api_keys WHERE key_prefix = ? AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return keys, nil
}

func (s *SQLiteStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ?, updated_at = ? WHERE id = ?`, now, now, id.String())
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	if key.Scopes == nil {
		key.Scopes = []string{}
	}
	scopes, err := encodeJSON(key.Scopes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, profile_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID.String(), key.ProfileID, key.Name, key.KeyHash, key.KeyPrefix, string(scopes),
		formatTime(key.CreatedAt), formatTime(key.UpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAPIKeys(ctx context.Context, profileID string) ([]*models.APIKey, error) {
	keys, err := s.queryAPIKeys(ctx,
		`SELECT `+apiKeyColumnsSQL+` FROM api_keys WHERE profile_id = ? AND deleted_at IS NULL ORDER BY created_at DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, profileID string) error {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET deleted_at = ?, updated_at = ?
		 WHERE id = ? AND profile_id = ? AND deleted_at IS NULL`, now, now, id.String(), profileID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
