package models

import "time"

const (
	MealTypeBreakfast = "breakfast"
	MealTypeLunch     = "lunch"
	MealTypeDinner    = "dinner"
	MealTypeSnack     = "snack"
)

// Meal is a single logged meal. Items, Totals and Provenance are owned by the
// analysis queue; everything else is owned by the user.
type Meal struct {
	ID           string      `db:"id"             json:"id"`
	ProfileID    string      `db:"profile_id"     json:"profile_id"`
	Name         string      `db:"name"           json:"name"`
	Description  string      `db:"description"    json:"description"`
	PhotoDataURI string      `db:"photo_data_uri" json:"photo_data_uri,omitempty"`
	MealType     string      `db:"meal_type"      json:"meal_type"`
	EatenAt      time.Time   `db:"eaten_at"       json:"eaten_at"`
	Items        []FoodItem  `db:"items"          json:"items"`
	Totals       Totals      `db:"totals"         json:"totals"`
	Provenance   *Provenance `db:"provenance"     json:"provenance,omitempty"`
	CreatedAt    time.Time   `db:"created_at"     json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"     json:"updated_at"`
}

// MealPlan is a free-text plan ("oatmeal for breakfast, chicken salad for lunch")
// that can be analyzed the same way a meal photo is.
type MealPlan struct {
	ID         string      `db:"id"         json:"id"`
	ProfileID  string      `db:"profile_id" json:"profile_id"`
	Title      string      `db:"title"      json:"title"`
	Text       string      `db:"text"       json:"text"`
	Items      []FoodItem  `db:"items"      json:"items"`
	Totals     Totals      `db:"totals"     json:"totals"`
	Provenance *Provenance `db:"provenance" json:"provenance,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// FoodItem is one estimated component of a meal.
type FoodItem struct {
	Name     string  `json:"name"`
	Quantity string  `json:"quantity,omitempty"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Totals is the macronutrient sum for a meal or plan.
type Totals struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// SumItems adds up the macros of items.
func SumItems(items []FoodItem) Totals {
	var t Totals
	for _, it := range items {
		t.Calories += it.Calories
		t.ProteinG += it.ProteinG
		t.CarbsG += it.CarbsG
		t.FatG += it.FatG
	}
	return t
}
