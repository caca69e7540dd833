package store

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// Items, totals, provenance and medical conditions are stored as JSON columns
// in both backends.

func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return b, nil
}

func decodeItems(b []byte) ([]models.FoodItem, error) {
	items := []models.FoodItem{}
	if len(b) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func decodeTotals(b []byte) (models.Totals, error) {
	var t models.Totals
	if len(b) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("decode totals: %w", err)
	}
	return t, nil
}

func decodeProvenance(b []byte) (*models.Provenance, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var p models.Provenance
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode provenance: %w", err)
	}
	return &p, nil
}

func decodeStrings(b []byte) ([]string, error) {
	out := []string{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return out, nil
}

type mealColumns struct {
	items, totals, provenance []byte
}

func encodeMeal(m *models.Meal) (mealColumns, error) {
	return encodeAnalysis(m.Items, m.Totals, m.Provenance)
}

func encodePlan(p *models.MealPlan) (mealColumns, error) {
	return encodeAnalysis(p.Items, p.Totals, p.Provenance)
}

func encodeAnalysis(items []models.FoodItem, totals models.Totals, prov *models.Provenance) (mealColumns, error) {
	var c mealColumns
	var err error
	if items == nil {
		items = []models.FoodItem{}
	}
	if c.items, err = encodeJSON(items); err != nil {
		return c, err
	}
	if c.totals, err = encodeJSON(totals); err != nil {
		return c, err
	}
	if prov != nil {
		if c.provenance, err = encodeJSON(prov); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (c mealColumns) decodeInto(items *[]models.FoodItem, totals *models.Totals, prov **models.Provenance) error {
	var err error
	if *items, err = decodeItems(c.items); err != nil {
		return err
	}
	if *totals, err = decodeTotals(c.totals); err != nil {
		return err
	}
	*prov, err = decodeProvenance(c.provenance)
	return err
}
