package models

import "time"

// Profile holds the user's body metrics and medical history. CloudConsent gates
// whether meal data may be sent to a cloud AI provider.
type Profile struct {
	ID                string    `db:"id"                 json:"id"`
	Name              string    `db:"name"               json:"name"`
	AgeYears          int       `db:"age_years"          json:"age_years"`
	HeightCm          float64   `db:"height_cm"          json:"height_cm"`
	WeightKg          float64   `db:"weight_kg"          json:"weight_kg"`
	Sex               string    `db:"sex"                json:"sex"`
	ActivityLevel     string    `db:"activity_level"     json:"activity_level"`
	MedicalConditions []string  `db:"medical_conditions" json:"medical_conditions"`
	Goal              string    `db:"goal"               json:"goal"`
	CloudConsent      bool      `db:"cloud_consent"      json:"cloud_consent"`
	CreatedAt         time.Time `db:"created_at"         json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"         json:"updated_at"`
}
