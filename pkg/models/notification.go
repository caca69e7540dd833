package models

import "time"

// NotificationLevel is the toast severity shown to the user.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelInfo    NotificationLevel = "info"
)

// Notification is a fire-and-forget, user-visible status message.
type Notification struct {
	Level    NotificationLevel `json:"level"`
	Kind     string            `json:"kind,omitempty"`
	TargetID string            `json:"target_id,omitempty"`
	Message  string            `json:"message"`
	At       time.Time         `json:"at"`
}
