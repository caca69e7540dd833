package models

// JobState is the lifecycle state of a background analysis job. Job state lives
// only in the queue engine's memory and is lost when the process exits.
type JobState string

const (
	JobStateIdle      JobState = "idle"
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

const (
	JobKindMealPhoto = "meal_photo"
	JobKindPlanText  = "plan_text"
)

// JobStatus is a point-in-time view of one target id inside a queue engine.
// Position is 1-based among queued jobs, 0 when running or not queued.
type JobStatus struct {
	TargetID string   `json:"target_id"`
	Kind     string   `json:"kind"`
	State    JobState `json:"state"`
	Position int      `json:"position,omitempty"`
	Error    string   `json:"error,omitempty"`
}
