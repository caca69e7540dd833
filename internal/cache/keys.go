package cache

import "fmt"

// NotificationChannel is the pub/sub channel user notifications are published on.
const NotificationChannel = "mealtrack:notifications"

// OfflineGenerationsKey is the set of generation names that hold cached responses.
const OfflineGenerationsKey = "offline:generations"

func MealKey(mealID string) string {
	return fmt.Sprintf("meal:%s", mealID)
}

func PlanKey(planID string) string {
	return fmt.Sprintf("plan:%s", planID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// OfflineGenerationKey is the hash of request key -> stored response for one generation.
func OfflineGenerationKey(generation string) string {
	return fmt.Sprintf("offline:gen:%s", generation)
}
