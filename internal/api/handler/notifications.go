package handler

import (
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/mealtrack/internal/api/response"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

const defaultNotificationLimit = 20

// NotificationFeed returns recent notifications, newest first.
type NotificationFeed interface {
	List(limit int) []models.Notification
}

func NewNotificationsHandler(feed NotificationFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultNotificationLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query",
					map[string][]string{"limit": {"must be a positive integer"}})
				return
			}
			limit = n
		}

		items := feed.List(limit)
		if items == nil {
			items = []models.Notification{}
		}
		response.Collection(w, items, response.ListMeta{Count: len(items), Limit: limit})
	}
}
