// Package notify delivers fire-and-forget user notifications (the toasts shown
// when an analysis starts, finishes or fails).
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/kiranshivaraju/mealtrack/internal/cache"
	"github.com/kiranshivaraju/mealtrack/internal/metrics"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// Notifier receives user-visible notifications. Implementations must not block
// for long and must be safe for concurrent use.
type Notifier interface {
	Notify(n models.Notification)
}

// Func adapts a plain function to Notifier.
type Func func(n models.Notification)

func (f Func) Notify(n models.Notification) { f(n) }

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(n models.Notification) {
	metrics.Notifications.WithLabelValues(string(n.Level)).Inc()
	level := slog.LevelInfo
	if n.Level == models.LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, "notification",
		"severity", n.Level,
		"kind", n.Kind,
		"target_id", n.TargetID,
		"message", n.Message,
	)
}

// Feed keeps the most recent notifications in a bounded ring so clients can poll them.
type Feed struct {
	mu    sync.Mutex
	items []models.Notification
	next  int
	full  bool
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 50
	}
	return &Feed{items: make([]models.Notification, size)}
}

func (f *Feed) Notify(n models.Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[f.next] = n
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
}

// List returns up to limit notifications, newest first. limit <= 0 returns all.
func (f *Feed) List(limit int) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.next
	if f.full {
		n = len(f.items)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Notification, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (f.next - 1 - i + len(f.items)) % len(f.items)
		out = append(out, f.items[idx])
	}
	return out
}

// RedisNotifier publishes notifications as JSON on cache.NotificationChannel.
// Publish failures are logged and dropped.
type RedisNotifier struct {
	cache   cache.Cache
	timeout time.Duration
}

func NewRedisNotifier(c cache.Cache) *RedisNotifier {
	return &RedisNotifier{cache: c, timeout: 2 * time.Second}
}

func (r *RedisNotifier) Notify(n models.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		slog.Error("encoding notification", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.cache.Publish(ctx, cache.NotificationChannel, payload); err != nil {
		slog.Warn("publishing notification", "kind", n.Kind, "target_id", n.TargetID, "error", err)
	}
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(n models.Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}

// Recorder captures notifications in memory. Used by tests.
type Recorder struct {
	mu    sync.Mutex
	items []models.Notification
}

func (r *Recorder) Notify(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Messages returns the recorded message texts in order.
func (r *Recorder) Messages() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, n := range all {
		out[i] = n.Message
	}
	return out
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*Feed)(nil)
	_ Notifier = (*RedisNotifier)(nil)
	_ Notifier = Multi(nil)
	_ Notifier = (*Recorder)(nil)
)
