package queue

import "time"

// Queue names. Both are declared durable.
const (
	ActivityQueue = "user.activity"
	PurgeQueue    = "cache.purge"
)

// Activity kinds.
const (
	FavoriteAdded   = "favorite.added"
	FavoriteRemoved = "favorite.removed"
	HistoryAdded    = "history.added"
	HistoryRemoved  = "history.removed"
)

// ActivityEvent is published after every successful favorites or
// watch-history mutation. It carries enough for the activity log without
// a database read.
type ActivityEvent struct {
	Kind       string    `json:"kind"`
	Username   string    `json:"username"`
	TMDBID     int       `json:"tmdb_id"`
	Title      string    `json:"title,omitempty"`
	Progress   *float64  `json:"progress,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PurgeJob asks a worker to delete expired cache documents.
type PurgeJob struct {
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}
