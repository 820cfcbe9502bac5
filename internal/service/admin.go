package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/iliyamo/onstream-api/internal/database"
	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/metrics"
	"github.com/iliyamo/onstream-api/internal/queue"
)

// UserCounter reports account statistics.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

// SystemStats is the body of GET /admin/stats.
type SystemStats struct {
	TotalUsers       int64         `json:"total_users"`
	CachedMovies     int64         `json:"cached_movies"`
	CachedStreams    int64         `json:"cached_streams"`
	ActiveUsersToday int64         `json:"active_users_today"`
	CacheHitRate     float64       `json:"cache_hit_rate"`
	Resolver         ResolverStats `json:"resolver"`
}

// PurgeReport says how many expired documents a purge removed.
type PurgeReport struct {
	Movies  int64 `json:"movies"`
	Streams int64 `json:"streams"`
}

// Admin serves the maintenance endpoints.
type Admin struct {
	users    UserCounter
	titles   TitleStore
	streams  StreamStore
	resolver *Resolver
	pub      Publisher
	now      func() time.Time
}

func NewAdmin(users UserCounter, titles TitleStore, streams StreamStore, resolver *Resolver, pub Publisher) *Admin {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Admin{users: users, titles: titles, streams: streams, resolver: resolver, pub: pub,
		now: func() time.Time { return time.Now().UTC() }}
}

// Stats collects the collection counts and resolver counters.
func (a *Admin) Stats(ctx context.Context) (SystemStats, error) {
	var s SystemStats
	var err error
	if s.TotalUsers, err = a.users.Count(ctx); err != nil {
		return SystemStats{}, fmt.Errorf("count users: %w", err)
	}
	if s.CachedMovies, err = a.titles.Count(ctx); err != nil {
		return SystemStats{}, fmt.Errorf("count titles: %w", err)
	}
	if s.CachedStreams, err = a.streams.Count(ctx); err != nil {
		return SystemStats{}, fmt.Errorf("count streams: %w", err)
	}
	now := a.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if s.ActiveUsersToday, err = a.users.CountActiveSince(ctx, midnight); err != nil {
		return SystemStats{}, fmt.Errorf("count active users: %w", err)
	}
	if a.resolver != nil {
		s.Resolver = a.resolver.Stats()
		s.CacheHitRate = s.Resolver.HitRate
	}
	return s, nil
}

// RequestPurge queues a purge of expired cache documents. Without a
// reachable broker the purge runs in a background goroutine instead.
// It reports whether the job went through the queue.
func (a *Admin) RequestPurge(ctx context.Context, requestedBy string) bool {
	job := queue.PurgeJob{RequestedBy: requestedBy, RequestedAt: a.now()}
	err := a.pub.Publish(ctx, queue.PurgeQueue, job)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrNoBroker) {
		logging.Ctx(ctx).Warn().Err(err).Msg("purge job not queued; purging in background")
	}
	go func() {
		bctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := a.Purge(bctx); err != nil {
			logging.Error().Err(err).Msg("background cache purge failed")
		}
	}()
	return false
}

// Purge deletes every movies and streams document that expired before now.
func (a *Admin) Purge(ctx context.Context) (PurgeReport, error) {
	now := a.now()
	var r PurgeReport
	var err error
	if r.Movies, err = a.titles.DeleteExpired(ctx, now); err != nil {
		return r, fmt.Errorf("purge titles: %w", err)
	}
	if r.Streams, err = a.streams.DeleteExpired(ctx, now); err != nil {
		return r, fmt.Errorf("purge streams: %w", err)
	}
	metrics.CachePurged.WithLabelValues(database.Movies).Add(float64(r.Movies))
	metrics.CachePurged.WithLabelValues(database.Streams).Add(float64(r.Streams))
	logging.Info().Int64("movies", r.Movies).Int64("streams", r.Streams).Msg("expired cache purged")
	return r, nil
}

// HandlePurgeJob is the queue.Handler for cache.purge.
func (a *Admin) HandlePurgeJob(ctx context.Context, body []byte) error {
	var job queue.PurgeJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("unmarshal purge job: %w", err)
	}
	logging.Info().Str("requested_by", job.RequestedBy).Time("requested_at", job.RequestedAt).Msg("purge job received")
	_, err := a.Purge(ctx)
	return err
}
