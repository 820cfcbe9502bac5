package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/queue"
	"github.com/iliyamo/onstream-api/internal/repository"
	"github.com/iliyamo/onstream-api/internal/validation"
)

// FavoriteStore is the `favorites` collection.
type FavoriteStore interface {
	Add(ctx context.Context, f *model.Favorite) error
	Remove(ctx context.Context, username string, tmdbID int) error
	List(ctx context.Context, username string, page, size int) ([]model.Favorite, int64, error)
}

// HistoryStore is the `watch_history` collection.
type HistoryStore interface {
	Add(ctx context.Context, e *model.WatchHistoryEntry) error
	List(ctx context.Context, username string, page, size int) ([]model.WatchHistoryEntry, int64, error)
	Latest(ctx context.Context, username string, tmdbID int) (model.WatchHistoryEntry, error)
	RemoveAll(ctx context.Context, username string, tmdbID int) (int64, error)
}

// FavoriteInput is the body of POST /favorites.
type FavoriteInput struct {
	TMDBID     int     `json:"tmdb_id" validate:"gt=0"`
	Title      string  `json:"title" validate:"required,max=500"`
	PosterPath *string `json:"poster_path"`
	Type       string  `json:"type" validate:"omitempty,oneof=movie tv"`
}

// HistoryInput is the body of POST /watch-history. Progress is the
// watched fraction, 0 to 1 inclusive.
type HistoryInput struct {
	TMDBID     int     `json:"tmdb_id" validate:"gt=0"`
	Title      string  `json:"title" validate:"required,max=500"`
	PosterPath *string `json:"poster_path"`
	Type       string  `json:"type" validate:"omitempty,oneof=movie tv"`
	Progress   float64 `json:"progress" validate:"gte=0,lte=1"`
}

// Library manages a user's favorites and watch history. Every successful
// mutation publishes an activity event; publishing is best effort.
type Library struct {
	favorites FavoriteStore
	history   HistoryStore
	pub       Publisher
	now       func() time.Time
}

func NewLibrary(favorites FavoriteStore, history HistoryStore, pub Publisher) *Library {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Library{favorites: favorites, history: history, pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

// AddFavorite saves a title. Saving the same title twice is ErrAlreadyExists.
func (l *Library) AddFavorite(ctx context.Context, username string, in FavoriteInput) (model.Favorite, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return model.Favorite{}, invalid(err)
	}
	f := model.Favorite{
		Username:   username,
		TMDBID:     in.TMDBID,
		Title:      in.Title,
		PosterPath: in.PosterPath,
		Type:       typeOrMovie(in.Type),
		AddedAt:    l.now(),
	}
	if err := l.favorites.Add(ctx, &f); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Favorite{}, fmt.Errorf("favorite %d: %w", in.TMDBID, ErrAlreadyExists)
		}
		return model.Favorite{}, fmt.Errorf("add favorite: %w", err)
	}
	l.publish(ctx, queue.ActivityEvent{Kind: queue.FavoriteAdded, Username: username, TMDBID: f.TMDBID, Title: f.Title, OccurredAt: f.AddedAt})
	return f, nil
}

// RemoveFavorite deletes a saved title; ErrNotFound when it was not saved.
func (l *Library) RemoveFavorite(ctx context.Context, username string, tmdbID int) error {
	if tmdbID <= 0 {
		return invalidf("tmdb id must be a positive integer")
	}
	if err := l.favorites.Remove(ctx, username, tmdbID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("favorite %d: %w", tmdbID, ErrNotFound)
		}
		return fmt.Errorf("remove favorite: %w", err)
	}
	l.publish(ctx, queue.ActivityEvent{Kind: queue.FavoriteRemoved, Username: username, TMDBID: tmdbID, OccurredAt: l.now()})
	return nil
}

// ListFavorites returns one page of favorites, newest first.
func (l *Library) ListFavorites(ctx context.Context, username string, page int) (model.Page[model.Favorite], error) {
	if page < 1 || page > MaxPage {
		return model.Page[model.Favorite]{}, invalidf("page must be between 1 and %d", MaxPage)
	}
	items, total, err := l.favorites.List(ctx, username, page, PageSize)
	if err != nil {
		return model.Page[model.Favorite]{}, fmt.Errorf("list favorites: %w", err)
	}
	return model.NewPage(page, PageSize, total, items), nil
}

// AddWatchHistory appends a viewing entry. Entries for the same title
// accumulate; the latest one carries the current progress.
func (l *Library) AddWatchHistory(ctx context.Context, username string, in HistoryInput) (model.WatchHistoryEntry, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return model.WatchHistoryEntry{}, invalid(err)
	}
	e := model.WatchHistoryEntry{
		Username:   username,
		TMDBID:     in.TMDBID,
		Title:      in.Title,
		PosterPath: in.PosterPath,
		Type:       typeOrMovie(in.Type),
		Progress:   in.Progress,
		WatchedAt:  l.now(),
	}
	if err := l.history.Add(ctx, &e); err != nil {
		return model.WatchHistoryEntry{}, fmt.Errorf("add watch history: %w", err)
	}
	progress := e.Progress
	l.publish(ctx, queue.ActivityEvent{Kind: queue.HistoryAdded, Username: username, TMDBID: e.TMDBID, Title: e.Title, Progress: &progress, OccurredAt: e.WatchedAt})
	return e, nil
}

// ListWatchHistory returns one page of entries, newest first.
func (l *Library) ListWatchHistory(ctx context.Context, username string, page int) (model.Page[model.WatchHistoryEntry], error) {
	if page < 1 || page > MaxPage {
		return model.Page[model.WatchHistoryEntry]{}, invalidf("page must be between 1 and %d", MaxPage)
	}
	items, total, err := l.history.List(ctx, username, page, PageSize)
	if err != nil {
		return model.Page[model.WatchHistoryEntry]{}, fmt.Errorf("list watch history: %w", err)
	}
	return model.NewPage(page, PageSize, total, items), nil
}

// CurrentProgress returns the most recent entry for the title.
func (l *Library) CurrentProgress(ctx context.Context, username string, tmdbID int) (model.WatchHistoryEntry, error) {
	if tmdbID <= 0 {
		return model.WatchHistoryEntry{}, invalidf("tmdb id must be a positive integer")
	}
	e, err := l.history.Latest(ctx, username, tmdbID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.WatchHistoryEntry{}, fmt.Errorf("watch history %d: %w", tmdbID, ErrNotFound)
	}
	return e, err
}

// RemoveWatchHistory deletes every entry for the title and returns how
// many were removed; ErrNotFound when there were none.
func (l *Library) RemoveWatchHistory(ctx context.Context, username string, tmdbID int) (int64, error) {
	if tmdbID <= 0 {
		return 0, invalidf("tmdb id must be a positive integer")
	}
	n, err := l.history.RemoveAll(ctx, username, tmdbID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("watch history %d: %w", tmdbID, ErrNotFound)
		}
		return 0, fmt.Errorf("remove watch history: %w", err)
	}
	l.publish(ctx, queue.ActivityEvent{Kind: queue.HistoryRemoved, Username: username, TMDBID: tmdbID, OccurredAt: l.now()})
	return n, nil
}

func (l *Library) publish(ctx context.Context, ev queue.ActivityEvent) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := l.pub.Publish(pctx, queue.ActivityQueue, ev); err != nil && !errors.Is(err, ErrNoBroker) {
		logging.Ctx(ctx).Debug().Err(err).Str("kind", ev.Kind).Msg("activity event dropped")
	}
}

func typeOrMovie(t string) string {
	if t == "" {
		return model.TypeMovie
	}
	return t
}
