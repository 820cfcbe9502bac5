package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/queue"
)

func newTestLibrary() (*Library, *fakeFavorites, *fakeHistory, *recordingPublisher) {
	favs, hist, pub := &fakeFavorites{}, &fakeHistory{}, &recordingPublisher{}
	l := NewLibrary(favs, hist, pub)
	tick := testNow
	l.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return l, favs, hist, pub
}

func TestAddFavoriteTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	l, favs, _, pub := newTestLibrary()

	f, err := l.AddFavorite(ctx, "demo", FavoriteInput{TMDBID: 603, Title: "The Matrix"})
	require.NoError(t, err)
	assert.Equal(t, model.TypeMovie, f.Type)
	assert.False(t, f.ID.IsZero())

	_, err = l.AddFavorite(ctx, "demo", FavoriteInput{TMDBID: 603, Title: "The Matrix"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Len(t, favs.rows, 1)

	// a different user may save the same title
	_, err = l.AddFavorite(ctx, "other", FavoriteInput{TMDBID: 603, Title: "The Matrix"})
	require.NoError(t, err)

	sent := pub.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, queue.ActivityQueue, sent[0].queue)
	assert.Equal(t, queue.FavoriteAdded, sent[0].payload.(queue.ActivityEvent).Kind)
}

func TestFavoritesListAndRemove(t *testing.T) {
	ctx := context.Background()
	l, _, _, _ := newTestLibrary()
	for i := 1; i <= 25; i++ {
		_, err := l.AddFavorite(ctx, "demo", FavoriteInput{TMDBID: i, Title: "t", Type: model.TypeTV})
		require.NoError(t, err)
	}

	page, err := l.ListFavorites(ctx, "demo", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 25, page.TotalResults)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Results, 20)
	assert.Equal(t, 25, page.Results[0].TMDBID, "newest first")

	page, err = l.ListFavorites(ctx, "demo", 2)
	require.NoError(t, err)
	assert.Len(t, page.Results, 5)

	require.NoError(t, l.RemoveFavorite(ctx, "demo", 25))
	assert.ErrorIs(t, l.RemoveFavorite(ctx, "demo", 25), ErrNotFound)
	assert.ErrorIs(t, l.RemoveFavorite(ctx, "demo", 0), ErrValidation)

	_, err = l.ListFavorites(ctx, "demo", 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = l.ListFavorites(ctx, "demo", MaxPage+1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = l.ListWatchHistory(ctx, "demo", MaxPage+1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFavoriteValidation(t *testing.T) {
	l, _, _, _ := newTestLibrary()
	for _, in := range []FavoriteInput{{TMDBID: 0, Title: "x"}, {TMDBID: 1, Title: "  "}, {TMDBID: 1, Title: "x", Type: "anime"}} {
		_, err := l.AddFavorite(context.Background(), "demo", in)
		assert.ErrorIs(t, err, ErrValidation, "%+v", in)
	}
}

func TestWatchHistoryAccumulates(t *testing.T) {
	ctx := context.Background()
	l, _, hist, pub := newTestLibrary()

	for _, p := range []float64{0.1, 0.4, 0.9} {
		_, err := l.AddWatchHistory(ctx, "demo", HistoryInput{TMDBID: 603, Title: "The Matrix", Progress: p})
		require.NoError(t, err)
	}
	assert.Len(t, hist.rows, 3)

	page, err := l.ListWatchHistory(ctx, "demo", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalResults)
	assert.Equal(t, 0.9, page.Results[0].Progress)

	cur, err := l.CurrentProgress(ctx, "demo", 603)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cur.Progress)

	n, err := l.RemoveWatchHistory(ctx, "demo", 603)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	_, err = l.RemoveWatchHistory(ctx, "demo", 603)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.CurrentProgress(ctx, "demo", 603)
	assert.ErrorIs(t, err, ErrNotFound)

	sent := pub.sent()
	require.Len(t, sent, 4)
	ev := sent[2].payload.(queue.ActivityEvent)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, 0.9, *ev.Progress)
	assert.Equal(t, queue.HistoryRemoved, sent[3].payload.(queue.ActivityEvent).Kind)
}

func TestWatchHistoryProgressBounds(t *testing.T) {
	ctx := context.Background()
	l, _, hist, _ := newTestLibrary()

	for _, p := range []float64{0, 1} {
		_, err := l.AddWatchHistory(ctx, "demo", HistoryInput{TMDBID: 603, Title: "The Matrix", Progress: p})
		assert.NoError(t, err, "progress %v", p)
	}
	for _, p := range []float64{1.5, -0.1} {
		_, err := l.AddWatchHistory(ctx, "demo", HistoryInput{TMDBID: 603, Title: "The Matrix", Progress: p})
		assert.ErrorIs(t, err, ErrValidation, "progress %v", p)
	}
	assert.Len(t, hist.rows, 2)
}

func TestLibraryIgnoresPublishFailures(t *testing.T) {
	l, _, _, pub := newTestLibrary()
	pub.err = errors.New("broker down")
	_, err := l.AddFavorite(context.Background(), "demo", FavoriteInput{TMDBID: 603, Title: "The Matrix"})
	assert.NoError(t, err)
}
