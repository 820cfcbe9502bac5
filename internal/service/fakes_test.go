package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/repository"
	"github.com/iliyamo/onstream-api/internal/upstream"
)

type fakeTitles struct {
	mu      sync.Mutex
	byID    map[int]model.CachedTitle
	upserts int
}

func newFakeTitles(recs ...model.CachedTitle) *fakeTitles {
	f := &fakeTitles{byID: map[int]model.CachedTitle{}}
	for _, r := range recs {
		f.byID[r.TMDBID] = r
	}
	return f
}

func (f *fakeTitles) Get(_ context.Context, id int) (model.CachedTitle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return model.CachedTitle{}, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeTitles) Upsert(_ context.Context, t model.CachedTitle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[t.TMDBID] = t
	f.upserts++
	return nil
}

func (f *fakeTitles) filter(now time.Time, keep func(model.CachedTitle) bool, page, size int) ([]model.CachedTitle, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.CachedTitle
	for _, t := range f.byID {
		if t.ExpiresAt.After(now) && keep(t) {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Popularity == all[j].Popularity {
			return all[i].TMDBID < all[j].TMDBID
		}
		return all[i].Popularity > all[j].Popularity
	})
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := min(start+size, len(all))
	return all[start:end], int64(len(all))
}

func (f *fakeTitles) List(_ context.Context, flt repository.TitleFilter, now time.Time, page, size int) ([]model.CachedTitle, int64, error) {
	out, total := f.filter(now, func(t model.CachedTitle) bool {
		if flt.Type != "" && t.Type != flt.Type {
			return false
		}
		if flt.Year != "" && (t.Year == nil || *t.Year != flt.Year) {
			return false
		}
		if flt.Genre != "" {
			for _, g := range t.Genres {
				if strings.EqualFold(g.Name, flt.Genre) {
					return true
				}
			}
			return false
		}
		return true
	}, page, size)
	return out, total, nil
}

func (f *fakeTitles) Search(_ context.Context, text string, now time.Time, page, size int) ([]model.CachedTitle, int64, error) {
	text = strings.ToLower(text)
	out, total := f.filter(now, func(t model.CachedTitle) bool {
		return strings.Contains(strings.ToLower(t.Title+" "+t.Overview), text)
	}, page, size)
	return out, total, nil
}

func (f *fakeTitles) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, t := range f.byID {
		if t.ExpiresAt.Before(now) {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeTitles) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byID)), nil
}

type fakeStreams struct {
	mu      sync.Mutex
	byID    map[int]model.CachedStreamSet
	upserts int
}

func newFakeStreams(sets ...model.CachedStreamSet) *fakeStreams {
	f := &fakeStreams{byID: map[int]model.CachedStreamSet{}}
	for _, s := range sets {
		f.byID[s.TMDBID] = s
	}
	return f
}

func (f *fakeStreams) Get(_ context.Context, id int) (model.CachedStreamSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return model.CachedStreamSet{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeStreams) Upsert(_ context.Context, s model.CachedStreamSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[s.TMDBID] = s
	f.upserts++
	return nil
}

func (f *fakeStreams) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.byID {
		if s.ExpiresAt.Before(now) {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStreams) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byID)), nil
}

// fakeMeta answers Details from movies/shows and counts every call.
type fakeMeta struct {
	mu      sync.Mutex
	movies  map[int]upstream.Item
	shows   map[int]upstream.Item
	err     error
	gate    chan struct{}
	calls   []string
	popular []upstream.Item
	search  []upstream.Item
	trend   []upstream.Item
	genres  []model.Genre
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{movies: map[int]upstream.Item{}, shows: map[int]upstream.Item{}}
}

func (f *fakeMeta) note(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate, err := f.gate, f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeMeta) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeMeta) Details(_ context.Context, mediaType string, id int) (upstream.Item, error) {
	if err := f.note(mediaType + "/" + strconv.Itoa(id)); err != nil {
		return upstream.Item{}, err
	}
	src := f.movies
	if mediaType == model.TypeTV {
		src = f.shows
	}
	it, ok := src[id]
	if !ok {
		return upstream.Item{}, upstream.ErrNotFound
	}
	return it, nil
}

func (f *fakeMeta) Popular(_ context.Context, mediaType string, page int) (upstream.ListPage, error) {
	if err := f.note(mediaType + "/popular"); err != nil {
		return upstream.ListPage{}, err
	}
	return upstream.ListPage{Page: page, Results: f.popular}, nil
}

func (f *fakeMeta) Trending(context.Context) (upstream.ListPage, error) {
	if err := f.note("trending"); err != nil {
		return upstream.ListPage{}, err
	}
	return upstream.ListPage{Page: 1, Results: f.trend}, nil
}

func (f *fakeMeta) SearchMulti(_ context.Context, q string, page int) (upstream.ListPage, error) {
	if err := f.note("search/" + q); err != nil {
		return upstream.ListPage{}, err
	}
	return upstream.ListPage{Page: page, Results: f.search}, nil
}

func (f *fakeMeta) Genres(context.Context) ([]model.Genre, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.genres, nil
}

func (f *fakeMeta) GenreNames(context.Context) (map[int]string, error) {
	names := map[int]string{}
	for _, g := range f.genres {
		names[g.ID] = g.Name
	}
	return names, nil
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeProvider) Sources(_ context.Context, t model.CachedTitle) (upstream.Streams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return upstream.Streams{}, f.err
	}
	return upstream.Streams{Sources: []model.StreamSource{
		{URL: "https://vidsrc.to/embed/" + t.Type + "/" + strconv.Itoa(t.TMDBID), Quality: "HD", Server: "VidSrc", Type: "mp4"},
	}}, nil
}

type fakeUsers struct {
	mu        sync.Mutex
	byName    map[string]model.User
	skipCheck bool // simulate a registration race past the pre-check
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byName: map[string]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byName {
		if x.Username == u.Username || x.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	f.byName[u.Username] = *u
	return nil
}

func (f *fakeUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.skipCheck {
		return false, nil
	}
	for _, x := range f.byName {
		if x.Username == username || x.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) TouchLogin(_ context.Context, username string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLogin = &at
	f.byName[username] = u
	return nil
}

func (f *fakeUsers) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byName)), nil
}

func (f *fakeUsers) CountActiveSince(_ context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.byName {
		if u.LastLogin != nil && !u.LastLogin.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeFavorites struct {
	mu   sync.Mutex
	rows []model.Favorite
}

func (f *fakeFavorites) Add(_ context.Context, fav *model.Favorite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Username == fav.Username && r.TMDBID == fav.TMDBID {
			return repository.ErrDuplicate
		}
	}
	fav.ID = primitive.NewObjectID()
	f.rows = append(f.rows, *fav)
	return nil
}

func (f *fakeFavorites) Remove(_ context.Context, username string, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.Username == username && r.TMDBID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeFavorites) List(_ context.Context, username string, page, size int) ([]model.Favorite, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []model.Favorite
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].Username == username {
			mine = append(mine, f.rows[i])
		}
	}
	return pageOf(mine, page, size), int64(len(mine)), nil
}

type fakeHistory struct {
	mu   sync.Mutex
	rows []model.WatchHistoryEntry
}

func (f *fakeHistory) Add(_ context.Context, e *model.WatchHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = primitive.NewObjectID()
	f.rows = append(f.rows, *e)
	return nil
}

func (f *fakeHistory) mine(username string) []model.WatchHistoryEntry {
	var out []model.WatchHistoryEntry
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].Username == username {
			out = append(out, f.rows[i])
		}
	}
	return out
}

func (f *fakeHistory) List(_ context.Context, username string, page, size int) ([]model.WatchHistoryEntry, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mine := f.mine(username)
	return pageOf(mine, page, size), int64(len(mine)), nil
}

func (f *fakeHistory) Latest(_ context.Context, username string, id int) (model.WatchHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.mine(username) {
		if e.TMDBID == id {
			return e, nil
		}
	}
	return model.WatchHistoryEntry{}, repository.ErrNotFound
}

func (f *fakeHistory) RemoveAll(_ context.Context, username string, id int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, e := range f.rows {
		if e.Username == username && e.TMDBID == id {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.rows = kept
	if n == 0 {
		return 0, repository.ErrNotFound
	}
	return n, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	messages []published
}

type published struct {
	queue   string
	payload any
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{queue: queue, payload: payload})
	return nil
}

func (p *recordingPublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.messages...)
}

func pageOf[T any](all []T, page, size int) []T {
	start := (page - 1) * size
	if start > len(all) {
		return nil
	}
	return all[start:min(start+size, len(all))]
}
