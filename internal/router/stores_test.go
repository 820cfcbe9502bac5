package router

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/repository"
)

// In-memory stand-ins for the Mongo repositories.

type memTitles struct {
	mu   sync.Mutex
	byID map[int]model.CachedTitle
}

func (m *memTitles) Get(_ context.Context, id int) (model.CachedTitle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return model.CachedTitle{}, repository.ErrNotFound
	}
	return t, nil
}

func (m *memTitles) Upsert(_ context.Context, t model.CachedTitle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[t.TMDBID] = t
	return nil
}

func (m *memTitles) matching(now time.Time, keep func(model.CachedTitle) bool, page, size int) ([]model.CachedTitle, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.CachedTitle
	for _, t := range m.byID {
		if t.ExpiresAt.After(now) && keep(t) {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Popularity > all[j].Popularity })
	start := min((page-1)*size, len(all))
	return all[start:min(start+size, len(all))], int64(len(all))
}

func (m *memTitles) List(_ context.Context, f repository.TitleFilter, now time.Time, page, size int) ([]model.CachedTitle, int64, error) {
	out, n := m.matching(now, func(t model.CachedTitle) bool { return f.Type == "" || t.Type == f.Type }, page, size)
	return out, n, nil
}

func (m *memTitles) Search(_ context.Context, text string, now time.Time, page, size int) ([]model.CachedTitle, int64, error) {
	text = strings.ToLower(text)
	out, n := m.matching(now, func(t model.CachedTitle) bool { return strings.Contains(strings.ToLower(t.Title), text) }, page, size)
	return out, n, nil
}

func (m *memTitles) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.byID {
		if t.ExpiresAt.Before(now) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memTitles) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

type memStreams struct {
	mu   sync.Mutex
	byID map[int]model.CachedStreamSet
}

func (m *memStreams) Get(_ context.Context, id int) (model.CachedStreamSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return model.CachedStreamSet{}, repository.ErrNotFound
	}
	return s, nil
}

func (m *memStreams) Upsert(_ context.Context, s model.CachedStreamSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.TMDBID] = s
	return nil
}

func (m *memStreams) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memStreams) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

type memUsers struct {
	mu     sync.Mutex
	byName map[string]model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byName {
		if x.Username == u.Username || x.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	m.byName[u.Username] = *u
	return nil
}

func (m *memUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byName {
		if x.Username == username || x.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) TouchLogin(_ context.Context, username string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLogin = &at
	m.byName[username] = u
	return nil
}

func (m *memUsers) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byName)), nil
}

func (m *memUsers) CountActiveSince(_ context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.byName {
		if u.LastLogin != nil && !u.LastLogin.Before(since) {
			n++
		}
	}
	return n, nil
}

type memFavorites struct {
	mu   sync.Mutex
	rows []model.Favorite
}

func (m *memFavorites) Add(_ context.Context, f *model.Favorite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Username == f.Username && r.TMDBID == f.TMDBID {
			return repository.ErrDuplicate
		}
	}
	f.ID = primitive.NewObjectID()
	m.rows = append(m.rows, *f)
	return nil
}

func (m *memFavorites) Remove(_ context.Context, username string, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.Username == username && r.TMDBID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memFavorites) List(_ context.Context, username string, page, size int) ([]model.Favorite, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []model.Favorite
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Username == username {
			mine = append(mine, m.rows[i])
		}
	}
	start := min((page-1)*size, len(mine))
	return mine[start:min(start+size, len(mine))], int64(len(mine)), nil
}

type memHistory struct {
	mu   sync.Mutex
	rows []model.WatchHistoryEntry
}

func (m *memHistory) Add(_ context.Context, e *model.WatchHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = primitive.NewObjectID()
	m.rows = append(m.rows, *e)
	return nil
}

func (m *memHistory) mine(username string) []model.WatchHistoryEntry {
	var out []model.WatchHistoryEntry
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Username == username {
			out = append(out, m.rows[i])
		}
	}
	return out
}

func (m *memHistory) List(_ context.Context, username string, page, size int) ([]model.WatchHistoryEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mine := m.mine(username)
	start := min((page-1)*size, len(mine))
	return mine[start:min(start+size, len(mine))], int64(len(mine)), nil
}

func (m *memHistory) Latest(_ context.Context, username string, id int) (model.WatchHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.mine(username) {
		if e.TMDBID == id {
			return e, nil
		}
	}
	return model.WatchHistoryEntry{}, repository.ErrNotFound
}

func (m *memHistory) RemoveAll(_ context.Context, username string, id int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var n int64
	for _, e := range m.rows {
		if e.Username == username && e.TMDBID == id {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.rows = kept
	if n == 0 {
		return 0, repository.ErrNotFound
	}
	return n, nil
}

type memPublisher struct {
	mu     sync.Mutex
	queues []string
}

func (p *memPublisher) Publish(_ context.Context, queue string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues = append(p.queues, queue)
	return nil
}

func (p *memPublisher) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queues...)
}
