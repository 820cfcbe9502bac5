// Package upstream talks to the third-party providers: TMDB for metadata
// and a Consumet-compatible API plus fixed embed hosts for stream sources.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/iliyamo/onstream-api/internal/config"
	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/metrics"
	"github.com/iliyamo/onstream-api/internal/model"
)

var (
	// ErrNotFound means the provider answered that the resource does not exist.
	ErrNotFound = errors.New("upstream: not found")
	// ErrUnavailable covers transport failures, timeouts, non-2xx answers
	// and an open circuit.
	ErrUnavailable = errors.New("upstream: unavailable")
	// ErrUnmappable means a payload could not be turned into a valid record.
	ErrUnmappable = errors.New("upstream: unmappable record")
)

const providerTMDB = "tmdb"

// maxBody caps how much of a provider response is read.
const maxBody = 4 << 20

// Item is the subset of a TMDB movie, TV or multi-search result the
// service keeps. Movies carry Title/ReleaseDate, shows Name/FirstAirDate.
type Item struct {
	ID               int           `json:"id"`
	MediaType        string        `json:"media_type"`
	Title            string        `json:"title"`
	Name             string        `json:"name"`
	Overview         string        `json:"overview"`
	PosterPath       *string       `json:"poster_path"`
	BackdropPath     *string       `json:"backdrop_path"`
	ReleaseDate      *string       `json:"release_date"`
	FirstAirDate     *string       `json:"first_air_date"`
	Genres           []model.Genre `json:"genres"`
	GenreIDs         []int         `json:"genre_ids"`
	VoteAverage      float64       `json:"vote_average"`
	VoteCount        int           `json:"vote_count"`
	Runtime          *int          `json:"runtime"`
	NumberOfSeasons  *int          `json:"number_of_seasons"`
	NumberOfEpisodes *int          `json:"number_of_episodes"`
	Adult            bool          `json:"adult"`
	OriginalLanguage string        `json:"original_language"`
	Popularity       float64       `json:"popularity"`
}

// ListPage is a paginated TMDB list response.
type ListPage struct {
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int64  `json:"total_results"`
	Results      []Item `json:"results"`
}

// TMDBClient calls the TMDB v3 API. Successful responses are kept in a
// ResponseCache owned by the client, and every call passes through a
// circuit breaker.
type TMDBClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *ResponseCache
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewTMDBClient builds a client from cfg. A nil httpClient gets one with
// cfg.Timeout.
func NewTMDBClient(cfg config.UpstreamConfig, httpClient *http.Client) *TMDBClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.TMDBAPIKey == "" {
		logging.Warn().Msg("TMDB_API_KEY is empty; metadata requests will fail")
	}
	return &TMDBClient{
		baseURL: strings.TrimRight(cfg.TMDBBaseURL, "/"),
		apiKey:  cfg.TMDBAPIKey,
		http:    httpClient,
		cache:   NewResponseCache(cfg.CacheSize, cfg.CacheTTL),
		cb:      newBreaker(providerTMDB),
	}
}

// Cache exposes the response cache, for stats and tests.
func (c *TMDBClient) Cache() *ResponseCache { return c.cache }

// Details fetches movie/{id} or tv/{id}.
func (c *TMDBClient) Details(ctx context.Context, mediaType string, id int) (Item, error) {
	if mediaType != model.TypeMovie && mediaType != model.TypeTV {
		return Item{}, fmt.Errorf("unknown media type %q", mediaType)
	}
	var it Item
	if err := c.getJSON(ctx, mediaType+"/"+strconv.Itoa(id), nil, &it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Popular fetches movie/popular or tv/popular.
func (c *TMDBClient) Popular(ctx context.Context, mediaType string, page int) (ListPage, error) {
	if mediaType != model.TypeTV {
		mediaType = model.TypeMovie
	}
	var lp ListPage
	err := c.getJSON(ctx, mediaType+"/popular", url.Values{"page": {strconv.Itoa(max(page, 1))}}, &lp)
	return lp, err
}

// Trending fetches trending/all/week.
func (c *TMDBClient) Trending(ctx context.Context) (ListPage, error) {
	var lp ListPage
	err := c.getJSON(ctx, "trending/all/week", nil, &lp)
	return lp, err
}

// SearchMulti fetches search/multi for query, adult titles excluded.
func (c *TMDBClient) SearchMulti(ctx context.Context, query string, page int) (ListPage, error) {
	var lp ListPage
	err := c.getJSON(ctx, "search/multi", url.Values{
		"query":         {query},
		"page":          {strconv.Itoa(max(page, 1))},
		"include_adult": {"false"},
	}, &lp)
	return lp, err
}

// Genres returns the union of the movie and TV genre lists, deduplicated
// by id and ordered by name.
func (c *TMDBClient) Genres(ctx context.Context) ([]model.Genre, error) {
	byID := map[int]model.Genre{}
	for _, mt := range []string{model.TypeMovie, model.TypeTV} {
		var body struct {
			Genres []model.Genre `json:"genres"`
		}
		if err := c.getJSON(ctx, "genre/"+mt+"/list", nil, &body); err != nil {
			return nil, err
		}
		for _, g := range body.Genres {
			byID[g.ID] = g
		}
	}
	out := make([]model.Genre, 0, len(byID))
	for _, g := range byID {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// GenreNames returns an id to name lookup built from Genres.
func (c *TMDBClient) GenreNames(ctx context.Context) (map[int]string, error) {
	gs, err := c.Genres(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(gs))
	for _, g := range gs {
		names[g.ID] = g.Name
	}
	return names, nil
}

// getJSON decodes the answer for path into dst. Only bodies that decode
// are kept in the response cache.
func (c *TMDBClient) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	body, key, cached, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnmappable, path, err)
	}
	if !cached {
		c.cache.Add(key, body)
	}
	return nil
}

func (c *TMDBClient) get(ctx context.Context, path string, params url.Values) (body []byte, key string, cached bool, err error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("language", "en-US")
	key = path + "?" + q.Encode()
	if body, ok := c.cache.Get(key); ok {
		metrics.UpstreamCacheResults.WithLabelValues(providerTMDB, "hit").Inc()
		return body, key, true, nil
	}
	metrics.UpstreamCacheResults.WithLabelValues(providerTMDB, "miss").Inc()

	q.Set("api_key", c.apiKey)
	endpoint := c.baseURL + "/" + path + "?" + q.Encode()
	body, err = c.cb.Execute(func() ([]byte, error) {
		return fetch(ctx, c.http, providerTMDB, endpoint)
	})
	if err != nil {
		return nil, key, false, breakerErr(err)
	}
	return body, key, false, nil
}

// fetch performs one GET and classifies the answer: 404 becomes
// ErrNotFound, any other failure ErrUnavailable.
func fetch(ctx context.Context, hc *http.Client, provider, endpoint string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		metrics.RecordUpstream(provider, "error", time.Since(start))
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, provider, redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordUpstream(provider, "not_found", time.Since(start))
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.RecordUpstream(provider, "error", time.Since(start))
		return nil, fmt.Errorf("%w: %s status %d", ErrUnavailable, provider, resp.StatusCode)
	case err != nil:
		metrics.RecordUpstream(provider, "error", time.Since(start))
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUnavailable, provider, err)
	}
	metrics.RecordUpstream(provider, "ok", time.Since(start))
	return body, nil
}

// redact strips the query string, which carries the API key, from
// transport errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
		}
	}
	return err
}
