package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/iliyamo/onstream-api/internal/config"
	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/metrics"
	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/validation"
)

const providerConsumet = "consumet"

// consumetTimeout bounds the whole lookup chain against the Consumet API.
const consumetTimeout = 30 * time.Second

// Embed is a fixed embed host. Pattern receives the title type and the
// TMDB id, in that order, through fmt verbs %[1]s and %[2]d.
type Embed struct {
	Server  string
	Pattern string
}

// DefaultEmbeds are always appended after any Consumet sources, in order.
var DefaultEmbeds = []Embed{
	{Server: "VidSrc", Pattern: "https://vidsrc.to/embed/%[1]s/%[2]d"},
	{Server: "2Embed", Pattern: "https://www.2embed.cc/embed/%[2]d"},
	{Server: "StreamSB", Pattern: "https://embedsb.com/e/%[2]d"},
}

// Streams is what a provider returns for one title.
type Streams struct {
	Sources   []model.StreamSource
	Subtitles []model.Subtitle
}

// StreamProvider resolves playable sources for a title. It asks the
// Consumet flixhq provider first (best effort) and then adds the embeds.
type StreamProvider struct {
	baseURL string
	http    *http.Client
	cache   *ResponseCache
	cb      *gobreaker.CircuitBreaker[[]byte]
	embeds  []Embed
}

// NewStreamProvider builds a provider. An empty ConsumetBaseURL disables
// the Consumet lookup; a nil embeds list means DefaultEmbeds.
func NewStreamProvider(cfg config.UpstreamConfig, httpClient *http.Client, embeds []Embed) *StreamProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: consumetTimeout}
	}
	if embeds == nil {
		embeds = DefaultEmbeds
	}
	return &StreamProvider{
		baseURL: strings.TrimRight(cfg.ConsumetBaseURL, "/"),
		http:    httpClient,
		cache:   NewResponseCache(cfg.CacheSize, cfg.CacheTTL),
		cb:      newBreaker(providerConsumet),
		embeds:  embeds,
	}
}

// Sources returns the ordered sources for t. Consumet failures are logged
// and skipped. Zero usable sources is ErrUnavailable.
func (p *StreamProvider) Sources(ctx context.Context, t model.CachedTitle) (Streams, error) {
	var out Streams
	if p.baseURL != "" {
		cctx, cancel := context.WithTimeout(ctx, consumetTimeout)
		s, err := p.consumet(cctx, t)
		cancel()
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("tmdb_id", t.TMDBID).Msg("consumet lookup failed")
		}
		out.Sources = append(out.Sources, s.Sources...)
		out.Subtitles = append(out.Subtitles, s.Subtitles...)
	}

	kind := t.Type
	if kind == "" {
		kind = model.TypeMovie
	}
	for _, e := range p.embeds {
		out.Sources = append(out.Sources, model.StreamSource{
			URL:     fmt.Sprintf(e.Pattern, kind, t.TMDBID),
			Quality: "HD",
			Server:  e.Server,
			Type:    "mp4",
		})
	}

	usable := out.Sources[:0]
	for _, s := range out.Sources {
		if err := validation.Struct(s); err != nil {
			logging.Ctx(ctx).Warn().Str("server", s.Server).Err(err).Msg("dropping invalid stream source")
			continue
		}
		usable = append(usable, s)
	}
	out.Sources = usable
	if len(out.Sources) == 0 {
		return Streams{}, fmt.Errorf("%w: no stream sources for tmdb id %d", ErrUnavailable, t.TMDBID)
	}
	if out.Subtitles == nil {
		out.Subtitles = []model.Subtitle{}
	}
	return out, nil
}

type consumetSearch struct {
	Results []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		ReleaseDate string `json:"releaseDate"`
		Type        string `json:"type"`
	} `json:"results"`
}

type consumetInfo struct {
	ID       string `json:"id"`
	Episodes []struct {
		ID string `json:"id"`
	} `json:"episodes"`
}

type consumetWatch struct {
	Headers map[string]string `json:"headers"`
	Sources []struct {
		URL     string `json:"url"`
		Quality string `json:"quality"`
		IsM3U8  bool   `json:"isM3U8"`
	} `json:"sources"`
	Subtitles []struct {
		URL  string `json:"url"`
		Lang string `json:"lang"`
	} `json:"subtitles"`
}

// consumet searches flixhq by title, picks the match with the same title
// (and year when known) and fetches the sources of its first episode.
func (p *StreamProvider) consumet(ctx context.Context, t model.CachedTitle) (Streams, error) {
	var search consumetSearch
	if err := p.getJSON(ctx, "movies/flixhq/"+url.PathEscape(t.Title), nil, &search); err != nil {
		return Streams{}, err
	}
	mediaID := ""
	for _, r := range search.Results {
		if !strings.EqualFold(strings.TrimSpace(r.Title), strings.TrimSpace(t.Title)) {
			continue
		}
		if t.Year != nil && r.ReleaseDate != "" && !strings.HasPrefix(r.ReleaseDate, *t.Year) {
			continue
		}
		mediaID = r.ID
		break
	}
	if mediaID == "" {
		return Streams{}, nil
	}

	var info consumetInfo
	if err := p.getJSON(ctx, "movies/flixhq/info", url.Values{"id": {mediaID}}, &info); err != nil {
		return Streams{}, err
	}
	if len(info.Episodes) == 0 {
		return Streams{}, nil
	}

	var watch consumetWatch
	params := url.Values{"episodeId": {info.Episodes[0].ID}, "mediaId": {mediaID}}
	if err := p.getJSON(ctx, "movies/flixhq/watch", params, &watch); err != nil {
		return Streams{}, err
	}

	var out Streams
	for _, s := range watch.Sources {
		typ := "mp4"
		if s.IsM3U8 {
			typ = "hls"
		}
		out.Sources = append(out.Sources, model.StreamSource{
			URL: s.URL, Quality: s.Quality, Server: "FlixHQ", Type: typ, Headers: watch.Headers,
		})
	}
	for _, s := range watch.Subtitles {
		out.Subtitles = append(out.Subtitles, model.Subtitle{URL: s.URL, Lang: s.Lang})
	}
	logging.Ctx(ctx).Debug().Int("tmdb_id", t.TMDBID).Int("sources", len(out.Sources)).Msg("consumet sources found")
	return out, nil
}

func (p *StreamProvider) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	endpoint := p.baseURL + "/" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	body, cached := p.cache.Get(endpoint)
	if cached {
		metrics.UpstreamCacheResults.WithLabelValues(providerConsumet, "hit").Inc()
	} else {
		metrics.UpstreamCacheResults.WithLabelValues(providerConsumet, "miss").Inc()
		var err error
		body, err = p.cb.Execute(func() ([]byte, error) {
			return fetch(ctx, p.http, providerConsumet, endpoint)
		})
		if err != nil {
			return breakerErr(err)
		}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: consumet %s: %v", ErrUnmappable, path, err)
	}
	if !cached {
		p.cache.Add(endpoint, body)
	}
	return nil
}
