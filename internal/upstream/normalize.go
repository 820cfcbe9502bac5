package upstream

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/validation"
)

const (
	posterBase   = "https://image.tmdb.org/t/p/w500"
	backdropBase = "https://image.tmdb.org/t/p/w1280"
)

// Normalize maps a TMDB payload onto a cache record valid from now until
// now+ttl.
//
// endpointType is the type of the endpoint that produced it (movie/{id} or
// tv/{id}); it wins over anything the payload says. For list results it is
// empty and the payload's media_type is used, falling back to the shape
// (first_air_date means tv). Disagreements are logged, never rejected.
// genreNames resolves genre_ids on list results and may be nil.
//
// A record that fails validation yields an error wrapping ErrUnmappable.
func Normalize(it Item, endpointType string, genreNames map[int]string, now time.Time, ttl time.Duration) (model.CachedTitle, error) {
	t := model.CachedTitle{
		TMDBID:           it.ID,
		Title:            it.Title,
		Type:             resolveType(it, endpointType),
		Overview:         it.Overview,
		PosterPath:       imageURL(posterBase, it.PosterPath),
		BackdropPath:     imageURL(backdropBase, it.BackdropPath),
		ReleaseDate:      nonEmpty(it.ReleaseDate),
		FirstAirDate:     nonEmpty(it.FirstAirDate),
		Genres:           genres(it, genreNames),
		VoteAverage:      it.VoteAverage,
		VoteCount:        it.VoteCount,
		Runtime:          it.Runtime,
		NumberOfSeasons:  it.NumberOfSeasons,
		NumberOfEpisodes: it.NumberOfEpisodes,
		Adult:            it.Adult,
		OriginalLanguage: it.OriginalLanguage,
		Popularity:       it.Popularity,
		CachedAt:         now,
		ExpiresAt:        now.Add(ttl),
	}
	if t.Title == "" {
		t.Title = it.Name
	}
	if t.ReleaseDate == nil {
		t.ReleaseDate = t.FirstAirDate
	}
	if t.OriginalLanguage == "" {
		t.OriginalLanguage = "en"
	}
	if t.ReleaseDate != nil && len(*t.ReleaseDate) >= 4 {
		y := (*t.ReleaseDate)[:4]
		t.Year = &y
	}

	if err := validation.Struct(t); err != nil {
		return model.CachedTitle{}, fmt.Errorf("%w: tmdb id %d: %v", ErrUnmappable, it.ID, err)
	}
	return t, nil
}

// NormalizeList normalizes the movie and TV results of a list page. listType
// is the type of a single-type list (movie/popular, tv/popular) and empty
// for mixed lists. Other media types (people) and unmappable results are
// skipped.
func NormalizeList(items []Item, listType string, genreNames map[int]string, now time.Time, ttl time.Duration) []model.CachedTitle {
	out := make([]model.CachedTitle, 0, len(items))
	for _, it := range items {
		if it.MediaType != "" && it.MediaType != model.TypeMovie && it.MediaType != model.TypeTV {
			continue
		}
		t, err := Normalize(it, listType, genreNames, now, ttl)
		if err != nil {
			logging.Warn().Err(err).Int("tmdb_id", it.ID).Msg("skipping unmappable list result")
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsUnmappable reports whether err came from Normalize.
func IsUnmappable(err error) bool { return errors.Is(err, ErrUnmappable) }

func resolveType(it Item, endpointType string) string {
	shape := model.TypeMovie
	if it.FirstAirDate != nil || (it.Title == "" && it.Name != "") {
		shape = model.TypeTV
	}

	switch {
	case endpointType != "":
		if it.MediaType != "" && it.MediaType != endpointType {
			logging.Warn().Int("tmdb_id", it.ID).Str("endpoint_type", endpointType).Str("media_type", it.MediaType).
				Msg("payload media_type disagrees with endpoint")
		} else if shape != endpointType {
			logging.Warn().Int("tmdb_id", it.ID).Str("endpoint_type", endpointType).Str("shape", shape).
				Msg("payload shape disagrees with endpoint")
		}
		return endpointType
	case it.MediaType != "":
		return it.MediaType
	default:
		logging.Warn().Int("tmdb_id", it.ID).Str("inferred", shape).Msg("payload has no media type")
		return shape
	}
}

func genres(it Item, names map[int]string) []model.Genre {
	if len(it.Genres) > 0 {
		return it.Genres
	}
	out := make([]model.Genre, 0, len(it.GenreIDs))
	for _, id := range it.GenreIDs {
		if name, ok := names[id]; ok {
			out = append(out, model.Genre{ID: id, Name: name})
		}
	}
	return out
}

func imageURL(base string, path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	u := base + *path
	return &u
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
