package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MediaType distinguishes movies from episodic content.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// CatalogKind identifies which external catalog a content ID belongs to.
type CatalogKind string

const (
	CatalogIMDB CatalogKind = "imdb"
	CatalogTMDB CatalogKind = "tmdb"
)

// ErrInvalidIdentity is returned when a catalog ID or episode reference cannot be used.
var ErrInvalidIdentity = errors.New("invalid content identity")

var (
	imdbIDPattern = regexp.MustCompile(`^tt\d+$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// ContentIdentity names one playable piece of media: a movie, or a single episode of a series.
// It is a value type; construct it with NewContentIdentity or ParseStremioID.
type ContentIdentity struct {
	MediaType MediaType `json:"mediaType"`
	CatalogID string    `json:"catalogId"` // tt1234567 or tmdb:1234
	Season    int       `json:"season,omitempty"`
	Episode   int       `json:"episode,omitempty"`
}

// NewContentIdentity validates and standardizes the inputs.
// TMDB ids may be given as "tmdb:123", "tmdb-123" or "123" and are stored as "tmdb:123".
func NewContentIdentity(mediaType MediaType, catalogID string, season, episode int) (ContentIdentity, error) {
	mediaType = MediaType(strings.ToLower(strings.TrimSpace(string(mediaType))))
	if mediaType != MediaTypeMovie && mediaType != MediaTypeSeries {
		return ContentIdentity{}, fmt.Errorf("%w: unknown media type %q", ErrInvalidIdentity, mediaType)
	}

	id, err := standardizeCatalogID(catalogID)
	if err != nil {
		return ContentIdentity{}, err
	}

	identity := ContentIdentity{MediaType: mediaType, CatalogID: id}
	if mediaType == MediaTypeSeries {
		if season < 0 || episode < 1 {
			return ContentIdentity{}, fmt.Errorf("%w: series %s needs season and episode (got S%dE%d)", ErrInvalidIdentity, id, season, episode)
		}
		identity.Season = season
		identity.Episode = episode
	}
	return identity, nil
}

// ParseStremioID parses addon-style ids such as "tt0903747:2:5" or "tmdb:1396:2:5".
func ParseStremioID(mediaType MediaType, raw string) (ContentIdentity, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "tmdb-") {
		raw = "tmdb:" + raw[len("tmdb-"):]
	}
	if MediaType(strings.ToLower(string(mediaType))) != MediaTypeSeries {
		return NewContentIdentity(mediaType, raw, 0, 0)
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return ContentIdentity{}, fmt.Errorf("%w: series id %q is missing season/episode", ErrInvalidIdentity, raw)
	}
	episodePart := parts[len(parts)-1]
	seasonPart := parts[len(parts)-2]
	idPart := strings.Join(parts[:len(parts)-2], ":")

	season, err := strconv.Atoi(seasonPart)
	if err != nil {
		return ContentIdentity{}, fmt.Errorf("%w: bad season %q", ErrInvalidIdentity, seasonPart)
	}
	episode, err := strconv.Atoi(episodePart)
	if err != nil {
		return ContentIdentity{}, fmt.Errorf("%w: bad episode %q", ErrInvalidIdentity, episodePart)
	}
	return NewContentIdentity(mediaType, idPart, season, episode)
}

func standardizeCatalogID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	lower := strings.ToLower(id)
	switch {
	case imdbIDPattern.MatchString(lower):
		return lower, nil
	case strings.HasPrefix(lower, "tmdb:") || strings.HasPrefix(lower, "tmdb-"):
		num := lower[len("tmdb:"):]
		if !digitsPattern.MatchString(num) {
			return "", fmt.Errorf("%w: bad tmdb id %q", ErrInvalidIdentity, raw)
		}
		return "tmdb:" + num, nil
	case digitsPattern.MatchString(lower):
		return "tmdb:" + lower, nil
	default:
		return "", fmt.Errorf("%w: unrecognised catalog id %q", ErrInvalidIdentity, raw)
	}
}

// Kind reports which catalog the identity's ID refers to.
func (c ContentIdentity) Kind() CatalogKind {
	if strings.HasPrefix(c.CatalogID, "tmdb:") {
		return CatalogTMDB
	}
	return CatalogIMDB
}

// IsSeries reports whether the identity refers to an episode.
func (c ContentIdentity) IsSeries() bool {
	return c.MediaType == MediaTypeSeries
}

// storageID strips the tmdb: prefix so both spellings share one record.
func (c ContentIdentity) storageID() string {
	return strings.TrimPrefix(c.CatalogID, "tmdb:")
}

// Key returns the canonical string used for storage and locking,
// e.g. "movie-tt0111161" or "series-1396-2-5".
func (c ContentIdentity) Key() string {
	if c.IsSeries() {
		return fmt.Sprintf("%s-%s-%d-%d", c.MediaType, c.storageID(), c.Season, c.Episode)
	}
	return fmt.Sprintf("%s-%s", c.MediaType, c.storageID())
}

// StremioID returns the id in addon stream-request form.
func (c ContentIdentity) StremioID() string {
	if c.IsSeries() {
		return fmt.Sprintf("%s:%d:%d", c.CatalogID, c.Season, c.Episode)
	}
	return c.CatalogID
}

// DefaultTitle is used for records created before any release title is known.
func (c ContentIdentity) DefaultTitle() string {
	if c.IsSeries() {
		return fmt.Sprintf("Series %s S%dE%d", c.storageID(), c.Season, c.Episode)
	}
	return fmt.Sprintf("Movie %s", c.storageID())
}

func (c ContentIdentity) String() string {
	return c.Key()
}
