// Package catalog defines the IGDB catalogue records (platforms, genres,
// companies and games) and the strict decoder that maps raw IGDB JSON
// payloads onto them.
package catalog

import (
	"fmt"
	"time"
)

// ResourceKind selects an IGDB endpoint and the record type decoded from it.
type ResourceKind string

const (
	// KindGenres is the /v4/genres endpoint.
	KindGenres ResourceKind = "genres"

	// KindPlatforms is the /v4/platforms endpoint.
	KindPlatforms ResourceKind = "platforms"

	// KindGames is the /v4/games endpoint.
	KindGames ResourceKind = "games"

	// KindCompanies is the /v4/companies endpoint.
	KindCompanies ResourceKind = "companies"
)

// AllResourceKinds returns every supported kind in ingestion order: games
// reference the other three, so they come last.
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{KindPlatforms, KindGenres, KindCompanies, KindGames}
}

// Valid reports whether k is one of the four supported kinds.
func (k ResourceKind) Valid() bool {
	switch k {
	case KindGenres, KindPlatforms, KindGames, KindCompanies:
		return true
	default:
		return false
	}
}

// String returns the endpoint path segment.
func (k ResourceKind) String() string {
	return string(k)
}

// ParseResourceKind converts an endpoint name into a ResourceKind.
func ParseResourceKind(s string) (ResourceKind, error) {
	k := ResourceKind(s)
	if !k.Valid() {
		return "", &UnknownResourceKindError{Kind: k}
	}
	return k, nil
}

// Object is a decoded catalogue record: one of Platform, Genre, Company or
// Game. The set is closed; use a type switch to get at the concrete record.
type Object interface {
	// Kind returns the resource kind the record was decoded from.
	Kind() ResourceKind

	// IGDBID returns the upstream identifier, unique per kind.
	IGDBID() int64

	isObject()
}

// Image references an IGDB hosted image (cover art, company logo).
type Image struct {
	ID int64 `json:"id"`

	// ImageID is the opaque key used to build CDN URLs.
	ImageID string `json:"image_id"`
}

// ImageSize is an IGDB CDN size preset.
type ImageSize string

// Common IGDB image presets.
const (
	ImageSizeThumb      ImageSize = "thumb"
	ImageSizeCoverSmall ImageSize = "cover_small"
	ImageSizeCoverBig   ImageSize = "cover_big"
	ImageSizeLogoMed    ImageSize = "logo_med"
	ImageSize720p       ImageSize = "720p"
	ImageSize1080p      ImageSize = "1080p"
)

// ImageBaseURL is the IGDB image CDN prefix.
const ImageBaseURL = "https://images.igdb.com/igdb/image/upload"

// URL builds the CDN URL of the image at the given size. The image itself
// is never fetched by this package.
func (i Image) URL(size ImageSize) string {
	return fmt.Sprintf("%s/t_%s/%s.jpg", ImageBaseURL, size, i.ImageID)
}

// InvolvedCompany links a game to a company and its role.
type InvolvedCompany struct {
	ID          int64 `json:"id"`
	CompanyID   int64 `json:"company"`
	IsDeveloper bool  `json:"developer"`
	IsPublisher bool  `json:"publisher"`
}

// Platform is a record from the platforms endpoint.
type Platform struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

// Genre is a record from the genres endpoint.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Company is a record from the companies endpoint.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Logo is nil when the upstream did not expand the logo object.
	Logo *Image `json:"logo,omitempty"`
}

// Game is a record from the games endpoint. Optional fields are nil when
// absent from the payload.
type Game struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Cover *Image `json:"cover,omitempty"`

	// FirstReleaseDate is a unix timestamp in seconds.
	FirstReleaseDate  *int64            `json:"first_release_date,omitempty"`
	GenreIDs          []int64           `json:"genres,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
	PlatformIDs       []int64           `json:"platforms,omitempty"`
	Summary           string            `json:"summary"`
}

// ReleaseDate returns the first release date in UTC, if known.
func (g Game) ReleaseDate() (time.Time, bool) {
	if g.FirstReleaseDate == nil {
		return time.Time{}, false
	}
	return time.Unix(*g.FirstReleaseDate, 0).UTC(), true
}

// Developers returns the IDs of the companies credited as developers, in
// payload order. The result is never nil.
func (g Game) Developers() []int64 {
	ids := []int64{}
	for _, ic := range g.InvolvedCompanies {
		if ic.IsDeveloper {
			ids = append(ids, ic.CompanyID)
		}
	}
	return ids
}

// Publishers returns the IDs of the companies credited as publishers, in
// payload order. The result is never nil.
func (g Game) Publishers() []int64 {
	ids := []int64{}
	for _, ic := range g.InvolvedCompanies {
		if ic.IsPublisher {
			ids = append(ids, ic.CompanyID)
		}
	}
	return ids
}

func (Platform) Kind() ResourceKind { return KindPlatforms }
func (Genre) Kind() ResourceKind    { return KindGenres }
func (Company) Kind() ResourceKind  { return KindCompanies }
func (Game) Kind() ResourceKind     { return KindGames }

func (p Platform) IGDBID() int64 { return p.ID }
func (g Genre) IGDBID() int64    { return g.ID }
func (c Company) IGDBID() int64  { return c.ID }
func (g Game) IGDBID() int64     { return g.ID }

func (Platform) isObject() {}
func (Genre) isObject()    {}
func (Company) isObject()  {}
func (Game) isObject()     {}

// DefaultFields returns the field selection requested for each kind so that
// responses contain exactly the keys the decoder accepts.
func DefaultFields(kind ResourceKind) []string {
	switch kind {
	case KindPlatforms:
		return []string{"name", "abbreviation"}
	case KindGenres:
		return []string{"name"}
	case KindCompanies:
		return []string{"name", "logo.image_id"}
	case KindGames:
		return []string{
			"name",
			"cover.image_id",
			"first_release_date",
			"genres",
			"involved_companies.company",
			"involved_companies.developer",
			"involved_companies.publisher",
			"platforms",
			"summary",
		}
	default:
		return nil
	}
}
