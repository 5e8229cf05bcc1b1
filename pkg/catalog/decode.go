package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Declared upstream keys per record. Anything else in a payload is rejected.
var (
	imageFields           = []string{"id", "image_id"}
	involvedCompanyFields = []string{"id", "company", "developer", "publisher"}
	platformFields        = []string{"id", "name", "abbreviation"}
	genreFields           = []string{"id", "name"}
	companyFields         = []string{"id", "name", "logo"}
	gameFields            = []string{
		"id", "name", "cover", "first_release_date", "genres",
		"involved_companies", "platforms", "summary",
	}
)

// DecodePage decodes a raw page body (a JSON array of resource objects) into
// records of the given kind.
func DecodePage(kind ResourceKind, body []byte) ([]Object, error) {
	if !kind.Valid() {
		return nil, &UnknownResourceKindError{Kind: kind}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &DecodeError{
			Kind:  kind,
			Index: -1,
			Item:  body,
			Err:   fmt.Errorf("page is not a JSON array: %w", err),
		}
	}
	return Decode(kind, items)
}

// Decode maps raw items onto records of the given kind, preserving order.
// The first item that does not match its record fails the whole call with a
// *DecodeError; an unsupported kind fails with *UnknownResourceKindError.
func Decode(kind ResourceKind, raw []json.RawMessage) ([]Object, error) {
	if !kind.Valid() {
		return nil, &UnknownResourceKindError{Kind: kind}
	}

	out := make([]Object, 0, len(raw))
	for i, item := range raw {
		obj, err := decodeItem(kind, item)
		if err != nil {
			return nil, newDecodeError(kind, i, item, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

func newDecodeError(kind ResourceKind, index int, item []byte, err error) *DecodeError {
	de := &DecodeError{Kind: kind, Index: index, Item: item, Err: err}
	var fe *fieldError
	if errors.As(err, &fe) {
		de.Field = fe.field
		de.Err = fe.err
	}
	return de
}

func decodeItem(kind ResourceKind, raw []byte) (Object, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindPlatforms:
		return decodePlatform(obj)
	case KindGenres:
		return decodeGenre(obj)
	case KindCompanies:
		return decodeCompany(obj)
	case KindGames:
		return decodeGame(obj)
	default:
		return nil, &UnknownResourceKindError{Kind: kind}
	}
}

func decodePlatform(o rawObject) (Platform, error) {
	var p Platform
	if err := o.allow(platformFields...); err != nil {
		return p, err
	}
	if err := o.required("id", &p.ID); err != nil {
		return p, err
	}
	if err := o.required("name", &p.Name); err != nil {
		return p, err
	}
	if _, err := o.optional("abbreviation", &p.Abbreviation); err != nil {
		return p, err
	}
	return p, nil
}

func decodeGenre(o rawObject) (Genre, error) {
	var g Genre
	if err := o.allow(genreFields...); err != nil {
		return g, err
	}
	if err := o.required("id", &g.ID); err != nil {
		return g, err
	}
	if err := o.required("name", &g.Name); err != nil {
		return g, err
	}
	return g, nil
}

func decodeCompany(o rawObject) (Company, error) {
	var c Company
	if err := o.allow(companyFields...); err != nil {
		return c, err
	}
	if err := o.required("id", &c.ID); err != nil {
		return c, err
	}
	if err := o.required("name", &c.Name); err != nil {
		return c, err
	}

	logo, err := o.image("logo")
	if err != nil {
		return c, err
	}
	c.Logo = logo
	return c, nil
}

func decodeGame(o rawObject) (Game, error) {
	var g Game
	if err := o.allow(gameFields...); err != nil {
		return g, err
	}
	if err := o.required("id", &g.ID); err != nil {
		return g, err
	}
	if err := o.required("name", &g.Name); err != nil {
		return g, err
	}

	cover, err := o.image("cover")
	if err != nil {
		return g, err
	}
	g.Cover = cover

	var released int64
	ok, err := o.optional("first_release_date", &released)
	if err != nil {
		return g, err
	}
	if ok {
		g.FirstReleaseDate = &released
	}

	if _, err := o.optional("genres", &g.GenreIDs); err != nil {
		return g, err
	}
	if _, err := o.optional("platforms", &g.PlatformIDs); err != nil {
		return g, err
	}
	if _, err := o.optional("summary", &g.Summary); err != nil {
		return g, err
	}

	companies, err := o.involvedCompanies("involved_companies")
	if err != nil {
		return g, err
	}
	g.InvolvedCompanies = companies
	return g, nil
}

func decodeImage(o rawObject) (Image, error) {
	var img Image
	if err := o.allow(imageFields...); err != nil {
		return img, err
	}
	if err := o.required("id", &img.ID); err != nil {
		return img, err
	}
	if err := o.required("image_id", &img.ImageID); err != nil {
		return img, err
	}
	return img, nil
}

func decodeInvolvedCompany(o rawObject) (InvolvedCompany, error) {
	var ic InvolvedCompany
	if err := o.allow(involvedCompanyFields...); err != nil {
		return ic, err
	}
	if err := o.required("id", &ic.ID); err != nil {
		return ic, err
	}
	if err := o.required("company", &ic.CompanyID); err != nil {
		return ic, err
	}
	if err := o.required("developer", &ic.IsDeveloper); err != nil {
		return ic, err
	}
	if err := o.required("publisher", &ic.IsPublisher); err != nil {
		return ic, err
	}
	return ic, nil
}

// rawObject is a JSON object with its values left undecoded.
type rawObject map[string]json.RawMessage

func parseObject(raw []byte) (rawObject, error) {
	if !isJSONObject(raw) {
		return nil, ErrNotObject
	}
	var obj rawObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// allow fails on the first key (in sorted order) not listed in fields.
func (o rawObject) allow(fields ...string) error {
	declared := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		declared[f] = struct{}{}
	}

	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, ok := declared[k]; !ok {
			return &fieldError{field: k, err: ErrUnexpectedField}
		}
	}
	return nil
}

func (o rawObject) required(field string, dst any) error {
	raw, ok := o[field]
	if !ok || isJSONNull(raw) {
		return &fieldError{field: field, err: ErrMissingField}
	}
	if err := unmarshalValue(raw, dst); err != nil {
		return &fieldError{field: field, err: err}
	}
	return nil
}

// optional decodes field into dst when present and not null. It reports
// whether dst was written.
func (o rawObject) optional(field string, dst any) (bool, error) {
	raw, ok := o[field]
	if !ok || isJSONNull(raw) {
		return false, nil
	}
	if err := unmarshalValue(raw, dst); err != nil {
		return false, &fieldError{field: field, err: err}
	}
	return true, nil
}

// unmarshalValue decodes raw into dst. Strings must be valid UTF-8: the
// codec passes raw invalid bytes through unchanged.
func unmarshalValue(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if s, ok := dst.(*string); ok && !utf8.ValidString(*s) {
		return ErrInvalidUTF8
	}
	return nil
}

// image decodes an expanded image sub-object. Values that are not objects
// (e.g. a bare image reference ID) leave the image absent.
func (o rawObject) image(field string) (*Image, error) {
	raw, ok := o[field]
	if !ok || !isJSONObject(raw) {
		return nil, nil
	}

	obj, err := parseObject(raw)
	if err != nil {
		return nil, nested(field, err)
	}
	img, err := decodeImage(obj)
	if err != nil {
		return nil, nested(field, err)
	}
	return &img, nil
}

// involvedCompanies decodes the object elements of a list and drops the
// rest. A value that is not a list leaves the field absent.
func (o rawObject) involvedCompanies(field string) ([]InvolvedCompany, error) {
	raw, ok := o[field]
	if !ok || !isJSONArray(raw) {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &fieldError{field: field, err: err}
	}

	out := make([]InvolvedCompany, 0, len(elems))
	for i, elem := range elems {
		if !isJSONObject(elem) {
			continue
		}
		path := fmt.Sprintf("%s[%d]", field, i)
		obj, err := parseObject(elem)
		if err != nil {
			return nil, nested(path, err)
		}
		ic, err := decodeInvolvedCompany(obj)
		if err != nil {
			return nil, nested(path, err)
		}
		out = append(out, ic)
	}
	return out, nil
}

func firstByte(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isJSONObject(raw []byte) bool { return firstByte(raw) == '{' }
func isJSONArray(raw []byte) bool  { return firstByte(raw) == '[' }

func isJSONNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
