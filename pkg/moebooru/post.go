// Package moebooru implements the per-platform archiving pipeline against
// Moebooru-family JSON listing endpoints (yande.re, konachan.com,
// sakugabooru.com).
package moebooru

import (
	"strings"
)

// Post mirrors one entry in a site's `posts` array. Only the fields the
// pipeline consumes are represented; the remainder (dimensions,
// timestamps, flag details) are accepted but dropped during decode.
type Post struct {
	ID       int64  `json:"id"`
	MD5      string `json:"md5"`
	Source   string `json:"source"`
	Tags     string `json:"tags"`
	FileURL  string `json:"file_url"`
	FileExt  string `json:"file_ext"`
	Rating   string `json:"rating"`
	FileSize int64  `json:"file_size"`
	Status   string `json:"status"`
}

// TagTypeMap maps a tag name to its category, as returned alongside the
// posts array.
type TagTypeMap map[string]string

// Tag categories, matching the formatter's eight supported vectors.
const (
	CategoryGeneral   = "general"
	CategoryCharacter = "character"
	CategoryCopyright = "copyright"
	CategoryArtist    = "artist"
	CategoryMetadata  = "metadata"
	CategoryCircle    = "circle"
	CategoryFaults    = "faults"
	CategoryStyle     = "style"
)

// listResponse is the decoded shape of one page of the site's list
// endpoint.
type listResponse struct {
	Posts []Post     `json:"posts"`
	Tags  TagTypeMap `json:"tags"`
}

// TagList splits a post's whitespace-separated tags field into individual
// tag strings.
func (p Post) TagList() []string {
	if p.Tags == "" {
		return nil
	}
	return strings.Fields(p.Tags)
}

// DerivedFileExt returns p.FileExt if present, otherwise the substring of
// FileURL after its last '.'.
func (p Post) DerivedFileExt() string {
	if p.FileExt != "" {
		return p.FileExt
	}
	idx := strings.LastIndexByte(p.FileURL, '.')
	if idx < 0 || idx == len(p.FileURL)-1 {
		return ""
	}
	return p.FileURL[idx+1:]
}

// IsDeleted reports whether the post's status marks it as removed from the
// site.
func (p Post) IsDeleted() bool {
	return p.Status == "deleted"
}

// buildKeywordVectors groups a post's tags into the eight category vectors
// the formatter can index into, using the tag type map returned alongside
// the post. A tag with no known type falls back to "general" (see
// DESIGN.md's Open Question resolution).
func buildKeywordVectors(tags []string, typeMap TagTypeMap) map[string][]string {
	vectors := map[string][]string{
		CategoryGeneral:   {},
		CategoryCharacter: {},
		CategoryCopyright: {},
		CategoryArtist:    {},
		CategoryMetadata:  {},
		CategoryCircle:    {},
		CategoryFaults:    {},
		CategoryStyle:     {},
	}
	for _, tag := range tags {
		category, ok := typeMap[tag]
		if !ok {
			category = CategoryGeneral
		}
		vectors[category] = append(vectors[category], tag)
	}
	return vectors
}
