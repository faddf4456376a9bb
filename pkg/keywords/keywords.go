// Package keywords expands `{key}` and `{key[indexing]}` templates against
// per-post metadata to build archive file and directory names.
package keywords

import (
	"fmt"
	"strconv"
	"strings"
)

// Keywords is the formatter's input view over one post: scalar fields plus
// the eight tag-category vectors returned by the site alongside the post.
type Keywords struct {
	Platform string
	ID       int64
	Tags     []string
	Source   string
	MD5      string
	FileSize int64
	FileExt  string
	Rating   string

	General   []string
	Character []string
	Copyright []string
	Artist    []string
	Metadata  []string
	Circle    []string
	Faults    []string
	Style     []string
}

// value is either a scalar (int or string) or a list of strings; indexing
// rules differ by shape, and among scalars, by whether the underlying field
// is an integer (indexing ignored) or a string (indexed by character).
type value struct {
	scalar   string
	isScalar bool
	isInt    bool
	list     []string
}

func (k Keywords) lookup(key string) (value, error) {
	switch key {
	case "platform":
		return value{scalar: k.Platform, isScalar: true}, nil
	case "id":
		return value{scalar: strconv.FormatInt(k.ID, 10), isScalar: true, isInt: true}, nil
	case "tags":
		return value{list: k.Tags}, nil
	case "source":
		return value{scalar: k.Source, isScalar: true}, nil
	case "md5":
		return value{scalar: k.MD5, isScalar: true}, nil
	case "file_size":
		return value{scalar: strconv.FormatInt(k.FileSize, 10), isScalar: true, isInt: true}, nil
	case "file_ext":
		return value{scalar: k.FileExt, isScalar: true}, nil
	case "rating":
		return value{scalar: k.Rating, isScalar: true}, nil
	case "general":
		return value{list: k.General}, nil
	case "character":
		return value{list: k.Character}, nil
	case "copyright":
		return value{list: k.Copyright}, nil
	case "artist":
		return value{list: k.Artist}, nil
	case "metadata":
		return value{list: k.Metadata}, nil
	case "circle":
		return value{list: k.Circle}, nil
	case "faults":
		return value{list: k.Faults}, nil
	case "style":
		return value{list: k.Style}, nil
	default:
		return value{}, fmt.Errorf("keywords: unknown key %q", key)
	}
}

// Format expands every `{key}` and `{key[indexing]}` occurrence in template
// against k, returning the resolved string. A template with no braces is
// returned unchanged. `\{` escapes a literal brace.
func Format(template string, k Keywords) (string, error) {
	var out strings.Builder
	runes := []rune(template)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) && runes[i+1] == '{' {
			out.WriteRune('{')
			i++
			continue
		}
		if c != '{' {
			out.WriteRune(c)
			continue
		}
		end := indexOfRune(runes, i+1, '}')
		if end < 0 {
			return "", fmt.Errorf("keywords: unterminated %q in template %q", "{", template)
		}
		expr := string(runes[i+1 : end])
		resolved, err := resolveExpr(expr, k)
		if err != nil {
			return "", err
		}
		out.WriteString(resolved)
		i = end
	}
	return out.String(), nil
}

func indexOfRune(runes []rune, start int, target rune) int {
	for i := start; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

// resolveExpr resolves a single `key` or `key[indexing]` expression (the
// text between the braces, not including them).
func resolveExpr(expr string, k Keywords) (string, error) {
	key := expr
	var indexSpec string
	hasIndex := false
	if bracket := strings.IndexByte(expr, '['); bracket >= 0 {
		if !strings.HasSuffix(expr, "]") {
			return "", fmt.Errorf("keywords: malformed index in %q", expr)
		}
		key = expr[:bracket]
		indexSpec = expr[bracket+1 : len(expr)-1]
		hasIndex = true
	}

	v, err := k.lookup(key)
	if err != nil {
		return "", err
	}

	if v.isScalar {
		// Indexing an integer scalar field (id, file_size) is ignored: the
		// value renders whole regardless of any bracket suffix. A string
		// scalar (platform, source, md5, file_ext, rating) is indexed by
		// character, same grammar as a tag vector indexed by element.
		if v.isInt || !hasIndex {
			return v.scalar, nil
		}
		return applyCharIndex(v.scalar, indexSpec)
	}

	if !hasIndex {
		return strings.Join(v.list, " "), nil
	}
	return applyIndex(v.list, indexSpec)
}

// applyIndex evaluates a comma-separated list of INDEX selectors against a
// list of elements, concatenating results with a single space.
func applyIndex(list []string, spec string) (string, error) {
	return applyIndexJoin(list, spec, " ")
}

// applyCharIndex evaluates a comma-separated list of INDEX selectors against
// the characters of s, concatenating results with no separator so the
// result is itself a substring of s.
func applyCharIndex(s, spec string) (string, error) {
	runes := []rune(s)
	chars := make([]string, len(runes))
	for i, r := range runes {
		chars[i] = string(r)
	}
	return applyIndexJoin(chars, spec, "")
}

func applyIndexJoin(list []string, spec, sep string) (string, error) {
	parts := strings.Split(spec, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, ":") {
			s, e, err := parseRange(part, len(list))
			if err != nil {
				return "", err
			}
			if s < 0 || s >= len(list) {
				results = append(results, "null")
				continue
			}
			if e >= len(list) {
				e = len(list) - 1
			}
			if e < s {
				results = append(results, "null")
				continue
			}
			results = append(results, list[s:e+1]...)
		} else {
			idx, err := strconv.Atoi(part)
			if err != nil {
				return "", fmt.Errorf("keywords: invalid index %q: %w", part, err)
			}
			resolved := resolveSingleIndex(idx, len(list))
			if resolved < 0 {
				results = append(results, "null")
				continue
			}
			results = append(results, list[resolved])
		}
	}
	return strings.Join(results, sep), nil
}

// resolveSingleIndex maps a signed index (negative counts from the end,
// -1 is the last element) to a 0-based offset, or -1 if out of range.
func resolveSingleIndex(idx, length int) int {
	if idx < 0 {
		idx = length + idx
	}
	if idx < 0 || idx >= length {
		return -1
	}
	return idx
}

// Sanitize replaces every occurrence of any character in chars with "_". It
// is meant to run on a single path component (a filename, or one segment of
// a directory path) after Format, so that tag- or source-derived
// substitutions can't inject characters a filesystem (or the `/` directory
// separator itself) would treat specially.
func Sanitize(s string, chars []string) string {
	for _, c := range chars {
		if c == "" {
			continue
		}
		s = strings.ReplaceAll(s, c, "_")
	}
	return s
}

// SanitizeDir applies Sanitize to each "/"-separated segment of path,
// leaving the separators themselves (and any leading "/") intact.
func SanitizeDir(path string, chars []string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = Sanitize(seg, chars)
	}
	return strings.Join(segments, "/")
}

// parseRange parses an `s:e` range expression: omitted s means 0, omitted e
// means -1 (last element); both bounds are inclusive once resolved.
func parseRange(spec string, length int) (int, int, error) {
	colon := strings.IndexByte(spec, ':')
	startStr := spec[:colon]
	endStr := spec[colon+1:]

	start := 0
	if startStr != "" {
		v, err := strconv.Atoi(startStr)
		if err != nil {
			return 0, 0, fmt.Errorf("keywords: invalid range start %q: %w", startStr, err)
		}
		start = v
	}
	end := -1
	if endStr != "" {
		v, err := strconv.Atoi(endStr)
		if err != nil {
			return 0, 0, fmt.Errorf("keywords: invalid range end %q: %w", endStr, err)
		}
		end = v
	}

	if start < 0 {
		start = length + start
	}
	if end < 0 {
		end = length + end
	}
	return start, end, nil
}
