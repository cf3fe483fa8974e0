package usecases

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// PhotoKey builds the object key for an uploaded photo:
// <unix-millis>-<random>-<sanitized name>.
func PhotoKey(now time.Time, suffix, name string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), suffix, sanitizeFileName(name))
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == ".." || name == "/" {
		name = ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '?' || r == '#' || r == '%' {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "photo"
	}
	return name
}

// KeyFromURL returns the object key of a photo URL: its last path segment.
// It returns "" when the URL has no usable segment.
func KeyFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		// fall back to plain splitting, like the stored value was never escaped
		if i := strings.LastIndex(raw, "/"); i >= 0 {
			return raw[i+1:]
		}
		return raw
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}
