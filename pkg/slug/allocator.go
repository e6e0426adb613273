// Package slug allocates unique URL-safe identifiers for directory entities.
package slug

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const fallbackBase = "place"

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Checker reports whether a slug is already stored.
type Checker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// Slugify lowercases s, collapses non-alphanumeric runs into single hyphens
// and trims hyphens from both ends.
func Slugify(s string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// Allocator hands out slugs for one batch. Slugs it has returned are never
// returned again, even before they are persisted.
type Allocator struct {
	checker  Checker
	now      func() time.Time
	mu       sync.Mutex
	reserved map[string]struct{}
}

func NewAllocator(checker Checker) *Allocator {
	return &Allocator{
		checker:  checker,
		now:      time.Now,
		reserved: make(map[string]struct{}),
	}
}

// Allocate returns slugify(name), then slugify(name)-slugify(disambiguator),
// then slugify(name)-<base36 unix millis>, whichever is free first.
func (a *Allocator) Allocate(ctx context.Context, name, disambiguator string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = fallbackBase
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	candidates := []string{base}
	if suffix := Slugify(disambiguator); suffix != "" {
		candidates = append(candidates, base+"-"+suffix)
	}

	for _, candidate := range candidates {
		taken, err := a.taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			a.reserved[candidate] = struct{}{}
			return candidate, nil
		}
	}

	millis := a.now().UnixMilli()
	for {
		candidate := base + "-" + strconv.FormatInt(millis, 36)
		if _, ok := a.reserved[candidate]; !ok {
			a.reserved[candidate] = struct{}{}
			return candidate, nil
		}
		millis++
	}
}

// Release returns a slug whose insert failed so the batch may reuse it.
func (a *Allocator) Release(slug string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, slug)
}

func (a *Allocator) taken(ctx context.Context, candidate string) (bool, error) {
	if _, ok := a.reserved[candidate]; ok {
		return true, nil
	}
	return a.checker.SlugExists(ctx, candidate)
}
