package viewstate

import (
	"fmt"
	"sync"

	"github.com/Zachkp/portfolio/internal/apperr"
)

// Region is a named, vertically bounded block of the page layout.
type Region struct {
	Name      string  `json:"name"`
	TopOffset float64 `json:"top"`
	Height    float64 `json:"height"`
}

// Contains reports whether y falls inside [TopOffset, TopOffset+Height).
func (r Region) Contains(y float64) bool {
	return y >= r.TopOffset && y < r.TopOffset+r.Height
}

// Registry lists the page regions in document order.
// Implementations must reflect the current geometry at call time.
type Registry interface {
	ListRegions() []Region
}

// StaticRegistry is a fixed, ordered list of regions.
type StaticRegistry []Region

// ListRegions returns the regions as given.
func (s StaticRegistry) ListRegions() []Region {
	return s
}

// LayoutRegistry holds the geometry most recently reported by the page.
type LayoutRegistry struct {
	mu      sync.RWMutex
	regions []Region
}

// NewLayoutRegistry returns a registry seeded with the given regions.
func NewLayoutRegistry(initial []Region) *LayoutRegistry {
	l := &LayoutRegistry{}
	l.regions = append([]Region(nil), initial...)
	return l
}

// ListRegions returns a copy of the current layout.
func (l *LayoutRegistry) ListRegions() []Region {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Region(nil), l.regions...)
}

// Update replaces the layout. Names must be non-empty and unique; on error the
// previous layout is kept.
func (l *LayoutRegistry) Update(regions []Region) error {
	if err := ValidateRegions(regions); err != nil {
		return err
	}
	next := append([]Region(nil), regions...)

	l.mu.Lock()
	l.regions = next
	l.mu.Unlock()
	return nil
}

// ValidateRegions checks region names are present and unique.
func ValidateRegions(regions []Region) error {
	seen := make(map[string]struct{}, len(regions))
	for i, r := range regions {
		if r.Name == "" {
			return fmt.Errorf("region %d: empty name: %w", i, apperr.ErrInvalidInput)
		}
		if r.Height < 0 {
			return fmt.Errorf("region %q: negative height: %w", r.Name, apperr.ErrInvalidInput)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("region %q: duplicate name: %w", r.Name, apperr.ErrInvalidInput)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// Locate returns the name of the first region containing y, scanning in
// registry order.
func Locate(regions []Region, y float64) (string, bool) {
	for _, r := range regions {
		if r.Contains(y) {
			return r.Name, true
		}
	}
	return "", false
}
