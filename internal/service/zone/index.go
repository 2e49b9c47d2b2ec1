package zone

import (
	"github.com/samber/lo"

	"zonewatch/internal/model"
)

// Index answers containment queries against a fixed set of zones.
// It is never mutated after construction, so concurrent reads are safe.
type Index struct {
	zones []model.Zone
}

// NewIndex copies zones, keeping their configured order.
func NewIndex(zones []model.Zone) *Index {
	return &Index{zones: append([]model.Zone(nil), zones...)}
}

// Contains reports whether p lies inside z, edges included.
func (i *Index) Contains(p model.Point, z model.Zone) bool {
	return z.Contains(p)
}

// ZonesContaining returns every zone containing p, in configured order.
func (i *Index) ZonesContaining(p model.Point) []model.Zone {
	return lo.Filter(i.zones, func(z model.Zone, _ int) bool {
		return z.Contains(p)
	})
}

// Zones returns a copy of the configured zones.
func (i *Index) Zones() []model.Zone {
	return append([]model.Zone(nil), i.zones...)
}

// Len returns the number of zones.
func (i *Index) Len() int {
	return len(i.zones)
}
