package zone

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"

	"zonewatch/internal/model"
)

func TestContains_InclusiveEdges(t *testing.T) {
	gate := model.Zone{Name: "Gate", X: 0, Y: 0, Width: 100, Height: 100}
	idx := NewIndex([]model.Zone{gate})

	tests := []struct {
		name string
		p    model.Point
		want bool
	}{
		{"center", model.Point{X: 50, Y: 50}, true},
		{"top-left corner", model.Point{X: 0, Y: 0}, true},
		{"bottom-right corner", model.Point{X: 100, Y: 100}, true},
		{"right edge", model.Point{X: 100, Y: 40}, true},
		{"just right", model.Point{X: 101, Y: 40}, false},
		{"just above", model.Point{X: 40, Y: -1}, false},
		{"far outside", model.Point{X: 150, Y: 150}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.Contains(tt.p, gate))
		})
	}
}

func TestZonesContaining_OverlapKeepsOrder(t *testing.T) {
	idx := NewIndex([]model.Zone{
		{Name: "Driveway", X: 0, Y: 0, Width: 200, Height: 200},
		{Name: "Street", X: 500, Y: 0, Width: 100, Height: 100},
		{Name: "Door", X: 50, Y: 50, Width: 50, Height: 50},
	})

	got := idx.ZonesContaining(model.Point{X: 75, Y: 75})
	names := lo.Map(got, func(z model.Zone, _ int) string { return z.Name })
	assert.Equal(t, []string{"Driveway", "Door"}, names)

	assert.Empty(t, idx.ZonesContaining(model.Point{X: 300, Y: 300}))
}

func TestNewIndex_CopiesInput(t *testing.T) {
	zones := []model.Zone{{Name: "A", Width: 10, Height: 10}}
	idx := NewIndex(zones)
	zones[0].Name = "changed"

	assert.Equal(t, "A", idx.Zones()[0].Name)
	assert.Equal(t, 1, idx.Len())
}
