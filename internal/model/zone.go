package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultZoneColor is used for zones configured without a color.
const DefaultZoneColor = "#00ff00"

// Zone is a named rectangular region of interest.
type Zone struct {
	Name   string `yaml:"name" json:"name"`
	X      int    `yaml:"x" json:"x"`
	Y      int    `yaml:"y" json:"y"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
	Color  string `yaml:"color" json:"color"`
}

// Contains reports whether p lies inside the zone, edges included.
func (z Zone) Contains(p Point) bool {
	return p.X >= z.X && p.X <= z.X+z.Width &&
		p.Y >= z.Y && p.Y <= z.Y+z.Height
}

// RGB parses the zone color ("#rrggbb") into its components.
func (z Zone) RGB() (r, g, b uint8, err error) {
	color := z.Color
	if color == "" {
		color = DefaultZoneColor
	}
	hex := strings.TrimPrefix(color, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", z.Color)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q: %w", z.Color, err)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}
