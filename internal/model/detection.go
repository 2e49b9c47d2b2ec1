package model

// Point is a pixel coordinate in frame space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Box is an axis-aligned bounding box anchored at its top-left corner.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the integer center of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Detection is one classified object instance found in a single frame.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Center returns the center point of the detection's bounding box.
func (d Detection) Center() Point {
	return d.Box.Center()
}
