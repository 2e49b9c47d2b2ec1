package model

import "time"

// Frame is a decoded BGR frame with its capture metadata.
// Data is never mutated once the frame has been handed to the pipeline.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
}
