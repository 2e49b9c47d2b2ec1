package video

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"zonewatch/internal/model"
	"zonewatch/internal/service/recorder"
)

// Codec is the fourcc used for alert clips.
const Codec = "XVID"

// Writer encodes frames into an AVI file.
type Writer struct {
	vw     *gocv.VideoWriter
	width  int
	height int
}

// NewWriter opens path for writing. It satisfies recorder.WriterFactory.
func NewWriter(path string, fps float64, width, height int) (recorder.VideoWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create clip directory: %w", err)
	}
	vw, err := gocv.VideoWriterFile(path, Codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open video writer: %w", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("video writer for %s is not opened", path)
	}
	return &Writer{vw: vw, width: width, height: height}, nil
}

// Write appends one frame. Frames of another size are resized to the clip's.
func (w *Writer) Write(frame model.Frame) error {
	mat, err := ToMat(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	if frame.Width != w.width || frame.Height != w.height {
		resized := gocv.NewMat()
		defer resized.Close()
		if err := gocv.Resize(mat, &resized, image.Pt(w.width, w.height), 0, 0, gocv.InterpolationLinear); err != nil {
			return fmt.Errorf("failed to resize frame %d: %w", frame.Seq, err)
		}
		return w.vw.Write(resized)
	}
	return w.vw.Write(mat)
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	return w.vw.Close()
}
