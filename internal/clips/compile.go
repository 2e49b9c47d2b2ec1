package clips

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"zonewatch/internal/dto"
	"zonewatch/internal/logger"
	"zonewatch/internal/service/video"
)

var (
	stampColor = color.RGBA{G: 255}
	infoColor  = color.RGBA{R: 255, G: 255, B: 255}
)

// Compile concatenates clips, oldest first, into one XVID file at out. Each
// frame is stamped with its clip's trigger time and position. The geometry
// and frame rate of the first readable clip are used. It returns the number
// of frames written.
func Compile(clips []dto.ClipInfo, out string, logger *logger.Logger) (int, error) {
	if len(clips) == 0 {
		return 0, fmt.Errorf("no clips to compile")
	}

	ordered := make([]dto.ClipInfo, len(clips))
	for i, c := range clips {
		ordered[len(clips)-1-i] = c
	}

	var (
		writer  *gocv.VideoWriter
		width   int
		height  int
		written int
	)
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	frame := gocv.NewMat()
	defer frame.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	for i, c := range ordered {
		capture, err := gocv.VideoCaptureFile(c.Path)
		if err != nil || !capture.IsOpened() {
			logger.Warning("Could not open %s, skipping", c.Name)
			if capture != nil {
				capture.Close()
			}
			continue
		}

		if writer == nil {
			width = int(capture.Get(gocv.VideoCaptureFrameWidth))
			height = int(capture.Get(gocv.VideoCaptureFrameHeight))
			fps := capture.Get(gocv.VideoCaptureFPS)
			writer, err = gocv.VideoWriterFile(out, video.Codec, fps, width, height, true)
			if err != nil {
				capture.Close()
				return 0, fmt.Errorf("failed to create output video: %w", err)
			}
		}

		count := 0
		stamp := c.Date.Format("2006-01-02 15:04:05")
		label := fmt.Sprintf("Clip %d/%d", i+1, len(ordered))
		for capture.Read(&frame) && !frame.Empty() {
			dst := &frame
			if frame.Cols() != width || frame.Rows() != height {
				if err := gocv.Resize(frame, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear); err != nil {
					continue
				}
				dst = &resized
			}
			gocv.PutText(dst, stamp, image.Pt(10, 30), gocv.FontHersheySimplex, 1, stampColor, 2)
			gocv.PutText(dst, label, image.Pt(10, height-20), gocv.FontHersheySimplex, 0.7, infoColor, 2)
			if err := writer.Write(*dst); err != nil {
				capture.Close()
				return written, fmt.Errorf("failed to write frame: %w", err)
			}
			count++
		}
		capture.Close()

		written += count
		logger.Info("✅ Added %d frames from %s", count, c.Name)
	}

	if writer == nil {
		return 0, fmt.Errorf("none of %d clips could be opened", len(clips))
	}
	return written, nil
}
