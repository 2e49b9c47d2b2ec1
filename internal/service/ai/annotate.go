package ai

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"zonewatch/internal/logger"
	"zonewatch/internal/model"
	"zonewatch/internal/service/video"
)

var palette = []color.RGBA{
	{R: 230, G: 25, B: 75},
	{R: 60, G: 180, B: 75},
	{R: 255, G: 225, B: 25},
	{R: 0, G: 130, B: 200},
	{R: 245, G: 130, B: 48},
	{R: 145, G: 30, B: 180},
	{R: 70, G: 240, B: 240},
	{R: 240, G: 50, B: 230},
}

// ClassColor returns a stable drawing color for a class label.
func ClassColor(class string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(class))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Annotator draws zones and detections onto copies of frames.
type Annotator struct {
	logger *logger.Logger
}

// NewAnnotator creates an Annotator that logs drawing failures to logger.
func NewAnnotator(logger *logger.Logger) *Annotator {
	return &Annotator{logger: logger}
}

// Annotate returns a copy of frame with zone outlines and labelled boxes.
// On failure the original frame is returned unchanged.
func (a *Annotator) Annotate(frame model.Frame, detections []model.Detection, zones []model.Zone) model.Frame {
	if len(detections) == 0 && len(zones) == 0 {
		return frame
	}

	mat, err := video.ToMat(frame)
	if err != nil {
		a.logger.Warning("Cannot annotate frame %d: %v", frame.Seq, err)
		return frame
	}
	defer mat.Close()

	if err := draw(&mat, detections, zones); err != nil {
		a.logger.Warning("Cannot annotate frame %d: %v", frame.Seq, err)
		return frame
	}

	annotated, err := video.FromMat(mat, frame.Seq, frame.Timestamp)
	if err != nil {
		a.logger.Warning("Cannot annotate frame %d: %v", frame.Seq, err)
		return frame
	}
	return annotated
}

func draw(mat *gocv.Mat, detections []model.Detection, zones []model.Zone) error {
	for _, z := range zones {
		r, g, b, err := z.RGB()
		if err != nil {
			r, g, b, _ = model.Zone{Color: model.DefaultZoneColor}.RGB()
		}
		c := color.RGBA{R: r, G: g, B: b}
		if err := gocv.Rectangle(mat, image.Rect(z.X, z.Y, z.X+z.Width, z.Y+z.Height), c, 2); err != nil {
			return fmt.Errorf("failed to draw zone: %w", err)
		}
		if err := gocv.PutText(mat, z.Name, image.Pt(z.X, z.Y-8), gocv.FontHersheySimplex, 0.6, c, 2); err != nil {
			return fmt.Errorf("failed to draw zone label: %w", err)
		}
	}

	for _, d := range detections {
		c := ClassColor(d.Class)
		b := d.Box
		if err := gocv.Rectangle(mat, image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height), c, 2); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}
		label := fmt.Sprintf("%s %.2f", d.Class, d.Confidence)
		if err := gocv.PutText(mat, label, image.Pt(b.X, b.Y+20), gocv.FontHersheyPlain, 2, c, 2); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return nil
}
