package ai

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"zonewatch/internal/config"
	"zonewatch/internal/logger"
	"zonewatch/internal/model"
	"zonewatch/internal/service/video"
)

const (
	// InputSize is the square network input in pixels.
	InputSize = 416
	// ScaleFactor maps 8-bit pixels into [0,1].
	ScaleFactor = 1.0 / 255.0
)

// Detector runs a Darknet YOLO network over frames.
type Detector struct {
	net            gocv.Net
	outputNames    []string
	classes        []string
	scoreThreshold float32
	nmsThreshold   float32
	logger         *logger.Logger
	mutex          sync.Mutex
}

// NewDetector loads the network and class names named in cfg. Missing
// files are reported as configuration errors.
func NewDetector(cfg config.DetectorConfig, logger *logger.Logger) (*Detector, error) {
	for field, path := range map[string]string{
		"detector.model_path":   cfg.ModelPath,
		"detector.config_path":  cfg.ConfigPath,
		"detector.classes_path": cfg.ClassesPath,
	} {
		if _, err := os.Stat(path); err != nil {
			return nil, &model.ConfigurationError{Field: field, Reason: fmt.Sprintf("file not found: %s", path)}
		}
	}

	classes, err := LoadClasses(cfg.ClassesPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	var outputNames []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayerByID(id)
		outputNames = append(outputNames, layer.GetName())
		layer.Close()
	}

	logger.Info("Detection network initialized (%d classes, outputs %s)", len(classes), strings.Join(outputNames, ","))
	return &Detector{
		net:            net,
		outputNames:    outputNames,
		classes:        classes,
		scoreThreshold: float32(cfg.ScoreThreshold),
		nmsThreshold:   float32(cfg.NMSThreshold),
		logger:         logger,
	}, nil
}

// LoadClasses reads one class label per line, skipping blank lines.
func LoadClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class names: %w", err)
	}
	defer f.Close()

	var classes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			classes = append(classes, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class names: %w", err)
	}
	if len(classes) == 0 {
		return nil, &model.ConfigurationError{Field: "detector.classes_path", Reason: "no class names in " + path}
	}
	return classes, nil
}

// Detect returns the objects found in frame after non-maximum suppression.
func (d *Detector) Detect(frame model.Frame) ([]model.Detection, error) {
	mat, err := video.ToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, ScaleFactor, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mutex.Lock()
	if err := d.net.SetInput(blob, ""); err != nil {
		d.mutex.Unlock()
		return nil, fmt.Errorf("failed to set network input: %w", err)
	}
	outputs := d.net.ForwardLayers(d.outputNames)
	d.mutex.Unlock()

	var candidates []candidate
	for _, out := range outputs {
		candidates = append(candidates, decode(rows(out), frame.Width, frame.Height, d.scoreThreshold)...)
		out.Close()
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = image.Rect(c.box.X, c.box.Y, c.box.X+c.box.Width, c.box.Y+c.box.Height)
		scores[i] = c.score
	}
	keep := gocv.NMSBoxes(boxes, scores, d.scoreThreshold, d.nmsThreshold)

	detections := make([]model.Detection, 0, len(keep))
	for _, i := range keep {
		c := candidates[i]
		detections = append(detections, model.Detection{
			Class:      d.label(c.classID),
			Confidence: float64(c.score),
			Box:        c.box,
		})
	}
	d.logger.Debug("Frame %d: %d detections", frame.Seq, len(detections))
	return detections, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.net.Close()
}

func (d *Detector) label(classID int) string {
	if classID >= 0 && classID < len(d.classes) {
		return d.classes[classID]
	}
	return fmt.Sprintf("class%d", classID)
}

type candidate struct {
	classID int
	score   float32
	box     model.Box
}

// rows copies a YOLO output blob into one slice per prediction.
func rows(out gocv.Mat) [][]float32 {
	result := make([][]float32, out.Rows())
	for r := range result {
		row := make([]float32, out.Cols())
		for c := range row {
			row[c] = out.GetFloatAt(r, c)
		}
		result[r] = row
	}
	return result
}

// decode turns YOLO predictions [cx, cy, w, h, objectness, class scores...]
// with coordinates relative to the frame into pixel boxes whose best class
// score exceeds threshold.
func decode(predictions [][]float32, width, height int, threshold float32) []candidate {
	var out []candidate
	for _, p := range predictions {
		if len(p) < 6 {
			continue
		}
		classID, best := -1, float32(0)
		for i, s := range p[5:] {
			if s > best {
				classID, best = i, s
			}
		}
		if classID < 0 || best <= threshold {
			continue
		}

		cx := int(p[0] * float32(width))
		cy := int(p[1] * float32(height))
		w := int(p[2] * float32(width))
		h := int(p[3] * float32(height))
		out = append(out, candidate{
			classID: classID,
			score:   best,
			box:     model.Box{X: cx - w/2, Y: cy - h/2, Width: w, Height: h},
		})
	}
	return out
}
