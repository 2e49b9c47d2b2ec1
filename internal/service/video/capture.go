package video

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"zonewatch/internal/logger"
	"zonewatch/internal/model"
)

// Capture reads BGR frames from a camera index or a video file.
type Capture struct {
	source  string
	capture *gocv.VideoCapture
	mat     gocv.Mat
	fps     float64
	seq     uint64
	file    bool      // frames are stamped from the stream position
	start   time.Time // wall clock at open, the origin of file timestamps
	logger  *logger.Logger
	mu      sync.Mutex
}

// Open starts reading from source. fallbackFPS is used when the stream
// does not report a frame rate.
func Open(source string, fallbackFPS float64, logger *logger.Logger) (*Capture, error) {
	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %s: %w", source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video source %s is not opened", source)
	}

	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 || fps > 240 {
		fps = fallbackFPS
	}

	logger.Info("📹 Video source %s opened (%.2f fps)", source, fps)
	return &Capture{
		source:  source,
		capture: capture,
		mat:     gocv.NewMat(),
		fps:     fps,
		file:    isFile(source),
		start:   time.Now(),
		logger:  logger,
	}, nil
}

// FPS returns the native frame rate of the source.
func (c *Capture) FPS() float64 {
	return c.fps
}

// Read returns the next frame. It returns model.ErrSourceExhausted at the
// end of a file or when the camera stops delivering frames.
func (c *Capture) Read() (model.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return model.Frame{}, model.ErrSourceExhausted
	}
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		c.logger.Info("Video source %s exhausted after %d frames", c.source, c.seq)
		return model.Frame{}, model.ErrSourceExhausted
	}

	c.seq++
	ts := time.Now()
	if c.file {
		ts = frameTime(c.start, c.capture.Get(gocv.VideoCapturePosMsec), c.seq, c.fps)
	}
	return FromMat(c.mat, c.seq, ts)
}

// isFile reports whether source names a video file rather than a camera
// index or a stream URL.
func isFile(source string) bool {
	if _, err := strconv.Atoi(source); err == nil {
		return false
	}
	info, err := os.Stat(source)
	return err == nil && info.Mode().IsRegular()
}

// frameTime places frame seq of a file on the timeline starting at start.
// The stream position is used when the backend reports one, otherwise the
// frame index at fps.
func frameTime(start time.Time, posMsec float64, seq uint64, fps float64) time.Time {
	if posMsec > 0 {
		return start.Add(time.Duration(posMsec * float64(time.Millisecond)))
	}
	if fps <= 0 {
		return start
	}
	return start.Add(time.Duration(float64(seq-1) / fps * float64(time.Second)))
}

// Close releases the capture device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.mat.Close()
	c.capture = nil
	return err
}

// FromMat copies a BGR mat into a frame.
func FromMat(mat gocv.Mat, seq uint64, ts time.Time) (model.Frame, error) {
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return model.Frame{}, fmt.Errorf("unsupported mat type %v", mat.Type())
	}
	// ToBytes copies, so the frame stays valid after mat is reused.
	return model.Frame{
		Seq:       seq,
		Timestamp: ts,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Data:      mat.ToBytes(),
	}, nil
}

// ToMat wraps a copy of frame's pixels in a mat. The caller closes it.
func ToMat(frame model.Frame) (gocv.Mat, error) {
	if len(frame.Data) != frame.Width*frame.Height*3 {
		return gocv.NewMat(), fmt.Errorf("frame %d: %d bytes for %dx%d", frame.Seq, len(frame.Data), frame.Width, frame.Height)
	}
	shared, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("frame %d: %w", frame.Seq, err)
	}
	defer shared.Close()
	// shared may alias frame.Data; the clone owns its pixels.
	return shared.Clone(), nil
}
