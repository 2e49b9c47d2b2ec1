package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"zonewatch/internal/model"
	"zonewatch/internal/service/video"
)

// Client asks a remote detection service to classify frames. The service
// accepts a JPEG on POST /predict and answers with a Response.
type Client struct {
	URL        string
	httpClient *http.Client
}

// Response is the body returned by /predict.
type Response struct {
	Detections []model.Detection `json:"detections"`
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		URL:        strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Detect encodes frame as JPEG and returns the service's detections.
func (c *Client) Detect(frame model.Frame) ([]model.Detection, error) {
	return c.DetectContext(context.Background(), frame)
}

// DetectContext is Detect bound to ctx.
func (c *Client) DetectContext(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	imageData, err := EncodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="frame_%d.jpg"`, frame.Seq))
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/predict", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.TransientIOError{Op: "detect", Path: c.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &model.TransientIOError{
			Op:   "detect",
			Path: c.URL,
			Err:  fmt.Errorf("bad status: %s, error: %s", resp.Status, bytes.TrimSpace(bodyBytes)),
		}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	return out.Detections, nil
}

// EncodeJPEG compresses a BGR frame.
func EncodeJPEG(frame model.Frame) ([]byte, error) {
	mat, err := video.ToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame %d: %w", frame.Seq, err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}
