package detect

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/internal/model"
)

func testFrame() model.Frame {
	return model.Frame{Seq: 7, Width: 16, Height: 8, Data: make([]byte, 16*8*3)}
}

func TestDetect(t *testing.T) {
	var gotType string
	var gotSize int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotType = header.Header.Get("Content-Type")
		gotSize = len(data)

		json.NewEncoder(w).Encode(Response{Detections: []model.Detection{
			{Class: "person", Confidence: 0.91, Box: model.Box{X: 1, Y: 2, Width: 3, Height: 4}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	detections, err := client.Detect(testFrame())
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", gotType)
	assert.Positive(t, gotSize)
	require.Len(t, detections, 1)
	assert.Equal(t, "person", detections[0].Class)
	assert.Equal(t, model.Point{X: 2, Y: 4}, detections[0].Center())
}

func TestDetect_BadStatusIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Detect(testFrame())

	var ioErr *model.TransientIOError
	require.True(t, errors.As(err, &ioErr))
	assert.Contains(t, ioErr.Error(), "model loading")
}

func TestDetect_InvalidFrame(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", time.Second).Detect(model.Frame{Width: 2, Height: 2})
	assert.Error(t, err)
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(testFrame())
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
}
