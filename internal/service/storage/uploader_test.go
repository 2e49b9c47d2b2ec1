package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/internal/config"
)

func TestObjectKey(t *testing.T) {
	ts := time.Date(2025, 6, 5, 14, 30, 0, 0, time.UTC)
	path := filepath.Join("outputs", "clips", "alert_20250605_143000.avi")

	assert.Equal(t, "2025/06/05/alert_20250605_143000.avi", ObjectKey(path, ts))
}

func TestNewUploader(t *testing.T) {
	u, err := NewUploader(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "minio", SecretKey: "minio123", Bucket: "clips"})
	require.NoError(t, err)
	assert.Equal(t, "clips", u.bucket)
}
