package clips

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/internal/dto"
	"zonewatch/internal/logger"
	"zonewatch/internal/model"
)

func touch(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644))
}

func local(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.Local)
}

func seedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	touch(t, dir, "alert_20240501_120010.avi", 100)
	touch(t, dir, "alert_20240501_180000.avi", 50)
	touch(t, dir, "alert_20240503_070000.avi", 25)
	touch(t, dir, "compiled_20240503_070000.avi", 10)
	touch(t, dir, "alert_notatime.avi", 10)
	touch(t, dir, "notes.txt", 1)
	return dir
}

func TestParse(t *testing.T) {
	got, err := Parse("clips/alert_20240501_120010.avi")
	require.NoError(t, err)
	assert.Equal(t, local(2024, 5, 1, 12, 0, 10), got)

	got, err = Parse("alert_20240501_120010_2.avi")
	require.NoError(t, err)
	assert.Equal(t, local(2024, 5, 1, 12, 0, 10), got)

	for _, name := range []string{"alert_20240501.avi", "alert_20240501_120010.mp4", "capture_20240501_120010.avi", "alert_20240501_120010_x.avi"} {
		_, err := Parse(name)
		assert.True(t, errors.Is(err, ErrNotClip), name)
	}
}

func TestList_NewestFirst(t *testing.T) {
	dir := seedDir(t)

	clips, err := List(dir, dto.ClipFilters{})
	require.NoError(t, err)

	require.Len(t, clips, 3)
	assert.Equal(t, "alert_20240503_070000.avi", clips[0].Name)
	assert.Equal(t, "alert_20240501_120010.avi", clips[2].Name)
	assert.Equal(t, int64(100), clips[2].Size)
	assert.Equal(t, filepath.Join(dir, "alert_20240501_120010.avi"), clips[2].Path)
}

func TestList_Filters(t *testing.T) {
	dir := seedDir(t)

	clips, err := List(dir, dto.ClipFilters{After: local(2024, 5, 1, 13, 0, 0)})
	require.NoError(t, err)
	assert.Len(t, clips, 2)

	clips, err = List(dir, dto.ClipFilters{Limit: 1})
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, "alert_20240503_070000.avi", clips[0].Name)
}

func TestList_MissingDir(t *testing.T) {
	clips, err := List(filepath.Join(t.TempDir(), "none"), dto.ClipFilters{})
	assert.NoError(t, err)
	assert.Empty(t, clips)
}

func TestSummary(t *testing.T) {
	summary, err := Summary(seedDir(t))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, int64(175), summary.TotalSize)
	assert.Equal(t, local(2024, 5, 1, 12, 0, 10), summary.First)
	assert.Equal(t, local(2024, 5, 3, 7, 0, 0), summary.Last)
	assert.Equal(t, map[string]int{"2024-05-01": 2, "2024-05-03": 1}, summary.PerDay)
}

func TestPrune(t *testing.T) {
	dir := seedDir(t)

	removed, err := Prune(dir, 7*24*time.Hour, local(2024, 5, 9, 0, 0, 0))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alert_20240501_120010.avi", "alert_20240501_180000.avi"}, removed)

	clips, err := List(dir, dto.ClipFilters{})
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestExport(t *testing.T) {
	dir := seedDir(t)
	out := filepath.Join(t.TempDir(), "export")

	exported, err := Export(dir, out, dto.ClipFilters{
		After:  local(2024, 5, 1, 0, 0, 0),
		Before: local(2024, 5, 2, 0, 0, 0),
	})
	require.NoError(t, err)
	assert.Len(t, exported, 2)
	assert.FileExists(t, filepath.Join(out, "alert_20240501_180000.avi"))
	assert.FileExists(t, filepath.Join(dir, "alert_20240501_180000.avi"))
}

type memClips struct{ clips []model.Clip }

func (m *memClips) Insert(c *model.Clip) (int64, error) {
	m.clips = append(m.clips, *c)
	return int64(len(m.clips)), nil
}

func (m *memClips) InsertBatch(clips []model.Clip) (int, error) {
	m.clips = append(m.clips, clips...)
	return len(clips), nil
}

func (m *memClips) GetAll() ([]model.Clip, error) { return m.clips, nil }

func (m *memClips) DeleteByFilename(string) error { return nil }

func TestIndex(t *testing.T) {
	repo := &memClips{}
	n, err := Index(seedDir(t), repo)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	require.Len(t, repo.clips, 3)
	assert.Equal(t, int64(25), repo.clips[0].FileSize)
	assert.Equal(t, local(2024, 5, 3, 7, 0, 0), repo.clips[0].Timestamp)
}

func TestCompile_NoClips(t *testing.T) {
	_, err := Compile(nil, filepath.Join(t.TempDir(), "out.avi"), logger.Discard())
	assert.Error(t, err)
}

func TestCompile_UnreadableClips(t *testing.T) {
	dir := seedDir(t)
	clips, err := List(dir, dto.ClipFilters{})
	require.NoError(t, err)

	_, err = Compile(clips, filepath.Join(t.TempDir(), "out.avi"), logger.Discard())
	assert.Error(t, err)
}
