package clips

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"zonewatch/internal/dto"
	"zonewatch/internal/model"
	"zonewatch/internal/repository"
)

const (
	prefix     = "alert_"
	ext        = ".avi"
	nameLayout = "20060102_150405"
)

// ErrNotClip is returned by Parse for files that are not alert clips.
var ErrNotClip = errors.New("not an alert clip")

// Parse extracts the trigger time from an alert_YYYYMMDD_HHMMSS[_N].avi name.
func Parse(filename string) (time.Time, error) {
	base := filepath.Base(filename)
	if !strings.HasPrefix(base, prefix) || filepath.Ext(base) != ext {
		return time.Time{}, fmt.Errorf("%s: %w", base, ErrNotClip)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(base, prefix), ext)
	// Clips triggered within the same second carry a _N suffix.
	if len(stamp) > len(nameLayout) && stamp[len(nameLayout)] == '_' {
		if _, err := strconv.Atoi(stamp[len(nameLayout)+1:]); err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", base, ErrNotClip)
		}
		stamp = stamp[:len(nameLayout)]
	}
	t, err := time.ParseInLocation(nameLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", base, ErrNotClip)
	}
	return t, nil
}

// List returns the clips in dir matching filters, newest first. Files that
// are not alert clips are ignored; a missing directory is empty.
func List(dir string, filters dto.ClipFilters) ([]dto.ClipInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read clips directory: %w", err)
	}

	var clips []dto.ClipInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		t, err := Parse(entry.Name())
		if err != nil || !filters.Match(t) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		clips = append(clips, dto.ClipInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			Date:      t,
			TimeOfDay: t,
			Size:      info.Size(),
		})
	}

	sort.Slice(clips, func(i, j int) bool {
		return clips[i].Date.After(clips[j].Date)
	})
	if filters.Limit > 0 && len(clips) > filters.Limit {
		clips = clips[:filters.Limit]
	}
	return clips, nil
}

// Summary aggregates the clips in dir.
func Summary(dir string) (dto.ClipSummary, error) {
	clips, err := List(dir, dto.ClipFilters{})
	if err != nil {
		return dto.ClipSummary{}, err
	}

	summary := dto.ClipSummary{
		Count: len(clips),
		PerDay: lo.CountValuesBy(clips, func(c dto.ClipInfo) string {
			return c.Date.Format("2006-01-02")
		}),
		TotalSize: lo.SumBy(clips, func(c dto.ClipInfo) int64 { return c.Size }),
	}
	if len(clips) > 0 {
		summary.Last = clips[0].Date
		summary.First = clips[len(clips)-1].Date
	}
	return summary, nil
}

// Prune deletes clips triggered more than olderThan before now and returns
// the removed names.
func Prune(dir string, olderThan time.Duration, now time.Time) ([]string, error) {
	clips, err := List(dir, dto.ClipFilters{Before: now.Add(-olderThan)})
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	for _, c := range clips {
		if err := os.Remove(c.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, c.Name)
	}
	return removed, errors.Join(errs...)
}

// Export copies the clips matching filters into out.
func Export(dir, out string, filters dto.ClipFilters) ([]string, error) {
	clips, err := List(dir, filters)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	var exported []string
	for _, c := range clips {
		if err := copyFile(c.Path, filepath.Join(out, c.Name)); err != nil {
			return exported, fmt.Errorf("failed to export %s: %w", c.Name, err)
		}
		exported = append(exported, c.Name)
	}
	return exported, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, in); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}

// Index registers the clips in dir with repo and returns how many were new.
func Index(dir string, repo repository.ClipRepository) (int, error) {
	clips, err := List(dir, dto.ClipFilters{})
	if err != nil {
		return 0, err
	}
	if len(clips) == 0 {
		return 0, nil
	}

	records := lo.Map(clips, func(c dto.ClipInfo, _ int) model.Clip {
		return model.Clip{
			Filename:  c.Name,
			Timestamp: c.Date,
			FilePath:  c.Path,
			FileSize:  c.Size,
		}
	})
	return repo.InsertBatch(records)
}
