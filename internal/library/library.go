// Package library finds audio files on disk and imports them as
// local-origin tracks.
package library

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jscyril/noor_player/api"
	"github.com/samber/lo"
)

// ScanReport is the outcome of a full directory scan
type ScanReport struct {
	Tracks   []api.Track
	Errors   []error
	Paths    []string
	Started  time.Time
	Finished time.Time
}

// Collect runs a scan to completion and gathers its results, sorted by
// display name. Per-file failures are reported, not returned.
func Collect(ctx context.Context, s *Scanner, paths []string) (*ScanReport, error) {
	report := &ScanReport{Paths: paths, Started: time.Now()}
	tracks, errs := s.Scan(ctx, paths)

	for tracks != nil || errs != nil {
		select {
		case t, ok := <-tracks:
			if !ok {
				tracks = nil
				continue
			}
			report.Tracks = append(report.Tracks, t)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			report.Errors = append(report.Errors, err)
		}
	}
	report.Finished = time.Now()

	sort.SliceStable(report.Tracks, func(i, j int) bool {
		return strings.ToLower(report.Tracks[i].Name) < strings.ToLower(report.Tracks[j].Name)
	})

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Search returns the tracks whose name, or stream URL, contains query,
// ignoring case. Name matches come first; order is otherwise kept. An empty query
// matches everything.
func Search(tracks []api.Track, query string) []api.Track {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return tracks
	}
	byName := func(t api.Track) bool { return strings.Contains(strings.ToLower(t.Name), query) }

	results := lo.Filter(tracks, func(t api.Track, _ int) bool {
		return byName(t) || (t.Origin == api.OriginStreaming && strings.Contains(strings.ToLower(t.Locator), query))
	})
	sort.SliceStable(results, func(i, j int) bool {
		return byName(results[i]) && !byName(results[j])
	})
	return results
}
