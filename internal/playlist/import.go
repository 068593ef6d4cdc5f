package playlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/catalog"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"go.uber.org/zap"
)

// maxImportPages bounds pagination against a provider that never stops
// returning page tokens
const maxImportPages = 200

// ProgressFunc receives import progress. Current counts every processed
// item, skipped ones included, so it reaches Total on completion.
type ProgressFunc func(api.ImportProgress)

// ImportFromExternalSource creates an imported-external playlist from a
// provider playlist URL. Private and unavailable items are skipped; the
// import only fails when nothing importable is left.
func (m *Manager) ImportFromExternalSource(ctx context.Context, locator string, progress ProgressFunc) (*api.Playlist, error) {
	sourceID, err := catalog.ParsePlaylistID(locator)
	if err != nil {
		return nil, err
	}
	if m.catalog == nil || m.catalog.Provider() == nil {
		return nil, fmt.Errorf("%w: no streaming provider configured", playerrors.ErrImport)
	}
	provider := m.catalog.Provider()

	meta, err := provider.ResolvePlaylist(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", playerrors.ErrImport, err)
	}

	log := m.log.With(zap.String("source_id", sourceID))
	log.Info("import started", zap.String("title", meta.Title), zap.Int("item_count", meta.ItemCount))

	total := meta.ItemCount
	processed, skipped := 0, 0
	var tracks []api.Track

	report := func() {
		p := api.ImportProgress{SourceID: sourceID, Current: processed, Total: total}
		if progress != nil {
			progress(p)
		}
		m.bus.Publish(api.Event{Type: api.EventImportProgress, Payload: p})
	}
	report()

	token := ""
	for page := 0; page < maxImportPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", playerrors.ErrImport, err)
		}

		items, err := provider.ListPlaylistItems(ctx, sourceID, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", playerrors.ErrImport, err)
		}

		ids := make([]string, 0, len(items.Items))
		for _, ref := range items.Items {
			if !ref.Private && ref.VideoID != "" {
				ids = append(ids, ref.VideoID)
			}
		}
		var metas map[string]catalog.ItemMeta
		if len(ids) > 0 {
			metas, err = provider.ResolveItems(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", playerrors.ErrImport, err)
			}
		}

		for _, ref := range items.Items {
			processed++
			if processed > total {
				total = processed
			}

			item, ok := metas[ref.VideoID]
			switch {
			case ref.Private || !ok || !item.Available:
				skipped++
				log.Debug("import item skipped", zap.String("video_id", ref.VideoID), zap.String("reason", item.Reason))
			default:
				t := m.catalog.TrackFromMeta(item)
				if catalog.FindDuplicate(tracks, t) >= 0 {
					skipped++
				} else {
					tracks = append(tracks, t)
				}
			}
			report()
		}

		token = items.NextPageToken
		if token == "" {
			break
		}
	}

	// itemCount can overstate what the listing returns
	if total != processed {
		total = processed
		report()
	}

	if len(tracks) == 0 {
		log.Warn("import produced no tracks", zap.Int("skipped", skipped))
		return nil, fmt.Errorf("%w: no importable items in %s", playerrors.ErrImport, sourceID)
	}

	base := strings.TrimSpace(meta.Title)
	if base == "" {
		base = "Imported playlist"
	}
	m.mu.Lock()
	name := m.uniqueNameLocked(base)
	m.mu.Unlock()

	p, err := m.create(name, api.PlaylistImported, sourceID, tracks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", playerrors.ErrImport, err)
	}
	log.Info("import finished", zap.String("playlist_id", p.ID), zap.Int("imported", len(tracks)), zap.Int("skipped", skipped))
	return p, nil
}
