// Package session wires one user's player together. Everything that used
// to be process-wide state lives on a Session value, so tests and the CLI
// can build as many as they need.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/faiface/beep"
	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/audio"
	"github.com/jscyril/noor_player/internal/catalog"
	"github.com/jscyril/noor_player/internal/config"
	"github.com/jscyril/noor_player/internal/library"
	"github.com/jscyril/noor_player/internal/mediacache"
	"github.com/jscyril/noor_player/internal/playlist"
	"github.com/jscyril/noor_player/internal/provider/youtube"
	"github.com/jscyril/noor_player/internal/store"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"github.com/jscyril/noor_player/pkg/events"
	"github.com/jscyril/noor_player/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const speakerRate = beep.SampleRate(44100)

// Deps overrides the external pieces a session would otherwise build
// from config. Zero values mean "build from config".
type Deps struct {
	Store    store.Store
	Media    mediacache.Cache
	Provider catalog.Provider
	Local    audio.Backend
	Stream   audio.Backend
}

// Session owns the queue, playlists, favorites and playback engine of one
// user, plus the storage they persist to.
type Session struct {
	Config    *config.Config
	Log       *zap.Logger
	Bus       *events.EventBus
	Store     store.Store
	Media     mediacache.Cache
	Catalog   *catalog.Catalog
	Queue     *playlist.Queue
	Favorites *playlist.Favorites
	Playlists *playlist.Manager
	Engine    *audio.Engine
	Scanner   *library.Scanner

	writer *store.Writer
	stream audio.Backend
}

// New builds a session. Persisted state is not read until Load.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, deps Deps) (*Session, error) {
	log = logger.OrNop(log)
	s := &Session{Config: cfg, Log: log, Bus: events.NewEventBus()}

	var err error
	s.Store = deps.Store
	if s.Store == nil {
		if s.Store, err = store.Open(ctx, cfg, log.Named("store")); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	s.Media = deps.Media
	if s.Media == nil {
		if s.Media, err = openMediaCache(ctx, cfg, log.Named("media")); err != nil {
			s.Store.Close()
			return nil, fmt.Errorf("open media cache: %w", err)
		}
	}

	provider := deps.Provider
	if provider == nil && cfg.YouTube.APIKey != "" {
		provider = youtube.NewClient(youtube.Options{
			APIKey:  cfg.YouTube.APIKey,
			BaseURL: cfg.YouTube.BaseURL,
			Timeout: cfg.YouTube.Timeout.Std(),
			Retries: cfg.YouTube.Retries,
			Region:  cfg.YouTube.Region,
		}, log.Named("youtube"))
	}
	if provider == nil {
		log.Warn("no youtube api key configured, streaming sources are disabled")
	}

	s.writer = store.NewWriter(store.WriterOptions{
		Retries: cfg.Store.WriteRetries,
		Backoff: cfg.Store.RetryBackoff.Std(),
		OnFailure: func(key string, err error) {
			s.Bus.Publish(api.Event{Type: api.EventNotice, Payload: api.Notice{
				Message: "Couldn't save your changes",
				Err:     err,
			}})
		},
	}, log.Named("writer"))
	persist := store.NewSync(s.Store, s.writer)

	s.Catalog = catalog.New(provider, s.Media, log.Named("catalog"))
	s.Queue = playlist.NewQueue(persist, s.Bus)
	s.Favorites = playlist.NewFavorites(persist)
	s.Playlists = playlist.NewManager(playlist.ManagerOptions{
		Queue:     s.Queue,
		Favorites: s.Favorites,
		Catalog:   s.Catalog,
		Persister: persist,
		Bus:       s.Bus,
		Log:       log.Named("playlists"),
	})
	s.Scanner = library.NewScanner(s.Catalog, 4, log.Named("library"))

	local := deps.Local
	if local == nil {
		local = audio.NewLocalBackend(audio.NewSpeakerSink(speakerRate), log.Named("local"))
	}
	s.stream = deps.Stream
	if s.stream == nil {
		s.stream = audio.NewStreamBackend(audio.StreamOptions{
			Path:   cfg.Player.MPVPath,
			Socket: cfg.Player.MPVSocket,
		}, log.Named("stream"))
	}

	s.Engine = audio.NewEngine(audio.EngineOptions{
		Queue:        s.Queue,
		Media:        s.Media,
		Local:        local,
		Stream:       s.stream,
		Bus:          s.Bus,
		Log:          log.Named("engine"),
		TickInterval: cfg.Player.TickInterval.Std(),
		Volume:       cfg.Player.DefaultVolume,
	})
	s.Queue.OnCurrentRemoved(func(removed api.Track) {
		s.Engine.CurrentRemoved(context.Background(), removed)
	})

	return s, nil
}

func openMediaCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (mediacache.Cache, error) {
	switch cfg.MediaCache.Backend {
	case "", "fs":
		return mediacache.NewFSCache(cfg.MediaDir(), log)
	case "minio":
		return mediacache.NewMinioCache(ctx, mediacache.MinioConfig{
			Endpoint:  cfg.MediaCache.MinioEndpoint,
			AccessKey: cfg.MediaCache.MinioAccessKey,
			SecretKey: cfg.MediaCache.MinioSecretKey,
			Bucket:    cfg.MediaCache.MinioBucket,
			UseSSL:    cfg.MediaCache.MinioUseSSL,
		}, log)
	default:
		return nil, fmt.Errorf("unknown media cache backend %q", cfg.MediaCache.Backend)
	}
}

// Load restores the queue, playlists and favorites concurrently. A
// missing document is a fresh start, not an error.
func (s *Session) Load(ctx context.Context) error {
	var (
		queue     store.QueueDoc
		playlists []api.Playlist
		favorites []string
	)
	queue.CurrentIndex = -1

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.Store.LoadQueue(gctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load queue: %w", err)
		}
		if err == nil {
			queue = doc
		}
		return nil
	})
	g.Go(func() error {
		list, err := s.Store.LoadPlaylists(gctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load playlists: %w", err)
		}
		playlists = list
		return nil
	})
	g.Go(func() error {
		ids, err := s.Store.LoadFavorites(gctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load favorites: %w", err)
		}
		favorites = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.Queue.Restore(queue)
	s.Playlists.Restore(playlists)
	s.Favorites.Restore(favorites)

	s.Log.Info("session restored",
		zap.Int("queued", s.Queue.Len()),
		zap.Int("playlists", len(playlists)),
		zap.Int("favorites", s.Favorites.Len()))
	return nil
}

// Resolve turns a user-supplied source into a track: an existing audio
// file is imported into the media cache, anything else is treated as a
// streaming locator.
func (s *Session) Resolve(ctx context.Context, source string) (api.Track, error) {
	if info, err := os.Stat(source); err == nil && !info.IsDir() {
		return s.Scanner.ImportFile(ctx, source)
	}
	return s.Catalog.FromExternalSource(ctx, source)
}

// Enqueue resolves a source and appends it to the queue
func (s *Session) Enqueue(ctx context.Context, source string) (api.Track, error) {
	track, err := s.Resolve(ctx, source)
	if err != nil {
		return api.Track{}, err
	}
	return track, s.AddResolved(ctx, "", track)
}

// AddResolved puts a freshly resolved track in the queue, or in the
// playlist playlistID when one is given. When the list rejects it, media
// cached for it during import is dropped again.
func (s *Session) AddResolved(ctx context.Context, playlistID string, track api.Track) error {
	var err error
	if playlistID == "" {
		err = s.Queue.Enqueue(track)
	} else {
		err = s.Playlists.AddTrack(playlistID, track)
	}
	if err != nil {
		s.discardMedia(ctx, track)
	}
	return err
}

// discardMedia deletes the cached copy of a local track nothing refers to
func (s *Session) discardMedia(ctx context.Context, track api.Track) {
	if track.Origin != api.OriginLocal || track.Locator == "" {
		return
	}
	for _, t := range s.Playlists.AllKnownTracks() {
		if t.ID == track.ID || (t.Origin == api.OriginLocal && t.Locator == track.Locator) {
			return
		}
	}
	if err := s.Media.Delete(ctx, track.Locator); err != nil && !errors.Is(err, mediacache.ErrNotFound) {
		s.Log.Warn("drop cached media", zap.String("cache_key", track.Locator), zap.Error(err))
		return
	}
	s.Log.Debug("dropped cached media of rejected track",
		zap.String("track", track.Name), zap.String("cache_key", track.Locator))
}

// ToggleFavorite flips a track's favorite state. Only tracks the session
// knows about can be starred.
func (s *Session) ToggleFavorite(trackID string) (bool, error) {
	if !s.Favorites.Contains(trackID) && !s.known(trackID) {
		return false, fmt.Errorf("%w: %s", playerrors.ErrTrackNotFound, trackID)
	}
	return s.Favorites.Toggle(trackID), nil
}

func (s *Session) known(trackID string) bool {
	for _, t := range s.Playlists.AllKnownTracks() {
		if t.ID == trackID {
			return true
		}
	}
	return false
}

// Flush waits for pending writes to reach the store
func (s *Session) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// Close stops playback, drains pending writes and releases the store
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if err := s.Engine.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop engine: %w", err))
	}
	if c, ok := s.stream.(interface{ Close(context.Context) error }); ok {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close stream backend: %w", err))
		}
	}
	if n := s.writer.Pending(); n > 0 {
		s.Log.Debug("flushing pending writes", zap.Int("pending", n))
	}
	if err := s.writer.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush writes: %w", err))
	}
	s.writer.Close()
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.Bus.Close()
	return errors.Join(errs...)
}
