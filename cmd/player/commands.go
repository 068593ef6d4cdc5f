package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/library"
	"github.com/jscyril/noor_player/internal/ui"
	"github.com/jscyril/noor_player/internal/ui/components"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Open the terminal player",
	Args:  cobra.NoArgs,
	RunE:  runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, false)
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := ui.Run(s); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <link|file>...",
	Short: "Add YouTube links or audio files to the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer closeSession(s)

		var failed int
		for _, src := range args {
			track, err := s.Enqueue(ctx, src)
			var dup *playerrors.DuplicateTrackError
			switch {
			case errors.As(err, &dup):
				fmt.Printf("skipped  %s (%v)\n", src, dup)
			case err != nil:
				failed++
				fmt.Fprintf(os.Stderr, "failed   %s: %v\n", src, err)
			default:
				fmt.Printf("queued   %s  %s\n", track.Name, track.ID)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sources could not be added", failed, len(args))
		}
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the playback queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer closeSession(s)

		clear, _ := cmd.Flags().GetBool("clear")
		if clear {
			s.Queue.Clear()
			fmt.Println("queue cleared")
			return nil
		}

		tracks := s.Queue.Tracks()
		if len(tracks) == 0 {
			fmt.Println("the queue is empty")
			return nil
		}
		printTracks(tracks, s.Queue.Index(), s.Favorites.Contains)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <playlist-link>",
	Short: "Import a YouTube playlist as a new playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer closeSession(s)

		p, err := s.Playlists.ImportFromExternalSource(ctx, args[0], func(pr api.ImportProgress) {
			fmt.Printf("\rimporting %d/%d", pr.Current, pr.Total)
		})
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("imported %q: %d tracks\n", p.Name, len(p.Tracks))
		return nil
	},
}

var playlistsCmd = &cobra.Command{
	Use:   "playlists [id]",
	Short: "List playlists, or the tracks of one playlist",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer closeSession(s)

		if len(args) == 1 {
			p, err := s.Playlists.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", p.Name, p.Type)
			printTracks(p.Tracks, -1, s.Favorites.Contains)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tTRACKS")
		for _, p := range s.Playlists.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Type, len(p.Tracks))
		}
		return w.Flush()
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <track-id>",
	Short: "Star or unstar a track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer closeSession(s)

		on, err := s.ToggleFavorite(args[0])
		if err != nil {
			return err
		}
		if on {
			fmt.Println("added to favorites")
		} else {
			fmt.Println("removed from favorites")
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <dir>...",
	Short: "Import every supported audio file under the given directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer closeSession(s)

		target, _ := cmd.Flags().GetString("playlist")
		report, err := library.Collect(ctx, s.Scanner, args)
		if err != nil {
			return err
		}
		for _, e := range report.Errors {
			fmt.Fprintf(os.Stderr, "skipped: %v\n", e)
		}

		added := 0
		for _, t := range report.Tracks {
			if err := s.AddResolved(ctx, target, t); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				continue
			}
			added++
		}
		fmt.Printf("found %d files, added %d in %s\n",
			len(report.Tracks), added, report.Finished.Sub(report.Started).Round(1e6))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>...",
	Short: "Queue audio files as they appear in the given directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer closeSession(s)

		target, _ := cmd.Flags().GetString("playlist")
		w := library.NewWatcher(s.Scanner, library.WatchOptions{
			OnTrack: func(t api.Track) {
				if err := s.AddResolved(ctx, target, t); err != nil {
					s.Log.Warn("add watched track", zap.String("track", t.Name), zap.Error(err))
					fmt.Fprintf(os.Stderr, "%v\n", err)
					return
				}
				fmt.Printf("added %s\n", t.Name)
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			},
		}, s.Log.Named("watch"))

		fmt.Printf("watching %s, press Ctrl+C to stop\n", strings.Join(args, ", "))
		return w.Run(ctx, args)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find tracks in the queue and every playlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer closeSession(s)

		known := lo.UniqBy(s.Playlists.AllKnownTracks(), func(t api.Track) string { return t.ID })
		found := library.Search(known, strings.Join(args, " "))
		if len(found) == 0 {
			fmt.Println("no tracks match")
			return nil
		}
		printTracks(found, -1, s.Favorites.Contains)
		return nil
	},
}

func printTracks(tracks []api.Track, current int, starred func(string) bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\t#\tNAME\tLENGTH\tSOURCE\tID")
	for i, t := range tracks {
		mark := ""
		if i == current {
			mark = "▶"
		}
		if starred(t.ID) {
			mark += "★"
		}
		length := "--:--"
		if t.DurationSeconds > 0 {
			length = components.FormatDuration(t.Duration())
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", mark, i+1, t.Name, length, t.Origin, t.ID)
	}
	w.Flush()
}

func init() {
	queueCmd.Flags().Bool("clear", false, "remove every entry from the queue")
	scanCmd.Flags().String("playlist", "", "add tracks to this playlist id instead of the queue")
	watchCmd.Flags().String("playlist", "", "add tracks to this playlist id instead of the queue")

	rootCmd.AddCommand(playCmd, enqueueCmd, queueCmd, importCmd, playlistsCmd, favoriteCmd, searchCmd, scanCmd, watchCmd)
}
