package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// bad input, user-correctable
	ErrInvalidSource     = errors.New("invalid source")
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// external dependency failures
	ErrMetadataFetch = errors.New("metadata fetch failed")
	ErrImport        = errors.New("import failed")

	// policy violations
	ErrDuplicateTrack    = errors.New("duplicate track")
	ErrDuplicateName     = errors.New("playlist name already exists")
	ErrInvalidName       = errors.New("playlist name is required")
	ErrProtectedPlaylist = errors.New("playlist is protected")

	ErrTrackUnavailable = errors.New("track unavailable")
	ErrTrackNotFound    = errors.New("track not found")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrNotFound         = errors.New("not found")
	ErrPlaybackFailed   = errors.New("playback failed")
	ErrEmptyQueue       = errors.New("playback queue is empty")
	ErrInvalidVolume    = errors.New("volume must be between 0 and 100")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrLoadSuperseded   = errors.New("load superseded by a newer track")
	ErrNothingLoaded    = errors.New("no track is loaded")
)

// PlayerError wraps errors with additional context
type PlayerError struct {
	Op    string // Operation that failed
	Track string // Track ID if applicable
	Err   error  // Underlying error
}

func (e *PlayerError) Error() string {
	if e.Track != "" {
		return fmt.Sprintf("%s failed for track %s: %v", e.Op, e.Track, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// NewPlayerError creates a new PlayerError
func NewPlayerError(op, track string, err error) *PlayerError {
	return &PlayerError{Op: op, Track: track, Err: err}
}

// DuplicateTrackError reports a track that already exists in a list
type DuplicateTrackError struct {
	Name  string // display name of the rejected track
	Where string // "the queue" or a playlist name
}

func (e *DuplicateTrackError) Error() string {
	return fmt.Sprintf("%q is already in %s", e.Name, e.Where)
}

func (e *DuplicateTrackError) Unwrap() error {
	return ErrDuplicateTrack
}

// ScanError represents an error during library scanning
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan error at %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Severity says how an error should be presented
type Severity int

const (
	SeverityInline      Severity = iota // validation or policy, shown next to the input
	SeverityDismissible                 // external failure, shown as a dismissible notification
	SeverityNotice                      // non-modal notice, playback continues
	SeverityLogOnly                     // background failure, never shown
)

// Classify maps an error onto its presentation severity
func Classify(err error) Severity {
	switch {
	case errors.Is(err, ErrInvalidSource),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrDuplicateTrack),
		errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrProtectedPlaylist):
		return SeverityInline
	case errors.Is(err, ErrMetadataFetch), errors.Is(err, ErrImport):
		return SeverityDismissible
	case errors.Is(err, ErrTrackUnavailable), errors.Is(err, ErrPlaybackFailed):
		return SeverityNotice
	default:
		return SeverityLogOnly
	}
}
