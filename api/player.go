package api

import "time"

// Status is the playback engine state
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusEnded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// RepeatMode controls what happens when a track ends
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "none"
	}
}

// ParseRepeatMode accepts "none", "all" or "one"
func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch s {
	case "none", "":
		return RepeatNone, true
	case "all":
		return RepeatAll, true
	case "one":
		return RepeatOne, true
	}
	return RepeatNone, false
}

// PlaybackState is the transient session state owned by the engine.
// It is reset whenever the current track changes and never persisted.
type PlaybackState struct {
	Status   Status
	Track    *Track
	Index    int // queue index of Track, -1 when none
	Position float64
	Duration float64
	Playing  bool
	Rate     float64
	Volume   int // 0-100
	Muted    bool
	Repeat   RepeatMode
	Shuffle  bool
}

// Elapsed returns the position as a time.Duration
func (s PlaybackState) Elapsed() time.Duration {
	return time.Duration(s.Position * float64(time.Second))
}

// Total returns the duration as a time.Duration
func (s PlaybackState) Total() time.Duration {
	return time.Duration(s.Duration * float64(time.Second))
}

// EventType identifies what an Event carries
type EventType int

const (
	EventTrackStarted EventType = iota
	EventTrackEnded
	EventPositionUpdate
	EventError
	EventStateChange
	EventQueueChanged
	EventImportProgress
	EventNotice
)

// Event is published on the session event bus
type Event struct {
	Type    EventType
	Payload interface{}
}

// PositionUpdate is the payload of EventPositionUpdate
type PositionUpdate struct {
	TrackID  string
	Position float64
	Duration float64
}

// ImportProgress is the payload of EventImportProgress
type ImportProgress struct {
	SourceID string
	Current  int
	Total    int
}

// Notice is a non-modal message meant for the user
type Notice struct {
	Message string
	Err     error
}
