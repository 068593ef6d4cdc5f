package audio

import "github.com/jscyril/noor_player/api"

// EndAction is what the engine does once the current track finishes
type EndAction int

const (
	EndStop    EndAction = iota // unload and go idle
	EndReplay                   // reload the same index from 0
	EndAdvance                  // load Index
)

func (a EndAction) String() string {
	switch a {
	case EndReplay:
		return "replay"
	case EndAdvance:
		return "advance"
	default:
		return "stop"
	}
}

// EndDecision is the outcome of DecideOnEnd. Index is -1 for EndStop.
type EndDecision struct {
	Action EndAction
	Index  int
}

// DecideOnEnd maps (repeat mode, ended index, queue length) to the next step:
//
//	repeat  position      action
//	one     any           replay index
//	all     not last      advance index+1
//	all     last          advance 0
//	none    not last      advance index+1
//	none    last          stop
//
// An index outside the queue always stops.
func DecideOnEnd(repeat api.RepeatMode, index, length int) EndDecision {
	if length <= 0 || index < 0 || index >= length {
		return EndDecision{Action: EndStop, Index: -1}
	}
	switch repeat {
	case api.RepeatOne:
		return EndDecision{Action: EndReplay, Index: index}
	case api.RepeatAll:
		return EndDecision{Action: EndAdvance, Index: (index + 1) % length}
	default:
		if index+1 < length {
			return EndDecision{Action: EndAdvance, Index: index + 1}
		}
		return EndDecision{Action: EndStop, Index: -1}
	}
}

// nextIndex is the target of a user-initiated skip forward. Repeat one
// doesn't pin a manual skip to the same track.
func nextIndex(repeat api.RepeatMode, index, length int) (int, bool) {
	if repeat == api.RepeatOne {
		repeat = api.RepeatAll
	}
	d := DecideOnEnd(repeat, index, length)
	return d.Index, d.Action == EndAdvance
}

// previousIndex is the target of a skip back; it wraps only with repeat all
func previousIndex(repeat api.RepeatMode, index, length int) (int, bool) {
	if length <= 0 || index < 0 || index >= length {
		return -1, false
	}
	if index > 0 {
		return index - 1, true
	}
	if repeat == api.RepeatAll {
		return length - 1, true
	}
	return -1, false
}
