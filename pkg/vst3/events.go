package vst3

import "fmt"

// The plugin's own event representation is an opaque tagged union behind
// the binary interface. The host never reinterprets that memory; it
// exchanges events through this explicit variant type, and the native
// binding copies field by field in both directions.

// EventKind tags the active variant of an Event.
type EventKind uint8

const (
	// EventNoteOn starts a note.
	EventNoteOn EventKind = iota
	// EventNoteOff ends a note.
	EventNoteOff
	// EventController is a continuous-controller change.
	EventController
	// EventData carries raw MIDI bytes through unchanged.
	EventData
)

func (k EventKind) String() string {
	switch k {
	case EventNoteOn:
		return "note-on"
	case EventNoteOff:
		return "note-off"
	case EventController:
		return "controller"
	case EventData:
		return "data"
	default:
		return "unknown"
	}
}

// Event is one timestamped event heading into or out of a process call.
// BusIndex selects the target event bus; SampleOffset is the position
// within the current block and must be non-decreasing within a list.
type Event struct {
	Kind         EventKind
	BusIndex     int32
	SampleOffset int32

	// Note payload (EventNoteOn, EventNoteOff).
	Channel  int16
	Pitch    int16
	Velocity float32

	// Controller payload (EventController).
	Controller uint8
	CCValue    uint8
	CCValue2   uint8

	// Raw payload (EventData). The slice is only valid for the duration
	// of the block that carries it.
	Data []byte
}

func (e Event) String() string {
	switch e.Kind {
	case EventNoteOn, EventNoteOff:
		return fmt.Sprintf("%s{bus:%d off:%d ch:%d pitch:%d vel:%.2f}",
			e.Kind, e.BusIndex, e.SampleOffset, e.Channel, e.Pitch, e.Velocity)
	case EventController:
		return fmt.Sprintf("controller{bus:%d off:%d ch:%d cc:%d val:%d}",
			e.BusIndex, e.SampleOffset, e.Channel, e.Controller, e.CCValue)
	default:
		return fmt.Sprintf("data{bus:%d off:%d len:%d}", e.BusIndex, e.SampleOffset, len(e.Data))
	}
}

// EventList is a bounded event sequence attached to a process call. The
// backing array is sized once; Append never grows it, so steady-state
// processing stays allocation free.
type EventList struct {
	events []Event
}

// NewEventList pre-sizes a list for at most capacity events per block.
func NewEventList(capacity int) *EventList {
	return &EventList{events: make([]Event, 0, capacity)}
}

// Append adds an event, failing with ErrEventListFull at capacity.
func (l *EventList) Append(ev Event) error {
	if len(l.events) == cap(l.events) {
		return ErrEventListFull
	}
	l.events = append(l.events, ev)
	return nil
}

// Count returns the number of events in the list.
func (l *EventList) Count() int32 {
	return int32(len(l.events))
}

// At returns the event at index. Index must be in [0, Count).
func (l *EventList) At(index int32) Event {
	return l.events[index]
}

// Clear resets the list for the next block without releasing storage.
func (l *EventList) Clear() {
	l.events = l.events[:0]
}
