package host

import (
	"github.com/justyntemme/vst3host/pkg/midi"
	"github.com/justyntemme/vst3host/pkg/vst3"
)

// Control numbers used for events that have no dedicated wire variant.
// These follow the legacy MIDI CC numbering plugins expect.
const (
	ctrlAfterTouch    uint8 = 128
	ctrlPitchBend     uint8 = 129
	ctrlProgramChange uint8 = 130
)

// EventBridge converts host MIDI events to the plugin's wire event
// format and back. Both lists are bounded at construction; overflow
// within a block drops events and counts them rather than allocating.
type EventBridge struct {
	in      *vst3.EventList
	out     *vst3.EventList
	dropped uint64
}

func NewEventBridge(capacity int) *EventBridge {
	return &EventBridge{
		in:  vst3.NewEventList(capacity),
		out: vst3.NewEventList(capacity),
	}
}

// LoadInput clears the input list and fills it from the given events,
// which must already be ordered by sample offset. Returns the number
// of events dropped for capacity.
func (b *EventBridge) LoadInput(events []midi.Event) int {
	b.in.Clear()
	b.out.Clear()
	dropped := 0
	for _, ev := range events {
		if err := b.in.Append(toWireEvent(ev)); err != nil {
			dropped++
		}
	}
	b.dropped += uint64(dropped)
	return dropped
}

// DrainOutput converts the plugin's output events into buf as flat
// records. Events that do not fit are dropped and counted. Runs on the
// audio thread and does not allocate.
func (b *EventBridge) DrainOutput(buf *midi.Buffer) int {
	dropped := 0
	for i := int32(0); i < b.out.Count(); i++ {
		rec, ok := recordFromWire(b.out.At(i))
		if !ok {
			continue
		}
		if err := buf.Add(rec); err != nil {
			dropped++
		}
	}
	b.dropped += uint64(dropped)
	return dropped
}

// Dropped reports the total events discarded for capacity since
// construction.
func (b *EventBridge) Dropped() uint64 {
	return b.dropped
}

func (b *EventBridge) Input() *vst3.EventList {
	return b.in
}

func (b *EventBridge) Output() *vst3.EventList {
	return b.out
}

// toWireEvent maps a typed host event onto the wire variant,
// field by field. Velocities become normalized floats; 14-bit pitch
// bend splits into LSB and MSB control values.
func toWireEvent(ev midi.Event) vst3.Event {
	w := vst3.Event{
		BusIndex:     ev.Bus(),
		SampleOffset: ev.SampleOffset(),
		Channel:      int16(ev.Channel()),
	}
	switch e := ev.(type) {
	case midi.NoteOnEvent:
		w.Kind = vst3.EventNoteOn
		w.Pitch = int16(e.NoteNumber)
		w.Velocity = float32(e.Velocity) / 127.0
	case midi.NoteOffEvent:
		w.Kind = vst3.EventNoteOff
		w.Pitch = int16(e.NoteNumber)
		w.Velocity = float32(e.Velocity) / 127.0
	case midi.ControlChangeEvent:
		w.Kind = vst3.EventController
		w.Controller = e.Controller
		w.CCValue = e.Value
	case midi.PitchBendEvent:
		u := uint16(int32(e.Value) + 8192)
		w.Kind = vst3.EventController
		w.Controller = ctrlPitchBend
		w.CCValue = uint8(u & 0x7F)
		w.CCValue2 = uint8((u >> 7) & 0x7F)
	case midi.ProgramChangeEvent:
		w.Kind = vst3.EventController
		w.Controller = ctrlProgramChange
		w.CCValue = e.Program
	case midi.AfterTouchEvent:
		w.Kind = vst3.EventController
		w.Controller = ctrlAfterTouch
		w.CCValue = e.Pressure
	case midi.RawEvent:
		w.Kind = vst3.EventData
		w.Data = e.Data
	}
	return w
}

// recordFromWire maps a wire event onto the flat host record without
// boxing. The raw Data slice is shared, not copied; the plugin's event
// list owns it until the next block.
func recordFromWire(w vst3.Event) (midi.Record, bool) {
	r := midi.Record{
		Channel: uint8(w.Channel),
		Bus:     w.BusIndex,
		Offset:  w.SampleOffset,
	}
	switch w.Kind {
	case vst3.EventNoteOn:
		r.Type = midi.EventTypeNoteOn
		r.Note = uint8(w.Pitch)
		r.Velocity = velocityByte(w.Velocity)
	case vst3.EventNoteOff:
		r.Type = midi.EventTypeNoteOff
		r.Note = uint8(w.Pitch)
		r.Velocity = velocityByte(w.Velocity)
	case vst3.EventController:
		switch w.Controller {
		case ctrlPitchBend:
			u := int32(w.CCValue) | int32(w.CCValue2)<<7
			r.Type = midi.EventTypePitchBend
			r.Bend = int16(u - 8192)
		case ctrlProgramChange:
			r.Type = midi.EventTypeProgramChange
			r.Program = w.CCValue
		case ctrlAfterTouch:
			r.Type = midi.EventTypeAfterTouch
			r.Pressure = w.CCValue
		default:
			r.Type = midi.EventTypeControlChange
			r.Controller = w.Controller
			r.Value = w.CCValue
		}
	case vst3.EventData:
		r.Type = midi.EventTypeRaw
		r.Data = w.Data
	default:
		return midi.Record{}, false
	}
	return r, true
}

func velocityByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 127
	}
	return uint8(v*127.0 + 0.5)
}
