package midi

import "errors"

// ErrBufferFull is returned by Add when the buffer is at capacity.
var ErrBufferFull = errors.New("midi: event buffer full")

// Record is one event in flat form. The per-block paths traffic in
// records rather than Event values because boxing a concrete event
// into the interface allocates, and the drain side runs on the audio
// thread. Only the fields belonging to the record's Type are
// meaningful.
type Record struct {
	Type       EventType
	Channel    uint8
	Bus        int32
	Offset     int32
	Note       uint8
	Velocity   uint8
	Controller uint8
	Value      uint8
	Program    uint8
	Pressure   uint8
	Bend       int16
	Data       []byte
}

// RecordOf flattens a typed event into a record.
func RecordOf(ev Event) Record {
	r := Record{
		Type:    ev.Type(),
		Channel: ev.Channel(),
		Bus:     ev.Bus(),
		Offset:  ev.SampleOffset(),
	}
	switch e := ev.(type) {
	case NoteOnEvent:
		r.Note, r.Velocity = e.NoteNumber, e.Velocity
	case NoteOffEvent:
		r.Note, r.Velocity = e.NoteNumber, e.Velocity
	case ControlChangeEvent:
		r.Controller, r.Value = e.Controller, e.Value
	case PitchBendEvent:
		r.Bend = e.Value
	case ProgramChangeEvent:
		r.Program = e.Program
	case AfterTouchEvent:
		r.Pressure = e.Pressure
	case RawEvent:
		r.Data = e.Data
	}
	return r
}

// Event materializes the record as a typed event. This boxes, so it is
// for the control thread, not the block path.
func (r Record) Event() Event {
	base := BaseEvent{EventChannel: r.Channel, BusIndex: r.Bus, Offset: r.Offset}
	switch r.Type {
	case EventTypeNoteOn:
		return NoteOnEvent{BaseEvent: base, NoteNumber: r.Note, Velocity: r.Velocity}
	case EventTypeNoteOff:
		return NoteOffEvent{BaseEvent: base, NoteNumber: r.Note, Velocity: r.Velocity}
	case EventTypeControlChange:
		return ControlChangeEvent{BaseEvent: base, Controller: r.Controller, Value: r.Value}
	case EventTypePitchBend:
		return PitchBendEvent{BaseEvent: base, Value: r.Bend}
	case EventTypeProgramChange:
		return ProgramChangeEvent{BaseEvent: base, Program: r.Program}
	case EventTypeAfterTouch:
		return AfterTouchEvent{BaseEvent: base, Pressure: r.Pressure}
	}
	return RawEvent{BaseEvent: base, Data: r.Data}
}

// Buffer collects the events for one audio block as flat records.
// Capacity is fixed at construction so Add never allocates; when the
// block overflows the extra events are rejected rather than grown into.
//
// Callers append events in nondecreasing sample-offset order. The
// buffer does not sort.
type Buffer struct {
	records []Record
}

// NewBuffer returns a buffer that holds at most capacity events.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{records: make([]Record, 0, capacity)}
}

// Add appends a record. Returns ErrBufferFull when at capacity.
func (b *Buffer) Add(r Record) error {
	if len(b.records) == cap(b.records) {
		return ErrBufferFull
	}
	b.records = append(b.records, r)
	return nil
}

// AddEvent flattens and appends a typed event.
func (b *Buffer) AddEvent(ev Event) error {
	return b.Add(RecordOf(ev))
}

// Records returns the buffered records. The slice aliases internal
// storage and is invalidated by Clear.
func (b *Buffer) Records() []Record {
	return b.records
}

// Events materializes the buffered records as typed events. It
// allocates; block-path callers use Records.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.records))
	for i := range b.records {
		out[i] = b.records[i].Event()
	}
	return out
}

func (b *Buffer) Len() int {
	return len(b.records)
}

func (b *Buffer) Cap() int {
	return cap(b.records)
}

// Clear empties the buffer, keeping capacity.
func (b *Buffer) Clear() {
	b.records = b.records[:0]
}
