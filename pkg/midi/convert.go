package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// FromMessage converts a wire-format MIDI message into a typed event
// tagged with the given bus and sample offset. Messages with no typed
// representation come back as RawEvent so nothing is dropped.
func FromMessage(msg gomidi.Message, bus, offset int32) Event {
	base := BaseEvent{BusIndex: bus, Offset: offset}

	var ch, key, vel uint8
	if msg.GetNoteStart(&ch, &key, &vel) {
		base.EventChannel = ch
		return NoteOnEvent{BaseEvent: base, NoteNumber: key, Velocity: vel}
	}
	if msg.GetNoteEnd(&ch, &key) {
		base.EventChannel = ch
		return NoteOffEvent{BaseEvent: base, NoteNumber: key}
	}

	var ctrl, val uint8
	if msg.GetControlChange(&ch, &ctrl, &val) {
		base.EventChannel = ch
		return ControlChangeEvent{BaseEvent: base, Controller: ctrl, Value: val}
	}

	var rel int16
	var abs uint16
	if msg.GetPitchBend(&ch, &rel, &abs) {
		base.EventChannel = ch
		return PitchBendEvent{BaseEvent: base, Value: rel}
	}

	var prog uint8
	if msg.GetProgramChange(&ch, &prog) {
		base.EventChannel = ch
		return ProgramChangeEvent{BaseEvent: base, Program: prog}
	}

	var pressure uint8
	if msg.GetAfterTouch(&ch, &pressure) {
		base.EventChannel = ch
		return AfterTouchEvent{BaseEvent: base, Pressure: pressure}
	}

	return RawEvent{BaseEvent: base, Data: msg.Bytes()}
}

// ToMessage converts a typed event back to wire format. RawEvent bytes
// pass through unchanged. The second return is false only for event
// types that have no wire form.
func ToMessage(ev Event) (gomidi.Message, bool) {
	switch e := ev.(type) {
	case NoteOnEvent:
		return gomidi.NoteOn(e.EventChannel, e.NoteNumber, e.Velocity), true
	case NoteOffEvent:
		return gomidi.NoteOff(e.EventChannel, e.NoteNumber), true
	case ControlChangeEvent:
		return gomidi.ControlChange(e.EventChannel, e.Controller, e.Value), true
	case PitchBendEvent:
		return gomidi.Pitchbend(e.EventChannel, e.Value), true
	case ProgramChangeEvent:
		return gomidi.ProgramChange(e.EventChannel, e.Program), true
	case AfterTouchEvent:
		return gomidi.AfterTouch(e.EventChannel, e.Pressure), true
	case RawEvent:
		return gomidi.Message(e.Data), true
	default:
		return nil, false
	}
}
