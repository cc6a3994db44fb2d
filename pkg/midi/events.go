// Package midi is the host-native MIDI event model: typed events tagged
// with a target bus and an intra-block sample offset, plus the bounded
// per-block buffer the audio graph hands to a plugin instance.
package midi

import (
	"fmt"
)

type EventType uint8

const (
	EventTypeNoteOff EventType = iota
	EventTypeNoteOn
	EventTypeControlChange
	EventTypePitchBend
	EventTypeProgramChange
	EventTypeAfterTouch
	EventTypeRaw
)

// Event is one timestamped MIDI event. SampleOffset is the position
// within the current block; Bus selects the plugin event bus it targets.
type Event interface {
	Type() EventType
	Channel() uint8
	Bus() int32
	SampleOffset() int32
	String() string
}

type BaseEvent struct {
	EventChannel uint8
	BusIndex     int32
	Offset       int32
}

func (e BaseEvent) Channel() uint8 {
	return e.EventChannel
}

func (e BaseEvent) Bus() int32 {
	return e.BusIndex
}

func (e BaseEvent) SampleOffset() int32 {
	return e.Offset
}

type NoteOnEvent struct {
	BaseEvent
	NoteNumber uint8
	Velocity   uint8
}

func (e NoteOnEvent) Type() EventType {
	return EventTypeNoteOn
}

func (e NoteOnEvent) String() string {
	return fmt.Sprintf("NoteOn{bus:%d, ch:%d, note:%d, vel:%d, offset:%d}",
		e.BusIndex, e.EventChannel, e.NoteNumber, e.Velocity, e.Offset)
}

type NoteOffEvent struct {
	BaseEvent
	NoteNumber uint8
	Velocity   uint8
}

func (e NoteOffEvent) Type() EventType {
	return EventTypeNoteOff
}

func (e NoteOffEvent) String() string {
	return fmt.Sprintf("NoteOff{bus:%d, ch:%d, note:%d, vel:%d, offset:%d}",
		e.BusIndex, e.EventChannel, e.NoteNumber, e.Velocity, e.Offset)
}

type ControlChangeEvent struct {
	BaseEvent
	Controller uint8
	Value      uint8
}

func (e ControlChangeEvent) Type() EventType {
	return EventTypeControlChange
}

func (e ControlChangeEvent) String() string {
	return fmt.Sprintf("CC{bus:%d, ch:%d, ctrl:%d, val:%d, offset:%d}",
		e.BusIndex, e.EventChannel, e.Controller, e.Value, e.Offset)
}

const (
	CCModWheel    uint8 = 1
	CCVolume      uint8 = 7
	CCPan         uint8 = 10
	CCExpression  uint8 = 11
	CCSustain     uint8 = 64
	CCAllSoundOff uint8 = 120
	CCAllNotesOff uint8 = 123
)

type PitchBendEvent struct {
	BaseEvent
	Value int16 // -8192 to 8191, 0 is center
}

func (e PitchBendEvent) Type() EventType {
	return EventTypePitchBend
}

func (e PitchBendEvent) String() string {
	return fmt.Sprintf("PitchBend{bus:%d, ch:%d, val:%d, offset:%d}",
		e.BusIndex, e.EventChannel, e.Value, e.Offset)
}

type ProgramChangeEvent struct {
	BaseEvent
	Program uint8
}

func (e ProgramChangeEvent) Type() EventType {
	return EventTypeProgramChange
}

func (e ProgramChangeEvent) String() string {
	return fmt.Sprintf("ProgramChange{bus:%d, ch:%d, prog:%d, offset:%d}",
		e.BusIndex, e.EventChannel, e.Program, e.Offset)
}

// AfterTouchEvent is channel pressure.
type AfterTouchEvent struct {
	BaseEvent
	Pressure uint8
}

func (e AfterTouchEvent) Type() EventType {
	return EventTypeAfterTouch
}

func (e AfterTouchEvent) String() string {
	return fmt.Sprintf("AfterTouch{bus:%d, ch:%d, pressure:%d, offset:%d}",
		e.BusIndex, e.EventChannel, e.Pressure, e.Offset)
}

// RawEvent carries MIDI bytes the host does not interpret (sysex and
// anything else the typed events do not cover). The bytes pass through
// the plugin boundary unchanged.
type RawEvent struct {
	BaseEvent
	Data []byte
}

func (e RawEvent) Type() EventType {
	return EventTypeRaw
}

func (e RawEvent) String() string {
	return fmt.Sprintf("Raw{bus:%d, len:%d, offset:%d}", e.BusIndex, len(e.Data), e.Offset)
}
