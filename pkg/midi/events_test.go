package midi

import (
	"strings"
	"testing"
)

func TestEventTypes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want EventType
	}{
		{"note on", NoteOnEvent{NoteNumber: 60, Velocity: 100}, EventTypeNoteOn},
		{"note off", NoteOffEvent{NoteNumber: 60}, EventTypeNoteOff},
		{"control change", ControlChangeEvent{Controller: CCVolume, Value: 90}, EventTypeControlChange},
		{"pitch bend", PitchBendEvent{Value: 1024}, EventTypePitchBend},
		{"program change", ProgramChangeEvent{Program: 5}, EventTypeProgramChange},
		{"raw", RawEvent{Data: []byte{0xF0, 0x7E, 0xF7}}, EventTypeRaw},
	}
	for _, tt := range tests {
		if got := tt.ev.Type(); got != tt.want {
			t.Errorf("%s: Type() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBaseEventAccessors(t *testing.T) {
	ev := NoteOnEvent{
		BaseEvent:  BaseEvent{EventChannel: 3, BusIndex: 1, Offset: 128},
		NoteNumber: 64,
		Velocity:   99,
	}
	if ev.Channel() != 3 {
		t.Errorf("Channel() = %d, want 3", ev.Channel())
	}
	if ev.Bus() != 1 {
		t.Errorf("Bus() = %d, want 1", ev.Bus())
	}
	if ev.SampleOffset() != 128 {
		t.Errorf("SampleOffset() = %d, want 128", ev.SampleOffset())
	}
}

func TestEventString(t *testing.T) {
	ev := ControlChangeEvent{
		BaseEvent:  BaseEvent{EventChannel: 0, BusIndex: 0, Offset: 64},
		Controller: CCSustain,
		Value:      127,
	}
	s := ev.String()
	if !strings.Contains(s, "ctrl:64") || !strings.Contains(s, "val:127") {
		t.Errorf("String() = %q, missing controller or value", s)
	}
}
