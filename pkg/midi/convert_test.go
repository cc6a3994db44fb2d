package midi

import (
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestFromMessageNoteOn(t *testing.T) {
	msg := gomidi.NoteOn(2, 60, 110)
	ev := FromMessage(msg, 1, 256)

	on, ok := ev.(NoteOnEvent)
	if !ok {
		t.Fatalf("FromMessage returned %T, want NoteOnEvent", ev)
	}
	if on.Channel() != 2 || on.NoteNumber != 60 || on.Velocity != 110 {
		t.Errorf("got ch=%d note=%d vel=%d", on.Channel(), on.NoteNumber, on.Velocity)
	}
	if on.Bus() != 1 || on.SampleOffset() != 256 {
		t.Errorf("got bus=%d offset=%d, want 1/256", on.Bus(), on.SampleOffset())
	}
}

func TestFromMessageNoteOnZeroVelocity(t *testing.T) {
	// Note-on with velocity zero is a note-off on the wire.
	msg := gomidi.NoteOn(0, 64, 0)
	ev := FromMessage(msg, 0, 0)
	if _, ok := ev.(NoteOffEvent); !ok {
		t.Errorf("FromMessage returned %T, want NoteOffEvent", ev)
	}
}

func TestFromMessageControlChange(t *testing.T) {
	msg := gomidi.ControlChange(4, CCSustain, 127)
	ev := FromMessage(msg, 0, 32)

	cc, ok := ev.(ControlChangeEvent)
	if !ok {
		t.Fatalf("FromMessage returned %T, want ControlChangeEvent", ev)
	}
	if cc.Controller != CCSustain || cc.Value != 127 || cc.Channel() != 4 {
		t.Errorf("got ctrl=%d val=%d ch=%d", cc.Controller, cc.Value, cc.Channel())
	}
}

func TestFromMessagePitchBend(t *testing.T) {
	msg := gomidi.Pitchbend(1, 4096)
	ev := FromMessage(msg, 0, 0)

	pb, ok := ev.(PitchBendEvent)
	if !ok {
		t.Fatalf("FromMessage returned %T, want PitchBendEvent", ev)
	}
	if pb.Value != 4096 {
		t.Errorf("Value = %d, want 4096", pb.Value)
	}
}

func TestFromMessageAfterTouch(t *testing.T) {
	msg := gomidi.AfterTouch(5, 90)
	ev := FromMessage(msg, 0, 0)

	at, ok := ev.(AfterTouchEvent)
	if !ok {
		t.Fatalf("FromMessage returned %T, want AfterTouchEvent", ev)
	}
	if at.Pressure != 90 || at.Channel() != 5 {
		t.Errorf("got pressure=%d ch=%d", at.Pressure, at.Channel())
	}
}

func TestFromMessageSysexIsRaw(t *testing.T) {
	data := []byte{0xF0, 0x7E, 0x00, 0x06, 0x01, 0xF7}
	ev := FromMessage(gomidi.Message(data), 0, 0)

	raw, ok := ev.(RawEvent)
	if !ok {
		t.Fatalf("FromMessage returned %T, want RawEvent", ev)
	}
	if len(raw.Data) != len(data) {
		t.Errorf("Data len = %d, want %d", len(raw.Data), len(data))
	}
}

func TestRoundTrip(t *testing.T) {
	events := []Event{
		NoteOnEvent{BaseEvent: BaseEvent{EventChannel: 0}, NoteNumber: 72, Velocity: 64},
		NoteOffEvent{BaseEvent: BaseEvent{EventChannel: 0}, NoteNumber: 72},
		ControlChangeEvent{BaseEvent: BaseEvent{EventChannel: 3}, Controller: CCPan, Value: 30},
		PitchBendEvent{BaseEvent: BaseEvent{EventChannel: 1}, Value: -2000},
		ProgramChangeEvent{BaseEvent: BaseEvent{EventChannel: 9}, Program: 40},
		AfterTouchEvent{BaseEvent: BaseEvent{EventChannel: 5}, Pressure: 90},
	}
	for _, want := range events {
		msg, ok := ToMessage(want)
		if !ok {
			t.Fatalf("ToMessage(%v) not convertible", want)
		}
		got := FromMessage(msg, 0, 0)
		if got.Type() != want.Type() {
			t.Errorf("round trip %v: type = %v, want %v", want, got.Type(), want.Type())
		}
		if got.Channel() != want.Channel() {
			t.Errorf("round trip %v: channel = %d, want %d", want, got.Channel(), want.Channel())
		}
	}
}
