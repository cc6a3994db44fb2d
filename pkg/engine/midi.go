package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/justyntemme/vst3host/pkg/midi"
)

// midiInboxCapacity bounds how many events may pile up between blocks.
const midiInboxCapacity = 256

// ErrMIDIBacklog means the instance's inbox is full; the audio thread
// has not drained staged events fast enough.
var ErrMIDIBacklog = errors.New("engine: MIDI inbox full")

// midiInbox stages control-plane MIDI for one instance until the audio
// thread picks it up at the next block. The mutex is held only for the
// copy, never across a plugin call.
type midiInbox struct {
	mu      sync.Mutex
	staged  []midi.Event
	scratch []midi.Event
}

func newMIDIInbox() *midiInbox {
	return &midiInbox{
		staged:  make([]midi.Event, 0, midiInboxCapacity),
		scratch: make([]midi.Event, 0, 2*midiInboxCapacity),
	}
}

func (b *midiInbox) stage(ev midi.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.staged) >= midiInboxCapacity {
		return ErrMIDIBacklog
	}
	b.staged = append(b.staged, ev)
	return nil
}

// take merges staged events ahead of the caller's block events and
// empties the inbox. The returned slice is owned by the inbox and only
// valid until the next take.
func (b *midiInbox) take(events []midi.Event) []midi.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.staged) == 0 {
		return events
	}
	merged := append(append(b.scratch[:0], b.staged...), events...)
	b.scratch = merged
	b.staged = b.staged[:0]
	return merged
}

// SendMIDI queues a raw MIDI message for the instance. The message is
// decoded on the control goroutine and delivered to the plugin at the
// start of the next processed block, at sample offset zero.
func (e *Engine) SendMIDI(ctx context.Context, id InstanceID, bus int32, data []byte) error {
	req := &sendMIDIRequest{id: id, bus: bus, data: data, reply: make(chan error, 1)}
	if err := e.submit(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type sendMIDIRequest struct {
	id    InstanceID
	bus   int32
	data  []byte
	reply chan error
}

func (r *sendMIDIRequest) execute(e *Engine) {
	v, ok := e.inboxes.Load(r.id)
	if !ok {
		r.reply <- fmt.Errorf("instance %d: %w", r.id, ErrUnknownInstance)
		return
	}
	ev := midi.FromMessage(gomidi.Message(r.data), r.bus, 0)
	r.reply <- v.(*midiInbox).stage(ev)
}

// DrainMIDI collects the wire-format MIDI messages the instance
// emitted since the last drain.
func (e *Engine) DrainMIDI(ctx context.Context, id InstanceID) ([][]byte, error) {
	req := &drainMIDIRequest{id: id, reply: make(chan drainMIDIReply, 1)}
	if err := e.submit(ctx, req); err != nil {
		return nil, err
	}
	select {
	case r := <-req.reply:
		return r.messages, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type drainMIDIReply struct {
	messages [][]byte
	err      error
}

type drainMIDIRequest struct {
	id    InstanceID
	reply chan drainMIDIReply
}

func (r *drainMIDIRequest) execute(e *Engine) {
	inst, ok := e.instances[r.id]
	if !ok {
		r.reply <- drainMIDIReply{err: fmt.Errorf("instance %d: %w", r.id, ErrUnknownInstance)}
		return
	}
	buf := midi.NewBuffer(midiInboxCapacity)
	inst.DrainOutputEvents(buf)
	var messages [][]byte
	for _, rec := range buf.Records() {
		if msg, ok := midi.ToMessage(rec.Event()); ok {
			messages = append(messages, []byte(msg))
		}
	}
	r.reply <- drainMIDIReply{messages: messages}
}
