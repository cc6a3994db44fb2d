package host

import (
	"errors"
	"math"
	"testing"

	"github.com/justyntemme/vst3host/pkg/host/hosttest"
	"github.com/justyntemme/vst3host/pkg/midi"
	"github.com/justyntemme/vst3host/pkg/vst3"
)

var testHost = vst3.HostContext{Name: "vst3host-test"}

func testSetup() vst3.ProcessSetup {
	return vst3.ProcessSetup{
		SampleRate:     48000,
		MaxBlockFrames: 512,
		Realtime:       true,
	}
}

// newTestInstance creates an initialized instance backed by the
// in-process gain plugin and returns the plugin for assertions.
func newTestInstance(t *testing.T, opts hosttest.Options) (*Instance, *hosttest.Backend, *hosttest.GainPlugin) {
	t.Helper()
	backend := hosttest.NewBackend()
	backend.Register(hosttest.BundlePath, opts)
	loader := NewLoader(backend, nil)

	module, err := loader.Acquire(hosttest.BundlePath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	desc := Descriptor{
		ClassID:    hosttest.GainClassID,
		Name:       "Test Gain",
		BundlePath: hosttest.BundlePath,
	}
	inst, err := NewInstance(module, desc, nil)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if err := inst.Initialize(testHost); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { inst.Terminate() })
	return inst, backend, backend.LastFactory.LastPlugin
}

// stereoBuffers allocates one bus of two channels.
func stereoBuffers(frames int) [][][]float32 {
	return [][][]float32{{make([]float32, frames), make([]float32, frames)}}
}

func fillRamp(buf [][][]float32, scale float32) {
	for _, bus := range buf {
		for _, ch := range bus {
			for i := range ch {
				ch[i] = scale * float32(i)
			}
		}
	}
}

func TestLifecycleTransitions(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})

	if inst.State() != StateInitialized {
		t.Fatalf("state = %v, want initialized", inst.State())
	}
	if err := inst.Initialize(testHost); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize: err = %v, want ErrAlreadyInitialized", err)
	}
	if err := inst.Deactivate(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Deactivate before Activate: err = %v, want ErrNotActive", err)
	}

	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if inst.State() != StateActive {
		t.Fatalf("state = %v, want active", inst.State())
	}
	if err := inst.Activate(testSetup()); !errors.Is(err, ErrActivationFailed) {
		t.Errorf("double Activate: err = %v, want ErrActivationFailed", err)
	}

	if err := inst.Deactivate(); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if inst.State() != StateInactive {
		t.Fatalf("state = %v, want inactive", inst.State())
	}

	// Reactivation with a new setup is allowed.
	setup := testSetup()
	setup.MaxBlockFrames = 256
	if err := inst.Activate(setup); err != nil {
		t.Fatalf("reactivate: %v", err)
	}

	if err := inst.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if inst.State() != StateTerminated {
		t.Fatalf("state = %v, want terminated", inst.State())
	}
	if err := inst.Terminate(); err != nil {
		t.Errorf("second Terminate: %v, want nil", err)
	}
	if err := inst.Activate(testSetup()); !errors.Is(err, ErrTerminated) {
		t.Errorf("Activate after Terminate: err = %v, want ErrTerminated", err)
	}
}

func TestTeardownOrder(t *testing.T) {
	inst, _, plugin := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := inst.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	journal := plugin.Journal()
	order := func(call string) int {
		last := -1
		for i, c := range journal {
			if c == call {
				last = i
			}
		}
		if last == -1 {
			t.Fatalf("call %q missing from journal %v", call, journal)
		}
		return last
	}

	// Processing stops before deactivation, which precedes release and
	// termination; the component terminates before its final release.
	if !(order("setProcessing(false)") < order("setActive(false)")) {
		t.Errorf("setProcessing(false) must precede setActive(false): %v", journal)
	}
	if !(order("setActive(false)") < order("terminate")) {
		t.Errorf("setActive(false) must precede terminate: %v", journal)
	}
	if !(order("terminate") < order("release")) {
		t.Errorf("terminate must precede final release: %v", journal)
	}
	if !plugin.Released {
		t.Error("component was not released")
	}
}

func TestTerminateReleasesModule(t *testing.T) {
	inst, backend, _ := newTestInstance(t, hosttest.Options{})
	loader := inst.module.loader
	if loader.Loaded() != 1 {
		t.Fatalf("Loaded() = %d, want 1", loader.Loaded())
	}
	if err := inst.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if loader.Loaded() != 0 {
		t.Errorf("Loaded() after Terminate = %d, want 0", loader.Loaded())
	}
	if !backend.LastFactory.Released {
		t.Error("factory was not released with the module")
	}
}

func TestProcessBlockAppliesGain(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if err := inst.Params().Set(hosttest.GainParamID, 0.25); err != nil {
		t.Fatalf("Set: %v", err)
	}

	const frames = 64
	input := stereoBuffers(frames)
	output := stereoBuffers(frames)
	fillRamp(input, 0.01)

	if err := inst.ProcessBlock(frames, input, output, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	for c := 0; c < 2; c++ {
		for i := 0; i < frames; i++ {
			want := input[0][c][i] * 0.25
			got := output[0][c][i]
			if math.Abs(float64(got-want)) > 1e-6 {
				t.Fatalf("out[0][%d][%d] = %v, want %v", c, i, got, want)
			}
		}
	}
}

func TestProcessBlockRequiresActive(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})
	buf := stereoBuffers(16)
	if err := inst.ProcessBlock(16, buf, buf, nil); !errors.Is(err, ErrNotActive) {
		t.Errorf("err = %v, want ErrNotActive", err)
	}
}

func TestProcessBlockRejectsOversizedBlock(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})
	setup := testSetup()
	setup.MaxBlockFrames = 128
	if err := inst.Activate(setup); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	input := stereoBuffers(256)
	output := stereoBuffers(256)
	fillRamp(output, 1) // must be zeroed on rejection

	err := inst.ProcessBlock(256, input, output, nil)
	if !errors.Is(err, ErrBlockTooLarge) {
		t.Fatalf("err = %v, want ErrBlockTooLarge", err)
	}
	for _, ch := range output[0] {
		for i, v := range ch {
			if v != 0 {
				t.Fatalf("output[%d] = %v after rejected block, want 0", i, v)
			}
		}
	}
	if inst.Faults() != 1 {
		t.Errorf("Faults() = %d, want 1", inst.Faults())
	}
}

func TestProcessBlockChannelMismatch(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	mono := [][][]float32{{make([]float32, 16)}}
	stereo := stereoBuffers(16)
	if err := inst.ProcessBlock(16, mono, stereo, nil); !errors.Is(err, ErrChannelMismatch) {
		t.Errorf("err = %v, want ErrChannelMismatch", err)
	}
}

func TestSilenceOnFault(t *testing.T) {
	inst, _, plugin := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	const frames = 32
	plugin.FailOnCall(5)

	input := stereoBuffers(frames)
	output := stereoBuffers(frames)
	fillRamp(input, 0.001)

	for block := 1; block <= 10; block++ {
		err := inst.ProcessBlock(frames, input, output, nil)
		if block == 5 {
			if !errors.Is(err, ErrProcessFailed) {
				t.Fatalf("block 5: err = %v, want ErrProcessFailed", err)
			}
			for _, ch := range output[0] {
				for i, v := range ch {
					if v != 0 {
						t.Fatalf("block 5 output[%d] = %v, want silence", i, v)
					}
				}
			}
			continue
		}
		if err != nil {
			t.Fatalf("block %d: %v", block, err)
		}
		if output[0][0][frames-1] == 0 {
			t.Fatalf("block %d produced silence, want signal", block)
		}
	}

	if inst.Faults() != 1 {
		t.Errorf("Faults() = %d, want 1", inst.Faults())
	}
	if inst.State() != StateActive {
		t.Errorf("state after fault = %v, want active", inst.State())
	}
}

func TestParameterForwardingAtBlockBoundary(t *testing.T) {
	inst, _, plugin := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	const frames = 16
	input := stereoBuffers(frames)
	output := stereoBuffers(frames)

	// The plugin must not see the new value until a block runs.
	if err := inst.Params().Set(hosttest.GainParamID, 0.75); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := plugin.Gain(); got != 0.5 {
		t.Fatalf("plugin gain before block = %v, want default 0.5", got)
	}

	if err := inst.ProcessBlock(frames, input, output, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if got := plugin.Gain(); got != 0.75 {
		t.Errorf("plugin gain after block = %v, want 0.75", got)
	}

	// An unchanged value is not re-forwarded; setting the same value
	// again produces no new change queue, which the plugin would
	// observe as a stable gain. Verified indirectly through the cache.
	v, err := inst.Params().Get(hosttest.GainParamID)
	if err != nil || v != 0.75 {
		t.Errorf("Get = %v, %v, want 0.75", v, err)
	}
}

func TestOutputParameterReadBack(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	const frames = 8
	input := stereoBuffers(frames)
	output := stereoBuffers(frames)
	for i := range input[0][0] {
		input[0][0][i] = 1.0
		input[0][1][i] = 1.0
	}

	if err := inst.ProcessBlock(frames, input, output, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	// The plugin reports the block peak on its meter parameter, and
	// the cache absorbs it after the block.
	v, err := inst.Params().Get(hosttest.MeterParamID)
	if err != nil {
		t.Fatalf("Get(meter): %v", err)
	}
	if math.Abs(v-0.5) > 1e-6 {
		t.Errorf("meter = %v, want 0.5", v)
	}
}

func TestEventDelivery(t *testing.T) {
	inst, _, plugin := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	const frames = 64
	input := stereoBuffers(frames)
	output := stereoBuffers(frames)

	events := []midi.Event{
		midi.NoteOnEvent{
			BaseEvent:  midi.BaseEvent{EventChannel: 0, Offset: 0},
			NoteNumber: 60,
			Velocity:   127,
		},
		midi.NoteOffEvent{
			BaseEvent:  midi.BaseEvent{EventChannel: 0, Offset: 32},
			NoteNumber: 60,
		},
	}
	if err := inst.ProcessBlock(frames, input, output, events); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	got := plugin.ReceivedEvents()
	if len(got) != 2 {
		t.Fatalf("plugin received %d events, want 2", len(got))
	}
	if got[0].Kind != vst3.EventNoteOn || got[0].Pitch != 60 {
		t.Errorf("event 0 = %+v, want note on 60", got[0])
	}
	if got[0].Velocity != 1.0 {
		t.Errorf("event 0 velocity = %v, want 1.0", got[0].Velocity)
	}
	if got[1].Kind != vst3.EventNoteOff || got[1].SampleOffset != 32 {
		t.Errorf("event 1 = %+v, want note off at offset 32", got[1])
	}
}

func TestOutputEventDrain(t *testing.T) {
	inst, _, plugin := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	plugin.EmitOnNextBlock(vst3.Event{
		Kind:         vst3.EventNoteOn,
		SampleOffset: 10,
		Pitch:        72,
		Velocity:     0.5,
	})

	const frames = 32
	input := stereoBuffers(frames)
	output := stereoBuffers(frames)
	if err := inst.ProcessBlock(frames, input, output, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	buf := midi.NewBuffer(8)
	if dropped := inst.DrainOutputEvents(buf); dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if buf.Len() != 1 {
		t.Fatalf("drained %d events, want 1", buf.Len())
	}
	on, ok := buf.Events()[0].(midi.NoteOnEvent)
	if !ok {
		t.Fatalf("drained %T, want NoteOnEvent", buf.Events()[0])
	}
	if on.NoteNumber != 72 || on.SampleOffset() != 10 {
		t.Errorf("drained event = %+v", on)
	}
	if on.Velocity != 64 {
		t.Errorf("velocity = %d, want 64", on.Velocity)
	}
}

func TestProcessBlockDoesNotAllocate(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	const frames = 128
	input := stereoBuffers(frames)
	output := stereoBuffers(frames)
	fillRamp(input, 0.001)

	// Warm up so one-time work is out of the way.
	if err := inst.ProcessBlock(frames, input, output, nil); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	allocs := testing.AllocsPerRun(200, func() {
		if err := inst.ProcessBlock(frames, input, output, nil); err != nil {
			t.Fatal(err)
		}
	})
	if allocs != 0 {
		t.Errorf("ProcessBlock allocated %.1f times per run, want 0", allocs)
	}
}

func TestSeparateControllerClass(t *testing.T) {
	inst, _, plugin := newTestInstance(t, hosttest.Options{SeparateController: true})

	if !inst.ownController {
		t.Fatal("expected a separately created controller")
	}
	// The controller learned the component's gain through the
	// component-state sync during initialization.
	v, err := inst.Params().Get(hosttest.GainParamID)
	if err != nil || v != 0.5 {
		t.Fatalf("Get = %v, %v, want default 0.5", v, err)
	}

	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := inst.Params().Set(hosttest.GainParamID, 0.9); err != nil {
		t.Fatalf("Set: %v", err)
	}
	input := stereoBuffers(8)
	output := stereoBuffers(8)
	if err := inst.ProcessBlock(8, input, output, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if got := plugin.Gain(); got != 0.9 {
		t.Errorf("plugin gain = %v, want 0.9", got)
	}
}

func TestMissingProcessorFacet(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{NoProcessor: true})

	if inst.HasProcessor() {
		t.Fatal("HasProcessor() = true for a component without a processing facet")
	}
	if !inst.HasController() {
		t.Error("HasController() = false, controller facet still present")
	}
	if err := inst.Activate(testSetup()); !errors.Is(err, ErrActivationFailed) {
		t.Errorf("Activate: err = %v, want ErrActivationFailed", err)
	}

	// Parameter and state access do not need the processing facet.
	if v, err := inst.Params().Get(hosttest.GainParamID); err != nil || v != 0.5 {
		t.Errorf("Get = %v, %v, want default 0.5", v, err)
	}
	if _, err := inst.Snapshot(); err != nil {
		t.Errorf("Snapshot: %v", err)
	}
}

func TestMissingControllerFacet(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{NoController: true})

	if inst.HasController() {
		t.Fatal("HasController() = true for a component without a controller facet")
	}
	if got := inst.Params().Count(); got != 0 {
		t.Errorf("Params().Count() = %d, want 0", got)
	}
	if err := inst.Params().Set(hosttest.GainParamID, 0.25); !errors.Is(err, ErrParameterNotFound) {
		t.Errorf("Set: err = %v, want ErrParameterNotFound", err)
	}

	// Processing runs without a controller.
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	input := stereoBuffers(16)
	output := stereoBuffers(16)
	if err := inst.ProcessBlock(16, input, output, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	st, err := inst.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(st.Controller) != 0 {
		t.Errorf("controller blob = %d bytes, want empty", len(st.Controller))
	}
}

func TestBusActivationToggle(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})

	if err := inst.SetBusActive(vst3.MediaAudio, vst3.BusInput, 0, false); err != nil {
		t.Fatalf("SetBusActive: %v", err)
	}
	buses, err := inst.Buses(vst3.MediaAudio, vst3.BusInput)
	if err != nil {
		t.Fatalf("Buses: %v", err)
	}
	if len(buses) != 1 || buses[0].Active {
		t.Fatalf("buses = %+v, want one inactive input bus", buses)
	}
	outs, err := inst.Buses(vst3.MediaAudio, vst3.BusOutput)
	if err != nil {
		t.Fatalf("Buses: %v", err)
	}
	if len(outs) != 1 || !outs[0].Active {
		t.Fatalf("output buses = %+v, want one active bus", outs)
	}

	if err := inst.SetBusActive(vst3.MediaAudio, vst3.BusInput, 7, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("out-of-range bus: err = %v, want ErrNotFound", err)
	}

	// The block descriptor covers active buses only, so the disabled
	// input disappears from the process call.
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	output := stereoBuffers(32)
	fillRamp(output, 1)
	if err := inst.ProcessBlock(32, nil, output, nil); err != nil {
		t.Fatalf("ProcessBlock without the disabled input: %v", err)
	}

	if err := inst.SetBusActive(vst3.MediaAudio, vst3.BusInput, 0, true); !errors.Is(err, ErrBusLocked) {
		t.Errorf("toggle while active: err = %v, want ErrBusLocked", err)
	}

	// Re-enabling after deactivation restores the full layout.
	if err := inst.Deactivate(); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := inst.SetBusActive(vst3.MediaAudio, vst3.BusInput, 0, true); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if err := inst.Activate(testSetup()); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	input := stereoBuffers(32)
	if err := inst.ProcessBlock(32, input, output, nil); err != nil {
		t.Fatalf("ProcessBlock with the input restored: %v", err)
	}
}

func TestBusEnumeration(t *testing.T) {
	inst, _, _ := newTestInstance(t, hosttest.Options{})

	audioIn, err := inst.Buses(vst3.MediaAudio, vst3.BusInput)
	if err != nil {
		t.Fatalf("Buses: %v", err)
	}
	if len(audioIn) != 1 || audioIn[0].ChannelCount != 2 {
		t.Errorf("audio inputs = %+v, want one stereo bus", audioIn)
	}
	eventIn, err := inst.Buses(vst3.MediaEvent, vst3.BusInput)
	if err != nil {
		t.Fatalf("Buses: %v", err)
	}
	if len(eventIn) != 1 {
		t.Errorf("event inputs = %d, want 1", len(eventIn))
	}
	eventOut, err := inst.Buses(vst3.MediaEvent, vst3.BusOutput)
	if err != nil {
		t.Fatalf("Buses: %v", err)
	}
	if len(eventOut) != 0 {
		t.Errorf("event outputs = %d, want 0", len(eventOut))
	}
}
