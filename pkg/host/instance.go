package host

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/justyntemme/vst3host/pkg/midi"
	"github.com/justyntemme/vst3host/pkg/vst3"
)

// InstanceState tracks where an instance sits in its lifecycle. The
// only legal order is Created, Initialized, then Active and Inactive
// alternating, then Terminated. Terminated is final.
type InstanceState int32

const (
	StateCreated InstanceState = iota
	StateInitialized
	StateActive
	StateInactive
	StateTerminated
)

func (s InstanceState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Instance is one loaded plugin: the component and its processing and
// controller facets, plus the host-side bridges that feed it audio,
// events, and parameter changes.
//
// Lifecycle methods are serialized by the instance mutex and are not
// for the audio thread. ProcessBlock is for the audio thread only and
// never blocks on the control plane beyond the parameter cache's brief
// mutex.
type Instance struct {
	mu sync.Mutex

	desc   Descriptor
	module *Module
	log    *zap.Logger

	// busOff marks buses toggled off by SetBusActive; absent means active.
	busOff map[busKey]bool

	component  vst3.Component
	processor  vst3.Processor
	controller vst3.Controller
	// ownController is set when the controller came from a separate
	// factory class and needs its own terminate and release.
	ownController bool

	state   atomic.Int32
	setup   vst3.ProcessSetup
	audio   *AudioBridge
	events  *EventBridge
	params  *ParamStore
	data    vst3.ProcessData
	latency uint32
	tail    uint32
	faults  atomic.Uint64
}

// NewInstance creates the component for the descriptor's class. The
// instance takes ownership of the module reference and releases it at
// Terminate, even when creation fails.
func NewInstance(module *Module, desc Descriptor, log *zap.Logger) (*Instance, error) {
	if log == nil {
		log = zap.NewNop()
	}
	component, err := module.Factory().CreateComponent(desc.ClassID)
	if err != nil {
		return nil, fmt.Errorf("%w: class %s: %v", ErrCreationFailed, desc.ClassID, err)
	}
	in := &Instance{
		desc:      desc,
		module:    module,
		log:       log.With(zap.String("plugin", desc.Name)),
		component: component,
	}
	in.state.Store(int32(StateCreated))
	return in, nil
}

func (in *Instance) State() InstanceState {
	return InstanceState(in.state.Load())
}

func (in *Instance) Descriptor() Descriptor {
	return in.desc
}

// Faults reports how many process calls have failed since creation.
func (in *Instance) Faults() uint64 {
	return in.faults.Load()
}

// Params is nil until Initialize succeeds.
func (in *Instance) Params() *ParamStore {
	return in.params
}

// Initialize brings the component up, resolves its edit controller
// (from a separate class when the component names one, otherwise from
// the component itself), syncs the controller with the component's
// state, and builds the parameter cache. The processing and controller
// facets are each optional: a component without one still initializes,
// and the operations that depend on the facet fail instead.
func (in *Instance) Initialize(host vst3.HostContext) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch in.State() {
	case StateCreated:
	case StateTerminated:
		return ErrTerminated
	default:
		return ErrAlreadyInitialized
	}

	if err := in.component.Initialize(host); err != nil {
		return fmt.Errorf("component initialize: %w", err)
	}

	if err := in.resolveController(host); err != nil {
		in.component.Terminate()
		return err
	}

	if proc, ok := in.component.QueryProcessor(); ok {
		if !proc.CanProcess32Bit() {
			proc.Release()
			in.teardownControllerLocked()
			in.component.Terminate()
			return fmt.Errorf("%w: 32-bit processing unsupported", ErrCreationFailed)
		}
		in.processor = proc
	} else {
		in.log.Info("component has no processing facet")
	}

	params, err := NewParamStore(in.controller)
	if err != nil {
		if in.processor != nil {
			in.processor.Release()
			in.processor = nil
		}
		in.teardownControllerLocked()
		in.component.Terminate()
		return err
	}
	in.params = params

	in.state.Store(int32(StateInitialized))
	in.log.Info("instance initialized",
		zap.Int("parameters", params.Count()),
		zap.Bool("hasProcessor", in.processor != nil),
		zap.Bool("hasController", in.controller != nil))
	return nil
}

// HasProcessor and HasController report which optional facets the
// component exposed at Initialize. A missing facet is a valid state;
// the operations that need it fail individually instead.
func (in *Instance) HasProcessor() bool { return in.processor != nil }
func (in *Instance) HasController() bool { return in.controller != nil }

func (in *Instance) resolveController(host vst3.HostContext) error {
	if cid, ok := in.component.ControllerClassID(); ok && !cid.IsZero() {
		ctrl, err := in.module.Factory().CreateController(cid)
		if err == nil {
			if ierr := ctrl.Initialize(host); ierr != nil {
				ctrl.Release()
				return fmt.Errorf("controller initialize: %w", ierr)
			}
			in.controller = ctrl
			in.ownController = true
			in.syncControllerLocked()
			return nil
		}
		in.log.Warn("separate controller unavailable, falling back", zap.Error(err))
	}
	ctrl, ok := in.component.QueryController()
	if !ok {
		in.log.Info("component has no edit controller facet")
		return nil
	}
	in.controller = ctrl
	in.ownController = false
	return nil
}

// syncControllerLocked pushes the component's current state into a
// separately created controller so both halves agree before any
// parameter traffic.
func (in *Instance) syncControllerLocked() {
	buf := vst3.NewMemoryStream()
	if err := in.component.GetState(buf); err != nil {
		in.log.Warn("component state unavailable for controller sync", zap.Error(err))
		return
	}
	buf.Rewind()
	if err := in.controller.SetComponentState(buf); err != nil {
		in.log.Warn("controller rejected component state", zap.Error(err))
	}
}

func (in *Instance) teardownControllerLocked() {
	if in.controller == nil {
		return
	}
	if in.ownController {
		in.controller.Terminate()
	}
	in.controller.Release()
	in.controller = nil
}

// Buses enumerates the bus infos for one media type and direction,
// with the host-side active flag filled in.
func (in *Instance) Buses(media vst3.MediaType, dir vst3.BusDirection) ([]vst3.BusInfo, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.State() == StateTerminated {
		return nil, ErrTerminated
	}
	count := in.component.BusCount(media, dir)
	infos := make([]vst3.BusInfo, 0, count)
	for i := int32(0); i < count; i++ {
		info, err := in.component.BusInfo(media, dir, i)
		if err != nil {
			return nil, fmt.Errorf("bus %d: %w", i, err)
		}
		info.Active = in.busEnabledLocked(media, dir, i)
		infos = append(infos, info)
	}
	return infos, nil
}

type busKey struct {
	media vst3.MediaType
	dir   vst3.BusDirection
	index int32
}

// SetBusActive toggles one bus. Allowed while Initialized or Inactive;
// the block descriptor built at the next activation covers active
// buses only, so the layout never changes under a running processor.
// Buses start active.
func (in *Instance) SetBusActive(media vst3.MediaType, dir vst3.BusDirection, index int32, active bool) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch in.State() {
	case StateInitialized, StateInactive:
	case StateTerminated:
		return ErrTerminated
	case StateActive:
		return ErrBusLocked
	default:
		return ErrNotInitialized
	}
	if index < 0 || index >= in.component.BusCount(media, dir) {
		return fmt.Errorf("bus %d: %w", index, ErrNotFound)
	}
	if err := in.component.ActivateBus(media, dir, index, active); err != nil {
		return fmt.Errorf("bus %d: %w", index, err)
	}

	key := busKey{media, dir, index}
	if active {
		delete(in.busOff, key)
	} else {
		if in.busOff == nil {
			in.busOff = make(map[busKey]bool)
		}
		in.busOff[key] = true
	}
	return nil
}

func (in *Instance) busEnabledLocked(media vst3.MediaType, dir vst3.BusDirection, index int32) bool {
	return !in.busOff[busKey{media, dir, index}]
}

// Activate negotiates the process setup, activates every enabled bus,
// sizes the audio and event bridges, and starts processing. Allowed
// from Initialized and from Inactive; a new setup may be given on each
// activation. Fails when the component exposed no processing facet.
func (in *Instance) Activate(setup vst3.ProcessSetup) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch in.State() {
	case StateInitialized, StateInactive:
	case StateTerminated:
		return ErrTerminated
	case StateActive:
		return fmt.Errorf("%w: already active", ErrActivationFailed)
	default:
		return ErrNotInitialized
	}
	if in.processor == nil {
		return fmt.Errorf("%w: component has no processing facet", ErrActivationFailed)
	}

	if err := in.processor.SetupProcessing(setup); err != nil {
		return fmt.Errorf("%w: setup: %v", ErrActivationFailed, err)
	}

	inChans, err := in.activateBusesLocked(vst3.BusInput)
	if err != nil {
		return err
	}
	outChans, err := in.activateBusesLocked(vst3.BusOutput)
	if err != nil {
		return err
	}

	if err := in.component.SetActive(true); err != nil {
		return fmt.Errorf("%w: set active: %v", ErrActivationFailed, err)
	}
	if err := in.processor.SetProcessing(true); err != nil {
		in.component.SetActive(false)
		return fmt.Errorf("%w: set processing: %v", ErrActivationFailed, err)
	}

	in.setup = setup
	in.audio = NewAudioBridge(setup.MaxBlockFrames, inChans, outChans)
	in.events = NewEventBridge(eventCapacity)
	in.data = vst3.ProcessData{
		Inputs:             in.audio.Inputs(),
		Outputs:            in.audio.Outputs(),
		InputEvents:        in.events.Input(),
		OutputEvents:       in.events.Output(),
		OutputParamChanges: vst3.NewParameterChanges(in.params.Count(), outputPointsPerParam),
	}
	in.latency = in.processor.LatencySamples()
	in.tail = in.processor.TailSamples()

	in.state.Store(int32(StateActive))
	in.log.Info("instance activated",
		zap.Float64("sampleRate", setup.SampleRate),
		zap.Int32("maxBlockFrames", setup.MaxBlockFrames),
		zap.Uint32("latency", in.latency))
	return nil
}

// Event list and output queue sizing for one block.
const (
	eventCapacity        = 1024
	outputPointsPerParam = 8
)

// activateBusesLocked activates the enabled buses of one direction and
// returns their audio channel counts, in bus order. Disabled buses are
// skipped entirely; the plugin already saw their deactivation when
// SetBusActive ran.
func (in *Instance) activateBusesLocked(dir vst3.BusDirection) ([]int, error) {
	count := in.component.BusCount(vst3.MediaAudio, dir)
	chans := make([]int, 0, count)
	for i := int32(0); i < count; i++ {
		if !in.busEnabledLocked(vst3.MediaAudio, dir, i) {
			continue
		}
		info, err := in.component.BusInfo(vst3.MediaAudio, dir, i)
		if err != nil {
			return nil, fmt.Errorf("%w: audio bus %d: %v", ErrActivationFailed, i, err)
		}
		if err := in.component.ActivateBus(vst3.MediaAudio, dir, i, true); err != nil {
			return nil, fmt.Errorf("%w: activating audio bus %d: %v", ErrActivationFailed, i, err)
		}
		chans = append(chans, int(info.ChannelCount))
	}
	for i := int32(0); i < in.component.BusCount(vst3.MediaEvent, dir); i++ {
		if !in.busEnabledLocked(vst3.MediaEvent, dir, i) {
			continue
		}
		if err := in.component.ActivateBus(vst3.MediaEvent, dir, i, true); err != nil {
			return nil, fmt.Errorf("%w: activating event bus %d: %v", ErrActivationFailed, i, err)
		}
	}
	return chans, nil
}

// Deactivate stops processing but keeps the instance ready for
// reactivation. Bridges stay allocated.
func (in *Instance) Deactivate() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch in.State() {
	case StateActive:
	case StateTerminated:
		return ErrTerminated
	default:
		return ErrNotActive
	}

	if err := in.processor.SetProcessing(false); err != nil {
		in.log.Warn("set processing false", zap.Error(err))
	}
	if err := in.component.SetActive(false); err != nil {
		in.log.Warn("set active false", zap.Error(err))
	}
	in.state.Store(int32(StateInactive))
	in.log.Info("instance deactivated")
	return nil
}

// LatencySamples and TailSamples report the figures captured at the
// last activation.
func (in *Instance) LatencySamples() uint32 { return in.latency }
func (in *Instance) TailSamples() uint32    { return in.tail }

// ProcessBlock runs one audio block through the plugin. in/out are
// indexed [bus][channel][frame]; events must be ordered by offset.
// Pending parameter changes are forwarded at the block boundary and
// plugin-driven changes are folded back afterwards.
//
// On a plugin fault or a rejected block shape the outputs are zeroed,
// the fault counter advances, and the error is returned; the instance
// stays Active and the next block proceeds normally. The steady-state
// path performs no heap allocation.
func (in *Instance) ProcessBlock(frames int32, input, output [][][]float32, events []midi.Event) error {
	if in.State() != StateActive {
		return ErrNotActive
	}

	if err := in.audio.Prepare(frames, input, output); err != nil {
		zeroBuffers(output, frames)
		in.faults.Add(1)
		return err
	}
	in.events.LoadInput(events)

	in.data.NumSamples = frames
	in.data.InputParamChanges = in.params.PrepareBlock()
	in.data.OutputParamChanges.Clear()

	if err := in.processor.Process(&in.data); err != nil {
		in.audio.SilenceOutputs()
		in.faults.Add(1)
		return fmt.Errorf("%w: %v", ErrProcessFailed, err)
	}

	in.params.AbsorbOutputChanges(in.data.OutputParamChanges)
	return nil
}

// DrainOutputEvents moves events the plugin emitted during the last
// block into buf.
func (in *Instance) DrainOutputEvents(buf *midi.Buffer) int {
	if in.events == nil {
		return 0
	}
	return in.events.DrainOutput(buf)
}

func zeroBuffers(out [][][]float32, frames int32) {
	for _, bus := range out {
		for _, ch := range bus {
			n := int(frames)
			if n > len(ch) {
				n = len(ch)
			}
			for i := 0; i < n; i++ {
				ch[i] = 0
			}
		}
	}
}

// Terminate tears the instance down in the required order: stop
// processing, release the processor, terminate and release the
// controller, terminate and release the component, then drop the
// module reference. Safe to call from any state and idempotent.
func (in *Instance) Terminate() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	state := in.State()
	if state == StateTerminated {
		return nil
	}

	if state == StateActive {
		if in.processor != nil {
			in.processor.SetProcessing(false)
		}
		in.component.SetActive(false)
	}
	if in.processor != nil {
		in.processor.Release()
		in.processor = nil
	}
	in.teardownControllerLocked()
	if state != StateCreated {
		in.component.Terminate()
	}
	in.component.Release()
	in.component = nil
	in.module.Release()
	in.module = nil

	in.state.Store(int32(StateTerminated))
	in.log.Info("instance terminated")
	return nil
}
