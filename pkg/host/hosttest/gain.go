package hosttest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

const (
	// GainParamID scales the signal; normalized value is the amplitude.
	GainParamID vst3.ParamID = 100
	// MeterParamID is a read-only output level the plugin reports each
	// block through the output change list.
	MeterParamID vst3.ParamID = 200

	gainDefault = 0.5

	stateMagic uint32 = 0x47414E31 // "GAN1"
	ctrlMagic  uint32 = 0x47414E43 // "GANC"
)

// GainPlugin is a stereo gain effect implementing the component,
// processor, and controller facets in one struct. Everything it does
// is deterministic so tests can assert exact sample values, call
// order, and state bytes.
type GainPlugin struct {
	mu sync.Mutex

	opts       Options
	gain       float64
	active     bool
	processing bool
	setup      vst3.ProcessSetup

	journal       []string
	processCalls  int
	failOnCall    int // 1-based Process call to fail, 0 disables
	failCtrlState bool
	emitQueue     []vst3.Event
	received      []vst3.Event

	Released bool
}

func NewGainPlugin(opts Options) *GainPlugin {
	return &GainPlugin{
		opts: opts,
		gain: gainDefault,
	}
}

func (p *GainPlugin) record(call string) {
	p.mu.Lock()
	p.journal = append(p.journal, call)
	p.mu.Unlock()
}

// Journal returns the lifecycle calls seen so far, in order.
func (p *GainPlugin) Journal() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.journal))
	copy(out, p.journal)
	return out
}

// FailOnCall makes the nth Process call (1-based) return an error.
func (p *GainPlugin) FailOnCall(n int) {
	p.mu.Lock()
	p.failOnCall = n
	p.mu.Unlock()
}

// FailControllerState makes the controller facet's state methods fail.
func (p *GainPlugin) FailControllerState() {
	p.mu.Lock()
	p.failCtrlState = true
	p.mu.Unlock()
}

func (p *GainPlugin) ctrlStateFails() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failCtrlState
}

// EmitOnNextBlock queues an event the plugin will place on its output
// event list during the next Process call.
func (p *GainPlugin) EmitOnNextBlock(ev vst3.Event) {
	p.mu.Lock()
	p.emitQueue = append(p.emitQueue, ev)
	p.mu.Unlock()
}

// ReceivedEvents returns copies of every input event seen by Process.
func (p *GainPlugin) ReceivedEvents() []vst3.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]vst3.Event, len(p.received))
	copy(out, p.received)
	return out
}

func (p *GainPlugin) Gain() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gain
}

// Component facet.

func (p *GainPlugin) Initialize(host vst3.HostContext) error {
	p.record("initialize")
	return nil
}

func (p *GainPlugin) Terminate() error {
	p.record("terminate")
	return nil
}

func (p *GainPlugin) ControllerClassID() (vst3.ClassID, bool) {
	if p.opts.SeparateController {
		return GainControllerClassID, true
	}
	return vst3.ClassID{}, false
}

func (p *GainPlugin) BusCount(media vst3.MediaType, dir vst3.BusDirection) int32 {
	if media == vst3.MediaAudio {
		return 1
	}
	if media == vst3.MediaEvent && dir == vst3.BusInput {
		return 1
	}
	return 0
}

func (p *GainPlugin) BusInfo(media vst3.MediaType, dir vst3.BusDirection, index int32) (vst3.BusInfo, error) {
	if index >= p.BusCount(media, dir) {
		return vst3.BusInfo{}, fmt.Errorf("bus %d out of range", index)
	}
	info := vst3.BusInfo{
		MediaType: media,
		Direction: dir,
		Index:     index,
		BusType:   vst3.BusMain,
	}
	if media == vst3.MediaAudio {
		info.Name = "Stereo"
		info.ChannelCount = 2
	} else {
		info.Name = "Events"
		info.ChannelCount = 16
	}
	return info, nil
}

func (p *GainPlugin) ActivateBus(media vst3.MediaType, dir vst3.BusDirection, index int32, active bool) error {
	if index >= p.BusCount(media, dir) {
		return fmt.Errorf("bus %d out of range", index)
	}
	p.record(fmt.Sprintf("activateBus(%d,%d,%d,%v)", media, dir, index, active))
	return nil
}

func (p *GainPlugin) SetActive(active bool) error {
	p.record(fmt.Sprintf("setActive(%v)", active))
	p.mu.Lock()
	p.active = active
	p.mu.Unlock()
	return nil
}

func (p *GainPlugin) GetState(s vst3.Stream) error {
	p.mu.Lock()
	gain := p.gain
	p.mu.Unlock()
	if err := vst3.WriteUint32(s, stateMagic); err != nil {
		return err
	}
	return vst3.WriteFloat64(s, gain)
}

func (p *GainPlugin) SetState(s vst3.Stream) error {
	magic, err := vst3.ReadUint32(s)
	if err != nil {
		return err
	}
	if magic != stateMagic {
		return errors.New("bad component state magic")
	}
	gain, err := vst3.ReadFloat64(s)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.gain = gain
	p.mu.Unlock()
	return nil
}

func (p *GainPlugin) QueryProcessor() (vst3.Processor, bool) {
	if p.opts.NoProcessor {
		return nil, false
	}
	return p, true
}

func (p *GainPlugin) QueryController() (vst3.Controller, bool) {
	if p.opts.SeparateController || p.opts.NoController {
		return nil, false
	}
	return (*gainComponentController)(p), true
}

func (p *GainPlugin) Release() {
	p.record("release")
	p.Released = true
}

// Processor facet.

func (p *GainPlugin) CanProcess32Bit() bool {
	return true
}

func (p *GainPlugin) SetupProcessing(setup vst3.ProcessSetup) error {
	p.record("setupProcessing")
	p.mu.Lock()
	p.setup = setup
	p.mu.Unlock()
	return nil
}

func (p *GainPlugin) SetProcessing(active bool) error {
	p.record(fmt.Sprintf("setProcessing(%v)", active))
	p.mu.Lock()
	p.processing = active
	p.mu.Unlock()
	return nil
}

func (p *GainPlugin) LatencySamples() uint32 {
	return 0
}

func (p *GainPlugin) TailSamples() uint32 {
	return 0
}

// Process multiplies input by the gain value, applying any parameter
// change at the head of the block first, records input events, emits
// queued output events, and reports the block peak on the meter
// parameter.
func (p *GainPlugin) Process(data *vst3.ProcessData) error {
	p.mu.Lock()
	p.processCalls++
	if p.failOnCall != 0 && p.processCalls == p.failOnCall {
		p.mu.Unlock()
		return errors.New("injected process fault")
	}

	if data.InputParamChanges != nil {
		for qi := int32(0); qi < data.InputParamChanges.QueueCount(); qi++ {
			q := data.InputParamChanges.Queue(qi)
			if q.ID == GainParamID && q.PointCount() > 0 {
				p.gain = q.Point(q.PointCount() - 1).Value
			}
		}
	}
	gain := p.gain

	if data.InputEvents != nil {
		for i := int32(0); i < data.InputEvents.Count(); i++ {
			p.received = append(p.received, data.InputEvents.At(i))
		}
	}
	emit := p.emitQueue
	p.emitQueue = nil
	p.mu.Unlock()

	var peak float64
	for b := range data.Outputs {
		for c := range data.Outputs[b].Channels {
			out := data.Outputs[b].Channels[c]
			var in []float32
			if b < len(data.Inputs) && c < len(data.Inputs[b].Channels) {
				in = data.Inputs[b].Channels[c]
			}
			for i := range out {
				var v float32
				if i < len(in) {
					v = in[i] * float32(gain)
				}
				out[i] = v
				if f := float64(v); f > peak {
					peak = f
				} else if -f > peak {
					peak = -f
				}
			}
		}
	}

	if data.OutputEvents != nil {
		for _, ev := range emit {
			_ = data.OutputEvents.Append(ev)
		}
	}
	if data.OutputParamChanges != nil {
		if peak > 1 {
			peak = 1
		}
		if q := data.OutputParamChanges.AddQueue(MeterParamID); q != nil {
			q.Append(vst3.ParamPoint{SampleOffset: data.NumSamples - 1, Value: peak})
		}
	}
	return nil
}

// gainComponentController is the controller facet of a plugin that
// does not use a separate controller class. It shares the component's
// gain value directly.
type gainComponentController GainPlugin

func (c *gainComponentController) plugin() *GainPlugin { return (*GainPlugin)(c) }

func (c *gainComponentController) Initialize(host vst3.HostContext) error { return nil }
func (c *gainComponentController) Terminate() error                      { return nil }

func (c *gainComponentController) SetComponentState(s vst3.Stream) error {
	if c.plugin().ctrlStateFails() {
		return errors.New("injected controller state fault")
	}
	return c.plugin().SetState(s)
}

func (c *gainComponentController) GetState(s vst3.Stream) error {
	if c.plugin().ctrlStateFails() {
		return errors.New("injected controller state fault")
	}
	return vst3.WriteUint32(s, ctrlMagic)
}

func (c *gainComponentController) SetState(s vst3.Stream) error {
	if c.plugin().ctrlStateFails() {
		return errors.New("injected controller state fault")
	}
	magic, err := vst3.ReadUint32(s)
	if err != nil {
		return err
	}
	if magic != ctrlMagic {
		return errors.New("bad controller state magic")
	}
	return nil
}

func (c *gainComponentController) ParameterCount() int32 { return 2 }

func (c *gainComponentController) ParameterInfo(index int32) (vst3.ParamInfo, error) {
	return gainParamInfo(index)
}

func (c *gainComponentController) ParamNormalized(id vst3.ParamID) float64 {
	if id == GainParamID {
		return c.plugin().Gain()
	}
	return 0
}

func (c *gainComponentController) SetParamNormalized(id vst3.ParamID, value float64) error {
	if id != GainParamID && id != MeterParamID {
		return fmt.Errorf("unknown parameter %d", id)
	}
	return nil
}

func (c *gainComponentController) HasEditor() bool { return false }

func (c *gainComponentController) CreateEditor() (vst3.Editor, error) {
	return nil, errors.New("no editor")
}

func (c *gainComponentController) Release() {}

func gainParamInfo(index int32) (vst3.ParamInfo, error) {
	switch index {
	case 0:
		return vst3.ParamInfo{
			ID:                GainParamID,
			Title:             "Gain",
			ShortTitle:        "Gain",
			DefaultNormalized: gainDefault,
			Flags:             vst3.ParamCanAutomate,
		}, nil
	case 1:
		return vst3.ParamInfo{
			ID:                MeterParamID,
			Title:             "Output Level",
			ShortTitle:        "Level",
			DefaultNormalized: 0,
			Flags:             vst3.ParamIsReadOnly,
		}, nil
	}
	return vst3.ParamInfo{}, fmt.Errorf("parameter index %d out of range", index)
}

// gainController is the standalone controller class used when the
// component names a separate controller. It holds its own copy of the
// gain value and learns the component's value through
// SetComponentState.
type gainController struct {
	mu         sync.Mutex
	gain       float64
	Terminated bool
	Released   bool
}

func newGainController() *gainController {
	return &gainController{gain: gainDefault}
}

func (c *gainController) Initialize(host vst3.HostContext) error { return nil }

func (c *gainController) Terminate() error {
	c.Terminated = true
	return nil
}

func (c *gainController) SetComponentState(s vst3.Stream) error {
	magic, err := vst3.ReadUint32(s)
	if err != nil {
		return err
	}
	if magic != stateMagic {
		return errors.New("bad component state magic")
	}
	gain, err := vst3.ReadFloat64(s)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.gain = gain
	c.mu.Unlock()
	return nil
}

func (c *gainController) GetState(s vst3.Stream) error {
	return vst3.WriteUint32(s, ctrlMagic)
}

func (c *gainController) SetState(s vst3.Stream) error {
	magic, err := vst3.ReadUint32(s)
	if err != nil {
		return err
	}
	if magic != ctrlMagic {
		return errors.New("bad controller state magic")
	}
	return nil
}

func (c *gainController) ParameterCount() int32 { return 2 }

func (c *gainController) ParameterInfo(index int32) (vst3.ParamInfo, error) {
	return gainParamInfo(index)
}

func (c *gainController) ParamNormalized(id vst3.ParamID) float64 {
	if id == GainParamID {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.gain
	}
	return 0
}

func (c *gainController) SetParamNormalized(id vst3.ParamID, value float64) error {
	if id == GainParamID {
		c.mu.Lock()
		c.gain = value
		c.mu.Unlock()
		return nil
	}
	if id == MeterParamID {
		return nil
	}
	return fmt.Errorf("unknown parameter %d", id)
}

func (c *gainController) HasEditor() bool { return false }

func (c *gainController) CreateEditor() (vst3.Editor, error) {
	return nil, errors.New("no editor")
}

func (c *gainController) Release() {
	c.Released = true
}
