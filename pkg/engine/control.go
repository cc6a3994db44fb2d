// Package engine is the control plane over the plugin host: a single
// goroutine owns every instance and serializes lifecycle, parameter,
// and state requests, while the audio thread reaches running instances
// through a lock-free lookup.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/justyntemme/vst3host/pkg/host"
	"github.com/justyntemme/vst3host/pkg/midi"
	"github.com/justyntemme/vst3host/pkg/vst3"
)

// InstanceID names one loaded plugin within the engine.
type InstanceID uint64

var (
	ErrEngineClosed    = errors.New("engine: closed")
	ErrUnknownInstance = errors.New("engine: unknown instance")
)

// ParameterStatus is one parameter's descriptor and current value, as
// reported by GetParameters.
type ParameterStatus struct {
	Info  vst3.ParamInfo
	Value float64
}

// Engine owns plugin instances and processes control requests in
// arrival order on a single goroutine. All exported methods except
// ProcessBlock go through that goroutine; ProcessBlock is for the
// audio thread and never touches it.
type Engine struct {
	registry *host.Registry
	setup    vst3.ProcessSetup
	hostCtx  vst3.HostContext
	log      *zap.Logger

	requests chan request
	closed   chan struct{}
	stopOnce sync.Once

	nextID    atomic.Uint64
	instances map[InstanceID]*host.Instance

	// chain is the serial processing order: each instance feeds the
	// next one loaded. Unloading splices the chain back together.
	chain []InstanceID

	// running mirrors instances for the audio thread.
	running sync.Map // InstanceID -> *host.Instance

	// inboxes holds staged MIDI per instance; shared with the audio
	// thread, which drains them at block boundaries.
	inboxes sync.Map // InstanceID -> *midiInbox
}

type request interface {
	execute(e *Engine)
}

func New(registry *host.Registry, setup vst3.ProcessSetup, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		registry:  registry,
		setup:     setup,
		hostCtx:   vst3.HostContext{Name: "vst3host"},
		log:       log,
		requests:  make(chan request),
		closed:    make(chan struct{}),
		instances: make(map[InstanceID]*host.Instance),
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	for {
		select {
		case req := <-e.requests:
			req.execute(e)
		case <-e.closed:
			for id, inst := range e.instances {
				if err := inst.Terminate(); err != nil {
					e.log.Warn("terminate on shutdown", zap.Uint64("instance", uint64(id)), zap.Error(err))
				}
				e.running.Delete(id)
				e.inboxes.Delete(id)
				delete(e.instances, id)
			}
			e.chain = nil
			return
		}
	}
}

// Close unloads every instance and stops the control goroutine.
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.closed) })
}

func (e *Engine) submit(ctx context.Context, req request) error {
	select {
	case e.requests <- req:
		return nil
	case <-e.closed:
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadPlugin creates, initializes, and activates an instance of the
// given class using the engine's process setup.
func (e *Engine) LoadPlugin(ctx context.Context, classID vst3.ClassID) (InstanceID, error) {
	req := &loadRequest{classID: classID, reply: make(chan loadReply, 1)}
	if err := e.submit(ctx, req); err != nil {
		return 0, err
	}
	select {
	case r := <-req.reply:
		return r.id, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

type loadReply struct {
	id  InstanceID
	err error
}

type loadRequest struct {
	classID vst3.ClassID
	reply   chan loadReply
}

func (r *loadRequest) execute(e *Engine) {
	inst, err := e.registry.CreateInstance(r.classID)
	if err != nil {
		r.reply <- loadReply{err: err}
		return
	}
	if err := inst.Initialize(e.hostCtx); err != nil {
		inst.Terminate()
		r.reply <- loadReply{err: err}
		return
	}
	if err := inst.Activate(e.setup); err != nil {
		inst.Terminate()
		r.reply <- loadReply{err: err}
		return
	}
	id := InstanceID(e.nextID.Add(1))
	e.instances[id] = inst
	e.chain = append(e.chain, id)
	e.inboxes.Store(id, newMIDIInbox())
	e.running.Store(id, inst)
	e.log.Info("plugin loaded",
		zap.Uint64("instance", uint64(id)),
		zap.String("plugin", inst.Descriptor().Name))
	r.reply <- loadReply{id: id}
}

// UnloadPlugin deactivates and terminates an instance. The audio
// thread stops seeing it before teardown begins.
func (e *Engine) UnloadPlugin(ctx context.Context, id InstanceID) error {
	req := &unloadRequest{id: id, reply: make(chan error, 1)}
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

type unloadRequest struct {
	id    InstanceID
	reply chan error
}

func (r *unloadRequest) execute(e *Engine) {
	inst, ok := e.instances[r.id]
	if !ok {
		r.reply <- fmt.Errorf("instance %d: %w", r.id, ErrUnknownInstance)
		return
	}
	e.running.Delete(r.id)
	e.inboxes.Delete(r.id)
	delete(e.instances, r.id)
	for i, cid := range e.chain {
		if cid == r.id {
			e.chain = append(e.chain[:i], e.chain[i+1:]...)
			break
		}
	}
	err := inst.Terminate()
	e.log.Info("plugin unloaded", zap.Uint64("instance", uint64(r.id)))
	r.reply <- err
}

// SetParameter stages a normalized value for the instance; the change
// reaches the plugin at the next block boundary.
func (e *Engine) SetParameter(ctx context.Context, id InstanceID, param vst3.ParamID, value float64) error {
	req := &setParamRequest{id: id, param: param, value: value, reply: make(chan error, 1)}
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

type setParamRequest struct {
	id    InstanceID
	param vst3.ParamID
	value float64
	reply chan error
}

func (r *setParamRequest) execute(e *Engine) {
	inst, ok := e.instances[r.id]
	if !ok {
		r.reply <- fmt.Errorf("instance %d: %w", r.id, ErrUnknownInstance)
		return
	}
	r.reply <- inst.Params().Set(r.param, r.value)
}

// GetParameters reports every parameter of the instance with its
// current cached value.
func (e *Engine) GetParameters(ctx context.Context, id InstanceID) ([]ParameterStatus, error) {
	req := &getParamsRequest{id: id, reply: make(chan getParamsReply, 1)}
	if err := e.submit(ctx, req); err != nil {
		return nil, err
	}
	select {
	case r := <-req.reply:
		return r.params, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type getParamsReply struct {
	params []ParameterStatus
	err    error
}

type getParamsRequest struct {
	id    InstanceID
	reply chan getParamsReply
}

func (r *getParamsRequest) execute(e *Engine) {
	inst, ok := e.instances[r.id]
	if !ok {
		r.reply <- getParamsReply{err: fmt.Errorf("instance %d: %w", r.id, ErrUnknownInstance)}
		return
	}
	infos := inst.Params().Infos()
	values := inst.Params().Values()
	params := make([]ParameterStatus, len(infos))
	for i := range infos {
		params[i] = ParameterStatus{Info: infos[i], Value: values[i]}
	}
	r.reply <- getParamsReply{params: params}
}

// SnapshotState serializes the instance's state into a framed blob.
func (e *Engine) SnapshotState(ctx context.Context, id InstanceID) ([]byte, error) {
	req := &snapshotRequest{id: id, reply: make(chan snapshotReply, 1)}
	if err := e.submit(ctx, req); err != nil {
		return nil, err
	}
	select {
	case r := <-req.reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type snapshotReply struct {
	data []byte
	err  error
}

type snapshotRequest struct {
	id    InstanceID
	reply chan snapshotReply
}

func (r *snapshotRequest) execute(e *Engine) {
	inst, ok := e.instances[r.id]
	if !ok {
		r.reply <- snapshotReply{err: fmt.Errorf("instance %d: %w", r.id, ErrUnknownInstance)}
		return
	}
	st, err := inst.Snapshot()
	if err != nil {
		r.reply <- snapshotReply{err: err}
		return
	}
	r.reply <- snapshotReply{data: st.Marshal()}
}

// RestoreState loads a framed blob produced by SnapshotState into the
// instance. The blob must belong to the same plugin class.
func (e *Engine) RestoreState(ctx context.Context, id InstanceID, data []byte) error {
	req := &restoreRequest{id: id, data: data, reply: make(chan error, 1)}
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

type restoreRequest struct {
	id    InstanceID
	data  []byte
	reply chan error
}

func (r *restoreRequest) execute(e *Engine) {
	inst, ok := e.instances[r.id]
	if !ok {
		r.reply <- fmt.Errorf("instance %d: %w", r.id, ErrUnknownInstance)
		return
	}
	st, err := host.UnmarshalPluginState(r.data)
	if err != nil {
		r.reply <- err
		return
	}
	r.reply <- inst.Restore(st)
}

// ProcessBlock runs one block through a loaded instance. Audio thread
// only; it does not pass through the control goroutine. MIDI staged
// through SendMIDI is delivered ahead of the caller's events.
func (e *Engine) ProcessBlock(id InstanceID, frames int32, in, out [][][]float32, events []midi.Event) error {
	v, ok := e.running.Load(id)
	if !ok {
		return ErrUnknownInstance
	}
	if b, ok := e.inboxes.Load(id); ok {
		events = b.(*midiInbox).take(events)
	}
	return v.(*host.Instance).ProcessBlock(frames, in, out, events)
}
