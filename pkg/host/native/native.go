//go:build linux || darwin

package native

/*
#cgo LDFLAGS: -ldl

#include <stdlib.h>
#include <dlfcn.h>
#include "vst3_c.h"

typedef struct v3_plugin_factory* (*v3h_get_factory_fn)(void);
typedef uint8_t (*v3h_entry_fn)(void*);
typedef uint8_t (*v3h_exit_fn)(void);

static void* v3h_call_get_factory(void* sym) {
	return (void*)((v3h_get_factory_fn)sym)();
}

static uint8_t v3h_call_entry(void* sym, void* lib) {
	return ((v3h_entry_fn)sym)(lib);
}

static uint8_t v3h_call_exit(void* sym) {
	return ((v3h_exit_fn)sym)();
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unicode/utf16"
	"unsafe"

	"go.uber.org/zap"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

var (
	errFactoryUnavailable = errors.New("native: factory unavailable")
	errCallFailed         = errors.New("native: plugin call failed")
)

// Interface IDs the host asks plugin objects for.
var (
	iidComponent      = mustIID("E831FF31F2D54301928EBBEE25697802")
	iidAudioProcessor = mustIID("42043F99B7DA453CA569E79D9AAEC33D")
	iidEditController = mustIID("DCD7BBE37742448DA874AAC8C944D1EB")
	iidFactory2       = mustIID("0007B650F24B4C0BA464EDB9F00B2ABB")
)

func mustIID(s string) vst3.ClassID {
	id, err := vst3.ParseClassID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func resultErr(res C.v3_result) error {
	return vst3.Result(res).Err()
}

// Backend loads bundles with dlopen and adapts their factories. One
// host application object is shared by every plugin it opens.
type Backend struct {
	log     *zap.Logger
	hostApp *C.v3h_obj
}

func NewBackend(log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		log:     log,
		hostApp: C.v3h_host_app_new(),
	}
}

func (b *Backend) Open(bundlePath string) (vst3.Factory, error) {
	bin, err := binaryPath(bundlePath)
	if err != nil {
		return nil, err
	}

	cpath := C.CString(bin)
	defer C.free(unsafe.Pointer(cpath))
	lib := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if lib == nil {
		return nil, fmt.Errorf("%w: dlopen %s: %s", errInvalidBundle, bin, C.GoString(C.dlerror()))
	}

	entryName, exitName := moduleEntryNames()
	if sym := b.symbol(lib, entryName); sym != nil {
		if C.v3h_call_entry(sym, lib) == 0 {
			C.dlclose(lib)
			return nil, fmt.Errorf("%w: %s refused in %s", errInvalidBundle, entryName, bin)
		}
	}

	factorySym := b.symbol(lib, "GetPluginFactory")
	if factorySym == nil {
		b.moduleExit(lib, exitName)
		C.dlclose(lib)
		return nil, fmt.Errorf("%w: no GetPluginFactory in %s", errFactoryUnavailable, bin)
	}
	ptr := C.v3h_call_get_factory(factorySym)
	if ptr == nil {
		b.moduleExit(lib, exitName)
		C.dlclose(lib)
		return nil, fmt.Errorf("%w: GetPluginFactory returned nothing in %s", errFactoryUnavailable, bin)
	}

	f := &factory{backend: b, lib: lib, ptr: ptr, exitName: exitName}

	// Newer plugins also expose IPluginFactory2, which carries vendor
	// and version per class instead of per factory.
	var f2 unsafe.Pointer
	if resultErr(C.v3h_query_interface(ptr, (*C.uint8_t)(unsafe.Pointer(&iidFactory2[0])), &f2)) == nil && f2 != nil {
		f.ptr2 = f2
	}

	b.log.Debug("bundle opened", zap.String("binary", bin))
	return f, nil
}

func (b *Backend) symbol(lib unsafe.Pointer, name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.dlsym(lib, cname)
}

func (b *Backend) moduleExit(lib unsafe.Pointer, exitName string) {
	if sym := b.symbol(lib, exitName); sym != nil {
		C.v3h_call_exit(sym)
	}
}

func moduleEntryNames() (entry, exit string) {
	if runtime.GOOS == "darwin" {
		return "bundleEntry", "bundleExit"
	}
	return "ModuleEntry", "ModuleExit"
}

/* ------------------------------------------------------------------ */

type factory struct {
	backend  *Backend
	lib      unsafe.Pointer
	ptr      unsafe.Pointer
	ptr2     unsafe.Pointer // IPluginFactory2, nil when unsupported
	exitName string
	vendor   string
}

func (f *factory) ClassCount() int32 {
	return int32(C.v3h_factory_count_classes(f.ptr))
}

func (f *factory) ClassInfo(index int32) (vst3.ClassInfo, error) {
	if f.ptr2 != nil {
		var ci2 C.struct_v3_class_info_2
		if resultErr(C.v3h_factory2_get_class_info(f.ptr2, C.int32_t(index), &ci2)) == nil {
			info := vst3.ClassInfo{
				Name:     charArrayToString(unsafe.Pointer(&ci2.name[0]), len(ci2.name)),
				Category: charArrayToString(unsafe.Pointer(&ci2.category[0]), len(ci2.category)),
				Vendor:   charArrayToString(unsafe.Pointer(&ci2.vendor[0]), len(ci2.vendor)),
				Version:  charArrayToString(unsafe.Pointer(&ci2.version[0]), len(ci2.version)),
			}
			if info.Vendor == "" {
				info.Vendor = f.factoryVendor()
			}
			copy(info.ID[:], (*[16]byte)(unsafe.Pointer(&ci2.class_id[0]))[:])
			return info, nil
		}
	}

	var ci C.struct_v3_class_info
	if err := resultErr(C.v3h_factory_get_class_info(f.ptr, C.int32_t(index), &ci)); err != nil {
		return vst3.ClassInfo{}, fmt.Errorf("class info %d: %w", index, err)
	}
	info := vst3.ClassInfo{
		Name:     charArrayToString(unsafe.Pointer(&ci.name[0]), len(ci.name)),
		Category: charArrayToString(unsafe.Pointer(&ci.category[0]), len(ci.category)),
		Vendor:   f.factoryVendor(),
	}
	copy(info.ID[:], (*[16]byte)(unsafe.Pointer(&ci.class_id[0]))[:])
	return info, nil
}

func (f *factory) factoryVendor() string {
	if f.vendor != "" {
		return f.vendor
	}
	var fi C.struct_v3_factory_info
	if resultErr(C.v3h_factory_get_factory_info(f.ptr, &fi)) == nil {
		f.vendor = charArrayToString(unsafe.Pointer(&fi.vendor[0]), len(fi.vendor))
	}
	return f.vendor
}

func (f *factory) CreateComponent(id vst3.ClassID) (vst3.Component, error) {
	ptr, err := f.createInstance(id, iidComponent)
	if err != nil {
		return nil, err
	}
	return &component{backend: f.backend, factory: f, ptr: ptr}, nil
}

func (f *factory) CreateController(id vst3.ClassID) (vst3.Controller, error) {
	ptr, err := f.createInstance(id, iidEditController)
	if err != nil {
		return nil, err
	}
	return &controller{backend: f.backend, ptr: ptr}, nil
}

func (f *factory) createInstance(cid, iid vst3.ClassID) (unsafe.Pointer, error) {
	var out unsafe.Pointer
	res := C.v3h_factory_create_instance(f.ptr,
		(*C.uint8_t)(unsafe.Pointer(&cid[0])),
		(*C.uint8_t)(unsafe.Pointer(&iid[0])),
		&out)
	if err := resultErr(res); err != nil {
		return nil, fmt.Errorf("creating %s: %w", cid, err)
	}
	if out == nil {
		return nil, fmt.Errorf("creating %s: %w", cid, errCallFailed)
	}
	return out, nil
}

func (f *factory) Release() {
	if f.ptr2 != nil {
		C.v3h_release(f.ptr2)
		f.ptr2 = nil
	}
	if f.ptr != nil {
		C.v3h_release(f.ptr)
		f.ptr = nil
	}
	if f.lib != nil {
		f.backend.moduleExit(f.lib, f.exitName)
		C.dlclose(f.lib)
		f.lib = nil
	}
}

/* ------------------------------------------------------------------ */

type component struct {
	backend *Backend
	factory *factory
	ptr     unsafe.Pointer
}

func (c *component) Initialize(host vst3.HostContext) error {
	_ = host // identity comes from the shared host application object
	return resultErr(C.v3h_comp_initialize(c.ptr, unsafe.Pointer(c.backend.hostApp)))
}

func (c *component) Terminate() error {
	return resultErr(C.v3h_comp_terminate(c.ptr))
}

func (c *component) ControllerClassID() (vst3.ClassID, bool) {
	var out vst3.ClassID
	res := C.v3h_comp_get_controller_class_id(c.ptr, (*C.uint8_t)(unsafe.Pointer(&out[0])))
	if resultErr(res) != nil || out.IsZero() {
		return vst3.ClassID{}, false
	}
	return out, true
}

func (c *component) BusCount(media vst3.MediaType, dir vst3.BusDirection) int32 {
	return int32(C.v3h_comp_get_bus_count(c.ptr, C.int32_t(media), C.int32_t(dir)))
}

func (c *component) BusInfo(media vst3.MediaType, dir vst3.BusDirection, index int32) (vst3.BusInfo, error) {
	var bi C.struct_v3_bus_info
	res := C.v3h_comp_get_bus_info(c.ptr, C.int32_t(media), C.int32_t(dir), C.int32_t(index), &bi)
	if err := resultErr(res); err != nil {
		return vst3.BusInfo{}, fmt.Errorf("bus %d: %w", index, err)
	}
	return vst3.BusInfo{
		MediaType:    vst3.MediaType(bi.media_type),
		Direction:    vst3.BusDirection(bi.direction),
		Index:        index,
		Name:         str128ToString(&bi.name),
		ChannelCount: int32(bi.channel_count),
		BusType:      vst3.BusType(bi.bus_type),
	}, nil
}

func (c *component) ActivateBus(media vst3.MediaType, dir vst3.BusDirection, index int32, active bool) error {
	return resultErr(C.v3h_comp_activate_bus(c.ptr,
		C.int32_t(media), C.int32_t(dir), C.int32_t(index), cbool(active)))
}

func (c *component) SetActive(active bool) error {
	return resultErr(C.v3h_comp_set_active(c.ptr, cbool(active)))
}

func (c *component) GetState(s vst3.Stream) error {
	return withStream(s, func(cs *C.v3h_obj) error {
		return resultErr(C.v3h_comp_get_state(c.ptr, unsafe.Pointer(cs)))
	})
}

func (c *component) SetState(s vst3.Stream) error {
	return withStream(s, func(cs *C.v3h_obj) error {
		return resultErr(C.v3h_comp_set_state(c.ptr, unsafe.Pointer(cs)))
	})
}

func (c *component) QueryProcessor() (vst3.Processor, bool) {
	var out unsafe.Pointer
	res := C.v3h_query_interface(c.ptr, (*C.uint8_t)(unsafe.Pointer(&iidAudioProcessor[0])), &out)
	if resultErr(res) != nil || out == nil {
		return nil, false
	}
	return &processor{comp: c, ptr: out}, true
}

func (c *component) QueryController() (vst3.Controller, bool) {
	var out unsafe.Pointer
	res := C.v3h_query_interface(c.ptr, (*C.uint8_t)(unsafe.Pointer(&iidEditController[0])), &out)
	if resultErr(res) != nil || out == nil {
		return nil, false
	}
	return &controller{backend: c.backend, ptr: out}, true
}

func (c *component) Release() {
	if c.ptr != nil {
		C.v3h_release(c.ptr)
		c.ptr = nil
	}
}

/* ------------------------------------------------------------------ */

// Per-block staging limits for the C side of the process call.
const (
	nativeEventSlots   = 1024
	nativeDataSlotSize = 128
	nativeMaxQueues    = 1024
)

// processor adapts IAudioProcessor. Audio samples cross the boundary
// through C-allocated buffers sized at SetupProcessing; Process only
// copies in and out of them, so the block path does not allocate and
// the plugin never sees Go memory.
type processor struct {
	comp *component
	ptr  unsafe.Pointer

	maxFrames int32
	cData     *C.struct_v3_process_data
	cAllocs   []unsafe.Pointer
	inViews   [][][]float32
	outViews  [][][]float32
	cIn       []C.struct_v3_audio_bus_buffers
	cOut      []C.struct_v3_audio_bus_buffers

	inEvents   *eventListRef
	outEvents  *eventListRef
	inChanges  *paramChangesRef
	outChanges *paramChangesRef
	refHandles []uintptr

	cInEvents   *C.v3h_obj
	cOutEvents  *C.v3h_obj
	cInChanges  *C.v3h_param_changes
	cOutChanges *C.v3h_param_changes
}

func (p *processor) CanProcess32Bit() bool {
	return C.v3h_proc_can_process_sample_size(p.ptr, C.V3_SAMPLE_32) == C.V3_OK
}

func (p *processor) SetupProcessing(setup vst3.ProcessSetup) error {
	mode := C.int32_t(C.V3_REALTIME)
	if !setup.Realtime {
		mode = C.V3_OFFLINE
	}
	cs := C.struct_v3_process_setup{
		process_mode:          mode,
		symbolic_sample_size:  C.V3_SAMPLE_32,
		max_samples_per_block: C.int32_t(setup.MaxBlockFrames),
		sample_rate:           C.double(setup.SampleRate),
	}
	if err := resultErr(C.v3h_proc_setup_processing(p.ptr, &cs)); err != nil {
		return err
	}
	return p.allocScratch(setup.MaxBlockFrames)
}

func (p *processor) allocScratch(maxFrames int32) error {
	p.freeScratch()
	p.maxFrames = maxFrames

	var err error
	p.cIn, p.inViews, err = p.allocBuses(vst3.BusInput, maxFrames)
	if err != nil {
		return err
	}
	p.cOut, p.outViews, err = p.allocBuses(vst3.BusOutput, maxFrames)
	if err != nil {
		return err
	}

	p.inEvents = p.newEventRef()
	p.outEvents = p.newEventRef()
	p.inChanges = &paramChangesRef{}
	p.outChanges = &paramChangesRef{}

	hInEv := registerHandle(p.inEvents)
	hOutEv := registerHandle(p.outEvents)
	hInCh := registerHandle(p.inChanges)
	hOutCh := registerHandle(p.outChanges)
	p.refHandles = []uintptr{hInEv, hOutEv, hInCh, hOutCh}

	p.cInEvents = C.v3h_event_list_new(C.uintptr_t(hInEv))
	p.cOutEvents = C.v3h_event_list_new(C.uintptr_t(hOutEv))
	p.cInChanges = C.v3h_param_changes_new(C.uintptr_t(hInCh), nativeMaxQueues)
	p.cOutChanges = C.v3h_param_changes_new(C.uintptr_t(hOutCh), nativeMaxQueues)

	data := (*C.struct_v3_process_data)(p.calloc(1, C.sizeof_struct_v3_process_data))
	data.process_mode = C.V3_REALTIME
	data.symbolic_sample_size = C.V3_SAMPLE_32
	data.num_inputs = C.int32_t(len(p.cIn))
	data.num_outputs = C.int32_t(len(p.cOut))
	if len(p.cIn) > 0 {
		data.inputs = &p.cIn[0]
	}
	if len(p.cOut) > 0 {
		data.outputs = &p.cOut[0]
	}
	data.input_param_changes = unsafe.Pointer(p.cInChanges)
	data.output_param_changes = unsafe.Pointer(p.cOutChanges)
	data.input_events = unsafe.Pointer(p.cInEvents)
	data.output_events = unsafe.Pointer(p.cOutEvents)
	p.cData = data
	return nil
}

func (p *processor) newEventRef() *eventListRef {
	arena := p.calloc(nativeEventSlots, nativeDataSlotSize)
	return &eventListRef{
		arena:     arena,
		slotSize:  nativeDataSlotSize,
		slotCount: nativeEventSlots,
	}
}

// allocBuses sizes one direction's bus descriptors and sample buffers
// in C memory and returns Go views over the samples for copying.
func (p *processor) allocBuses(dir vst3.BusDirection, maxFrames int32) ([]C.struct_v3_audio_bus_buffers, [][][]float32, error) {
	count := p.comp.BusCount(vst3.MediaAudio, dir)
	if count == 0 {
		return nil, nil, nil
	}
	busMem := p.calloc(int(count), C.sizeof_struct_v3_audio_bus_buffers)
	buses := unsafe.Slice((*C.struct_v3_audio_bus_buffers)(busMem), int(count))
	views := make([][][]float32, count)

	for i := int32(0); i < count; i++ {
		info, err := p.comp.BusInfo(vst3.MediaAudio, dir, i)
		if err != nil {
			return nil, nil, err
		}
		nch := int(info.ChannelCount)
		ptrMem := p.calloc(nch, C.size_t(unsafe.Sizeof(uintptr(0))))
		chanPtrs := unsafe.Slice((**C.float)(ptrMem), nch)
		views[i] = make([][]float32, nch)
		for c := 0; c < nch; c++ {
			buf := p.calloc(int(maxFrames), C.sizeof_float)
			chanPtrs[c] = (*C.float)(buf)
			views[i][c] = unsafe.Slice((*float32)(buf), int(maxFrames))
		}
		buses[i].num_channels = C.int32_t(nch)
		buses[i].channel_buffers_32 = (**C.float)(ptrMem)
	}
	return buses, views, nil
}

func (p *processor) calloc(n int, size C.size_t) unsafe.Pointer {
	mem := C.calloc(C.size_t(n), size)
	p.cAllocs = append(p.cAllocs, mem)
	return mem
}

func (p *processor) SetProcessing(active bool) error {
	return resultErr(C.v3h_proc_set_processing(p.ptr, cbool(active)))
}

func (p *processor) Process(data *vst3.ProcessData) error {
	if p.cData == nil {
		return fmt.Errorf("%w: processing not set up", errCallFailed)
	}
	frames := data.NumSamples
	if frames > p.maxFrames {
		return fmt.Errorf("%w: %d frames exceeds setup maximum %d", errCallFailed, frames, p.maxFrames)
	}
	if len(data.Inputs) != len(p.cIn) || len(data.Outputs) != len(p.cOut) {
		return fmt.Errorf("%w: bus layout changed since setup", errCallFailed)
	}

	for i := range data.Inputs {
		if len(data.Inputs[i].Channels) != len(p.inViews[i]) {
			return fmt.Errorf("%w: input bus %d channel count changed", errCallFailed, i)
		}
		for c, ch := range data.Inputs[i].Channels {
			copy(p.inViews[i][c][:frames], ch[:frames])
		}
		p.cIn[i].silence_flags = C.uint64_t(data.Inputs[i].SilenceFlags)
	}
	for i := range p.cOut {
		p.cOut[i].silence_flags = 0
	}

	p.inEvents.list = data.InputEvents
	p.outEvents.list = data.OutputEvents
	p.inChanges.changes = data.InputParamChanges
	p.outChanges.changes = data.OutputParamChanges

	p.cData.num_samples = C.int32_t(frames)
	err := resultErr(C.v3h_proc_process(p.ptr, p.cData))

	p.inEvents.list = nil
	p.outEvents.list = nil
	p.inChanges.changes = nil
	p.outChanges.changes = nil
	if err != nil {
		return err
	}

	for i := range data.Outputs {
		if len(data.Outputs[i].Channels) != len(p.outViews[i]) {
			return fmt.Errorf("%w: output bus %d channel count changed", errCallFailed, i)
		}
		for c := range data.Outputs[i].Channels {
			copy(data.Outputs[i].Channels[c][:frames], p.outViews[i][c][:frames])
		}
		data.Outputs[i].SilenceFlags = uint64(p.cOut[i].silence_flags)
	}
	return nil
}

func (p *processor) LatencySamples() uint32 {
	return uint32(C.v3h_proc_get_latency_samples(p.ptr))
}

func (p *processor) TailSamples() uint32 {
	return uint32(C.v3h_proc_get_tail_samples(p.ptr))
}

func (p *processor) freeScratch() {
	if p.cInEvents != nil {
		C.v3h_obj_release(p.cInEvents)
		p.cInEvents = nil
	}
	if p.cOutEvents != nil {
		C.v3h_obj_release(p.cOutEvents)
		p.cOutEvents = nil
	}
	if p.cInChanges != nil {
		C.v3h_param_changes_free(p.cInChanges)
		p.cInChanges = nil
	}
	if p.cOutChanges != nil {
		C.v3h_param_changes_free(p.cOutChanges)
		p.cOutChanges = nil
	}
	for _, h := range p.refHandles {
		dropHandle(h)
	}
	p.refHandles = nil
	for _, mem := range p.cAllocs {
		C.free(mem)
	}
	p.cAllocs = nil
	p.cData = nil
	p.cIn, p.cOut = nil, nil
	p.inViews, p.outViews = nil, nil
}

func (p *processor) Release() {
	p.freeScratch()
	if p.ptr != nil {
		C.v3h_release(p.ptr)
		p.ptr = nil
	}
}

/* ------------------------------------------------------------------ */

type controller struct {
	backend *Backend
	ptr     unsafe.Pointer
}

func (c *controller) Initialize(host vst3.HostContext) error {
	_ = host
	return resultErr(C.v3h_ctrl_initialize(c.ptr, unsafe.Pointer(c.backend.hostApp)))
}

func (c *controller) Terminate() error {
	return resultErr(C.v3h_ctrl_terminate(c.ptr))
}

func (c *controller) SetComponentState(s vst3.Stream) error {
	return withStream(s, func(cs *C.v3h_obj) error {
		return resultErr(C.v3h_ctrl_set_component_state(c.ptr, unsafe.Pointer(cs)))
	})
}

func (c *controller) GetState(s vst3.Stream) error {
	return withStream(s, func(cs *C.v3h_obj) error {
		return resultErr(C.v3h_ctrl_get_state(c.ptr, unsafe.Pointer(cs)))
	})
}

func (c *controller) SetState(s vst3.Stream) error {
	return withStream(s, func(cs *C.v3h_obj) error {
		return resultErr(C.v3h_ctrl_set_state(c.ptr, unsafe.Pointer(cs)))
	})
}

func (c *controller) ParameterCount() int32 {
	return int32(C.v3h_ctrl_get_parameter_count(c.ptr))
}

func (c *controller) ParameterInfo(index int32) (vst3.ParamInfo, error) {
	var pi C.struct_v3_param_info
	if err := resultErr(C.v3h_ctrl_get_parameter_info(c.ptr, C.int32_t(index), &pi)); err != nil {
		return vst3.ParamInfo{}, fmt.Errorf("parameter info %d: %w", index, err)
	}
	return vst3.ParamInfo{
		ID:                vst3.ParamID(pi.param_id),
		Title:             str128ToString(&pi.title),
		ShortTitle:        str128ToString(&pi.short_title),
		Units:             str128ToString(&pi.units),
		StepCount:         int32(pi.step_count),
		DefaultNormalized: float64(pi.default_normalized_value),
		Flags:             vst3.ParamFlags(pi.flags),
	}, nil
}

func (c *controller) ParamNormalized(id vst3.ParamID) float64 {
	return float64(C.v3h_ctrl_get_param_normalized(c.ptr, C.uint32_t(id)))
}

func (c *controller) SetParamNormalized(id vst3.ParamID, value float64) error {
	return resultErr(C.v3h_ctrl_set_param_normalized(c.ptr, C.uint32_t(id), C.double(value)))
}

func (c *controller) HasEditor() bool {
	view := c.createView()
	if view == nil {
		return false
	}
	C.v3h_release(view)
	return true
}

func (c *controller) CreateEditor() (vst3.Editor, error) {
	view := c.createView()
	if view == nil {
		return nil, fmt.Errorf("%w: no editor view", errCallFailed)
	}
	return &editor{ptr: view}, nil
}

func (c *controller) createView() unsafe.Pointer {
	name := C.CString("editor")
	defer C.free(unsafe.Pointer(name))
	return C.v3h_ctrl_create_view(c.ptr, name)
}

func (c *controller) Release() {
	if c.ptr != nil {
		C.v3h_release(c.ptr)
		c.ptr = nil
	}
}

type editor struct {
	ptr unsafe.Pointer
}

func platformViewType() string {
	if runtime.GOOS == "darwin" {
		return "NSView"
	}
	return "X11EmbedWindowID"
}

func (e *editor) Attach(parent uintptr) error {
	ptype := C.CString(platformViewType())
	defer C.free(unsafe.Pointer(ptype))
	return resultErr(C.v3h_view_attached(e.ptr, unsafe.Pointer(parent), ptype))
}

func (e *editor) Detach() error {
	return resultErr(C.v3h_view_removed(e.ptr))
}

func (e *editor) Release() {
	if e.ptr != nil {
		C.v3h_release(e.ptr)
		e.ptr = nil
	}
}

/* ------------------------------------------------------------------ */

// withStream wraps a Go stream in a C IBStream for the duration of one
// plugin call.
func withStream(s vst3.Stream, call func(*C.v3h_obj) error) error {
	h := registerHandle(s)
	cs := C.v3h_stream_new(C.uintptr_t(h))
	defer C.v3h_obj_release(cs)
	return call(cs)
}

func cbool(b bool) C.uint8_t {
	if b {
		return 1
	}
	return 0
}

func charArrayToString(p unsafe.Pointer, max int) string {
	bytes := unsafe.Slice((*byte)(p), max)
	for i, b := range bytes {
		if b == 0 {
			return string(bytes[:i])
		}
	}
	return string(bytes)
}

func str128ToString(p *C.v3_str128) string {
	buf := make([]uint16, 0, len(p))
	for _, c := range p {
		if c == 0 {
			break
		}
		buf = append(buf, uint16(c))
	}
	return string(utf16.Decode(buf))
}
