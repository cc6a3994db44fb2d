//go:build linux || darwin

package native

/*
#include "vst3_c.h"
*/
import "C"

import (
	"io"
	"sync"
	"unsafe"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

// handles maps the opaque integers carried by C-side host objects back
// to their Go implementations. Handles are never reused within a
// process lifetime.
var handles = struct {
	mu   sync.Mutex
	next uintptr
	m    map[uintptr]any
}{next: 1, m: make(map[uintptr]any)}

func registerHandle(v any) uintptr {
	handles.mu.Lock()
	h := handles.next
	handles.next++
	handles.m[h] = v
	handles.mu.Unlock()
	return h
}

func lookupHandle(h uintptr) any {
	handles.mu.Lock()
	v := handles.m[h]
	handles.mu.Unlock()
	return v
}

func dropHandle(h uintptr) {
	handles.mu.Lock()
	delete(handles.m, h)
	handles.mu.Unlock()
}

// eventListRef and paramChangesRef are registered once per processor;
// their targets are re-aimed at the current block's lists before each
// process call, so the C objects stay stable across blocks.
type eventListRef struct {
	list *vst3.EventList

	// arena is C memory used to stage data-event payloads handed to
	// the plugin; slot i holds the bytes of event i.
	arena     unsafe.Pointer
	slotSize  int
	slotCount int
}

type paramChangesRef struct {
	changes *vst3.ParameterChanges
}

func streamFor(h C.uintptr_t) vst3.Stream {
	s, _ := lookupHandle(uintptr(h)).(vst3.Stream)
	return s
}

func eventsFor(h C.uintptr_t) *eventListRef {
	r, _ := lookupHandle(uintptr(h)).(*eventListRef)
	return r
}

func changesFor(h C.uintptr_t) *vst3.ParameterChanges {
	r, _ := lookupHandle(uintptr(h)).(*paramChangesRef)
	if r == nil {
		return nil
	}
	return r.changes
}

//export goObjRelease
func goObjRelease(h C.uintptr_t) {
	dropHandle(uintptr(h))
}

//export goStreamRead
func goStreamRead(h C.uintptr_t, buf unsafe.Pointer, n C.int32_t, read *C.int32_t) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	s := streamFor(h)
	if s == nil || buf == nil || n < 0 {
		return C.V3_INVALID_ARG
	}
	dst := unsafe.Slice((*byte)(buf), int(n))
	got, err := s.Read(dst)
	if read != nil {
		*read = C.int32_t(got)
	}
	if err != nil && err != io.EOF {
		return C.V3_INTERNAL_ERR
	}
	return C.V3_OK
}

//export goStreamWrite
func goStreamWrite(h C.uintptr_t, buf unsafe.Pointer, n C.int32_t, written *C.int32_t) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	s := streamFor(h)
	if s == nil || buf == nil || n < 0 {
		return C.V3_INVALID_ARG
	}
	src := unsafe.Slice((*byte)(buf), int(n))
	got, err := s.Write(src)
	if written != nil {
		*written = C.int32_t(got)
	}
	if err != nil {
		return C.V3_INTERNAL_ERR
	}
	return C.V3_OK
}

//export goStreamSeek
func goStreamSeek(h C.uintptr_t, pos C.int64_t, mode C.int32_t, result *C.int64_t) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	s := streamFor(h)
	if s == nil {
		return C.V3_INVALID_ARG
	}
	// IBStream seek modes match io's whence values.
	np, err := s.Seek(int64(pos), int(mode))
	if err != nil {
		return C.V3_INVALID_ARG
	}
	if result != nil {
		*result = C.int64_t(np)
	}
	return C.V3_OK
}

//export goStreamTell
func goStreamTell(h C.uintptr_t, pos *C.int64_t) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	s := streamFor(h)
	if s == nil || pos == nil {
		return C.V3_INVALID_ARG
	}
	*pos = C.int64_t(s.Tell())
	return C.V3_OK
}

//export goEventListCount
func goEventListCount(h C.uintptr_t) C.int32_t {
	r := eventsFor(h)
	if r == nil || r.list == nil {
		return 0
	}
	return C.int32_t(r.list.Count())
}

//export goEventListGet
func goEventListGet(h C.uintptr_t, index C.int32_t, out *C.struct_v3_event) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	r := eventsFor(h)
	if r == nil || r.list == nil || out == nil {
		return C.V3_INVALID_ARG
	}
	idx := int32(index)
	if idx < 0 || idx >= r.list.Count() {
		return C.V3_INVALID_ARG
	}
	ev := r.list.At(idx)
	switch ev.Kind {
	case vst3.EventNoteOn:
		C.v3h_event_make_note_on(out, C.int32_t(ev.BusIndex), C.int32_t(ev.SampleOffset),
			C.int16_t(ev.Channel), C.int16_t(ev.Pitch), C.float(ev.Velocity))
	case vst3.EventNoteOff:
		C.v3h_event_make_note_off(out, C.int32_t(ev.BusIndex), C.int32_t(ev.SampleOffset),
			C.int16_t(ev.Channel), C.int16_t(ev.Pitch), C.float(ev.Velocity))
	case vst3.EventController:
		C.v3h_event_make_midi_cc(out, C.int32_t(ev.BusIndex), C.int32_t(ev.SampleOffset),
			C.int8_t(ev.Channel), C.uint8_t(ev.Controller),
			C.int8_t(ev.CCValue), C.int8_t(ev.CCValue2))
	case vst3.EventData:
		n := len(ev.Data)
		if n > r.slotSize {
			n = r.slotSize
		}
		if r.arena == nil || int(index) >= r.slotCount {
			return C.V3_INTERNAL_ERR
		}
		slot := unsafe.Add(r.arena, int(index)*r.slotSize)
		copy(unsafe.Slice((*byte)(slot), n), ev.Data[:n])
		C.v3h_event_make_data(out, C.int32_t(ev.BusIndex), C.int32_t(ev.SampleOffset),
			(*C.uint8_t)(slot), C.uint32_t(n))
	default:
		return C.V3_INVALID_ARG
	}
	return C.V3_OK
}

//export goEventListAdd
func goEventListAdd(h C.uintptr_t, e *C.struct_v3_event) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	r := eventsFor(h)
	if r == nil || r.list == nil || e == nil {
		return C.V3_INVALID_ARG
	}
	ev := vst3.Event{
		BusIndex:     int32(C.v3h_event_bus(e)),
		SampleOffset: int32(C.v3h_event_offset(e)),
	}
	switch C.v3h_event_type(e) {
	case C.V3_EVENT_NOTE_ON:
		ev.Kind = vst3.EventNoteOn
		ev.Channel = int16(C.v3h_event_note_channel(e))
		ev.Pitch = int16(C.v3h_event_note_pitch(e))
		ev.Velocity = float32(C.v3h_event_note_velocity(e))
	case C.V3_EVENT_NOTE_OFF:
		ev.Kind = vst3.EventNoteOff
		ev.Channel = int16(C.v3h_event_note_channel(e))
		ev.Pitch = int16(C.v3h_event_note_pitch(e))
		ev.Velocity = float32(C.v3h_event_note_velocity(e))
	case C.V3_EVENT_LEGACY_MIDI_CC_OUT:
		ev.Kind = vst3.EventController
		ev.Channel = int16(C.v3h_event_cc_channel(e))
		ev.Controller = uint8(C.v3h_event_cc_control(e))
		ev.CCValue = uint8(C.v3h_event_cc_value(e))
		ev.CCValue2 = uint8(C.v3h_event_cc_value2(e))
	case C.V3_EVENT_DATA:
		ev.Kind = vst3.EventData
		size := int(C.v3h_event_data_size(e))
		bytes := C.v3h_event_data_bytes(e)
		if size > 0 && bytes != nil {
			ev.Data = C.GoBytes(unsafe.Pointer(bytes), C.int(size))
		}
	default:
		// Unrepresented event types are accepted and dropped.
		return C.V3_OK
	}
	if err := r.list.Append(ev); err != nil {
		return C.V3_FALSE
	}
	return C.V3_OK
}

//export goParamChangesCount
func goParamChangesCount(h C.uintptr_t) C.int32_t {
	ch := changesFor(h)
	if ch == nil {
		return 0
	}
	return C.int32_t(ch.QueueCount())
}

//export goParamChangesAdd
func goParamChangesAdd(h C.uintptr_t, id C.uint32_t, index *C.int32_t) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	ch := changesFor(h)
	if ch == nil || index == nil {
		return C.V3_INVALID_ARG
	}
	q := ch.AddQueue(vst3.ParamID(id))
	if q == nil {
		return C.V3_FALSE
	}
	for i := int32(0); i < ch.QueueCount(); i++ {
		if ch.Queue(i) == q {
			*index = C.int32_t(i)
			return C.V3_OK
		}
	}
	return C.V3_INTERNAL_ERR
}

//export goQueueId
func goQueueId(owner C.uintptr_t, index C.int32_t) C.uint32_t {
	ch := changesFor(owner)
	idx := int32(index)
	if ch == nil || idx < 0 || idx >= ch.QueueCount() {
		return 0
	}
	return C.uint32_t(ch.Queue(idx).ID)
}

//export goQueuePointCount
func goQueuePointCount(owner C.uintptr_t, index C.int32_t) C.int32_t {
	ch := changesFor(owner)
	idx := int32(index)
	if ch == nil || idx < 0 || idx >= ch.QueueCount() {
		return 0
	}
	return C.int32_t(ch.Queue(idx).PointCount())
}

//export goQueueGetPoint
func goQueueGetPoint(owner C.uintptr_t, index, point C.int32_t, offset *C.int32_t, value *C.double) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	ch := changesFor(owner)
	idx := int32(index)
	if ch == nil || idx < 0 || idx >= ch.QueueCount() {
		return C.V3_INVALID_ARG
	}
	q := ch.Queue(idx)
	pt := int32(point)
	if pt < 0 || pt >= q.PointCount() {
		return C.V3_INVALID_ARG
	}
	p := q.Point(pt)
	if offset != nil {
		*offset = C.int32_t(p.SampleOffset)
	}
	if value != nil {
		*value = C.double(p.Value)
	}
	return C.V3_OK
}

//export goQueueAddPoint
func goQueueAddPoint(owner C.uintptr_t, index, offset C.int32_t, value C.double, point *C.int32_t) (res C.v3_result) {
	defer func() {
		if recover() != nil {
			res = C.V3_INTERNAL_ERR
		}
	}()
	ch := changesFor(owner)
	idx := int32(index)
	if ch == nil || idx < 0 || idx >= ch.QueueCount() {
		return C.V3_INVALID_ARG
	}
	q := ch.Queue(idx)
	if !q.Append(vst3.ParamPoint{SampleOffset: int32(offset), Value: float64(value)}) {
		return C.V3_FALSE
	}
	if point != nil {
		*point = C.int32_t(q.PointCount() - 1)
	}
	return C.V3_OK
}
