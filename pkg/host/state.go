package host

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

// PluginState is a saved instance: the class it belongs to plus the
// component and controller blobs exactly as the plugin wrote them. The
// blobs are opaque to the host.
type PluginState struct {
	ClassID    vst3.ClassID
	Component  []byte
	Controller []byte
}

// Snapshot captures the instance's current state. The component blob is
// mandatory. A missing controller facet yields empty controller bytes;
// a present one that fails to serialize is an error.
func (in *Instance) Snapshot() (*PluginState, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch in.State() {
	case StateTerminated:
		return nil, ErrTerminated
	case StateCreated:
		return nil, ErrNotInitialized
	}

	comp := vst3.NewMemoryStream()
	if err := in.component.GetState(comp); err != nil {
		return nil, fmt.Errorf("%w: component: %v", ErrSnapshotFailed, err)
	}

	st := &PluginState{ClassID: in.desc.ClassID}
	st.Component = append([]byte(nil), comp.Bytes()...)

	if in.controller != nil {
		ctrl := vst3.NewMemoryStream()
		if err := in.controller.GetState(ctrl); err != nil {
			return nil, fmt.Errorf("%w: controller: %v", ErrSnapshotFailed, err)
		}
		st.Controller = append([]byte(nil), ctrl.Bytes()...)
	}
	return st, nil
}

// Restore loads a saved state into the instance. The state must belong
// to the same class. The component blob goes to the component and,
// separately rewound, to the controller's component-state path; the
// controller blob follows; finally the parameter cache resyncs from
// the controller so the host view matches the plugin. A rejected blob
// is an error; nothing is applied after a component rejection.
func (in *Instance) Restore(st *PluginState) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch in.State() {
	case StateTerminated:
		return ErrTerminated
	case StateCreated:
		return ErrNotInitialized
	}

	if st.ClassID != in.desc.ClassID {
		return fmt.Errorf("state for class %s, instance is %s: %w",
			st.ClassID, in.desc.ClassID, ErrIdentityMismatch)
	}

	comp := vst3.MemoryStreamFrom(st.Component)
	if err := in.component.SetState(comp); err != nil {
		return fmt.Errorf("component set state: %w", err)
	}

	// The component state is applied from here on; resync the cache
	// even when a controller call rejects, so the host values track
	// whatever the plugin now holds.
	defer in.params.Resync()

	if in.controller != nil {
		comp = vst3.MemoryStreamFrom(st.Component)
		if err := in.controller.SetComponentState(comp); err != nil {
			return fmt.Errorf("controller component state: %w", err)
		}
		if len(st.Controller) > 0 {
			ctrl := vst3.MemoryStreamFrom(st.Controller)
			if err := in.controller.SetState(ctrl); err != nil {
				return fmt.Errorf("controller set state: %w", err)
			}
		}
	}
	return nil
}

// Container framing for persisted states.
const (
	stateMagic   = 0x56335354 // "V3ST"
	stateVersion = 1
)

var ErrBadStateBlob = errors.New("host: malformed state blob")

// Marshal frames the state for storage: magic, version, class ID, then
// length-prefixed component and controller blobs, all little endian.
func (st *PluginState) Marshal() []byte {
	size := 4 + 2 + 16 + 4 + len(st.Component) + 4 + len(st.Controller)
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, stateMagic)
	buf = binary.LittleEndian.AppendUint16(buf, stateVersion)
	buf = append(buf, st.ClassID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(st.Component)))
	buf = append(buf, st.Component...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(st.Controller)))
	buf = append(buf, st.Controller...)
	return buf
}

// UnmarshalPluginState parses a framed state blob.
func UnmarshalPluginState(data []byte) (*PluginState, error) {
	if len(data) < 4+2+16+4+4 {
		return nil, fmt.Errorf("%w: truncated header", ErrBadStateBlob)
	}
	if binary.LittleEndian.Uint32(data) != stateMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadStateBlob)
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != stateVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadStateBlob, v)
	}
	st := &PluginState{}
	copy(st.ClassID[:], data[6:22])
	rest := data[22:]

	var err error
	if st.Component, rest, err = readBlob(rest); err != nil {
		return nil, err
	}
	if st.Controller, _, err = readBlob(rest); err != nil {
		return nil, err
	}
	return st, nil
}

func readBlob(data []byte) (blob, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated length", ErrBadStateBlob)
	}
	n := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, fmt.Errorf("%w: truncated blob", ErrBadStateBlob)
	}
	return append([]byte(nil), data[:n]...), data[n:], nil
}
