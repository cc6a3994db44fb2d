// Package vst3 defines the host-side abstraction over the VST3 binary
// interface: typed identities, one Go interface per plugin facet, and the
// per-block processing descriptor. Nothing in this package touches cgo;
// the native binding in pkg/host/native and the in-process stubs in
// pkg/host/hosttest both implement these interfaces.
package vst3

import (
	"encoding/hex"
	"fmt"
)

// ClassID is the opaque 128-bit identity of a plugin class. It is the key
// that ties a discovered bundle, a live instance and a persisted state
// snapshot together.
type ClassID [16]byte

// String renders the id as 32 uppercase hex characters.
func (id ClassID) String() string {
	var buf [32]byte
	hex.Encode(buf[:], id[:])
	for i, c := range buf {
		if c >= 'a' && c <= 'f' {
			buf[i] = c - 'a' + 'A'
		}
	}
	return string(buf[:])
}

// IsZero reports whether the id is all zero bytes.
func (id ClassID) IsZero() bool {
	return id == ClassID{}
}

// ParseClassID parses the 32-hex-character form produced by String.
func ParseClassID(s string) (ClassID, error) {
	var id ClassID
	if len(s) != 32 {
		return id, fmt.Errorf("class id must be 32 hex characters, got %d", len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("invalid class id %q: %w", s, err)
	}
	return id, nil
}

// MediaType distinguishes audio buses from event (MIDI) buses.
type MediaType int32

const (
	MediaAudio MediaType = 0
	MediaEvent MediaType = 1
)

func (m MediaType) String() string {
	switch m {
	case MediaAudio:
		return "audio"
	case MediaEvent:
		return "event"
	default:
		return "unknown"
	}
}

// BusDirection is the direction of a bus as seen by the plugin.
type BusDirection int32

const (
	BusInput  BusDirection = 0
	BusOutput BusDirection = 1
)

func (d BusDirection) String() string {
	if d == BusInput {
		return "input"
	}
	return "output"
}

// BusType distinguishes main buses from auxiliary (sidechain) buses.
type BusType int32

const (
	BusMain BusType = 0
	BusAux  BusType = 1
)

// BusInfo describes one negotiated audio or event bus.
type BusInfo struct {
	MediaType    MediaType
	Direction    BusDirection
	Index        int32
	Name         string
	ChannelCount int32
	BusType      BusType
	Active       bool
}

// ParamID is the stable identifier of a parameter. Identifiers are opaque
// keys chosen by the plugin; they are not contiguous and must never be
// used as array indices.
type ParamID uint32

// ParamFlags describes static parameter capabilities.
type ParamFlags uint32

const (
	ParamCanAutomate     ParamFlags = 1 << 0
	ParamIsReadOnly      ParamFlags = 1 << 1
	ParamIsWrapAround    ParamFlags = 1 << 2
	ParamIsList          ParamFlags = 1 << 3
	ParamIsHidden        ParamFlags = 1 << 4
	ParamIsProgramChange ParamFlags = 1 << 15
	ParamIsBypass        ParamFlags = 1 << 16
)

// ParamInfo is the static descriptor of one parameter. Values are always
// exchanged with the plugin in normalized [0,1] form.
type ParamInfo struct {
	ID                ParamID
	Title             string
	ShortTitle        string
	Units             string
	StepCount         int32 // 0 = continuous, >0 = discrete with that many steps
	DefaultNormalized float64
	Flags             ParamFlags
}

// ClassInfo is factory-level metadata for one plugin class.
type ClassInfo struct {
	ID       ClassID
	Name     string
	Category string
	Vendor   string
	Version  string
}

// AudioEffectCategory is the factory category string of audio processors.
const AudioEffectCategory = "Audio Module Class"

// ProcessSetup carries the processing configuration negotiated before the
// first activation. MaxBlockFrames is the hard upper bound on the frame
// count of any later process call.
type ProcessSetup struct {
	SampleRate     float64
	MaxBlockFrames int32
	Realtime       bool
}

// HostContext identifies the host to the plugin during initialization.
type HostContext struct {
	Name string
}
