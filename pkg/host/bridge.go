package host

import (
	"fmt"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

// AudioBridge points preallocated bus descriptors at caller-owned
// sample buffers for one process call. All descriptor storage is sized
// at construction; Prepare only reslices, so the per-block path does
// not allocate.
type AudioBridge struct {
	maxFrames int32
	inputs    []vst3.AudioBusBuffers
	outputs   []vst3.AudioBusBuffers
}

// NewAudioBridge sizes descriptors for the given bus layout. Each entry
// of inChannels/outChannels is the channel count of one bus.
func NewAudioBridge(maxFrames int32, inChannels, outChannels []int) *AudioBridge {
	b := &AudioBridge{
		maxFrames: maxFrames,
		inputs:    make([]vst3.AudioBusBuffers, len(inChannels)),
		outputs:   make([]vst3.AudioBusBuffers, len(outChannels)),
	}
	for i, n := range inChannels {
		b.inputs[i].Channels = make([][]float32, n)
	}
	for i, n := range outChannels {
		b.outputs[i].Channels = make([][]float32, n)
	}
	return b
}

// Prepare aims the descriptors at the caller's buffers for a block of
// the given length. in and out are indexed [bus][channel][frame]; each
// channel slice must hold at least frames samples. The buffers stay
// caller owned and must outlive the process call.
func (b *AudioBridge) Prepare(frames int32, in, out [][][]float32) error {
	if frames > b.maxFrames {
		return fmt.Errorf("%d frames, max %d: %w", frames, b.maxFrames, ErrBlockTooLarge)
	}
	if err := b.aim(b.inputs, in, frames); err != nil {
		return err
	}
	return b.aim(b.outputs, out, frames)
}

func (b *AudioBridge) aim(buses []vst3.AudioBusBuffers, src [][][]float32, frames int32) error {
	if len(src) != len(buses) {
		return fmt.Errorf("%d buses, want %d: %w", len(src), len(buses), ErrChannelMismatch)
	}
	for i := range buses {
		chans := buses[i].Channels
		if len(src[i]) != len(chans) {
			return fmt.Errorf("bus %d: %d channels, want %d: %w",
				i, len(src[i]), len(chans), ErrChannelMismatch)
		}
		for c := range chans {
			if int32(len(src[i][c])) < frames {
				return fmt.Errorf("bus %d channel %d: %d frames, need %d: %w",
					i, c, len(src[i][c]), frames, ErrChannelMismatch)
			}
			chans[c] = src[i][c][:frames]
		}
		buses[i].SilenceFlags = 0
	}
	return nil
}

// Inputs and Outputs expose the prepared descriptors for the process
// data. The slices are reused across blocks.
func (b *AudioBridge) Inputs() []vst3.AudioBusBuffers {
	return b.inputs
}

func (b *AudioBridge) Outputs() []vst3.AudioBusBuffers {
	return b.outputs
}

// SilenceOutputs zeroes the output buffers most recently passed to
// Prepare and marks every output channel silent. Used when a process
// call fails and the block must not emit garbage.
func (b *AudioBridge) SilenceOutputs() {
	for i := range b.outputs {
		for c, ch := range b.outputs[i].Channels {
			for j := range ch {
				ch[j] = 0
			}
			b.outputs[i].SilenceFlags |= 1 << uint(c)
		}
	}
}
