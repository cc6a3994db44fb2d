// Package hosttest provides an in-process backend with a deterministic
// gain plugin, so the loading, lifecycle, and processing machinery can
// be exercised without a native binary.
package hosttest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

// BundlePath is the fake bundle path the backend answers for.
const BundlePath = "/tmp/testdata/Gain.vst3"

var (
	GainClassID = vst3.ClassID{
		0x7E, 0x57, 0x6A, 0x11, 0x00, 0x01, 0x42, 0x99,
		0xA0, 0xB1, 0xC2, 0xD3, 0xE4, 0xF5, 0x06, 0x17,
	}
	GainControllerClassID = vst3.ClassID{
		0x7E, 0x57, 0x6A, 0x11, 0x00, 0x02, 0x42, 0x99,
		0xA0, 0xB1, 0xC2, 0xD3, 0xE4, 0xF5, 0x06, 0x18,
	}
)

// Backend serves factories for registered bundle paths. By default it
// knows BundlePath; more paths can be added with Register.
type Backend struct {
	mu      sync.Mutex
	bundles map[string]*Options
	opens   int

	// LastFactory is the factory most recently handed out, kept so
	// tests can reach the plugin behind it.
	LastFactory *Factory
}

// Options shape the plugin a bundle produces.
type Options struct {
	// SeparateController makes the component name a standalone
	// controller class instead of exposing the controller facet itself.
	SeparateController bool

	// NoProcessor and NoController withhold the optional facets, for
	// exercising components that lack one of them.
	NoProcessor  bool
	NoController bool
}

func NewBackend() *Backend {
	b := &Backend{bundles: make(map[string]*Options)}
	b.bundles[BundlePath] = &Options{}
	return b
}

func (b *Backend) Register(path string, opts Options) {
	b.mu.Lock()
	b.bundles[path] = &opts
	b.mu.Unlock()
}

// Opens reports how many times a bundle was opened, for module-sharing
// assertions.
func (b *Backend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

func (b *Backend) Open(bundlePath string) (vst3.Factory, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	opts, ok := b.bundles[bundlePath]
	if !ok {
		return nil, fmt.Errorf("no bundle at %s: %w", bundlePath, errors.New("invalid bundle"))
	}
	b.opens++
	f := &Factory{opts: *opts}
	b.LastFactory = f
	return f, nil
}

// Factory exposes one effect class (and, optionally, its controller
// class) and tracks release for teardown assertions.
type Factory struct {
	opts     Options
	Released bool

	// LastPlugin is the most recently created component.
	LastPlugin *GainPlugin
}

func (f *Factory) ClassCount() int32 {
	if f.opts.SeparateController {
		return 2
	}
	return 1
}

func (f *Factory) ClassInfo(index int32) (vst3.ClassInfo, error) {
	switch index {
	case 0:
		return vst3.ClassInfo{
			ID:       GainClassID,
			Name:     "Test Gain",
			Category: vst3.AudioEffectCategory,
			Vendor:   "hosttest",
			Version:  "1.0.0",
		}, nil
	case 1:
		if f.opts.SeparateController {
			return vst3.ClassInfo{
				ID:       GainControllerClassID,
				Name:     "Test Gain Controller",
				Category: "Component Controller Class",
				Vendor:   "hosttest",
				Version:  "1.0.0",
			}, nil
		}
	}
	return vst3.ClassInfo{}, fmt.Errorf("class index %d out of range", index)
}

func (f *Factory) CreateComponent(id vst3.ClassID) (vst3.Component, error) {
	if id != GainClassID {
		return nil, fmt.Errorf("unknown class %s", id)
	}
	p := NewGainPlugin(f.opts)
	f.LastPlugin = p
	return p, nil
}

func (f *Factory) CreateController(id vst3.ClassID) (vst3.Controller, error) {
	if !f.opts.SeparateController || id != GainControllerClassID {
		return nil, fmt.Errorf("unknown controller class %s", id)
	}
	return newGainController(), nil
}

func (f *Factory) Release() {
	f.Released = true
}
