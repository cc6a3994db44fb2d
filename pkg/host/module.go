package host

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

// Backend opens a plugin bundle and returns its class factory. The
// native implementation lives in the native subpackage; tests use the
// in-process hosttest backend.
type Backend interface {
	Open(bundlePath string) (vst3.Factory, error)
}

// Module is a loaded plugin binary. Modules are reference counted and
// shared per bundle path: two instances from the same bundle share one
// Module, and the binary stays mapped until the last reference drops.
type Module struct {
	loader  *Loader
	path    string
	factory vst3.Factory
	refs    int
}

func (m *Module) Path() string {
	return m.path
}

func (m *Module) Factory() vst3.Factory {
	return m.factory
}

// Release drops one reference. When the count reaches zero the factory
// is released and the module is evicted from the loader table.
func (m *Module) Release() {
	m.loader.release(m)
}

// Loader maps bundle paths to loaded modules. All methods are safe for
// concurrent use.
type Loader struct {
	mu      sync.Mutex
	backend Backend
	modules map[string]*Module
	log     *zap.Logger
}

func NewLoader(backend Backend, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		backend: backend,
		modules: make(map[string]*Module),
		log:     log,
	}
}

// Acquire returns the module for the given bundle path, loading it on
// first use. Each successful call must be paired with Module.Release.
func (l *Loader) Acquire(path string) (*Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.modules[path]; ok {
		m.refs++
		return m, nil
	}

	factory, err := l.backend.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	m := &Module{
		loader:  l,
		path:    path,
		factory: factory,
		refs:    1,
	}
	l.modules[path] = m
	l.log.Debug("module loaded", zap.String("path", path))
	return m, nil
}

func (l *Loader) release(m *Module) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m.refs <= 0 {
		return
	}
	m.refs--
	if m.refs > 0 {
		return
	}
	delete(l.modules, m.path)
	m.factory.Release()
	m.factory = nil
	l.log.Debug("module unloaded", zap.String("path", m.path))
}

// Loaded reports how many modules are currently mapped.
func (l *Loader) Loaded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.modules)
}
