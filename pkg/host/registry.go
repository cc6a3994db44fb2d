package host

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

// Registry discovers plugin bundles under the platform search roots,
// probes each one for effect classes, and creates instances on demand.
// Scanning replaces the previous catalog wholesale.
type Registry struct {
	mu          sync.Mutex
	loader      *Loader
	log         *zap.Logger
	descriptors []Descriptor
	byID        map[vst3.ClassID]int
}

func NewRegistry(backend Backend, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		loader: NewLoader(backend, log),
		log:    log,
		byID:   make(map[vst3.ClassID]int),
	}
}

// DefaultSearchRoots returns the platform bundle directories, with any
// entries from the VST3_PATH environment variable taking precedence.
func DefaultSearchRoots() []string {
	var roots []string
	if env := os.Getenv("VST3_PATH"); env != "" {
		for _, p := range filepath.SplitList(env) {
			if p != "" {
				roots = append(roots, p)
			}
		}
	}

	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		if home != "" {
			roots = append(roots, filepath.Join(home, "Library", "Audio", "Plug-Ins", "VST3"))
		}
		roots = append(roots, "/Library/Audio/Plug-Ins/VST3")
	case "windows":
		roots = append(roots, filepath.Join(os.Getenv("PROGRAMFILES"), "Common Files", "VST3"))
	default:
		if home != "" {
			roots = append(roots, filepath.Join(home, ".vst3"))
		}
		roots = append(roots, "/usr/local/lib/vst3", "/usr/lib/vst3")
	}
	return roots
}

// Scan walks the given roots for .vst3 bundles, probes each for effect
// classes, and rebuilds the catalog. Bundles that fail to load are
// logged and skipped; Scan only errors when a root cannot be walked.
func (r *Registry) Scan(roots []string) error {
	paths := discoverBundles(roots)

	var descriptors []Descriptor
	for _, path := range paths {
		descs, err := r.probe(path)
		if err != nil {
			r.log.Warn("skipping bundle", zap.String("path", path), zap.Error(err))
			continue
		}
		descriptors = append(descriptors, descs...)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		if descriptors[i].Name != descriptors[j].Name {
			return descriptors[i].Name < descriptors[j].Name
		}
		return descriptors[i].BundlePath < descriptors[j].BundlePath
	})

	r.mu.Lock()
	r.descriptors = descriptors
	r.byID = make(map[vst3.ClassID]int, len(descriptors))
	for i, d := range descriptors {
		if _, dup := r.byID[d.ClassID]; !dup {
			r.byID[d.ClassID] = i
		}
	}
	r.mu.Unlock()

	r.log.Info("scan complete",
		zap.Int("bundles", len(paths)),
		zap.Int("classes", len(descriptors)))
	return nil
}

// discoverBundles finds .vst3 entries under the roots, deduplicated by
// path. Bundles are directories on most platforms but bare files are
// accepted too. Missing roots are silently ignored.
func discoverBundles(roots []string) []string {
	seen := make(map[string]bool)
	var paths []string

	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ".vst3") {
				return nil
			}
			if abs, aerr := filepath.Abs(path); aerr == nil {
				path = abs
			}
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		})
	}
	return paths
}

// probe loads a bundle just long enough to enumerate its effect
// classes. Classes in other categories (controllers, tests) are not
// listed.
func (r *Registry) probe(path string) ([]Descriptor, error) {
	module, err := r.loader.Acquire(path)
	if err != nil {
		return nil, err
	}
	defer module.Release()

	factory := module.Factory()
	var descs []Descriptor
	for i := int32(0); i < factory.ClassCount(); i++ {
		info, err := factory.ClassInfo(i)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		if info.Category != vst3.AudioEffectCategory {
			continue
		}
		descs = append(descs, Descriptor{
			ClassID:    info.ID,
			Name:       info.Name,
			Vendor:     info.Vendor,
			Version:    info.Version,
			Category:   info.Category,
			BundlePath: path,
		})
	}
	return descs, nil
}

// Descriptors returns a copy of the current catalog.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

func (r *Registry) FindByID(id vst3.ClassID) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byID[id]; ok {
		return r.descriptors[i], nil
	}
	return Descriptor{}, fmt.Errorf("class %s: %w", id, ErrNotFound)
}

func (r *Registry) FindByName(name string) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.descriptors {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("plugin %q: %w", name, ErrNotFound)
}

// CreateInstance loads the bundle for the given class (sharing the
// module with other instances from the same bundle) and creates an
// unmanaged instance in the Created state.
func (r *Registry) CreateInstance(id vst3.ClassID) (*Instance, error) {
	desc, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}
	module, err := r.loader.Acquire(desc.BundlePath)
	if err != nil {
		return nil, err
	}
	inst, err := NewInstance(module, desc, r.log)
	if err != nil {
		module.Release()
		return nil, err
	}
	return inst, nil
}

// Loader exposes the shared module table, mainly for tests and the
// control plane's graph snapshot.
func (r *Registry) Loader() *Loader {
	return r.loader
}
