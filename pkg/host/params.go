package host

import (
	"fmt"
	"math"
	"sync"

	"github.com/justyntemme/vst3host/pkg/vst3"
)

// Changes smaller than this are not forwarded to the plugin.
const paramEpsilon = 1e-9

// ParamStore caches a plugin's parameter values on the host side.
// Control-plane writes land in the cache under a brief mutex; the audio
// thread drains pending changes into a preallocated change list at the
// start of each block, so the plugin sees at most one point per
// parameter per block and the hot path never allocates.
type ParamStore struct {
	mu         sync.Mutex
	controller vst3.Controller
	infos      []vst3.ParamInfo
	index      map[vst3.ParamID]int
	values     []float64
	forwarded  []float64
	changes    *vst3.ParameterChanges
}

// NewParamStore enumerates the controller's parameters and seeds the
// cache with their current normalized values. A nil controller (the
// component exposed no edit controller facet) yields an empty store:
// every lookup fails with ErrParameterNotFound.
func NewParamStore(controller vst3.Controller) (*ParamStore, error) {
	var count int
	if controller != nil {
		count = int(controller.ParameterCount())
	}
	s := &ParamStore{
		controller: controller,
		infos:      make([]vst3.ParamInfo, 0, count),
		index:      make(map[vst3.ParamID]int, count),
		values:     make([]float64, 0, count),
		forwarded:  make([]float64, 0, count),
	}
	for i := 0; i < count; i++ {
		info, err := controller.ParameterInfo(int32(i))
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		if _, dup := s.index[info.ID]; dup {
			continue
		}
		v := controller.ParamNormalized(info.ID)
		s.index[info.ID] = len(s.infos)
		s.infos = append(s.infos, info)
		s.values = append(s.values, v)
		s.forwarded = append(s.forwarded, v)
	}
	s.changes = vst3.NewParameterChanges(len(s.infos), 1)
	return s, nil
}

func (s *ParamStore) Count() int {
	return len(s.infos)
}

// Infos returns a copy of the parameter descriptors in enumeration order.
func (s *ParamStore) Infos() []vst3.ParamInfo {
	out := make([]vst3.ParamInfo, len(s.infos))
	copy(out, s.infos)
	return out
}

func (s *ParamStore) Info(id vst3.ParamID) (vst3.ParamInfo, error) {
	i, ok := s.index[id]
	if !ok {
		return vst3.ParamInfo{}, fmt.Errorf("id %d: %w", id, ErrParameterNotFound)
	}
	return s.infos[i], nil
}

// Set records a normalized value for forwarding at the next block
// boundary. It also mirrors the value into the controller so any open
// editor tracks it.
func (s *ParamStore) Set(id vst3.ParamID, value float64) error {
	if value < 0 || value > 1 || math.IsNaN(value) {
		return fmt.Errorf("id %d value %v: %w", id, value, ErrValueOutOfRange)
	}
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("id %d: %w", id, ErrParameterNotFound)
	}
	if s.infos[i].Flags&vst3.ParamIsReadOnly != 0 {
		return fmt.Errorf("id %d: %w", id, ErrReadOnlyParameter)
	}
	s.mu.Lock()
	s.values[i] = value
	s.mu.Unlock()
	return s.controller.SetParamNormalized(id, value)
}

func (s *ParamStore) Get(id vst3.ParamID) (float64, error) {
	i, ok := s.index[id]
	if !ok {
		return 0, fmt.Errorf("id %d: %w", id, ErrParameterNotFound)
	}
	s.mu.Lock()
	v := s.values[i]
	s.mu.Unlock()
	return v, nil
}

// Values returns the cached normalized values in enumeration order.
func (s *ParamStore) Values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// PrepareBlock builds the change list for the next process call: one
// point at offset zero for every parameter whose cached value moved
// since it was last forwarded. The returned list is reused across
// blocks and must not be retained.
func (s *ParamStore) PrepareBlock() *vst3.ParameterChanges {
	s.changes.Clear()
	s.mu.Lock()
	for i := range s.values {
		if math.Abs(s.values[i]-s.forwarded[i]) <= paramEpsilon {
			continue
		}
		s.forwarded[i] = s.values[i]
		if q := s.changes.AddQueue(s.infos[i].ID); q != nil {
			q.Append(vst3.ParamPoint{SampleOffset: 0, Value: s.values[i]})
		}
	}
	s.mu.Unlock()
	return s.changes
}

// AbsorbOutputChanges folds plugin-driven parameter changes back into
// the cache. The last point of each queue wins.
func (s *ParamStore) AbsorbOutputChanges(out *vst3.ParameterChanges) {
	if out == nil {
		return
	}
	s.mu.Lock()
	for qi := int32(0); qi < out.QueueCount(); qi++ {
		q := out.Queue(qi)
		n := q.PointCount()
		if n == 0 {
			continue
		}
		i, ok := s.index[q.ID]
		if !ok {
			continue
		}
		p := q.Point(n - 1)
		s.values[i] = p.Value
		s.forwarded[i] = p.Value
	}
	s.mu.Unlock()
}

// Resync re-reads every value from the controller, typically after
// state restore. Nothing is re-forwarded: the plugin already holds
// these values.
func (s *ParamStore) Resync() {
	s.mu.Lock()
	for i := range s.infos {
		v := s.controller.ParamNormalized(s.infos[i].ID)
		s.values[i] = v
		s.forwarded[i] = v
	}
	s.mu.Unlock()
}
