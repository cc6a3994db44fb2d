package host

import (
	"errors"
	"testing"

	"github.com/justyntemme/vst3host/pkg/host/hosttest"
	"github.com/justyntemme/vst3host/pkg/vst3"
)

func newTestParamStore(t *testing.T) *ParamStore {
	t.Helper()
	plugin := hosttest.NewGainPlugin(hosttest.Options{})
	ctrl, ok := plugin.QueryController()
	if !ok {
		t.Fatal("no controller facet")
	}
	store, err := NewParamStore(ctrl)
	if err != nil {
		t.Fatalf("NewParamStore: %v", err)
	}
	return store
}

func TestParamStoreEnumeration(t *testing.T) {
	store := newTestParamStore(t)

	if store.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", store.Count())
	}
	info, err := store.Info(hosttest.GainParamID)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Title != "Gain" || info.Flags&vst3.ParamCanAutomate == 0 {
		t.Errorf("info = %+v", info)
	}
	if _, err := store.Info(vst3.ParamID(9999)); !errors.Is(err, ErrParameterNotFound) {
		t.Errorf("Info(absent): err = %v, want ErrParameterNotFound", err)
	}

	v, err := store.Get(hosttest.GainParamID)
	if err != nil || v != 0.5 {
		t.Errorf("Get = %v, %v, want seeded default 0.5", v, err)
	}
}

func TestParamStoreSetValidation(t *testing.T) {
	store := newTestParamStore(t)

	if err := store.Set(hosttest.GainParamID, 1.5); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("Set(1.5): err = %v, want ErrValueOutOfRange", err)
	}
	if err := store.Set(hosttest.GainParamID, -0.1); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("Set(-0.1): err = %v, want ErrValueOutOfRange", err)
	}
	if err := store.Set(vst3.ParamID(9999), 0.5); !errors.Is(err, ErrParameterNotFound) {
		t.Errorf("Set(absent): err = %v, want ErrParameterNotFound", err)
	}
	if err := store.Set(hosttest.MeterParamID, 0.5); !errors.Is(err, ErrReadOnlyParameter) {
		t.Errorf("Set(meter): err = %v, want ErrReadOnlyParameter", err)
	}
	if err := store.Set(hosttest.GainParamID, 0.0); err != nil {
		t.Errorf("Set(0): %v", err)
	}
	if err := store.Set(hosttest.GainParamID, 1.0); err != nil {
		t.Errorf("Set(1): %v", err)
	}
}

func TestParamStorePrepareBlockDeltas(t *testing.T) {
	store := newTestParamStore(t)

	// Nothing changed yet.
	if ch := store.PrepareBlock(); ch.QueueCount() != 0 {
		t.Fatalf("initial QueueCount = %d, want 0", ch.QueueCount())
	}

	if err := store.Set(hosttest.GainParamID, 0.7); err != nil {
		t.Fatal(err)
	}
	ch := store.PrepareBlock()
	if ch.QueueCount() != 1 {
		t.Fatalf("QueueCount = %d, want 1", ch.QueueCount())
	}
	q := ch.Queue(0)
	if q.ID != hosttest.GainParamID || q.PointCount() != 1 {
		t.Fatalf("queue = %+v", q)
	}
	if p := q.Point(0); p.SampleOffset != 0 || p.Value != 0.7 {
		t.Errorf("point = %+v, want offset 0 value 0.7", p)
	}

	// The same value is not forwarded twice.
	if ch := store.PrepareBlock(); ch.QueueCount() != 0 {
		t.Errorf("repeat QueueCount = %d, want 0", ch.QueueCount())
	}
	// Writing an identical value produces no delta either.
	if err := store.Set(hosttest.GainParamID, 0.7); err != nil {
		t.Fatal(err)
	}
	if ch := store.PrepareBlock(); ch.QueueCount() != 0 {
		t.Errorf("identical value QueueCount = %d, want 0", ch.QueueCount())
	}
}

func TestParamStorePrepareBlockDoesNotAllocate(t *testing.T) {
	store := newTestParamStore(t)

	allocs := testing.AllocsPerRun(100, func() {
		if err := store.Set(hosttest.GainParamID, 0.3); err != nil {
			t.Fatal(err)
		}
		store.PrepareBlock()
		if err := store.Set(hosttest.GainParamID, 0.6); err != nil {
			t.Fatal(err)
		}
		store.PrepareBlock()
	})
	if allocs != 0 {
		t.Errorf("PrepareBlock allocated %.1f times per run, want 0", allocs)
	}
}

func TestParamStoreAbsorbOutputChanges(t *testing.T) {
	store := newTestParamStore(t)

	out := vst3.NewParameterChanges(2, 4)
	q := out.AddQueue(hosttest.MeterParamID)
	q.Append(vst3.ParamPoint{SampleOffset: 0, Value: 0.2})
	q.Append(vst3.ParamPoint{SampleOffset: 63, Value: 0.9}) // last point wins
	unknown := out.AddQueue(vst3.ParamID(4242))
	unknown.Append(vst3.ParamPoint{SampleOffset: 0, Value: 0.5})

	store.AbsorbOutputChanges(out)

	v, err := store.Get(hosttest.MeterParamID)
	if err != nil || v != 0.9 {
		t.Errorf("meter = %v, %v, want 0.9", v, err)
	}
	// Absorbed values are treated as already forwarded.
	if ch := store.PrepareBlock(); ch.QueueCount() != 0 {
		t.Errorf("QueueCount after absorb = %d, want 0", ch.QueueCount())
	}
}
