package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/vst3host/pkg/host"
	"github.com/justyntemme/vst3host/pkg/host/hosttest"
	"github.com/justyntemme/vst3host/pkg/vst3"
)

func newTestEngine(t *testing.T) (*Engine, *hosttest.Backend) {
	t.Helper()
	root := t.TempDir()
	bundle := filepath.Join(root, "Gain.vst3")
	require.NoError(t, os.MkdirAll(bundle, 0o755))

	backend := hosttest.NewBackend()
	backend.Register(bundle, hosttest.Options{})
	reg := host.NewRegistry(backend, nil)
	require.NoError(t, reg.Scan([]string{root}))

	e := New(reg, vst3.ProcessSetup{
		SampleRate:     48000,
		MaxBlockFrames: 256,
		Realtime:       true,
	}, nil)
	t.Cleanup(e.Close)
	return e, backend
}

func TestEngineLoadProcessUnload(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)

	input := [][][]float32{{make([]float32, 64), make([]float32, 64)}}
	output := [][][]float32{{make([]float32, 64), make([]float32, 64)}}
	for i := range input[0][0] {
		input[0][0][i] = 0.4
		input[0][1][i] = 0.4
	}

	require.NoError(t, e.ProcessBlock(id, 64, input, output, nil))
	assert.InDelta(t, 0.2, output[0][0][0], 1e-6, "default gain is 0.5")

	require.NoError(t, e.UnloadPlugin(ctx, id))
	assert.ErrorIs(t, e.ProcessBlock(id, 64, input, output, nil), ErrUnknownInstance)
	assert.ErrorIs(t, e.UnloadPlugin(ctx, id), ErrUnknownInstance)
}

func TestEngineLoadUnknownClass(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.LoadPlugin(context.Background(), vst3.ClassID{0xAB})
	assert.ErrorIs(t, err, host.ErrNotFound)
}

func TestEngineParameters(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)

	params, err := e.GetParameters(ctx, id)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "Gain", params[0].Info.Title)
	assert.Equal(t, 0.5, params[0].Value)

	require.NoError(t, e.SetParameter(ctx, id, hosttest.GainParamID, 0.9))
	params, err = e.GetParameters(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0.9, params[0].Value)

	assert.ErrorIs(t, e.SetParameter(ctx, id, hosttest.GainParamID, 2.0), host.ErrValueOutOfRange)
	assert.ErrorIs(t, e.SetParameter(ctx, id, vst3.ParamID(9999), 0.5), host.ErrParameterNotFound)
	assert.ErrorIs(t, e.SetParameter(ctx, 777, hosttest.GainParamID, 0.5), ErrUnknownInstance)
}

func TestEngineStateRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)

	require.NoError(t, e.SetParameter(ctx, id, hosttest.GainParamID, 0.8))
	input := [][][]float32{{make([]float32, 16), make([]float32, 16)}}
	output := [][][]float32{{make([]float32, 16), make([]float32, 16)}}
	require.NoError(t, e.ProcessBlock(id, 16, input, output, nil))

	blob, err := e.SnapshotState(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	require.NoError(t, e.SetParameter(ctx, id, hosttest.GainParamID, 0.2))
	require.NoError(t, e.ProcessBlock(id, 16, input, output, nil))

	require.NoError(t, e.RestoreState(ctx, id, blob))
	params, err := e.GetParameters(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0.8, params[0].Value)

	assert.ErrorIs(t, e.RestoreState(ctx, id, []byte{1, 2, 3}), host.ErrBadStateBlob)
}

func TestEngineGraph(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)
	second, err := e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)

	snap, err := e.Graph(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Plugins, 2)
	assert.Equal(t, first, snap.Plugins[0].ID)
	assert.Equal(t, second, snap.Plugins[1].ID)
	assert.Equal(t, host.StateActive, snap.Plugins[0].State)
	assert.Equal(t, "Test Gain", snap.Plugins[0].Name)
	assert.Equal(t, 2, snap.Plugins[0].Parameters)
	require.Len(t, snap.Connections, 1)
	assert.Equal(t, Connection{From: first, To: second}, snap.Connections[0])

	third, err := e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)
	snap, err = e.Graph(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Connection{{From: first, To: second}, {From: second, To: third}}, snap.Connections)

	// Unloading a middle node splices the chain around it.
	require.NoError(t, e.UnloadPlugin(ctx, second))
	snap, err = e.Graph(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Plugins, 2)
	assert.Equal(t, []Connection{{From: first, To: third}}, snap.Connections)

	require.NoError(t, e.UnloadPlugin(ctx, first))
	snap, err = e.Graph(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Plugins, 1)
	assert.Empty(t, snap.Connections)
	assert.Equal(t, third, snap.Plugins[0].ID)
}

func TestEngineCloseRejectsRequests(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)

	e.Close()
	_, err = e.LoadPlugin(ctx, hosttest.GainClassID)
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestEngineSharesModuleAcrossInstances(t *testing.T) {
	e, backend := newTestEngine(t)
	ctx := context.Background()

	// Registry scanning already opened the bundle once to probe it.
	probeOpens := backend.Opens()

	first, err := e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)
	_, err = e.LoadPlugin(ctx, hosttest.GainClassID)
	require.NoError(t, err)

	assert.Equal(t, probeOpens+1, backend.Opens(), "second instance must share the loaded module")

	require.NoError(t, e.UnloadPlugin(ctx, first))
	assert.Equal(t, probeOpens+1, backend.Opens())
}
