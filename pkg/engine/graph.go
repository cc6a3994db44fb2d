package engine

import (
	"context"
	"sort"

	"github.com/justyntemme/vst3host/pkg/host"
	"github.com/justyntemme/vst3host/pkg/vst3"
)

// PluginNode describes one loaded instance in a graph snapshot.
type PluginNode struct {
	ID         InstanceID
	Name       string
	ClassID    vst3.ClassID
	BundlePath string
	State      host.InstanceState
	Latency    uint32
	Tail       uint32
	Faults     uint64
	Parameters int
}

// Connection is one edge of the serial processing chain: From's
// output feeds To's input.
type Connection struct {
	From InstanceID
	To   InstanceID
}

// GraphSnapshot is a point-in-time view of everything the engine has
// loaded. Plugins are ordered by instance ID; Connections follow the
// chain's processing order.
type GraphSnapshot struct {
	Plugins     []PluginNode
	Connections []Connection
}

// Graph captures the current plugin graph.
func (e *Engine) Graph(ctx context.Context) (GraphSnapshot, error) {
	req := &graphRequest{reply: make(chan GraphSnapshot, 1)}
	if err := e.submit(ctx, req); err != nil {
		return GraphSnapshot{}, err
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return GraphSnapshot{}, ctx.Err()
	}
}

type graphRequest struct {
	reply chan GraphSnapshot
}

func (r *graphRequest) execute(e *Engine) {
	snap := GraphSnapshot{Plugins: make([]PluginNode, 0, len(e.instances))}
	for id, inst := range e.instances {
		desc := inst.Descriptor()
		snap.Plugins = append(snap.Plugins, PluginNode{
			ID:         id,
			Name:       desc.Name,
			ClassID:    desc.ClassID,
			BundlePath: desc.BundlePath,
			State:      inst.State(),
			Latency:    inst.LatencySamples(),
			Tail:       inst.TailSamples(),
			Faults:     inst.Faults(),
			Parameters: inst.Params().Count(),
		})
	}
	sort.Slice(snap.Plugins, func(i, j int) bool {
		return snap.Plugins[i].ID < snap.Plugins[j].ID
	})
	for i := 1; i < len(e.chain); i++ {
		snap.Connections = append(snap.Connections, Connection{From: e.chain[i-1], To: e.chain[i]})
	}
	r.reply <- snap
}
