package vst3

// AudioBusBuffers binds one active bus to its channel buffers for a
// single process call. Channels holds one host-owned sample buffer per
// channel, each sliced to the block's frame count. SilenceFlags has one
// bit per channel; the plugin sets bits on output buses it left silent.
type AudioBusBuffers struct {
	Channels     [][]float32
	SilenceFlags uint64
}

// Silent reports whether the plugin flagged channel ch as silent.
func (b *AudioBusBuffers) Silent(ch int) bool {
	return b.SilenceFlags&(1<<uint(ch)) != 0
}

// ProcessData describes one processing block. All slices and lists are
// pre-sized at setup time and reused every block; inactive buses are
// omitted entirely rather than zero-filled.
type ProcessData struct {
	NumSamples int32

	Inputs  []AudioBusBuffers
	Outputs []AudioBusBuffers

	InputParamChanges  *ParameterChanges
	OutputParamChanges *ParameterChanges

	InputEvents  *EventList
	OutputEvents *EventList
}

// ParamPoint is one automation point within a block.
type ParamPoint struct {
	SampleOffset int32
	Value        float64 // normalized [0,1]
}

// ParamQueue holds the automation points of one parameter for one block.
type ParamQueue struct {
	ID     ParamID
	points []ParamPoint
}

// Append adds a point, failing with false when the queue is at capacity.
func (q *ParamQueue) Append(p ParamPoint) bool {
	if len(q.points) == cap(q.points) {
		return false
	}
	q.points = append(q.points, p)
	return true
}

// PointCount returns the number of points queued.
func (q *ParamQueue) PointCount() int32 {
	return int32(len(q.points))
}

// Point returns the point at index.
func (q *ParamQueue) Point(index int32) ParamPoint {
	return q.points[index]
}

// ParameterChanges is the per-block set of parameter automation queues,
// one queue per changed parameter. Storage for the maximum possible
// queue count is allocated once; AddQueue recycles it every block.
type ParameterChanges struct {
	queues []ParamQueue
	used   int
}

// NewParameterChanges pre-sizes storage for maxParams queues with
// pointsPerParam points each.
func NewParameterChanges(maxParams, pointsPerParam int) *ParameterChanges {
	c := &ParameterChanges{queues: make([]ParamQueue, maxParams)}
	for i := range c.queues {
		c.queues[i].points = make([]ParamPoint, 0, pointsPerParam)
	}
	return c
}

// Clear resets all queues for the next block without releasing storage.
func (c *ParameterChanges) Clear() {
	for i := 0; i < c.used; i++ {
		c.queues[i].points = c.queues[i].points[:0]
	}
	c.used = 0
}

// AddQueue returns the queue for id, reusing a cleared slot. It returns
// nil when every slot is in use, which callers treat the same way as a
// full event list.
func (c *ParameterChanges) AddQueue(id ParamID) *ParamQueue {
	for i := 0; i < c.used; i++ {
		if c.queues[i].ID == id {
			return &c.queues[i]
		}
	}
	if c.used == len(c.queues) {
		return nil
	}
	q := &c.queues[c.used]
	c.used++
	q.ID = id
	q.points = q.points[:0]
	return q
}

// QueueCount returns the number of queues in use this block.
func (c *ParameterChanges) QueueCount() int32 {
	return int32(c.used)
}

// Queue returns the queue at index. Index must be in [0, QueueCount).
func (c *ParameterChanges) Queue(index int32) *ParamQueue {
	return &c.queues[index]
}
