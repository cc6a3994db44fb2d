package vst3

// The interfaces below mirror the plugin's component-object facets one to
// one. Implementations own a reference on the underlying native object;
// Release drops it. No raw pointers ever cross these interfaces, and no
// implementation may panic into its caller — native failures surface as
// errors.

// Factory enumerates and instantiates the plugin classes exported by one
// loaded bundle.
type Factory interface {
	// ClassCount returns the number of exported classes.
	ClassCount() int32

	// ClassInfo returns metadata for the class at index.
	ClassInfo(index int32) (ClassInfo, error)

	// CreateComponent instantiates the component object of a class.
	CreateComponent(id ClassID) (Component, error)

	// CreateController instantiates a stand-alone controller object for
	// plugins that split the controller into its own class.
	CreateController(id ClassID) (Controller, error)

	// Release drops the factory reference. The bundle stays mapped until
	// every object created from the factory has been released as well.
	Release()
}

// Component is the plugin's core lifecycle object.
type Component interface {
	Initialize(host HostContext) error
	Terminate() error

	// ControllerClassID reports the class id of a separate controller
	// class, if the component delegates parameter control to one.
	ControllerClassID() (ClassID, bool)

	BusCount(media MediaType, dir BusDirection) int32
	BusInfo(media MediaType, dir BusDirection, index int32) (BusInfo, error)
	ActivateBus(media MediaType, dir BusDirection, index int32, active bool) error

	SetActive(active bool) error

	// GetState and SetState move the component's opaque state through a
	// host-owned stream.
	GetState(s Stream) error
	SetState(s Stream) error

	// QueryProcessor asks the component for its audio-processing facet.
	// A missing facet is a valid answer, not an error.
	QueryProcessor() (Processor, bool)

	// QueryController asks the component for a controller facet
	// implemented on the same object.
	QueryController() (Controller, bool)

	Release()
}

// Processor is the audio-processing facet of a component.
type Processor interface {
	// CanProcess32Bit reports whether the plugin accepts 32-bit float
	// samples, the only format this host drives.
	CanProcess32Bit() bool

	SetupProcessing(setup ProcessSetup) error
	SetProcessing(active bool) error

	// Process runs one block. data must respect the setup's
	// MaxBlockFrames and list active buses only. Real-time safe: the
	// implementation must not allocate or block.
	Process(data *ProcessData) error

	LatencySamples() uint32
	TailSamples() uint32

	Release()
}

// Controller is the parameter-control facet.
type Controller interface {
	// Initialize and Terminate apply only to controllers instantiated as
	// their own class; a controller queried off the component shares the
	// component's lifecycle and implements both as no-ops.
	Initialize(host HostContext) error
	Terminate() error

	// SetComponentState hands the controller a copy of the component
	// state so the two halves stay consistent after a restore.
	SetComponentState(s Stream) error
	GetState(s Stream) error
	SetState(s Stream) error

	ParameterCount() int32
	ParameterInfo(index int32) (ParamInfo, error)
	ParamNormalized(id ParamID) float64
	SetParamNormalized(id ParamID, value float64) error

	// HasEditor reports whether the plugin provides a visual editor.
	// Window creation is the embedder's job; the host only hands out the
	// editor handle.
	HasEditor() bool
	CreateEditor() (Editor, error)

	Release()
}

// Editor is a handle on the plugin's visual editor. Attach embeds it into
// a platform window owned by the caller.
type Editor interface {
	Attach(parent uintptr) error
	Detach() error
	Release()
}

// Stream is the seekable byte stream the plugin reads and writes its
// opaque state through. Whence values follow the io package constants.
// Reading past the end returns 0 bytes and no error; that is the
// plugin-facing end-of-stream contract.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Tell() int64
}
